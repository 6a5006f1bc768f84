// Package descriptor renders the text that replaces an extracted attachment
// inside the rewritten message.
package descriptor
