// Package store writes extracted attachment payloads to disk and reports
// their size and content digests.
package store
