// Package filter decides which attachment parts qualify for extraction.
//
// The same Filter is applied twice per message: once against the part
// metadata reported by the mailbox (a cheap pre-check that avoids fetching
// the raw message) and once against the parsed parts, using the size that
// was actually written to disk.
package filter
