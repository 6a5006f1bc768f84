// Package gmail implements the extractor's mailbox on top of the Gmail API.
//
// Client reads message metadata ("full" format) and RFC 822 content ("raw"
// format), manages labels and inserts rewritten messages into their original
// thread. Every API call runs in a client span and is recorded in the
// attachextract_gmail_api_* metrics.
package gmail
