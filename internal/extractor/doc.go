// Package extractor drives the attachment extraction pipeline.
//
// For every message matching a query the Extractor runs a metadata
// pre-check, and only for messages with qualifying attachments fetches the
// raw content, saves the attachments below the output directory, replaces
// them by descriptors, checks the saved sizes against the metadata
// (SizeLedger) and finally inserts the rewritten copy and tags the
// original. Messages are processed one at a time.
//
// The mailbox is reached through the Source and Sink interfaces; the Gmail
// implementation lives in internal/gmail.
package extractor
