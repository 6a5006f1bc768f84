// Package extract_tools exposes the extraction pipeline as MCP tools.
//
// preview_attachments runs the metadata pre-check and returns the qualifying
// attachments as JSON. extract_attachments runs the pipeline and returns the
// end-of-run summary; it is forced into dry-run mode unless the server was
// started with --yolo. Runs are serialized through the server context.
// check_accounts verifies the stored tokens of several accounts at once.
package extract_tools
