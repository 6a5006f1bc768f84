// Package resources provides MCP resources describing the extraction server.
// Resources are read-only data sources that MCP clients can fetch: the
// default settings, the profile of the configured account and the outcome
// of the latest extraction run.
package resources
