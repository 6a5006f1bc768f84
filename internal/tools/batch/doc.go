// Package batch provides helpers for MCP tools that act on several items in
// one call, such as checking the tokens of several accounts.
//
// It parses parameters that accept both single values and arrays, runs an
// operation per item while collecting partial failures and renders the
// aggregated report.
package batch
