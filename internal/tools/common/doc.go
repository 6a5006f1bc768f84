// Package common provides shared helpers for the MCP tool handlers:
// argument accessors and the instrumented handler wrapper.
package common
