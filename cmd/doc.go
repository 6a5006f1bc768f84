// Package cmd implements the command-line interface for attachextract.
//
// This package provides the following commands:
//   - extract: Save matching attachments and rewrite the messages without them
//   - auth: Authorize a Gmail account and store its OAuth token
//   - serve: Start the MCP server to provide tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The extract command is the default command when no subcommand is specified.
package cmd
