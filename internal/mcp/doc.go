// Package mcp exposes the document lifecycle operations as MCP tools over
// stdio.
//
// Tools: documents_add, documents_remove, documents_content, files_move and
// folder_create. Each tool takes an optional actor_id that scopes file access
// the same way the X-Actor-ID header does for the HTTP API.
package mcp
