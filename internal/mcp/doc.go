// Package mcp exposes conversation memory to agent clients over the Model
// Context Protocol: searching it, resolving back-references, exporting it.
package mcp
