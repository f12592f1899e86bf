// Package httpapi is the fiber surface of the service: session handling,
// chat, search, project management and the memory export.
package httpapi
