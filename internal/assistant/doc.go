// Package assistant is the conversational side of the service: a Socratic
// planning persona on the Anthropic messages API, and the chat pipeline
// that feeds it history plus recalled cross-project context.
package assistant
