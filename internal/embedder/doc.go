// Package embedder generates text embeddings for the semantic index.
//
// Three providers are supported: OpenAI (hosted API), Ollama (local
// server), and a deterministic hash embedder used for development and
// tests. All providers share an LRU cache keyed by content hash and retry
// transient API failures with exponential backoff.
//
// The embedding call is the system's only true suspension point. Callers
// pass a context with a deadline and treat any error as a degraded,
// lexical-only search rather than a fatal failure.
package embedder
