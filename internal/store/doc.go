// Package store persists conversation history in SQLite and is the source
// of truth for both retrieval indexes.
//
// # Schema
//
// Three tables: projects (user-scoped, name unique per user), turns
// (append-only log, FK to projects with ON DELETE CASCADE), and embeddings
// (one unit-norm float32 blob per indexed turn, FK to turns). Deleting a
// project therefore removes its turns and vectors in a single statement.
//
// # Drivers
//
// Two SQLite drivers are supported via build tags:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo" ./...   # mattn/go-sqlite3
//	CGO_ENABLED=0 go build ./...                      # modernc.org/sqlite
//
// The pure Go driver is the default and needs no C toolchain.
//
// # Error Mapping
//
// Persistence failures wrap types.ErrStorage. Malformed stored vectors or
// IDs wrap types.ErrIndexCorruption so callers can trigger a rebuild
// instead of serving wrong results.
package store
