// Package indexer coordinates the turn write path across the store and
// both in-memory indexes, and rebuilds them from the store on startup or
// after corruption.
package indexer
