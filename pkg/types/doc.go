// Package types provides shared type definitions for the recall retrieval core.
//
// This package defines the domain types that cross component boundaries:
// conversation turns, projects, search results, and the cross-project
// context bundle handed to the assistant.
//
// # Core Types
//
// Turn represents a single conversation message owned by a (user, project)
// pair. Turns are immutable once created; only the derived indexing fields
// (tokens, embedding) are populated after the fact:
//
//	turn := &types.Turn{
//	    UserID:    "jihye",
//	    ProjectID: projectID,
//	    Role:      types.RoleUser,
//	    Text:      "카페 창업을 준비하고 있어",
//	}
//
// SearchResult is the stable, serializable shape returned by every search
// mode. External consumers (the web layer, the report exporter, MCP tool
// clients) depend on these field names staying put:
//
//	result := types.SearchResult{
//	    TurnID:  turn.ID,
//	    Score:   0.92,
//	    Snippet: "카페 창업을 준비하고...",
//	}
//
// # Search Modes
//
// The wire names of the three search modes ("tfidf", "vector", "hybrid")
// are part of the HTTP contract and are preserved verbatim. A search
// response always echoes the mode that was requested, even when the result
// set is empty.
//
// # Error Taxonomy
//
// Sentinel errors classify failures by recovery policy: storage errors are
// fatal to the write path, provider errors degrade semantic search to a
// no-op, scope violations fail closed before any index is touched, and
// corruption errors trigger an index rebuild rather than wrong results.
package types
