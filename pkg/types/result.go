package types

import (
	"time"

	"github.com/google/uuid"
)

// SearchMode selects which scoring space a search runs in. The string
// values are wire names consumed by the HTTP layer and must not change.
type SearchMode string

const (
	ModeLexical  SearchMode = "tfidf"
	ModeSemantic SearchMode = "vector"
	ModeHybrid   SearchMode = "hybrid"
)

// Valid reports whether the mode is one of the three known values.
func (m SearchMode) Valid() bool {
	switch m {
	case ModeLexical, ModeSemantic, ModeHybrid:
		return true
	}
	return false
}

// SearchResult is one ranked hit. The field set is a stable serialization
// contract: the report exporter embeds these verbatim.
type SearchResult struct {
	TurnID    uuid.UUID `json:"turn_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Rank      int       `json:"rank"`
	Score     float64   `json:"score"`
	Snippet   string    `json:"snippet"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks result invariants.
func (sr *SearchResult) Validate() error {
	if sr.TurnID == uuid.Nil {
		return ErrInvalidTurnID
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.Score < 0 {
		return ErrNegativeScore
	}
	return nil
}

// SearchResponse is the ranked list for one query. Mode always echoes the
// requested mode, even when Results is empty.
type SearchResponse struct {
	Mode    SearchMode     `json:"mode"`
	Results []SearchResult `json:"results"`
}

// ContextBundle is the cross-project context handed to the assistant when
// a message references earlier work. A nil bundle means "no other project
// had anything to offer"; callers distinguish that from an empty search.
type ContextBundle struct {
	Query    string         `json:"query"`
	Results  []SearchResult `json:"results"`
	Projects []Project      `json:"projects"`
}
