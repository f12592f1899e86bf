package ranker

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/socraticlab/recall/internal/lexical"
	"github.com/socraticlab/recall/internal/semantic"
)

// fusedHit is one turn's combined standing across both scoring spaces.
type fusedHit struct {
	turnID    uuid.UUID
	projectID uuid.UUID
	score     float64
	createdAt time.Time
}

// fuse max-normalizes each side to [0,1], then combines them as a weighted
// sum. A turn absent from one side contributes zero there, so a hit on
// both sides always outranks an equal hit on one.
func fuse(lexHits []lexical.Hit, semHits []semantic.Hit, w Weights) []fusedHit {
	lexMax := 0.0
	for _, h := range lexHits {
		if h.Score > lexMax {
			lexMax = h.Score
		}
	}
	semMax := 0.0
	for _, h := range semHits {
		if h.Score > semMax {
			semMax = h.Score
		}
	}

	combined := make(map[uuid.UUID]*fusedHit)
	for _, h := range lexHits {
		fh := &fusedHit{turnID: h.TurnID, projectID: h.ProjectID, createdAt: h.CreatedAt}
		if lexMax > 0 {
			fh.score = w.Lexical * (h.Score / lexMax)
		}
		combined[h.TurnID] = fh
	}
	for _, h := range semHits {
		norm := 0.0
		if semMax > 0 && h.Score > 0 {
			norm = h.Score / semMax
		}
		if fh, ok := combined[h.TurnID]; ok {
			fh.score += w.Semantic * norm
			continue
		}
		combined[h.TurnID] = &fusedHit{
			turnID:    h.TurnID,
			projectID: h.ProjectID,
			score:     w.Semantic * norm,
			createdAt: h.CreatedAt,
		}
	}

	out := make([]fusedHit, 0, len(combined))
	for _, fh := range combined {
		out = append(out, *fh)
	}
	sortFused(out)
	return out
}

func fromLexical(hits []lexical.Hit) []fusedHit {
	out := make([]fusedHit, len(hits))
	for i, h := range hits {
		out[i] = fusedHit{turnID: h.TurnID, projectID: h.ProjectID, score: h.Score, createdAt: h.CreatedAt}
	}
	return out
}

func fromSemantic(hits []semantic.Hit) []fusedHit {
	out := make([]fusedHit, len(hits))
	for i, h := range hits {
		out[i] = fusedHit{turnID: h.TurnID, projectID: h.ProjectID, score: h.Score, createdAt: h.CreatedAt}
	}
	return out
}

// sortFused orders by descending score, then most recent turn, then turn
// ID so equal inputs always rank identically.
func sortFused(hits []fusedHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if !hits[i].createdAt.Equal(hits[j].createdAt) {
			return hits[i].createdAt.After(hits[j].createdAt)
		}
		return hits[i].turnID.String() < hits[j].turnID.String()
	})
}
