package semantic

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/socraticlab/recall/pkg/types"
)

// Hit is one semantic match: the turn and its cosine similarity.
type Hit struct {
	TurnID    uuid.UUID
	ProjectID uuid.UUID
	Score     float64
	CreatedAt time.Time
}

// Scope narrows a search to one user and optionally to (or away from) one
// project.
type Scope struct {
	UserID           string
	ProjectID        *uuid.UUID
	ExcludeProjectID *uuid.UUID
}

// vecEntry is the immutable per-turn payload, published whole under the
// shard write lock.
type vecEntry struct {
	turnID    uuid.UUID
	projectID uuid.UUID
	createdAt time.Time
	vector    []float32 // unit norm
}

type userShard struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*vecEntry
}

// Index stores one unit-norm embedding per turn and answers nearest-
// neighbor queries by dot product. The embedding dimension is fixed at
// construction; a vector of any other length is corruption, never padded
// or truncated.
type Index struct {
	dimension int

	mu     sync.RWMutex
	shards map[string]*userShard
}

// NewIndex creates an empty semantic index for vectors of the given
// dimension.
func NewIndex(dimension int) *Index {
	return &Index{
		dimension: dimension,
		shards:    make(map[string]*userShard),
	}
}

// Dimension returns the fixed embedding dimension.
func (ix *Index) Dimension() int {
	return ix.dimension
}

func (ix *Index) shard(userID string) *userShard {
	ix.mu.RLock()
	s, ok := ix.shards[userID]
	ix.mu.RUnlock()
	if ok {
		return s
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if s, ok = ix.shards[userID]; ok {
		return s
	}
	s = &userShard{entries: make(map[uuid.UUID]*vecEntry)}
	ix.shards[userID] = s
	return s
}

// Add normalizes and stores a turn's embedding. The entry is assembled
// before the lock is taken so a concurrent search never sees a vector of
// the wrong length or a partially copied one.
func (ix *Index) Add(turn *types.Turn, vector []float32) error {
	if len(vector) != ix.dimension {
		return fmt.Errorf("%w: embedding for turn %s has dimension %d, index requires %d",
			types.ErrIndexCorruption, turn.ID, len(vector), ix.dimension)
	}

	entry := &vecEntry{
		turnID:    turn.ID,
		projectID: turn.ProjectID,
		createdAt: turn.CreatedAt,
		vector:    normalize(vector),
	}

	s := ix.shard(turn.UserID)
	s.mu.Lock()
	s.entries[turn.ID] = entry
	s.mu.Unlock()
	return nil
}

// RemoveProject evicts every vector belonging to the project.
func (ix *Index) RemoveProject(userID string, projectID uuid.UUID) {
	s := ix.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if entry.projectID == projectID {
			delete(s.entries, id)
		}
	}
}

// Reset drops a user's entire shard. Used before rehydrating from the store.
func (ix *Index) Reset(userID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.shards, userID)
}

// Search returns the topK most similar turns in scope. Both sides are unit
// vectors, so cosine similarity reduces to a dot product. Ties are broken
// by most recent turn first.
func (ix *Index) Search(scope Scope, queryVector []float32, topK int) ([]Hit, error) {
	if len(queryVector) != ix.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, index requires %d",
			types.ErrIndexCorruption, len(queryVector), ix.dimension)
	}
	if topK <= 0 {
		return []Hit{}, nil
	}
	query := normalize(queryVector)

	s := ix.shard(scope.UserID)
	s.mu.RLock()
	hits := make([]Hit, 0, len(s.entries))
	for _, entry := range s.entries {
		if !inScope(entry, scope) {
			continue
		}
		hits = append(hits, Hit{
			TurnID:    entry.turnID,
			ProjectID: entry.projectID,
			Score:     dot(query, entry.vector),
			CreatedAt: entry.createdAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].TurnID.String() < hits[j].TurnID.String()
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func inScope(entry *vecEntry, scope Scope) bool {
	if scope.ProjectID != nil && entry.projectID != *scope.ProjectID {
		return false
	}
	if scope.ExcludeProjectID != nil && entry.projectID == *scope.ExcludeProjectID {
		return false
	}
	return true
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalize returns a unit-length copy of v. A zero vector is returned
// as-is; it scores zero against everything.
func normalize(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := float32(math.Sqrt(sum))
	for i, val := range v {
		out[i] = val / norm
	}
	return out
}
