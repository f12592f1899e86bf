package lexical

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/socraticlab/recall/pkg/types"
)

// Hit is one lexical match: the turn and its raw tf·idf score.
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

// docEntry is the immutable per-turn posting payload. Entries are built
// fully before being published under the shard's write lock, so a reader
// never observes a half-written term-frequency map.
type docEntry struct {
	turnID    uuid.UUID
	projectID uuid.UUID
	createdAt time.Time
	tf        map[string]int
}

// userShard holds one user's postings and IDF table. Index state is
// partitioned by user, so cross-user operations never contend and term
// statistics never leak between users.
type userShard struct {
	mu       sync.RWMutex
	docs     map[uuid.UUID]*docEntry
	postings map[string]map[uuid.UUID]struct{}
	idf      map[string]float64
	dirty    bool
}

// Index is the TF-IDF lexical index over conversation turns.
type Index struct {
	mu      sync.RWMutex
	shards  map[string]*userShard
	rebuild singleflight.Group
}

// NewIndex creates an empty lexical index.
func NewIndex() *Index {
	return &Index{shards: make(map[string]*userShard)}
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
	s = &userShard{
		docs:     make(map[uuid.UUID]*docEntry),
		postings: make(map[string]map[uuid.UUID]struct{}),
	}
	ix.shards[userID] = s
	return s
}

// Add indexes one turn. The entry is assembled outside the lock and
// published atomically; the user's IDF table is marked dirty.
func (ix *Index) Add(turn *types.Turn) {
	tokens := turn.Tokens
	if tokens == nil {
		tokens = Tokenize(turn.Text)
	}
	if len(tokens) == 0 {
		return
	}

	entry := &docEntry{
		turnID:    turn.ID,
		projectID: turn.ProjectID,
		createdAt: turn.CreatedAt,
		tf:        make(map[string]int, len(tokens)),
	}
	for _, tok := range tokens {
		entry.tf[tok]++
	}

	s := ix.shard(turn.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[turn.ID] = entry
	for term := range entry.tf {
		posting, ok := s.postings[term]
		if !ok {
			posting = make(map[uuid.UUID]struct{})
			s.postings[term] = posting
		}
		posting[turn.ID] = struct{}{}
	}
	s.dirty = true
}

// RemoveProject evicts every posting belonging to the project. Once it
// returns, no subsequent search can score one of the project's turns.
func (ix *Index) RemoveProject(userID string, projectID uuid.UUID) {
	s := ix.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.docs {
		if entry.projectID != projectID {
			continue
		}
		delete(s.docs, id)
		for term := range entry.tf {
			if posting, ok := s.postings[term]; ok {
				delete(posting, id)
				if len(posting) == 0 {
					delete(s.postings, term)
				}
			}
		}
	}
	s.dirty = true
}

// Reset drops a user's entire shard. Used before rehydrating from the store.
func (ix *Index) Reset(userID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.shards, userID)
}

// Search scores every in-scope turn sharing a term with the query:
// sum over shared terms of tf(term, turn) * idf(term). Results are ordered
// by descending score, ties broken by most recent turn first. An empty or
// all-stopword query yields an empty result, never an error.
func (ix *Index) Search(scope Scope, query string) []Hit {
	queryTerms := dedupe(Tokenize(query))
	if len(queryTerms) == 0 {
		return []Hit{}
	}

	s := ix.shard(scope.UserID)
	ix.ensureIDF(scope.UserID, s)

	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := make(map[uuid.UUID]float64)
	for _, term := range queryTerms {
		idf := s.idf[term]
		if idf == 0 {
			continue
		}
		for id := range s.postings[term] {
			entry := s.docs[id]
			if !inScope(entry, scope) {
				continue
			}
			scores[id] += float64(entry.tf[term]) * idf
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		entry := s.docs[id]
		hits = append(hits, Hit{
			TurnID:    id,
			ProjectID: entry.projectID,
			Score:     score,
			CreatedAt: entry.createdAt,
		})
	}
	sortHits(hits)
	return hits
}

// ensureIDF lazily rebuilds the user's IDF table on the first search after
// the shard went dirty. singleflight collapses concurrent rebuilds. The
// dirty flag is cleared when the snapshot is taken, not when the table is
// swapped in: an Add landing after the snapshot re-dirties the shard and
// the next search rebuilds again, so a new turn's terms are never stuck
// unscored behind a stale table.
func (ix *Index) ensureIDF(userID string, s *userShard) {
	s.mu.RLock()
	dirty := s.dirty
	s.mu.RUnlock()
	if !dirty {
		return
	}

	_, _, _ = ix.rebuild.Do(userID, func() (interface{}, error) {
		s.mu.Lock()
		if !s.dirty {
			s.mu.Unlock()
			return nil, nil
		}
		s.dirty = false
		n := len(s.docs)
		df := make(map[string]int, len(s.postings))
		for term, posting := range s.postings {
			df[term] = len(posting)
		}
		s.mu.Unlock()

		idf := make(map[string]float64, len(df))
		for term, count := range df {
			// Smoothed IDF; always positive, so term weights stay
			// non-negative.
			idf[term] = math.Log(float64(1+n)/float64(1+count)) + 1
		}

		s.mu.Lock()
		s.idf = idf
		s.mu.Unlock()
		return nil, nil
	})
}

func inScope(entry *docEntry, scope Scope) bool {
	if scope.ProjectID != nil && entry.projectID != *scope.ProjectID {
		return false
	}
	if scope.ExcludeProjectID != nil && entry.projectID == *scope.ExcludeProjectID {
		return false
	}
	return true
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].TurnID.String() < hits[j].TurnID.String()
	})
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
