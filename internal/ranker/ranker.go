package ranker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/socraticlab/recall/internal/embedder"
	"github.com/socraticlab/recall/internal/lexical"
	"github.com/socraticlab/recall/internal/semantic"
	"github.com/socraticlab/recall/internal/store"
	"github.com/socraticlab/recall/pkg/types"
)

const (
	DefaultLimit = 5
	MaxLimit     = 50

	// DefaultEmbedTimeout bounds how long a query waits on the embedding
	// provider before the semantic side is abandoned.
	DefaultEmbedTimeout = 10 * time.Second

	snippetRunes = 100
)

// Request describes one ranked search.
type Request struct {
	UserID           string
	Query            string
	Mode             types.SearchMode
	Limit            int
	ProjectID        *uuid.UUID // nil searches all of the user's projects
	ExcludeProjectID *uuid.UUID
}

// Weights controls how lexical and semantic scores combine in hybrid mode.
// Each side is max-normalized to [0,1] before weighting, so the weights
// compare like with like.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// DefaultWeights splits the hybrid score evenly.
var DefaultWeights = Weights{Lexical: 0.5, Semantic: 0.5}

// Ranker coordinates lexical and semantic retrieval and fuses the two
// rankings into one response.
type Ranker struct {
	store        store.Store
	lexical      *lexical.Index
	semantic     *semantic.Index
	embedder     embedder.Embedder
	weights      Weights
	embedTimeout time.Duration
	logger       *zap.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithWeights overrides the hybrid fusion weights.
func WithWeights(w Weights) Option {
	return func(r *Ranker) { r.weights = w }
}

// WithEmbedTimeout overrides the query embedding deadline.
func WithEmbedTimeout(d time.Duration) Option {
	return func(r *Ranker) { r.embedTimeout = d }
}

// New creates a Ranker over the given store, indexes and embedder.
func New(st store.Store, lex *lexical.Index, sem *semantic.Index, emb embedder.Embedder, logger *zap.Logger, opts ...Option) *Ranker {
	r := &Ranker{
		store:        st,
		lexical:      lex,
		semantic:     sem,
		embedder:     emb,
		weights:      DefaultWeights,
		embedTimeout: DefaultEmbedTimeout,
		logger:       logger,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search runs the requested mode and returns ranked results. The response
// always echoes the requested mode, even when nothing matched. An
// unavailable embedding provider never fails the search: hybrid degrades
// to its lexical side, pure vector mode returns an empty result.
func (r *Ranker) Search(ctx context.Context, req Request) (*types.SearchResponse, error) {
	if err := r.validate(ctx, &req); err != nil {
		return nil, err
	}

	scope := lexical.Scope{
		UserID:           req.UserID,
		ProjectID:        req.ProjectID,
		ExcludeProjectID: req.ExcludeProjectID,
	}

	var fused []fusedHit
	switch req.Mode {
	case types.ModeLexical:
		fused = fromLexical(r.lexical.Search(scope, req.Query))
	case types.ModeSemantic:
		hits, err := r.semanticHits(ctx, req)
		if err != nil {
			if !errors.Is(err, types.ErrProviderUnavailable) {
				return nil, err
			}
			r.logger.Warn("embedding provider unavailable, returning empty semantic result",
				zap.String("user_id", req.UserID), zap.Error(err))
			hits = nil
		}
		fused = fromSemantic(hits)
	case types.ModeHybrid:
		var err error
		fused, err = r.hybrid(ctx, req, scope)
		if err != nil {
			return nil, err
		}
	}

	results, err := r.fetchResults(ctx, fused, req.Limit)
	if err != nil {
		return nil, err
	}
	return &types.SearchResponse{Mode: req.Mode, Results: results}, nil
}

// hybrid runs both sides concurrently and fuses them. The lexical side is
// authoritative: a semantic failure is logged and absorbed.
func (r *Ranker) hybrid(ctx context.Context, req Request, scope lexical.Scope) ([]fusedHit, error) {
	semChan := make(chan semanticResult, 1)
	go func() {
		hits, err := r.semanticHits(ctx, req)
		select {
		case semChan <- semanticResult{hits: hits, err: err}:
		case <-ctx.Done():
		}
	}()

	lexHits := r.lexical.Search(scope, req.Query)

	var semRes semanticResult
	select {
	case semRes = <-semChan:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if semRes.err != nil {
		r.logger.Warn("semantic side unavailable, degrading to lexical only",
			zap.String("user_id", req.UserID), zap.Error(semRes.err))
		semRes.hits = nil
	}

	return fuse(lexHits, semRes.hits, r.weights), nil
}

type semanticResult struct {
	hits []semantic.Hit
	err  error
}

// semanticHits embeds the query and searches the vector index. Provider
// failures surface as ErrProviderUnavailable so callers can pick a
// degradation policy.
func (r *Ranker) semanticHits(ctx context.Context, req Request) ([]semantic.Hit, error) {
	embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	defer cancel()

	emb, err := r.embedder.Embed(embedCtx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", types.ErrProviderUnavailable, err)
	}

	scope := semantic.Scope{
		UserID:           req.UserID,
		ProjectID:        req.ProjectID,
		ExcludeProjectID: req.ExcludeProjectID,
	}
	// Over-fetch so fusion has candidates beyond the final cut.
	return r.semantic.Search(scope, emb.Vector, req.Limit*2)
}

// fetchResults hydrates the top fused hits from the store. Turns deleted
// between ranking and hydration are skipped, not errors.
func (r *Ranker) fetchResults(ctx context.Context, fused []fusedHit, limit int) ([]types.SearchResult, error) {
	if limit > len(fused) {
		limit = len(fused)
	}

	results := make([]types.SearchResult, 0, limit)
	for _, fh := range fused {
		if len(results) == limit {
			break
		}
		turn, err := r.store.GetTurn(ctx, fh.turnID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, types.SearchResult{
			TurnID:    fh.turnID,
			ProjectID: fh.projectID,
			Rank:      len(results) + 1,
			Score:     fh.score,
			Snippet:   snippet(turn.Text),
			CreatedAt: fh.createdAt,
		})
	}
	return results, nil
}

func (r *Ranker) validate(ctx context.Context, req *Request) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: user not set", types.ErrInvalidScope)
	}
	if req.Query == "" {
		return types.ErrEmptyText
	}
	if req.Mode == "" {
		req.Mode = types.ModeHybrid
	}
	if !req.Mode.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownMode, req.Mode)
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.ProjectID != nil {
		if _, err := r.store.GetProject(ctx, req.UserID, *req.ProjectID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: project %s", types.ErrInvalidScope, *req.ProjectID)
			}
			return err
		}
	}
	return nil
}

// snippet truncates turn text to a preview at a rune boundary.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "…"
}
