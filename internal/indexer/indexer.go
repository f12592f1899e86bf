package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/socraticlab/recall/internal/embedder"
	"github.com/socraticlab/recall/internal/lexical"
	"github.com/socraticlab/recall/internal/semantic"
	"github.com/socraticlab/recall/internal/store"
	"github.com/socraticlab/recall/pkg/types"
)

// DefaultEmbedTimeout bounds the background embedding of one turn.
const DefaultEmbedTimeout = 30 * time.Second

// Indexer owns the write path: a turn is persisted, indexed lexically in
// the same call, and embedded in the background. A search issued right
// after IndexTurn returns always sees the turn lexically; the semantic
// side catches up when the provider answers.
type Indexer struct {
	store        store.Store
	lexical      *lexical.Index
	semantic     *semantic.Index
	embedder     embedder.Embedder
	logger       *zap.Logger
	embedTimeout time.Duration
	synchronous  bool

	wg      sync.WaitGroup
	pending atomic.Int64
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithEmbedTimeout overrides the background embedding deadline.
func WithEmbedTimeout(d time.Duration) Option {
	return func(idx *Indexer) { idx.embedTimeout = d }
}

// Synchronous makes IndexTurn embed inline instead of in the background.
// Deterministic ordering for tests and the rebuild path.
func Synchronous() Option {
	return func(idx *Indexer) { idx.synchronous = true }
}

// New creates an Indexer over the store, both indexes and the embedder.
func New(st store.Store, lex *lexical.Index, sem *semantic.Index, emb embedder.Embedder, logger *zap.Logger, opts ...Option) *Indexer {
	idx := &Indexer{
		store:        st,
		lexical:      lex,
		semantic:     sem,
		embedder:     emb,
		logger:       logger,
		embedTimeout: DefaultEmbedTimeout,
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexTurn persists the turn and indexes it. Storage and lexical indexing
// are synchronous; failure there fails the call. Embedding failures never
// do, the turn just stays lexical-only until a rebuild.
func (idx *Indexer) IndexTurn(ctx context.Context, turn *types.Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	if err := idx.store.AppendTurn(ctx, turn); err != nil {
		return err
	}
	idx.lexical.Add(turn)

	if idx.synchronous {
		idx.embedTurn(ctx, turn)
		return nil
	}

	idx.wg.Add(1)
	idx.pending.Add(1)
	go func() {
		defer idx.wg.Done()
		defer idx.pending.Add(-1)
		// Detached from the request context; the caller's response does
		// not wait on the provider.
		embedCtx, cancel := context.WithTimeout(context.Background(), idx.embedTimeout)
		defer cancel()
		idx.embedTurn(embedCtx, turn)
	}()
	return nil
}

func (idx *Indexer) embedTurn(ctx context.Context, turn *types.Turn) {
	emb, err := idx.embedder.Embed(ctx, turn.Text)
	if err != nil {
		idx.logger.Warn("turn left lexical-only, embedding failed",
			zap.String("turn_id", turn.ID.String()), zap.Error(err))
		return
	}
	// The turn's project may have been deleted while the provider was
	// answering; indexing the vector then would undo the eviction.
	if _, err := idx.store.GetTurn(ctx, turn.ID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			idx.logger.Error("turn existence check failed, dropping embedding",
				zap.String("turn_id", turn.ID.String()), zap.Error(err))
		}
		return
	}
	if err := idx.semantic.Add(turn, emb.Vector); err != nil {
		idx.logger.Error("semantic index rejected embedding",
			zap.String("turn_id", turn.ID.String()), zap.Error(err))
		return
	}
	if err := idx.store.UpsertEmbedding(ctx, turn.ID, emb.Vector, emb.Provider, emb.Model); err != nil {
		idx.logger.Error("embedding not persisted, will re-embed on rebuild",
			zap.String("turn_id", turn.ID.String()), zap.Error(err))
	}
}

// Pending reports how many background embeddings are still in flight.
func (idx *Indexer) Pending() int {
	return int(idx.pending.Load())
}

// Wait blocks until every background embedding launched so far has
// finished, or the context expires.
func (idx *Indexer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		idx.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeleteProject removes the project and everything derived from it: the
// store row cascades to turns and embeddings, then both indexes evict.
// Once this returns, no new search can surface the project's turns.
func (idx *Indexer) DeleteProject(ctx context.Context, userID string, projectID uuid.UUID) error {
	if err := idx.store.DeleteProject(ctx, userID, projectID); err != nil {
		return err
	}
	idx.lexical.RemoveProject(userID, projectID)
	idx.semantic.RemoveProject(userID, projectID)
	return nil
}

// Reset drops the user's in-memory indexes. The store is untouched;
// Rehydrate restores both sides from it.
func (idx *Indexer) Reset(userID string) {
	idx.lexical.Reset(userID)
	idx.semantic.Reset(userID)
}

// Rehydrate rebuilds the user's indexes from the store. Turns and stored
// embeddings load concurrently; turns whose stored vector no longer
// matches the active provider's dimension are re-embedded inline.
func (idx *Indexer) Rehydrate(ctx context.Context, userID string) error {
	var turns []*types.Turn
	var vectors map[uuid.UUID][]float32

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		turns, err = idx.store.ListUserTurns(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		vectors, err = idx.store.ListEmbeddings(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rehydrate %s: %w", userID, err)
	}

	idx.Reset(userID)
	for _, turn := range turns {
		idx.lexical.Add(turn)
		vec, ok := vectors[turn.ID]
		if ok && len(vec) == idx.semantic.Dimension() {
			if err := idx.semantic.Add(turn, vec); err != nil {
				return err
			}
			continue
		}
		if ok {
			idx.logger.Warn("stored embedding dimension mismatch, re-embedding",
				zap.String("turn_id", turn.ID.String()),
				zap.Int("stored", len(vec)),
				zap.Int("want", idx.semantic.Dimension()))
		}
		idx.embedTurn(ctx, turn)
	}
	return nil
}
