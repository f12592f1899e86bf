// Package app wires the service together once so both binaries, the HTTP
// server and the MCP server, assemble the same stack.
package app

import (
	"errors"

	"go.uber.org/zap"

	"github.com/socraticlab/recall/internal/assistant"
	"github.com/socraticlab/recall/internal/config"
	"github.com/socraticlab/recall/internal/embedder"
	"github.com/socraticlab/recall/internal/indexer"
	"github.com/socraticlab/recall/internal/lexical"
	"github.com/socraticlab/recall/internal/ranker"
	"github.com/socraticlab/recall/internal/reference"
	"github.com/socraticlab/recall/internal/semantic"
	"github.com/socraticlab/recall/internal/store"
)

// App is the assembled service.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    store.Store
	Embedder embedder.Embedder
	Lexical  *lexical.Index
	Semantic *semantic.Index
	Indexer  *indexer.Indexer
	Ranker   *ranker.Ranker
	Detector *reference.Detector
	// Chat is nil when no Anthropic credentials are available; the HTTP
	// layer then answers chat requests with 503, search still works.
	Chat *assistant.ChatService
}

// New builds the full stack from configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		OllamaURL: cfg.Embedding.OllamaURL,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	lex := lexical.NewIndex()
	sem := semantic.NewIndex(emb.Dimension())
	idx := indexer.New(st, lex, sem, emb, logger)
	rk := ranker.New(st, lex, sem, emb, logger,
		ranker.WithWeights(ranker.Weights{
			Lexical:  cfg.Search.LexicalWeight,
			Semantic: cfg.Search.SemanticWeight,
		}))
	det := reference.NewDetector(st, rk, logger)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Embedder: emb,
		Lexical:  lex,
		Semantic: sem,
		Indexer:  idx,
		Ranker:   rk,
		Detector: det,
	}

	creds, err := assistant.LoadCredentials(cfg.Assistant.APIKey)
	switch {
	case err == nil:
		gen := assistant.NewAnthropicClient(creds, cfg.Assistant.Model)
		a.Chat = assistant.NewChatService(st, idx, det, gen, logger)
	case errors.Is(err, assistant.ErrNoCredentials):
		logger.Warn("no anthropic credentials, chat disabled")
	default:
		_ = a.Close()
		return nil, err
	}

	return a, nil
}

// Close releases the store and embedder.
func (a *App) Close() error {
	err := a.Embedder.Close()
	if cerr := a.Store.Close(); cerr != nil {
		err = cerr
	}
	return err
}
