package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/socraticlab/recall/internal/app"
	"github.com/socraticlab/recall/internal/config"
	"github.com/socraticlab/recall/internal/httpapi"
	"github.com/socraticlab/recall/internal/logging"
	"github.com/socraticlab/recall/internal/store"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "recall.toml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("recall %s (built %s)\n", version, buildTime)
		fmt.Printf("SQLite driver: %s (%s)\n", store.DriverName, store.BuildMode)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	server := httpapi.New(a.Store, a.Indexer, a.Ranker, a.Chat, logger)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("embedding_provider", a.Embedder.Provider()))
		errChan <- server.Listen(cfg.Server.Addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}

	if err := server.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	// Give in-flight embeddings a moment to land before the store closes.
	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Indexer.Wait(waitCtx); err != nil {
		logger.Warn("pending embeddings abandoned", zap.Error(err))
	}

	logger.Info("server stopped")
}
