// Package config loads service configuration: defaults, then an optional
// TOML file, then environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/socraticlab/recall/internal/logging"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Search    SearchConfig    `toml:"search"`
	Assistant AssistantConfig `toml:"assistant"`
	Logging   logging.Config  `toml:"logging"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type EmbeddingConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	OllamaURL string `toml:"ollama_url"`
	CacheSize int    `toml:"cache_size"`
	// APIKey comes from the environment only, never the file.
	APIKey string `toml:"-"`
}

type SearchConfig struct {
	LexicalWeight  float64 `toml:"lexical_weight"`
	SemanticWeight float64 `toml:"semantic_weight"`
	DefaultLimit   int     `toml:"default_limit"`
}

type AssistantConfig struct {
	Model string `toml:"model"`
	// APIKey comes from the environment or the key file, never the
	// config file.
	APIKey string `toml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "recall.db"},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			CacheSize: 10000,
		},
		Search: SearchConfig{
			LexicalWeight:  0.5,
			SemanticWeight: 0.5,
			DefaultLimit:   5,
		},
		Assistant: AssistantConfig{Model: "claude-sonnet-4-20250514"},
		Logging:   logging.Config{Level: "info"},
	}
}

// Load builds the configuration. A missing file is not an error; the
// defaults plus environment take over.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "RECALL_ADDR")
	setString(&cfg.Database.Path, "RECALL_DB_PATH")
	setString(&cfg.Embedding.Provider, "RECALL_EMBEDDING_PROVIDER")
	setString(&cfg.Embedding.Model, "RECALL_EMBEDDING_MODEL")
	setString(&cfg.Embedding.OllamaURL, "OLLAMA_URL")
	setString(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Assistant.Model, "RECALL_ASSISTANT_MODEL")
	setString(&cfg.Assistant.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.Logging.FilePath, "RECALL_LOG_FILE")
	setString(&cfg.Logging.Level, "RECALL_LOG_LEVEL")
	setInt(&cfg.Search.DefaultLimit, "RECALL_SEARCH_LIMIT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
