package legalgraph

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/brunobiangulo/legalgraph/graph"
	"github.com/brunobiangulo/legalgraph/llm"
)

// EnvPrefix prefixes every environment override, e.g. LEGALGRAPH_CHAT_MODEL.
const EnvPrefix = "LEGALGRAPH_"

// Config holds all configuration for the legalgraph engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.legalgraph/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path" env:"DB_PATH"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name" env:"DB_NAME"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.legalgraph/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir" env:"STORAGE_DIR"`

	// LLM providers
	Chat        llm.Config `json:"chat" yaml:"chat" envPrefix:"CHAT_"`
	Embedding   llm.Config `json:"embedding" yaml:"embedding" envPrefix:"EMBEDDING_"`     // optional: no provider disables summary embeddings
	Translation llm.Config `json:"translation" yaml:"translation" envPrefix:"TRANSLATION_"` // optional: no provider leaves English text pending

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim" env:"EMBEDDING_DIM"`

	// Chunking
	MaxChunkTokens int `json:"max_chunk_tokens" yaml:"max_chunk_tokens" env:"MAX_CHUNK_TOKENS"`

	// Pipeline
	SafeBudget          int     `json:"safe_budget" yaml:"safe_budget" env:"SAFE_BUDGET"`
	ContextTokens       int     `json:"context_tokens" yaml:"context_tokens" env:"CONTEXT_TOKENS"` // hard context limit of the chat model
	CharsPerToken       int     `json:"chars_per_token" yaml:"chars_per_token" env:"CHARS_PER_TOKEN"`
	MapConcurrency      int     `json:"map_concurrency" yaml:"map_concurrency" env:"MAP_CONCURRENCY"`
	RequestsPerSecond   float64 `json:"requests_per_second" yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"` // 0 disables rate limiting
	RequestBurst        int     `json:"request_burst" yaml:"request_burst" env:"REQUEST_BURST"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" env:"SIMILARITY_THRESHOLD"`
	MinSummaryChars     int     `json:"min_summary_chars" yaml:"min_summary_chars" env:"MIN_SUMMARY_CHARS"`
	MaxReduceDepth      int     `json:"max_reduce_depth" yaml:"max_reduce_depth" env:"MAX_REDUCE_DEPTH"`
	ExtractMode         string  `json:"extract_mode" yaml:"extract_mode" env:"EXTRACT_MODE"` // "model" or "rules"
	BatchTimeout        string  `json:"batch_timeout" yaml:"batch_timeout" env:"BATCH_TIMEOUT"`  // Go duration, e.g. "5m"

	LogLevel string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.legalgraph/legalgraph.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "legalgraph",
		StorageDir: "home",
		Chat: llm.Config{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: llm.Config{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:        768,
		MaxChunkTokens:      2048,
		SafeBudget:          graph.DefaultSafeBudget,
		ContextTokens:       128000,
		CharsPerToken:       graph.DefaultCharsPerToken,
		MapConcurrency:      graph.DefaultMapConcurrency,
		RequestBurst:        1,
		SimilarityThreshold: graph.DefaultSimilarityThreshold,
		MinSummaryChars:     graph.DefaultMinSummaryChars,
		MaxReduceDepth:      graph.DefaultMaxReduceDepth,
		ExtractMode:         graph.ExtractModel,
		BatchTimeout:        graph.DefaultBatchTimeout.String(),
		LogLevel:            "info",
	}
}

// LoadConfig builds a Config from defaults, an optional JSON file, an
// optional .env file and LEGALGRAPH_* environment variables, in that
// order. Missing files named explicitly are errors; the default .env in
// the working directory is optional.
func LoadConfig(path, dotenv string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil {
			return cfg, fmt.Errorf("loading %s: %w", dotenv, err)
		}
	} else {
		_ = godotenv.Load() // .env is optional
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("%w: environment: %v", ErrInvalidConfig, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Chat.Provider == "":
		return fmt.Errorf("%w: chat provider is required", ErrInvalidConfig)
	case c.SafeBudget <= 0:
		return fmt.Errorf("%w: safe_budget must be positive", ErrInvalidConfig)
	case c.ContextTokens > 0 && c.SafeBudget >= c.ContextTokens:
		return fmt.Errorf("%w: safe_budget %d must be below context_tokens %d", ErrInvalidConfig, c.SafeBudget, c.ContextTokens)
	case c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1:
		return fmt.Errorf("%w: similarity_threshold must be in (0,1]", ErrInvalidConfig)
	case c.MinSummaryChars < 0:
		return fmt.Errorf("%w: min_summary_chars must not be negative", ErrInvalidConfig)
	case c.CharsPerToken < 0 || c.MapConcurrency < 0 || c.MaxReduceDepth < 0 || c.MaxChunkTokens < 0:
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidConfig)
	case c.RequestsPerSecond < 0:
		return fmt.Errorf("%w: requests_per_second must not be negative", ErrInvalidConfig)
	case c.ExtractMode != "" && c.ExtractMode != graph.ExtractModel && c.ExtractMode != graph.ExtractRules:
		return fmt.Errorf("%w: extract_mode %q (want %q or %q)", ErrInvalidConfig, c.ExtractMode, graph.ExtractModel, graph.ExtractRules)
	case c.Embedding.Provider != "" && c.EmbeddingDim <= 0:
		return fmt.Errorf("%w: embedding_dim must be positive", ErrInvalidConfig)
	}
	if _, err := c.batchTimeout(); err != nil {
		return fmt.Errorf("%w: batch_timeout: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) batchTimeout() (time.Duration, error) {
	if c.BatchTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.BatchTimeout)
}

// SlogLevel maps LogLevel onto a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// graphConfig maps the pipeline settings onto the builder's knobs.
func (c *Config) graphConfig() graph.Config {
	timeout, _ := c.batchTimeout()
	return graph.Config{
		SafeBudget:          c.SafeBudget,
		CharsPerToken:       c.CharsPerToken,
		MapConcurrency:      c.MapConcurrency,
		SimilarityThreshold: c.SimilarityThreshold,
		MinSummaryChars:     c.MinSummaryChars,
		MaxReduceDepth:      c.MaxReduceDepth,
		ExtractMode:         c.ExtractMode,
		BatchTimeout:        timeout,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}

	name := c.DBName
	if name == "" {
		name = "legalgraph"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db", nil
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db", nil // fallback to cwd
		}
		dir := filepath.Join(home, ".legalgraph")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", dir, err)
		}
		return filepath.Join(dir, name+".db"), nil
	}
}
