package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration value. It is constructed once at
// startup and injected into component constructors; no component reads
// configuration from globals.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Engine    EngineConfig    `json:"engine" yaml:"engine"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	VectorDB  VectorDBConfig  `json:"vectordb" yaml:"vectordb"`
	LegacyDB  LegacyDBConfig  `json:"legacydb" yaml:"legacydb"`
	Secrets   SecretsConfig   `json:"secrets" yaml:"secrets"`
	Audit     AuditConfig     `json:"audit" yaml:"audit"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// ServerConfig holds the HTTP serving surface settings.
type ServerConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// EngineConfig tunes the routing engine and both pipelines.
type EngineConfig struct {
	// QueryTimeoutSeconds is the wall-clock budget for one handled query.
	QueryTimeoutSeconds int `json:"query_timeout_seconds,omitempty" yaml:"query_timeout_seconds,omitempty"`
	// TopK is the neighbor count requested from the vector store.
	TopK int `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	// MinSimilarity is the floor below which neighbors are discarded.
	MinSimilarity float64 `json:"min_similarity,omitempty" yaml:"min_similarity,omitempty"`
	// ContextTopN is how many ranked passages feed answer synthesis.
	ContextTopN int `json:"context_top_n,omitempty" yaml:"context_top_n,omitempty"`
	// ContextTokenBudget bounds the synthesis context window.
	ContextTokenBudget int `json:"context_token_budget,omitempty" yaml:"context_token_budget,omitempty"`
	// RowLimit caps rows returned by a generated query.
	RowLimit int `json:"row_limit,omitempty" yaml:"row_limit,omitempty"`
	// CacheTTLSeconds is the response cache freshness window. Zero disables
	// the cache.
	CacheTTLSeconds int `json:"cache_ttl_seconds,omitempty" yaml:"cache_ttl_seconds,omitempty"`
	// CacheMaxEntries caps the response cache size.
	CacheMaxEntries int `json:"cache_max_entries,omitempty" yaml:"cache_max_entries,omitempty"`
}

// LLMConfig defines the completion service client.
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // Available options: openai
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// EmbeddingConfig defines the embedding service client.
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // Available options: openai
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// VectorDBConfig defines the vector-capable document store.
type VectorDBConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // Available options: milvus, memory
	Host       string `json:"host,omitempty" yaml:"host,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
}

// LegacyDBConfig defines the legacy relational store reached by the
// structured-query pipeline.
type LegacyDBConfig struct {
	Driver string `json:"driver" yaml:"driver"` // Available options: sqlite3
	DSN    string `json:"dsn" yaml:"dsn"`
	// Dialect picks the row-limit splicing rules: sqlite or oracle.
	Dialect string `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	// MaxConns is the hard ceiling on concurrently open connections.
	MaxConns            int `json:"max_conns,omitempty" yaml:"max_conns,omitempty"`
	QueryTimeoutSeconds int `json:"query_timeout_seconds,omitempty" yaml:"query_timeout_seconds,omitempty"`
	// AllowedObjects whitelists the tables/views a generated query may read.
	AllowedObjects []string `json:"allowed_objects,omitempty" yaml:"allowed_objects,omitempty"`
	// ObjectHints annotates objects for the schema description handed to the
	// generator, keyed by object name.
	ObjectHints map[string]string `json:"object_hints,omitempty" yaml:"object_hints,omitempty"`
}

// SecretsConfig holds the symmetric-key material for encrypted passages.
type SecretsConfig struct {
	// EncryptionKey is the base64-encoded 32-byte AES key. Overridden by
	// QUERYHUB_ENCRYPTION_KEY when set.
	EncryptionKey string `json:"encryption_key,omitempty" yaml:"encryption_key,omitempty"`
}

// AuditConfig defines the audit sink.
type AuditConfig struct {
	// Path is the sqlite database file for access records. Empty disables
	// persistence (records are still logged).
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig tunes the process logger.
type LoggingConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

// Load reads a YAML config file, applies environment overrides for secret
// material, fills defaults and validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
	}
	if v := os.Getenv("QUERYHUB_ENCRYPTION_KEY"); v != "" {
		c.Secrets.EncryptionKey = v
	}
}

// ApplyDefaults fills zero values with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8085"
	}
	if c.Engine.QueryTimeoutSeconds <= 0 {
		c.Engine.QueryTimeoutSeconds = 60
	}
	if c.Engine.TopK <= 0 {
		c.Engine.TopK = 8
	}
	if c.Engine.MinSimilarity <= 0 {
		c.Engine.MinSimilarity = 0.2
	}
	if c.Engine.ContextTopN <= 0 {
		c.Engine.ContextTopN = 5
	}
	if c.Engine.ContextTokenBudget <= 0 {
		c.Engine.ContextTokenBudget = 3000
	}
	if c.Engine.RowLimit <= 0 {
		c.Engine.RowLimit = 100
	}
	if c.Engine.CacheMaxEntries <= 0 {
		c.Engine.CacheMaxEntries = 500
	}
	if c.LegacyDB.MaxConns <= 0 {
		c.LegacyDB.MaxConns = 10
	}
	if c.LegacyDB.QueryTimeoutSeconds <= 0 {
		c.LegacyDB.QueryTimeoutSeconds = 30
	}
	if c.LegacyDB.Dialect == "" {
		c.LegacyDB.Dialect = "sqlite"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
