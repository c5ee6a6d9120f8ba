// Package config provides YAML-based configuration for fathom.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. FATHOM_CONFIG environment variable
//  3. ~/.fathom/config.yaml
//  4. ./fathom.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Expansion configures the query-expansion LLM provider.
	Expansion ExpansionConfig `yaml:"expansion"`

	// Embedding configures the embedding provider for dense retrieval.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Reranker configures the cross-encoder scoring backend.
	Reranker RerankerConfig `yaml:"reranker"`

	// Retrieval configures the pipeline tunables (RRF constant, top-k limits,
	// chunk sizes, stage timeouts).
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Store configures the document/parent store database.
	Store StoreConfig `yaml:"store"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ExpansionConfig holds query-expansion LLM settings.
type ExpansionConfig struct {
	// Provider selects the backend: ollama, openai, azure, bedrock, gemini.
	Provider string `yaml:"provider"`
	// Model is the model name or deployment ID for the expansion call.
	Model string `yaml:"model"`
	// TimeoutMS is the per-request budget for the expansion call in
	// milliseconds. When exceeded the router degrades to the raw query.
	TimeoutMS int `yaml:"timeout_ms"`
}

// EmbeddingConfig holds embedding provider settings for dense retrieval.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// BatchSize is the number of child chunks embedded per request during
	// ingestion. A failed batch is skipped, not fatal.
	BatchSize int `yaml:"batch_size"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// RerankerConfig holds cross-encoder backend settings.
type RerankerConfig struct {
	// Endpoint is the cross-encoder scoring API endpoint. If empty the
	// pipeline passes fused ordering through unchanged.
	Endpoint string `yaml:"endpoint"`
	// Model is the cross-encoder model name sent with each scoring request.
	Model string `yaml:"model"`
	// APIKey is the scoring API key. Prefer env var RERANKER_API_KEY.
	APIKey string `yaml:"api_key"`
}

// RetrievalConfig holds pipeline tunables.
type RetrievalConfig struct {
	// RRFK is the Reciprocal Rank Fusion constant (default 60).
	RRFK int `yaml:"rrf_k"`
	// TopK is the per-query result count requested from each index.
	TopK int `yaml:"top_k"`
	// RerankTopN bounds how many fused candidates are cross-encoder scored.
	RerankTopN int `yaml:"rerank_top_n"`
	// ParentChunkSize is the target parent chunk size in characters.
	ParentChunkSize int `yaml:"parent_chunk_size"`
	// ChildChunkSize is the target child chunk size in characters.
	ChildChunkSize int `yaml:"child_chunk_size"`
	// ChildChunkOverlap is the child chunk overlap in characters.
	ChildChunkOverlap int `yaml:"child_chunk_overlap"`
	// TimeoutMS is the overall search request deadline in milliseconds.
	TimeoutMS int `yaml:"timeout_ms"`
}

// StoreConfig holds document store settings.
type StoreConfig struct {
	// DBPath is the SQLite database path for documents, parents, and children.
	DBPath string `yaml:"db_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var FATHOM_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"EXPANSION_PROVIDER", func(c *Config) string { return c.Expansion.Provider }},
	{"EXPANSION_MODEL", func(c *Config) string { return c.Expansion.Model }},
	{"EXPANSION_TIMEOUT_MS", func(c *Config) string { return intStr(c.Expansion.TimeoutMS) }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_BATCH_SIZE", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"RERANKER_ENDPOINT", func(c *Config) string { return c.Reranker.Endpoint }},
	{"RERANKER_MODEL", func(c *Config) string { return c.Reranker.Model }},
	{"RERANKER_API_KEY", func(c *Config) string { return c.Reranker.APIKey }},
	{"RETRIEVAL_RRF_K", func(c *Config) string { return intStr(c.Retrieval.RRFK) }},
	{"RETRIEVAL_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"RETRIEVAL_RERANK_TOP_N", func(c *Config) string { return intStr(c.Retrieval.RerankTopN) }},
	{"CHUNK_PARENT_SIZE", func(c *Config) string { return intStr(c.Retrieval.ParentChunkSize) }},
	{"CHUNK_CHILD_SIZE", func(c *Config) string { return intStr(c.Retrieval.ChildChunkSize) }},
	{"CHUNK_CHILD_OVERLAP", func(c *Config) string { return intStr(c.Retrieval.ChildChunkOverlap) }},
	{"RETRIEVAL_TIMEOUT_MS", func(c *Config) string { return intStr(c.Retrieval.TimeoutMS) }},
	{"FATHOM_DB", func(c *Config) string { return c.Store.DBPath }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"FATHOM_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("FATHOM_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".fathom", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("fathom.yaml"); err == nil {
		return "fathom.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
