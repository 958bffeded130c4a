package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent researcher configuration stored as
// config.toml in the .researcher/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	LLM         LLMConfig         `toml:"llm"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Ingest      IngestConfig      `toml:"ingest"`
	Research    ResearchConfig    `toml:"research"`
	Tracing     TracingConfig     `toml:"tracing"`
	API         APIConfig         `toml:"api"`
}

// StorageConfig selects where chunk metadata, the query cache and the index
// settings are kept.
type StorageConfig struct {
	// Driver is one of "sqlite", "postgres" or "memory".
	Driver string `toml:"driver,omitempty"`

	// Path is the database directory used by the sqlite driver.
	Path string `toml:"path,omitempty"`

	// DSN is the connection string used by the postgres driver.
	DSN string `toml:"dsn,omitempty"`
}

// LLMConfig holds chat completion settings.
type LLMConfig struct {
	// Provider forces a provider. Empty means detect from the model name.
	Provider    string  `toml:"provider,omitempty"`
	Model       string  `toml:"model,omitempty"`
	APIKey      string  `toml:"api_key,omitempty"`
	BaseURL     string  `toml:"base_url,omitempty"`
	Region      string  `toml:"region,omitempty"`
	APIVersion  string  `toml:"api_version,omitempty"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   uint    `toml:"max_tokens,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`

	// APIKey falls back to llm.api_key when both use OpenAI.
	APIKey     string `toml:"api_key,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	BatchSize  uint   `toml:"batch_size,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// IngestConfig holds settings for prepare and index.
type IngestConfig struct {
	Dataset          string `toml:"dataset,omitempty"`
	ParallelRequests uint   `toml:"parallel_requests,omitempty"`
	ChunkSize        uint   `toml:"chunk_size,omitempty"`
	ChunkOverlap     uint   `toml:"chunk_overlap,omitempty"`
}

// ResearchConfig holds retrieval and answering settings.
type ResearchConfig struct {
	TopK       uint `toml:"top_k,omitempty"`
	MaxHistory uint `toml:"max_history,omitempty"`

	// PromptsFile overrides the embedded prompt templates.
	PromptsFile string `toml:"prompts_file,omitempty"`

	// PricingFile holds JSON overrides of the model pricing table.
	PricingFile string `toml:"pricing_file,omitempty"`
}

// TracingConfig controls where LLM, embedding and retrieval runs are
// recorded.
type TracingConfig struct {
	Enabled bool `toml:"enabled"`

	// Project groups runs, e.g. the langsmith session name.
	Project string `toml:"project,omitempty"`

	// Exporter is one of "file", "langsmith", "kafka" or "none".
	Exporter string `toml:"exporter,omitempty"`
	Endpoint string `toml:"endpoint,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.path":   stringKey(func(c *Config) *string { return &c.Storage.Path }),
	"storage.dsn":    stringKey(func(c *Config) *string { return &c.Storage.DSN }),

	"llm.provider":    stringKey(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.model":       stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.api_key":     stringKey(func(c *Config) *string { return &c.LLM.APIKey }),
	"llm.base_url":    stringKey(func(c *Config) *string { return &c.LLM.BaseURL }),
	"llm.region":      stringKey(func(c *Config) *string { return &c.LLM.Region }),
	"llm.api_version": stringKey(func(c *Config) *string { return &c.LLM.APIVersion }),
	"llm.temperature": floatKey("llm.temperature", func(c *Config) *float64 { return &c.LLM.Temperature }),
	"llm.max_tokens":  uintKey("llm.max_tokens", func(c *Config) *uint { return &c.LLM.MaxTokens }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.api_key":    stringKey(func(c *Config) *string { return &c.Embedding.APIKey }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.batch_size": uintKey("embedding.batch_size", func(c *Config) *uint { return &c.Embedding.BatchSize }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),

	"ingest.dataset":           stringKey(func(c *Config) *string { return &c.Ingest.Dataset }),
	"ingest.parallel_requests": uintKey("ingest.parallel_requests", func(c *Config) *uint { return &c.Ingest.ParallelRequests }),
	"ingest.chunk_size":        uintKey("ingest.chunk_size", func(c *Config) *uint { return &c.Ingest.ChunkSize }),
	"ingest.chunk_overlap":     uintKey("ingest.chunk_overlap", func(c *Config) *uint { return &c.Ingest.ChunkOverlap }),

	"research.top_k":        uintKey("research.top_k", func(c *Config) *uint { return &c.Research.TopK }),
	"research.max_history":  uintKey("research.max_history", func(c *Config) *uint { return &c.Research.MaxHistory }),
	"research.prompts_file": stringKey(func(c *Config) *string { return &c.Research.PromptsFile }),
	"research.pricing_file": stringKey(func(c *Config) *string { return &c.Research.PricingFile }),

	"tracing.enabled":  boolKey("tracing.enabled", func(c *Config) *bool { return &c.Tracing.Enabled }),
	"tracing.project":  stringKey(func(c *Config) *string { return &c.Tracing.Project }),
	"tracing.exporter": stringKey(func(c *Config) *string { return &c.Tracing.Exporter }),
	"tracing.endpoint": stringKey(func(c *Config) *string { return &c.Tracing.Endpoint }),
	"tracing.brokers":  stringKey(func(c *Config) *string { return &c.Tracing.Brokers }),
	"tracing.topic":    stringKey(func(c *Config) *string { return &c.Tracing.Topic }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"storage.driver",
	"storage.path",
	"storage.dsn",
	"llm.provider",
	"llm.model",
	"llm.api_key",
	"llm.base_url",
	"llm.region",
	"llm.api_version",
	"llm.temperature",
	"llm.max_tokens",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.api_key",
	"embedding.dimensions",
	"embedding.batch_size",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.collection",
	"ingest.dataset",
	"ingest.parallel_requests",
	"ingest.chunk_size",
	"ingest.chunk_overlap",
	"research.top_k",
	"research.max_history",
	"research.prompts_file",
	"research.pricing_file",
	"tracing.enabled",
	"tracing.project",
	"tracing.exporter",
	"tracing.endpoint",
	"tracing.brokers",
	"tracing.topic",
	"api.listen",
}
