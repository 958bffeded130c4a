package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/researcher/pkg/dotdir"
)

// EnvPrefix is the prefix of environment variables read by viper, e.g.
// RESEARCHER_LLM_MODEL.
const EnvPrefix = "RESEARCHER"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RESEARCHER_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RESEARCHER_LLM_MODEL, RESEARCHER_STORAGE_PATH, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes the effective configuration after flags, env, file
// and defaults have been merged.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Driver: v.GetString("storage.driver"),
			Path:   v.GetString("storage.path"),
			DSN:    v.GetString("storage.dsn"),
		},
		LLM: LLMConfig{
			Provider:    v.GetString("llm.provider"),
			Model:       v.GetString("llm.model"),
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			Region:      v.GetString("llm.region"),
			APIVersion:  v.GetString("llm.api_version"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetUint("llm.max_tokens"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			APIKey:     v.GetString("embedding.api_key"),
			Dimensions: v.GetUint("embedding.dimensions"),
			BatchSize:  v.GetUint("embedding.batch_size"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Collection: v.GetString("vector_store.collection"),
		},
		Ingest: IngestConfig{
			Dataset:          v.GetString("ingest.dataset"),
			ParallelRequests: v.GetUint("ingest.parallel_requests"),
			ChunkSize:        v.GetUint("ingest.chunk_size"),
			ChunkOverlap:     v.GetUint("ingest.chunk_overlap"),
		},
		Research: ResearchConfig{
			TopK:        v.GetUint("research.top_k"),
			MaxHistory:  v.GetUint("research.max_history"),
			PromptsFile: v.GetString("research.prompts_file"),
			PricingFile: v.GetString("research.pricing_file"),
		},
		Tracing: TracingConfig{
			Enabled:  v.GetBool("tracing.enabled"),
			Project:  v.GetString("tracing.project"),
			Exporter: v.GetString("tracing.exporter"),
			Endpoint: v.GetString("tracing.endpoint"),
			Brokers:  v.GetString("tracing.brokers"),
			Topic:    v.GetString("tracing.topic"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.dsn", d.Storage.DSN)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.region", d.LLM.Region)
	v.SetDefault("llm.api_version", d.LLM.APIVersion)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)

	v.SetDefault("ingest.dataset", d.Ingest.Dataset)
	v.SetDefault("ingest.parallel_requests", d.Ingest.ParallelRequests)
	v.SetDefault("ingest.chunk_size", d.Ingest.ChunkSize)
	v.SetDefault("ingest.chunk_overlap", d.Ingest.ChunkOverlap)

	v.SetDefault("research.top_k", d.Research.TopK)
	v.SetDefault("research.max_history", d.Research.MaxHistory)
	v.SetDefault("research.prompts_file", d.Research.PromptsFile)
	v.SetDefault("research.pricing_file", d.Research.PricingFile)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.project", d.Tracing.Project)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.brokers", d.Tracing.Brokers)
	v.SetDefault("tracing.topic", d.Tracing.Topic)

	v.SetDefault("api.listen", d.API.Listen)
}
