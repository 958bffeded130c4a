package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. The same logical flag
// (e.g. --model on ask, chat and index) then cannot drift between commands.
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "llm.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling the Add*Flag helpers and
// BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagModel            = "model"
	FlagProvider         = "provider"
	FlagAPIKey           = "api-key"
	FlagEmbeddingAPIKey  = "embedding-api-key"
	FlagBaseURL          = "base-url"
	FlagTemperature      = "temperature"
	FlagMaxTokens        = "max-tokens"
	FlagStorageDriver    = "storage"
	FlagDBPath           = "db-path"
	FlagPostgresDSN      = "postgres-dsn"
	FlagVectorStoreProv  = "vector-store-provider"
	FlagVectorStoreTgt   = "vector-store-target"
	FlagEmbeddingProv    = "embedding-provider"
	FlagEmbeddingTgt     = "embedding-target"
	FlagEmbeddingModel   = "embedding-model"
	FlagEmbeddingDims    = "embedding-dimensions"
	FlagDataset          = "dataset"
	FlagParallelRequests = "parallel-requests"
	FlagChunkSize        = "chunk-size"
	FlagChunkOverlap     = "chunk-overlap"
	FlagTopK             = "top-k"
	FlagTrace            = "trace"
	FlagTraceProject     = "project"
	FlagTraceExporter    = "trace-exporter"
	FlagAPIListen        = "listen"
)

// Registry holds the flag definitions shared by every researcher command.
var Registry = FlagSet{
	FlagModel:            {Name: "model", Shorthand: "m", ViperKey: "llm.model", Description: "Chat model used for contextualization and answers"},
	FlagProvider:         {Name: "provider", ViperKey: "llm.provider", Description: "LLM provider (openai, azure, anthropic, ollama, bedrock); detected from the model when empty"},
	FlagAPIKey:           {Name: "api-key", ViperKey: "llm.api_key", Description: "LLM provider API key; overrides credentials.toml and the environment"},
	FlagEmbeddingAPIKey:  {Name: "embedding-api-key", ViperKey: "embedding.api_key", Description: "OpenAI embedding API key; defaults to --api-key for OpenAI models"},
	FlagBaseURL:          {Name: "base-url", ViperKey: "llm.base_url", Description: "Override the LLM provider base URL"},
	FlagTemperature:      {Name: "temperature", ViperKey: "llm.temperature", Description: "Sampling temperature"},
	FlagMaxTokens:        {Name: "max-tokens", ViperKey: "llm.max_tokens", Description: "Maximum tokens per completion"},
	FlagStorageDriver:    {Name: "storage", ViperKey: "storage.driver", Description: "Metadata storage driver (sqlite, postgres, memory)"},
	FlagDBPath:           {Name: "db-path", ViperKey: "storage.path", Description: "Directory holding the index database"},
	FlagPostgresDSN:      {Name: "postgres-dsn", ViperKey: "storage.dsn", Description: "PostgreSQL connection string"},
	FlagVectorStoreProv:  {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (sqlite, memory, chroma, qdrant)"},
	FlagVectorStoreTgt:   {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store target URL or path"},
	FlagEmbeddingProv:    {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (openai, ollama)"},
	FlagEmbeddingTgt:     {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider base URL"},
	FlagEmbeddingModel:   {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model"},
	FlagEmbeddingDims:    {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensionality"},
	FlagDataset:          {Name: "dataset", ViperKey: "ingest.dataset", Description: "Processed documents JSONL file"},
	FlagParallelRequests: {Name: "parallel-requests", Shorthand: "p", ViperKey: "ingest.parallel_requests", Description: "Concurrent contextualization requests"},
	FlagChunkSize:        {Name: "chunk-size", ViperKey: "ingest.chunk_size", Description: "Maximum characters per chunk"},
	FlagChunkOverlap:     {Name: "chunk-overlap", ViperKey: "ingest.chunk_overlap", Description: "Characters carried over between chunks"},
	FlagTopK:             {Name: "top-k", Shorthand: "k", ViperKey: "research.top_k", Description: "Number of chunks to retrieve"},
	FlagTrace:            {Name: "trace", ViperKey: "tracing.enabled", Description: "Record LLM, embedding and retrieval runs"},
	FlagTraceProject:     {Name: "project", ViperKey: "tracing.project", Description: "Tracing project name"},
	FlagTraceExporter:    {Name: "trace-exporter", ViperKey: "tracing.exporter", Description: "Trace exporter (file, langsmith, kafka, none)"},
	FlagAPIListen:        {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloatFlag registers a float64 flag on cmd from the given FlagSet.
func AddFloatFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *float64) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetFloat64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper instance holding only NewDefaultConfig values.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
