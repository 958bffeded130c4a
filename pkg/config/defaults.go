package config

const (
	defaultStorageDriver = "sqlite"
	defaultStoragePath   = "./my_data"

	defaultModel       = "gpt-4o"
	defaultTemperature = 0.0
	defaultMaxTokens   = 1000

	defaultEmbeddingProvider   = "openai"
	defaultEmbeddingModel      = "text-embedding-3-small"
	defaultEmbeddingDimensions = 1536
	defaultEmbeddingBatchSize  = 128

	defaultVectorProvider   = "sqlite"
	defaultVectorCollection = "researcher"

	defaultDataset          = "my_data/processed_documents.jsonl"
	defaultParallelRequests = 5
	defaultChunkSize        = 1000
	defaultChunkOverlap     = 200

	defaultTopK       = 20
	defaultMaxHistory = 10

	defaultTracingProject  = "researcher"
	defaultTracingExporter = "file"
	defaultTracingEndpoint = "https://api.smith.langchain.com"
	defaultTracingTopic    = "researcher-traces"

	defaultAPIListen = ":8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
			Path:   defaultStoragePath,
		},
		LLM: LLMConfig{
			Model:       defaultModel,
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			BatchSize:  defaultEmbeddingBatchSize,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Ingest: IngestConfig{
			Dataset:          defaultDataset,
			ParallelRequests: defaultParallelRequests,
			ChunkSize:        defaultChunkSize,
			ChunkOverlap:     defaultChunkOverlap,
		},
		Research: ResearchConfig{
			TopK:       defaultTopK,
			MaxHistory: defaultMaxHistory,
		},
		Tracing: TracingConfig{
			Enabled:  true,
			Project:  defaultTracingProject,
			Exporter: defaultTracingExporter,
			Endpoint: defaultTracingEndpoint,
			Topic:    defaultTracingTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
