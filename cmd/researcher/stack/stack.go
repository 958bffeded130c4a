// Package stack opens the contextual vector database and the researcher
// described by a resolved config. Every researcher subcommand that talks to
// the index goes through Open.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/researcher/pkg/config"
	"github.com/papercomputeco/researcher/pkg/credentials"
	"github.com/papercomputeco/researcher/pkg/dotdir"
	"github.com/papercomputeco/researcher/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/researcher/pkg/embeddings/utils"
	"github.com/papercomputeco/researcher/pkg/llm/provider"
	"github.com/papercomputeco/researcher/pkg/pricing"
	"github.com/papercomputeco/researcher/pkg/prompts"
	"github.com/papercomputeco/researcher/pkg/rag"
	"github.com/papercomputeco/researcher/pkg/research"
	"github.com/papercomputeco/researcher/pkg/storage"
	"github.com/papercomputeco/researcher/pkg/storage/inmemory"
	"github.com/papercomputeco/researcher/pkg/storage/postgres"
	"github.com/papercomputeco/researcher/pkg/storage/sqlite"
	"github.com/papercomputeco/researcher/pkg/tracing"
	tracingutils "github.com/papercomputeco/researcher/pkg/tracing/utils"
	"github.com/papercomputeco/researcher/pkg/vector"
	vectorutils "github.com/papercomputeco/researcher/pkg/vector/utils"
)

const (
	metadataFile = "researcher.db"
	vectorsFile  = "vectors.db"
)

// LoadConfig resolves the effective configuration for cmd: registered
// flags, then RESEARCHER_* env vars, then config.toml, then defaults.
func LoadConfig(cmd *cobra.Command, flagKeys []string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Registry, flagKeys)

	return config.FromViper(v), nil
}

// Stack is everything needed to index and query.
type Stack struct {
	Config *config.Config

	Provider provider.Provider
	Embedder embeddings.Embedder
	Vectors  vector.Driver
	Store    storage.Driver
	Tracer   *tracing.Tracer
	Prompts  *prompts.Set
	Pricing  pricing.Table

	DB         *rag.DB
	Researcher *research.Researcher

	logger *slog.Logger
}

// Open builds the stack for cfg. configDir overrides the .researcher
// directory holding credentials and traces.
func Open(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (*Stack, error) {
	s := &Stack{Config: cfg, logger: logger}
	if err := s.open(ctx, configDir); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stack) open(ctx context.Context, configDir string) error {
	cfg := s.Config

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		s.logger.Warn("credentials unavailable, falling back to environment", "error", err)
		creds = nil
	}

	s.Prompts = prompts.Default()
	if cfg.Research.PromptsFile != "" {
		if s.Prompts, err = prompts.Load(cfg.Research.PromptsFile); err != nil {
			return err
		}
	}

	if s.Pricing, err = pricing.LoadPricing(cfg.Research.PricingFile); err != nil {
		return err
	}

	providerName := cfg.LLM.Provider
	if providerName == "" {
		providerName, _ = provider.Detect(cfg.LLM.Model)
	}
	llmKey, embeddingKey := ResolveKeys(cfg, providerName, creds)
	prov, err := provider.New(ctx, provider.Options{
		Provider:   providerName,
		Model:      cfg.LLM.Model,
		APIKey:     llmKey,
		BaseURL:    cfg.LLM.BaseURL,
		Region:     cfg.LLM.Region,
		APIVersion: cfg.LLM.APIVersion,
	})
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	retry := provider.DefaultRetryConfig()
	retry.Logger = s.logger
	s.Provider = provider.WithRetry(prov, retry)

	s.Embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       embeddingKey,
		Dimensions:   int(cfg.Embedding.Dimensions),
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	if s.Store, err = s.newStore(ctx); err != nil {
		return err
	}

	vectorTarget := cfg.VectorStore.Target
	if vectorTarget == "" && (cfg.VectorStore.Provider == "sqlite" || cfg.VectorStore.Provider == "") {
		if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
		vectorTarget = filepath.Join(cfg.Storage.Path, vectorsFile)
	}
	s.Vectors, err = vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    vectorTarget,
		Collection:   cfg.VectorStore.Collection,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       s.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return err
	}
	s.Tracer, err = tracingutils.NewTracer(&tracingutils.NewTracerOpts{
		Enabled:      cfg.Tracing.Enabled,
		Project:      cfg.Tracing.Project,
		ExporterType: cfg.Tracing.Exporter,
		Dir:          dir,
		Endpoint:     cfg.Tracing.Endpoint,
		APIKey:       creds.ResolveKey("langsmith", ""),
		Brokers:      cfg.Tracing.Brokers,
		Topic:        cfg.Tracing.Topic,
		Logger:       s.logger,
	})
	if err != nil {
		return fmt.Errorf("creating tracer: %w", err)
	}

	s.DB, err = rag.New(ctx, rag.Config{
		Provider: s.Provider,
		Embedder: s.Embedder,
		Vectors:  s.Vectors,
		Store:    s.Store,
		Tracer:   s.Tracer,
		Logger:   s.logger,
		Prompts:  s.Prompts,
		Settings: storage.Settings{
			Model:               cfg.LLM.Model,
			EmbeddingProvider:   cfg.Embedding.Provider,
			EmbeddingModel:      cfg.Embedding.Model,
			EmbeddingDimensions: cfg.Embedding.Dimensions,
			Temperature:         cfg.LLM.Temperature,
			MaxTokens:           int(cfg.LLM.MaxTokens),
		},
		BatchSize: int(cfg.Embedding.BatchSize),
	})
	if err != nil {
		return err
	}

	s.Researcher, err = research.New(research.Config{
		Retriever:   s.DB,
		Provider:    s.Provider,
		Tracer:      s.Tracer,
		Logger:      s.logger,
		Prompts:     s.Prompts,
		Pricing:     s.Pricing,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   int(cfg.LLM.MaxTokens),
		TopK:        int(cfg.Research.TopK),
	})
	return err
}

// ResolveKeys returns the chat and embedding API keys. Each comes from the
// config (flag, env or file) when set, then credentials.toml, then the
// provider's environment variable. An OpenAI chat key is also used for
// embeddings when no embedding key is configured. creds may be nil.
func ResolveKeys(cfg *config.Config, providerName string, creds *credentials.Manager) (llmKey, embeddingKey string) {
	llmKey = creds.ResolveKey(providerName, cfg.LLM.APIKey)

	explicit := cfg.Embedding.APIKey
	if explicit == "" && providerName == "openai" {
		explicit = cfg.LLM.APIKey
	}
	return llmKey, creds.ResolveKey("openai", explicit)
}

func (s *Stack) newStore(ctx context.Context) (storage.Driver, error) {
	cfg := s.Config.Storage

	switch cfg.Driver {
	case "sqlite", "":
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		path := filepath.Join(cfg.Path, metadataFile)
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		s.logger.Debug("using SQLite storage", "path", path)
		return driver, nil

	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New("storage.dsn is required for the postgres driver")
		}
		driver, err := postgres.NewDriver(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL store: %w", err)
		}
		s.logger.Debug("using PostgreSQL storage")
		return driver, nil

	case "memory", "inmemory":
		s.logger.Debug("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// Close flushes the tracer and closes the stores. It is safe on a
// partially opened Stack.
func (s *Stack) Close() error {
	var errs []error
	if s.Tracer != nil {
		errs = append(errs, s.Tracer.Close())
	}

	if s.DB != nil {
		return errors.Join(append(errs, s.DB.Close())...)
	}
	if s.Embedder != nil {
		errs = append(errs, s.Embedder.Close())
	}
	if s.Vectors != nil {
		errs = append(errs, s.Vectors.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	return errors.Join(errs...)
}
