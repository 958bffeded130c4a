package stack

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/researcher/pkg/config"
	"github.com/papercomputeco/researcher/pkg/logger"
)

// QueryFlags are the registry flags of every command that reads the index.
var QueryFlags = []string{
	config.FlagModel,
	config.FlagProvider,
	config.FlagAPIKey,
	config.FlagEmbeddingAPIKey,
	config.FlagBaseURL,
	config.FlagStorageDriver,
	config.FlagDBPath,
	config.FlagPostgresDSN,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagTopK,
	config.FlagTrace,
	config.FlagTraceProject,
	config.FlagTraceExporter,
}

// Flags holds the targets of QueryFlags. Values reach the config through
// viper, so commands read the resolved Config rather than these fields.
type Flags struct {
	model          string
	provider       string
	apiKey         string
	embeddingKey   string
	baseURL        string
	storageDriver  string
	dbPath         string
	postgresDSN    string
	vectorProvider string
	vectorTarget   string
	topK           uint
	trace          bool
	traceProject   string
	traceExporter  string
}

// AddQueryFlags registers QueryFlags on cmd.
func (f *Flags) AddQueryFlags(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Registry, config.FlagModel, &f.model)
	config.AddStringFlag(cmd, config.Registry, config.FlagProvider, &f.provider)
	config.AddStringFlag(cmd, config.Registry, config.FlagAPIKey, &f.apiKey)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingAPIKey, &f.embeddingKey)
	config.AddStringFlag(cmd, config.Registry, config.FlagBaseURL, &f.baseURL)
	config.AddStringFlag(cmd, config.Registry, config.FlagStorageDriver, &f.storageDriver)
	config.AddStringFlag(cmd, config.Registry, config.FlagDBPath, &f.dbPath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgresDSN, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreProv, &f.vectorProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddUintFlag(cmd, config.Registry, config.FlagTopK, &f.topK)
	config.AddBoolFlag(cmd, config.Registry, config.FlagTrace, &f.trace)
	config.AddStringFlag(cmd, config.Registry, config.FlagTraceProject, &f.traceProject)
	config.AddStringFlag(cmd, config.Registry, config.FlagTraceExporter, &f.traceExporter)
}

// NewLogger returns the pretty CLI logger writing to cmd's stderr, prefixed
// with the command name. --debug lowers the level and reports callers.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return logger.New(
		logger.WithDebug(debug),
		logger.WithSource(debug),
		logger.WithPretty(true),
		logger.WithPrefix(cmd.Name()),
		logger.WithWriter(cmd.ErrOrStderr()),
	)
}

// OpenForCommand resolves cmd's config with flagKeys bound and opens the
// stack.
func OpenForCommand(ctx context.Context, cmd *cobra.Command, flagKeys []string, log *slog.Logger) (*Stack, error) {
	cfg, err := LoadConfig(cmd, flagKeys)
	if err != nil {
		return nil, err
	}
	configDir, _ := cmd.Flags().GetString("config-dir")
	return Open(ctx, cfg, configDir, log)
}
