package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/researcher/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns all supported configuration key names in TOML
// section order.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml from the target .researcher/ directory.
// If the file does not exist, returns NewDefaultConfig() so callers always
// receive a fully-populated Config. Fields explicitly set in the file
// override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, meta, err := decodeConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg, meta)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from
// NewDefaultConfig(). Booleans and floats whose zero value is meaningful are
// only defaulted when the key is absent from the file.
func applyDefaults(cfg *Config, meta toml.MetaData) {
	d := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	defaultString(&cfg.Storage.Driver, d.Storage.Driver)
	defaultString(&cfg.Storage.Path, d.Storage.Path)

	defaultString(&cfg.LLM.Model, d.LLM.Model)
	defaultUint(&cfg.LLM.MaxTokens, d.LLM.MaxTokens)
	if !meta.IsDefined("llm", "temperature") {
		cfg.LLM.Temperature = d.LLM.Temperature
	}

	defaultString(&cfg.Embedding.Provider, d.Embedding.Provider)
	defaultString(&cfg.Embedding.Model, d.Embedding.Model)
	defaultUint(&cfg.Embedding.Dimensions, d.Embedding.Dimensions)
	defaultUint(&cfg.Embedding.BatchSize, d.Embedding.BatchSize)

	defaultString(&cfg.VectorStore.Provider, d.VectorStore.Provider)
	defaultString(&cfg.VectorStore.Collection, d.VectorStore.Collection)

	defaultString(&cfg.Ingest.Dataset, d.Ingest.Dataset)
	defaultUint(&cfg.Ingest.ParallelRequests, d.Ingest.ParallelRequests)
	defaultUint(&cfg.Ingest.ChunkSize, d.Ingest.ChunkSize)
	defaultUint(&cfg.Ingest.ChunkOverlap, d.Ingest.ChunkOverlap)

	defaultUint(&cfg.Research.TopK, d.Research.TopK)
	defaultUint(&cfg.Research.MaxHistory, d.Research.MaxHistory)

	if !meta.IsDefined("tracing", "enabled") {
		cfg.Tracing.Enabled = d.Tracing.Enabled
	}
	defaultString(&cfg.Tracing.Project, d.Tracing.Project)
	defaultString(&cfg.Tracing.Exporter, d.Tracing.Exporter)
	defaultString(&cfg.Tracing.Endpoint, d.Tracing.Endpoint)
	defaultString(&cfg.Tracing.Topic, d.Tracing.Topic)

	defaultString(&cfg.API.Listen, d.API.Listen)
}

func defaultString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

func defaultUint(field *uint, def uint) {
	if *field == 0 {
		*field = def
	}
}

// SaveConfig persists the configuration to config.toml in the target .researcher/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named provider preset.
// Supported presets: "openai", "anthropic", "ollama".
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "openai":
		cfg.LLM.Provider = "openai"
		cfg.LLM.Model = "gpt-4o"

	case "anthropic":
		// Anthropic has no embeddings endpoint; embeddings stay on OpenAI.
		cfg.LLM.Provider = "anthropic"
		cfg.LLM.Model = "claude-3-5-sonnet-20241022"

	case "ollama":
		cfg.LLM.Provider = "ollama"
		cfg.LLM.Model = "llama3.1"
		cfg.LLM.BaseURL = "http://localhost:11434"
		cfg.Embedding = EmbeddingConfig{
			Provider:   "ollama",
			Target:     "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			BatchSize:  defaultEmbeddingBatchSize,
		}

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"openai", "anthropic", "ollama"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg, _, err := decodeConfigTOML(data)
	return cfg, err
}

func decodeConfigTOML(data []byte) (*Config, toml.MetaData, error) {
	cfg := &Config{}
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, meta, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, meta, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, meta, nil
}
