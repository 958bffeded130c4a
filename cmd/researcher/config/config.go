// Package configcmder provides the config command for managing persistent
// researcher configuration stored in the .researcher/ directory.
package configcmder

import (
	"strings"

	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent researcher configuration.

Configuration is stored as config.toml in the .researcher/ directory and
provides default values for command flags. CLI flags and RESEARCHER_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure, e.g.
  llm.model, llm.provider, embedding.model, vector_store.provider,
  storage.path, ingest.parallel_requests, research.top_k, tracing.exporter

Use subcommands to get, set, or list configuration values:
  researcher config set <key> <value>    Set a configuration value
  researcher config get <key>            Get a configuration value
  researcher config list                 List all configuration values

Examples:
  researcher config set llm.model claude-3-5-sonnet-20241022
  researcher config set tracing.exporter langsmith
  researcher config get llm.model
  researcher config list`

const configShortDesc string = "Manage persistent researcher configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// displayValue hides all but the last four characters of API keys.
func displayValue(key, value string) string {
	if !strings.HasSuffix(key, ".api_key") || len(value) <= 4 {
		return value
	}
	return strings.Repeat("*", 8) + value[len(value)-4:]
}
