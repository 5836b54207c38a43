// Package configcmder provides the config command for managing persistent
// llmux configuration stored in the .llmux/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent llmux configuration.

Configuration is stored as config.toml in the .llmux/ directory and provides
default values for command flags. CLI flags and environment variables always
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  default_provider,
  server.listen, server.ws_listen,
  stream.strict_termination, http.timeout,
  events.provider, events.brokers, events.topic,
  providers.<name>.api_key, providers.<name>.base_url,
  providers.<name>.default_model, providers.<name>.default_temperature,
  providers.<name>.default_max_tokens

Use subcommands to get, set, or list configuration values:
  llmux config set <key> <value>    Set a configuration value
  llmux config get <key>            Get a configuration value
  llmux config list                 List all configuration values

Examples:
  llmux config set default_provider groq
  llmux config set providers.groq.api_key gsk_...
  llmux config get default_provider
  llmux config list`

const configShortDesc string = "Manage persistent llmux configuration"

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
