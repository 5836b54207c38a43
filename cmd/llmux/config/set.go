package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/llmux/pkg/cliui"
	"github.com/papercomputeco/llmux/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .llmux/ directory, creating ~/.llmux/ when no directory
exists yet. Keys use dotted notation matching the TOML section structure.

Examples:
  llmux config set default_provider gemini
  llmux config set providers.gemini.api_key AIza...
  llmux config set providers.groq.default_temperature 0.5
  llmux config set stream.strict_termination true`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(cmd.OutOrStdout(), args[0], args[1], configDir)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	return cmd
}

func runSet(w io.Writer, key, value, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SetConfigValue(key, value); err != nil {
		return fmt.Errorf("setting config value: %w", err)
	}

	shown := value
	if config.IsSecretConfigKey(key) {
		shown = cliui.MaskSecret(value)
	}

	fmt.Fprintf(w, "%s Set %s = %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(shown))
	return nil
}
