// Package llmuxcmder
package llmuxcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/llmux/cmd/llmux/chat"
	configcmder "github.com/papercomputeco/llmux/cmd/llmux/config"
	initcmder "github.com/papercomputeco/llmux/cmd/llmux/init"
	providerscmder "github.com/papercomputeco/llmux/cmd/llmux/providers"
	servecmder "github.com/papercomputeco/llmux/cmd/llmux/serve"
	versioncmder "github.com/papercomputeco/llmux/cmd/version"
	"github.com/papercomputeco/llmux/pkg/config"
)

const llmuxLongDesc string = `llmux streams chat completions from OpenAI, Perplexity, Groq,
Ali (DashScope) and Gemini as one normalized chunk stream.

Run services using:
  llmux serve          Run the HTTP and websocket servers
  llmux chat "hi"      Stream a single prompt to the terminal

API keys are read from the config file, LLMUX_PROVIDERS_<NAME>_API_KEY,
the vendor variables (OPENAI_API_KEY, GROQ_API_KEY, ...) or a .env file.`

const llmuxShortDesc string = "llmux - normalized LLM streaming"

func NewLLMuxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "llmux",
		Short:         llmuxShortDesc,
		Long:          llmuxLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := config.LoadDotEnv(envFile); err != nil {
				return fmt.Errorf("loading env file: %w", err)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .llmux/ config directory")
	cmd.PersistentFlags().String("env-file", ".env", "Path to a .env file with provider keys")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(providerscmder.NewProvidersCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
