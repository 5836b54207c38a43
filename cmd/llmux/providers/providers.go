// Package providerscmder provides the providers command, which lists the
// supported providers and their configuration state.
package providerscmder

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/llmux/pkg/cliui"
	"github.com/papercomputeco/llmux/pkg/config"
	"github.com/papercomputeco/llmux/pkg/llm/provider"
)

const providersLongDesc string = `List the supported providers.

For each provider shows its stream family (typed-event or raw-sse), the
default model, the accepted model aliases and whether an API key is
configured.

Examples:
  llmux providers
  llmux providers --json`

const providersShortDesc string = "List supported providers"

// Entry describes one provider.
type Entry struct {
	Name         string   `json:"name"`
	Family       string   `json:"family"`
	DefaultModel string   `json:"default_model"`
	Aliases      []string `json:"aliases"`
	EnvKey       string   `json:"env_key"`
	Configured   bool     `json:"configured"`
	Default      bool     `json:"default"`
}

func NewProvidersCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: providersShortDesc,
		Long:  providersLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			entries := Entries(config.FromViper(v))
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			render(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

// Entries builds the provider listing for cfg.
func Entries(cfg *config.Config) []Entry {
	names := provider.SupportedProviders()
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		info, _ := provider.Lookup(name)
		entries = append(entries, Entry{
			Name:         name,
			Family:       info.Family().String(),
			DefaultModel: info.DefaultModel,
			Aliases:      slices.Sorted(maps.Keys(provider.ModelAliases(name))),
			EnvKey:       info.EnvKey,
			Configured:   cfg.Provider(name).APIKey != "",
			Default:      cfg.DefaultProvider == name,
		})
	}
	return entries
}

func render(w io.Writer, entries []Entry) {
	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("Providers"))
	for _, e := range entries {
		mark := cliui.FailMark
		if e.Configured {
			mark = cliui.SuccessMark
		}
		name := e.Name
		if e.Default {
			name += " (default)"
		}

		fmt.Fprintf(w, "  %s %s  %s\n",
			mark,
			cliui.KeyStyle.Render(fmt.Sprintf("%-22s", name)),
			cliui.DimStyle.Render(e.Family),
		)
		fmt.Fprintf(w, "      %s %s\n", cliui.DimStyle.Render("model:"), cliui.ValueStyle.Render(e.DefaultModel))
		if len(e.Aliases) > 0 {
			fmt.Fprintf(w, "      %s %s\n", cliui.DimStyle.Render("aliases:"), cliui.ValueStyle.Render(strings.Join(e.Aliases, ", ")))
		}
		if !e.Configured {
			fmt.Fprintf(w, "      %s %s\n", cliui.DimStyle.Render("key:"), cliui.DimStyle.Render("set "+e.EnvKey+" or providers."+e.Name+".api_key"))
		}
	}
	fmt.Fprintln(w)
}
