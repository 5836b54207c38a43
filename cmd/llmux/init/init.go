// Package initcmder provides the init command for initializing a local .llmux
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/llmux/pkg/cliui"
	"github.com/papercomputeco/llmux/pkg/config"
)

const (
	dirName    = ".llmux"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .llmux/ directory in the current working directory.

Creates a local .llmux/ directory that takes precedence over the default
~/.llmux/ directory for configuration and the saved chat conversation,
and writes a config.toml with default values.

Use --preset to make one provider the default, seeded with its default model.

Examples:
  llmux init
  llmux init --preset groq`

const initShortDesc string = "Initialize a local .llmux/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		"Default provider to configure ("+strings.Join(config.ValidPresetNames(), ", ")+")")

	return cmd
}

func runInit(w io.Writer, preset string) error {
	cfg := config.NewDefaultConfig()
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .llmux directory: %w", err)
	}

	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err == nil {
		if preset == "" {
			fmt.Fprintf(w, "%s Already initialized: %s\n", cliui.SuccessMark, dir)
			return nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cliui.Step(w, "Writing "+configFile, func() error {
		return cfger.SaveConfig(cfg)
	}); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Initialized .llmux directory: %s\n", cliui.SuccessMark, dir)
	if preset != "" {
		fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("default_provider:"), cliui.ValueStyle.Render(cfg.DefaultProvider))
	}
	return nil
}
