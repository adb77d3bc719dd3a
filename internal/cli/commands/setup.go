package commands

import (
	"errors"
	"log/slog"

	"github.com/leapstack-labs/leapetl/internal/cli/config"
	"github.com/leapstack-labs/leapetl/internal/cli/output"
	"github.com/spf13/cobra"
)

// ErrNoConfig is returned when a command that needs a configuration runs without one.
var ErrNoConfig = errors.New("configuration not loaded")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger and renderer for cmd.
// Cfg may be nil for commands whose configuration is optional.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	mode := output.ModeAuto
	if cfg != nil {
		mode = output.Mode(cfg.OutputFormat)
	} else if f := cmd.Flags().Lookup("output"); f != nil && f.Value.String() != "" {
		mode = output.Mode(f.Value.String())
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

// requireConfig returns ErrNoConfig when no configuration was loaded.
func (c *CommandContext) requireConfig() error {
	if c.Cfg == nil {
		return ErrNoConfig
	}
	return nil
}

// OptionalConfig marks a command that runs without a config file.
const OptionalConfig = "optional-config"

// optional annotates cmd so the root command tolerates a missing config file.
func optional(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[OptionalConfig] = "true"
	return cmd
}
