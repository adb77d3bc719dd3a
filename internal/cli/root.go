// Package cli provides the command-line interface for LeapETL.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/leapstack-labs/leapetl/internal/cli/commands"
	"github.com/leapstack-labs/leapetl/internal/cli/config"
	intconfig "github.com/leapstack-labs/leapetl/internal/config"
	"github.com/spf13/cobra"

	// Warehouse adapters register themselves on import.
	_ "github.com/leapstack-labs/leapetl/pkg/adapters/bigquery"
	_ "github.com/leapstack-labs/leapetl/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapetl/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapetl/pkg/adapters/sqlite"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// DefaultEnvFile is loaded into the environment before the config is read.
const DefaultEnvFile = ".env"

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile string
		envFile string
	)

	rootCmd := &cobra.Command{
		Use:   "leapetl",
		Short: "LeapETL - Run-month table extraction",
		Long: `LeapETL extracts configured tables for a monthly reporting period.

It resolves the run month's date variables, renders each table's filter and
writes the filtered rows to Parquet, reading either local CSV/Parquet files
through DuckDB or tables in a warehouse such as BigQuery.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}

			flags := cmd.Root().PersistentFlags()
			verbose, _ := flags.GetBool("verbose")

			cfg, err := config.LoadConfig(cfgFile, flags)
			if err != nil {
				if !isOptional(cmd) || !isMissingConfig(err) {
					return err
				}
				cfg = nil
			}
			if cfg != nil {
				verbose = cfg.Verbose
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), verbose)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = config.WithLogger(ctx, logger)
			if cfg != nil {
				ctx = config.WithConfig(ctx, cfg)
				logger.Debug("using config file", "path", cfg.File, "mode", cfg.Mode)
			}
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and DuckDB
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./leapetl.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", DefaultEnvFile, "dotenv file loaded before the config")
	rootCmd.PersistentFlags().String("mode", "", "Source mode (local|gcp)")
	rootCmd.PersistentFlags().String("output-dir", "", "Directory raw Parquet files are written to")
	rootCmd.PersistentFlags().String("staging-dir", "", "Directory staged Parquet files are written to")
	rootCmd.PersistentFlags().String("run-date", "", "Any date inside the run month (YYYY-MM-DD or YYYY-MM)")
	rootCmd.PersistentFlags().String("history", "", "Run history database (default: .leapetl/history.db)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|json|yaml)")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{intconfig.ModeLocal, intconfig.ModeGCP}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(commands.NewDatesCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewStageCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadEnvFile loads a dotenv file without overriding variables already set.
// A missing default file is ignored; a missing explicit file is an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

func isOptional(cmd *cobra.Command) bool {
	return cmd.Annotations[commands.OptionalConfig] == "true"
}

func isMissingConfig(err error) bool {
	return errors.Is(err, intconfig.ErrNoConfigFile)
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for LeapETL.

To load completions:

Bash:
  $ source <(leapetl completion bash)
  
  # To load completions for each session, execute once:
  # Linux:
  $ leapetl completion bash > /etc/bash_completion.d/leapetl
  # macOS:
  $ leapetl completion bash > $(brew --prefix)/etc/bash_completion.d/leapetl

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  
  # To load completions for each session, execute once:
  $ leapetl completion zsh > "${fpath[1]}/_leapetl"
  
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ leapetl completion fish | source
  
  # To load completions for each session, execute once:
  $ leapetl completion fish > ~/.config/fish/completions/leapetl.fish

PowerShell:
  PS> leapetl completion powershell | Out-String | Invoke-Expression
  
  # To load completions for every new session, run:
  PS> leapetl completion powershell > leapetl.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
			return nil
		},
	}
	return cmd
}
