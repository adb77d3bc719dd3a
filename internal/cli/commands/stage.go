package commands

import (
	"fmt"
	"path/filepath"

	"github.com/leapstack-labs/leapetl/internal/cli/output"
	intconfig "github.com/leapstack-labs/leapetl/internal/config"
	iout "github.com/leapstack-labs/leapetl/internal/output"
	"github.com/leapstack-labs/leapetl/internal/source"
	"github.com/leapstack-labs/leapetl/internal/stage"
	"github.com/spf13/cobra"
)

// StageOptions holds options for the stage command.
type StageOptions struct {
	RawDir  string
	Dataset string
}

// NewStageCommand creates the stage command.
func NewStageCommand() *cobra.Command {
	opts := &StageOptions{}

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Clean raw tables into the staging directory",
		Long: `Read raw Parquet tables, apply each table's cleaning rule and write the
result to the staging directory.

The customer table has CUST_ID trimmed and upper-cased, IMAGE_DT parsed as a
timestamp and duplicate (CUST_ID, IMAGE_DT) rows removed.`,
		Example: `  # Stage from output/raw into output/staging
  leapetl stage

  # Stage one dataset's extraction
  leapetl stage --dataset crm`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, NewCommandContext(cmd), opts)
		},
	}

	cmd.Flags().StringVar(&opts.RawDir, "raw-dir", "", "Directory holding raw tables (default: output_dir)")
	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "Dataset subdirectory to stage")

	return optional(cmd)
}

// stageDirs resolves the raw and staging directories from flags and config.
func stageDirs(cmd *cobra.Command, cc *CommandContext, opts *StageOptions) (string, string) {
	rawDir, stagingDir := intconfig.DefaultOutputDir, intconfig.DefaultStagingDir
	if cc.Cfg != nil {
		rawDir, stagingDir = cc.Cfg.OutputDir, cc.Cfg.StagingDir
	} else {
		if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
			rawDir = v
		}
		if v, _ := cmd.Flags().GetString("staging-dir"); v != "" {
			stagingDir = v
		}
	}
	if opts.RawDir != "" {
		rawDir = opts.RawDir
	}
	if opts.Dataset != "" {
		rawDir = filepath.Join(rawDir, opts.Dataset)
		stagingDir = filepath.Join(stagingDir, opts.Dataset)
	}
	return rawDir, stagingDir
}

func runStage(cmd *cobra.Command, cc *CommandContext, opts *StageOptions) error {
	ctx := cmd.Context()
	rawDir, stagingDir := stageDirs(cmd, cc, opts)

	reader, err := source.OpenLocal(ctx, cc.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	s := &stage.Stager{Reader: reader, Writer: iout.NewWriter(cc.Logger), Logger: cc.Logger}
	paths, err := s.Run(ctx, rawDir, stagingDir)
	if err != nil {
		return err
	}

	rend := cc.Renderer
	if rend.Mode() != output.ModeText {
		_, err := rend.Structured(map[string]any{"raw_dir": rawDir, "staging_dir": stagingDir, "files": paths})
		return err
	}
	for _, p := range paths {
		rend.Success(fmt.Sprintf("Staged %s", p))
	}
	return nil
}
