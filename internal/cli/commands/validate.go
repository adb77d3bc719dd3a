package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapetl/internal/extract"
	"github.com/spf13/cobra"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	ShowFilters bool
}

// planEntry is one rendered table in structured validate output.
type planEntry struct {
	Dataset string `json:"dataset" yaml:"dataset"`
	Table   string `json:"table" yaml:"table"`
	Filter  string `json:"filter" yaml:"filter"`
	Output  string `json:"output" yaml:"output"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and render every filter",
		Long: `Load and validate the configuration, then render every table filter
against the run month's date variables without reading any data.

The warehouse is never contacted: source_start/source_end render as
placeholders when a control query is configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			if err := cc.requireConfig(); err != nil {
				return err
			}
			return runValidate(cmd, cc, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ShowFilters, "show-filters", false, "Print each rendered filter")

	return cmd
}

func runValidate(cmd *cobra.Command, cc *CommandContext, opts *ValidateOptions) error {
	r, err := extract.New(cmd.Context(), cc.Cfg, cc.Logger, extract.Options{Offline: true})
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	_, vars, err := r.ResolveDates(cmd.Context())
	if err != nil {
		return err
	}
	jobs, err := r.Plan(vars)
	if err != nil {
		return err
	}

	entries := make([]planEntry, 0, len(jobs))
	for _, j := range jobs {
		entries = append(entries, planEntry{Dataset: j.Ref.Dataset, Table: j.Ref.Name, Filter: j.Filter, Output: j.Path})
	}
	if handled, err := cc.Renderer.Structured(entries); handled || err != nil {
		return err
	}

	rend := cc.Renderer
	if opts.ShowFilters {
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.Dataset, e.Table, e.Filter})
		}
		rend.Table([]string{"Dataset", "Table", "Filter"}, rows)
	}
	rend.Success(fmt.Sprintf("Configuration %s is valid: %d datasets, %d tables (%s mode)",
		cc.Cfg.File, len(cc.Cfg.Datasets), len(jobs), cc.Cfg.Mode))
	return nil
}
