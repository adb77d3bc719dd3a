package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapetl/internal/extract"
	"github.com/spf13/cobra"
)

// DatesOptions holds options for the dates command.
type DatesOptions struct {
	Offline bool
}

// NewDatesCommand creates the dates command.
func NewDatesCommand() *cobra.Command {
	opts := &DatesOptions{}

	cmd := &cobra.Command{
		Use:   "dates",
		Short: "Show the date variables for the run month",
		Long: `Print every date variable filters can reference for the run month:
current_date, run_month, month_id, calendar_start/end, the 13 monthly
lookback windows and, when a control query is configured outside local
mode, source_start/source_end.`,
		Example: `  # Variables for last month
  leapetl dates

  # Variables for March 2024 as YAML
  leapetl dates --run-date 2024-03 -o yaml

  # Skip the control-table query
  leapetl dates --offline`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			if err := cc.requireConfig(); err != nil {
				return err
			}
			return runDates(cmd, cc, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "Do not query the control table; show placeholders for source_start/source_end")

	return cmd
}

func runDates(cmd *cobra.Command, cc *CommandContext, opts *DatesOptions) error {
	r, err := extract.New(cmd.Context(), cc.Cfg, cc.Logger, extract.Options{Offline: opts.Offline})
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	rm, vars, err := r.ResolveDates(cmd.Context())
	if err != nil {
		return err
	}

	if handled, err := cc.Renderer.Structured(map[string]string(vars)); handled || err != nil {
		return err
	}

	keys := vars.Ordered()
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, vars[k]})
	}
	cc.Renderer.Println(cc.Renderer.Styles().Header1.Render(fmt.Sprintf("Run month %s (%s)", rm, rm.MonthID())))
	cc.Renderer.Table([]string{"Variable", "Value"}, rows)
	return nil
}
