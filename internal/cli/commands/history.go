package commands

import (
	"fmt"
	"strconv"
	"time"

	intconfig "github.com/leapstack-labs/leapetl/internal/config"
	"github.com/leapstack-labs/leapetl/internal/state"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past extraction runs",
		Long: `List recent extraction runs from the run history database, or show the
tables written by one run.

The database path comes from the history setting (default
.leapetl/history.db). Setting it to an empty string disables recording.`,
		Example: `  # Last 10 runs
  leapetl history

  # Tables written by one run, as JSON
  leapetl history 0b7c9a3e-... -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, NewCommandContext(cmd), opts, args)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "Number of runs to list (0 for all)")

	return optional(cmd)
}

func historyPath(cmd *cobra.Command, cc *CommandContext) string {
	if cc.Cfg != nil {
		return cc.Cfg.History
	}
	if f := cmd.Flags().Lookup("history"); f != nil && f.Changed {
		return f.Value.String()
	}
	return intconfig.DefaultHistoryPath
}

func runHistory(cmd *cobra.Command, cc *CommandContext, opts *HistoryOptions, args []string) error {
	path := historyPath(cmd, cc)
	if path == "" {
		return fmt.Errorf("run history is disabled: set history in the config")
	}

	store, err := state.OpenStore(path, cc.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if len(args) == 1 {
		run, err := store.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderRun(cc, run)
	}

	runs, err := store.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}
	if handled, err := cc.Renderer.Structured(runs); handled || err != nil {
		return err
	}
	if len(runs) == 0 {
		cc.Renderer.Println(cc.Renderer.Styles().Muted.Render("No runs recorded in " + path))
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.RunMonth,
			r.Mode,
			string(r.Status),
			r.StartedAt.Local().Format(time.DateTime),
			formatDuration(r),
		})
	}
	cc.Renderer.Table([]string{"Run", "Run month", "Mode", "Status", "Started", "Duration"}, rows)
	return nil
}

func renderRun(cc *CommandContext, run *state.Run) error {
	rend := cc.Renderer
	if handled, err := rend.Structured(run); handled || err != nil {
		return err
	}

	styles := rend.Styles()
	rend.Println(styles.Header1.Render(fmt.Sprintf("Run %s", run.ID)))
	rend.Printf("Run month: %s\nMode:      %s\nStatus:    %s\nDuration:  %s\n",
		run.RunMonth, run.Mode, run.Status, formatDuration(run))
	if run.Error != "" {
		rend.Println(styles.Error.Render("Error: " + run.Error))
	}

	rows := make([][]string, 0, len(run.Tables))
	for _, t := range run.Tables {
		rows = append(rows, []string{strconv.Itoa(t.Position), t.Dataset + "." + t.Table, strconv.Itoa(t.Rows), t.Path})
	}
	if len(rows) > 0 {
		rend.Println()
		rend.Table([]string{"#", "Table", "Rows", "Path"}, rows)
	}
	return nil
}

func formatDuration(r *state.Run) string {
	if r.CompletedAt == nil {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}
