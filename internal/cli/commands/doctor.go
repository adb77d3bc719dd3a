package commands

import (
	"errors"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	intconfig "github.com/leapstack-labs/leapetl/internal/config"
	"github.com/leapstack-labs/leapetl/internal/extract"
	"github.com/spf13/cobra"
)

// Check statuses.
const (
	StatusPass  = "pass"
	StatusError = "error"
)

// ErrUnhealthy is returned when at least one doctor check fails.
var ErrUnhealthy = errors.New("doctor found problems")

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Group  string `json:"group" yaml:"group"`
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// DoctorOutput is the structured output of the doctor command.
type DoctorOutput struct {
	Mode     string        `json:"mode" yaml:"mode"`
	RunMonth string        `json:"run_month,omitempty" yaml:"run_month,omitempty"`
	Checks   []HealthCheck `json:"checks" yaml:"checks"`
	Failed   int           `json:"failed" yaml:"failed"`
}

func (o *DoctorOutput) add(group, name string, err error) bool {
	c := HealthCheck{Group: group, Name: name, Status: StatusPass}
	if err != nil {
		c.Status = StatusError
		c.Detail = err.Error()
		o.Failed++
	}
	o.Checks = append(o.Checks, c)
	return err == nil
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that every configured table can be read",
		Long: `Run the extraction setup without writing anything:

  - open the source (DuckDB locally, the warehouse otherwise)
  - resolve the date variables, running the control query when configured
  - render every filter
  - probe every table with a query that returns no rows

Each step is reported as a check. The command fails when any check fails.`,
		Example: `  # Check the project in ./leapetl.yaml
  leapetl doctor

  # Machine-readable report
  leapetl doctor -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			if err := cc.requireConfig(); err != nil {
				return err
			}
			return runDoctor(cmd, cc)
		},
	}
}

// probeFilter returns a filter that matches no rows in the given mode. The
// warehouse form is a constant predicate so engines that bill by bytes
// scanned prune the whole table.
func probeFilter(mode string) string {
	if mode == intconfig.ModeLocal {
		return "FALSE"
	}
	return "WHERE FALSE"
}

func runDoctor(cmd *cobra.Command, cc *CommandContext) error {
	ctx := cmd.Context()
	report := &DoctorOutput{Mode: cc.Cfg.Mode}

	r, err := extract.New(ctx, cc.Cfg, cc.Logger, extract.Options{})
	if report.add("source", "open "+cc.Cfg.Mode+" source", err) {
		defer func() { _ = r.Close() }()

		rm, vars, err := r.ResolveDates(ctx)
		if report.add("dates", "resolve date variables", err) {
			report.RunMonth = rm.String()

			jobs, err := r.Plan(vars)
			if report.add("filters", "render filters", err) {
				probe := probeFilter(cc.Cfg.Mode)
				for _, j := range jobs {
					_, err := r.Source.Extract(ctx, j.Ref, probe)
					report.add("tables", j.Ref.String(), err)
				}
			}
		}
	}

	if handled, err := cc.Renderer.Structured(report); handled || err != nil {
		if err != nil {
			return err
		}
		return doctorResult(report)
	}

	renderDoctorText(cc, report)
	return doctorResult(report)
}

func doctorResult(report *DoctorOutput) error {
	if report.Failed > 0 {
		return fmt.Errorf("%w: %d of %d checks failed", ErrUnhealthy, report.Failed, len(report.Checks))
	}
	return nil
}

func renderDoctorText(cc *CommandContext, report *DoctorOutput) {
	rend := cc.Renderer
	styles := rend.Styles()
	title := cases.Title(language.English)

	group := ""
	for _, c := range report.Checks {
		if c.Group != group {
			group = c.Group
			rend.Println(styles.Header1.Render(title.String(group)))
		}
		if c.Status == StatusPass {
			rend.Success(c.Name)
			continue
		}
		rend.Println(styles.Error.Render("✗ "+c.Name) + " " + styles.Muted.Render(c.Detail))
	}
	rend.Println()
	if report.Failed == 0 {
		rend.Println(styles.Bold.Render(fmt.Sprintf("All %d checks passed", len(report.Checks))))
	}
}
