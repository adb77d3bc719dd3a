package dates

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// LookbackMonths is the fixed number of trailing month windows resolved.
const LookbackMonths = 13

// Variable names always present in a resolved set.
const (
	KeyCurrentDate   = "current_date"
	KeyRunMonth      = "run_month"
	KeyMonthID       = "month_id"
	KeyCalendarStart = "calendar_start"
	KeyCalendarEnd   = "calendar_end"
)

// Variable names present only when a control lookup is configured.
const (
	KeySourceStart = "source_start"
	KeySourceEnd   = "source_end"
)

// StartKey names the first day of the month i months before the run month.
func StartKey(i int) string { return fmt.Sprintf("calendar_start_%dm", i) }

// EndKey names the last day of the month i months before the run month.
func EndKey(i int) string { return fmt.Sprintf("calendar_end_%dm", i) }

// Vars maps variable names to ISO dates (YYYY-MM-DD), or YYYYMM for month_id.
type Vars map[string]string

// Has reports whether key is set.
func (v Vars) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// Keys returns the variable names in sorted order.
func (v Vars) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ordered returns the variable names present in v in resolution order: the
// base keys, the lookback windows from nearest to furthest, then the source
// window.
func (v Vars) Ordered() []string {
	candidates := []string{KeyCurrentDate, KeyRunMonth, KeyMonthID, KeyCalendarStart, KeyCalendarEnd}
	for i := 1; i <= LookbackMonths; i++ {
		candidates = append(candidates, StartKey(i), EndKey(i))
	}
	candidates = append(candidates, KeySourceStart, KeySourceEnd)

	keys := make([]string, 0, len(v))
	known := make(map[string]bool, len(candidates))
	for _, k := range candidates {
		known[k] = true
		if v.Has(k) {
			keys = append(keys, k)
		}
	}
	for _, k := range v.Keys() {
		if !known[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func (v Vars) set(key, value string) error {
	if v.Has(key) {
		return &DuplicateKeyError{Key: key}
	}
	v[key] = value
	return nil
}

// Resolver computes run months and their date variables.
type Resolver struct {
	// Now returns the wall clock; nil means time.Now.
	Now func() time.Time
	// Lookup supplies source_start/source_end; nil leaves them unset.
	Lookup ControlLookup
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// RunMonth returns the month containing base, or the month before the current
// one when base is nil.
func (r *Resolver) RunMonth(base *time.Time) RunMonth {
	if base == nil {
		return PreviousRunMonth(r.now())
	}
	return RunMonthOf(*base)
}

// Resolve derives every date variable for rm. The control lookup, when set,
// runs exactly once and its failure aborts resolution.
func (r *Resolver) Resolve(ctx context.Context, rm RunMonth) (Vars, error) {
	if rm.IsZero() {
		return nil, fmt.Errorf("run month is not set")
	}

	vars := make(Vars, 5+2*LookbackMonths+2)
	base := []struct{ key, value string }{
		{KeyCurrentDate, r.now().Format(time.DateOnly)},
		{KeyRunMonth, rm.String()},
		{KeyMonthID, rm.MonthID()},
		{KeyCalendarStart, rm.Start().Format(time.DateOnly)},
		{KeyCalendarEnd, rm.End().Format(time.DateOnly)},
	}
	for _, kv := range base {
		if err := vars.set(kv.key, kv.value); err != nil {
			return nil, err
		}
	}

	for i := 1; i <= LookbackMonths; i++ {
		prior := rm.Minus(i)
		if err := vars.set(StartKey(i), prior.Start().Format(time.DateOnly)); err != nil {
			return nil, err
		}
		if err := vars.set(EndKey(i), prior.End().Format(time.DateOnly)); err != nil {
			return nil, err
		}
	}

	if r.Lookup != nil {
		window, err := r.Lookup.SourceWindow(ctx)
		if err != nil {
			return nil, err
		}
		if err := vars.set(KeySourceStart, window.Start); err != nil {
			return nil, err
		}
		if err := vars.set(KeySourceEnd, window.End); err != nil {
			return nil, err
		}
	}

	r.logger().Debug("resolved date variables",
		slog.String("run_month", rm.String()),
		slog.Int("count", len(vars)),
		slog.Bool("source_window", r.Lookup != nil))

	return vars, nil
}
