package extract

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapetl/internal/config"
	"github.com/leapstack-labs/leapetl/internal/dates"
	"github.com/leapstack-labs/leapetl/internal/output"
	"github.com/leapstack-labs/leapetl/internal/source"
	"github.com/leapstack-labs/leapetl/pkg/adapter"
)

// Options tune how New wires a runner.
type Options struct {
	// Offline skips connecting to the warehouse. The control lookup is replaced
	// by placeholder bounds so filters referencing them still render.
	Offline bool
}

// New wires a runner for cfg: a DuckDB-backed source in local mode, or a
// warehouse adapter (also serving the control lookup) otherwise. Call Close
// when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Runner, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		Config:   cfg,
		Resolver: &dates.Resolver{Logger: logger},
		Writer:   output.NewWriter(logger),
		Logger:   logger,
	}

	if opts.Offline {
		if cfg.ControlQuery() != "" {
			r.Resolver.Lookup = placeholderLookup{}
		}
		return r, nil
	}

	if cfg.Mode == config.ModeLocal {
		local, err := source.OpenLocal(ctx, logger)
		if err != nil {
			return nil, err
		}
		r.Source = local
		r.closers = append(r.closers, local.Close)
		return r, nil
	}

	wh, err := adapter.New(cfg.Warehouse.AdapterConfig(), logger)
	if err != nil {
		return nil, err
	}
	if err := wh.Connect(ctx, cfg.Warehouse.AdapterConfig()); err != nil {
		return nil, err
	}
	r.closers = append(r.closers, wh.Close)
	r.Source = source.NewWarehouse(wh, logger)

	if q := cfg.ControlQuery(); q != "" {
		r.Resolver.Lookup = &dates.QueryLookup{Querier: wh, Query: q}
	}
	return r, nil
}

// placeholderLookup stands in for the control table when running offline.
type placeholderLookup struct{}

func (placeholderLookup) SourceWindow(context.Context) (dates.SourceWindow, error) {
	return dates.SourceWindow{Start: "<source_start>", End: "<source_end>"}, nil
}
