package config

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/audit"
	"github.com/peter-kozarec/quantex/pkg/datasource"
	"github.com/peter-kozarec/quantex/pkg/datasource/duckdb"
	"github.com/peter-kozarec/quantex/pkg/datasource/historical"
	"github.com/peter-kozarec/quantex/pkg/datasource/parquet"
	"github.com/peter-kozarec/quantex/pkg/datasource/synthetic"
)

var (
	defaultFrom = time.Unix(0, 0).UTC()
	defaultTo   = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Range returns the configured time range with open ends filled in.
func (d DataConfig) Range() (time.Time, time.Time) {
	from, to := d.From, d.To
	if from.IsZero() {
		from = defaultFrom
	}
	if to.IsZero() {
		to = defaultTo
	}
	return from, to
}

func nopClose() error { return nil }

// OpenSource opens the configured historical source. Every call returns an independent source,
// so concurrent runs never share a cursor. The alpaca source is a live feed and is opened by
// cmd/live instead.
func (c Config) OpenSource(ctx context.Context) (datasource.Source, func() error, error) {
	d := c.Data
	from, to := d.Range()

	switch d.Source {
	case SourceCSV:
		src, err := datasource.OpenCSV(d.Path)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil

	case SourceHistorical:
		src, err := historical.Open(d.Path, d.Symbols[0], d.Period, from, to)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil

	case SourceDuckDB:
		src := duckdb.NewSource(d.Path)
		if err := src.Connect(); err != nil {
			return nil, nil, err
		}
		if err := src.Open(ctx, duckdb.Query{Table: d.Table, Symbols: d.Symbols, From: from, To: to}); err != nil {
			_ = src.Close()
			return nil, nil, err
		}
		return src, src.Close, nil

	case SourceParquet:
		src, err := parquet.Open(d.Path, d.Symbols...)
		if err != nil {
			return nil, nil, err
		}
		return src, nopClose, nil

	case SourceSynthetic:
		s := d.Synthetic
		src := synthetic.NewBarGenerator(d.Symbols[0], s.Seed, from, s.StartPrice, s.Mu, s.Sigma, s.Steps)
		if s.Interval > 0 {
			src.SetInterval(s.Interval)
		}
		return src, nopClose, nil

	default:
		return nil, nil, fmt.Errorf("data source %q cannot be opened as a historical source", d.Source)
	}
}

// OpenSink opens the configured audit sink, mirrored to logger when audit.log is set.
func (c Config) OpenSink(ctx context.Context, logger *zap.Logger) (audit.Sink, error) {
	var sink audit.Sink
	switch c.Audit.Sink {
	case SinkMemory:
		sink = audit.NewMemory()
	case SinkLog:
		return audit.NewLogger(logger), nil
	case SinkSQLite:
		store, err := audit.OpenSQLite(ctx, c.Audit.Path)
		if err != nil {
			return nil, err
		}
		sink = store
	case SinkPostgres:
		store, err := audit.OpenPostgres(ctx, c.Audit.DSN)
		if err != nil {
			return nil, err
		}
		sink = store
	default:
		return nil, fmt.Errorf("unknown audit sink %q", c.Audit.Sink)
	}

	if c.Audit.Log {
		return audit.Multi{sink, audit.NewLogger(logger)}, nil
	}
	return sink, nil
}
