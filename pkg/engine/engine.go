// Package engine runs a strategy through the event pipeline, either over a historical source or
// over a live bar feed.
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/audit"
	"github.com/peter-kozarec/quantex/pkg/datasource"
	"github.com/peter-kozarec/quantex/pkg/risk"
	"github.com/peter-kozarec/quantex/pkg/simulation"
	"github.com/peter-kozarec/quantex/pkg/strategy"
	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Engine is a deterministic backtest: the same source, strategy and configuration always
// produce the same decisions, fills and equity curve.
type Engine struct {
	logger   *zap.Logger
	cfg      Config
	source   datasource.Source
	pipeline *pipeline

	equity   []fixed.Point
	result   Result
	finished bool
}

func NewEngine(logger *zap.Logger, cfg Config, def strategy.Definition, src datasource.Source, opts ...Option) (*Engine, error) {
	o := options{
		broker:     sandboxFactory(),
		sink:       audit.NewMemory(),
		killSwitch: risk.NewEnvKillSwitch(""),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.executionID == (utility.ExecutionID{}) {
		o.executionID = utility.SeededExecutionID(def.Name, 0)
	}

	p, err := newPipeline(logger, cfg, def, o)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		logger:   logger,
		cfg:      cfg,
		source:   src,
		pipeline: p,
		result: Result{
			BacktestResult: simulation.BacktestResult{
				Metadata: map[string]string{
					"strategy": def.Name,
					"mode":     "event",
					"eid":      o.executionID.String(),
				},
			},
			ExecutionID: o.executionID,
		},
	}
	p.onInstant = e.record
	return e, nil
}

// Run processes the source to exhaustion. A run can be executed once.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if e.finished {
		return Result{}, errors.New("engine already ran")
	}
	e.finished = true

	batcher := datasource.NewBatcher(e.source)
	err := e.pipeline.bus.ExecLoop(ctx, func(ctx context.Context) error {
		batch, err := batcher.Next(ctx)
		if err != nil {
			return err
		}
		return e.pipeline.instant(ctx, batch)
	})
	if !errors.Is(err, datasource.ErrEof) {
		e.logger.Error("backtest aborted", zap.Error(err), zap.Int("instants", len(e.equity)))
		return Result{}, err
	}

	return e.finish(), nil
}

func (e *Engine) record(t time.Time) {
	snapshot := e.pipeline.ledger.Snapshot()
	equity := snapshot.Equity()
	e.equity = append(e.equity, equity)

	holdings := make(map[string]fixed.Point, len(snapshot.Positions))
	exposure := fixed.Zero
	for _, symbol := range snapshot.Symbols() {
		holdings[symbol] = snapshot.Quantity(symbol)
		exposure = exposure.Add(snapshot.Position(symbol).MarketValue())
	}

	r := &e.result
	r.TimeStamps = append(r.TimeStamps, t)
	r.Holdings = append(r.Holdings, holdings)
	r.Equity = append(r.Equity, toFloat(equity))
	r.Positions = append(r.Positions, ratio(exposure, equity))
	r.Turnover = append(r.Turnover, ratio(e.pipeline.traded, equity))
	r.Costs += ratio(e.pipeline.costs, equity)
}

func (e *Engine) finish() Result {
	p := e.pipeline
	r := e.result

	r.Returns = simulation.ReturnsFromEquity(e.cfg.InitialCash, e.equity)
	r.Stats = simulation.ComputeStats(r.Returns, e.cfg.PeriodsPerYear)
	r.Decisions = p.decisions
	r.Fills = p.fills
	r.Ledger = p.ledger.Snapshot()
	r.Gaps = p.gapCount
	r.Router = p.bus.Statistics()

	e.logger.Info("backtest finished",
		zap.String("strategy", p.strategy.Name),
		zap.Stringer("eid", r.ExecutionID),
		zap.Int("instants", r.Len()),
		zap.Int("decisions", len(r.Decisions)),
		zap.Int("fills", len(r.Fills)),
		zap.Int("gaps", r.Gaps),
		zap.String("equity", r.Ledger.Equity().String()))
	return r
}

func toFloat(p fixed.Point) float64 {
	f, _ := p.Float64()
	return f
}

func ratio(numerator, denominator fixed.Point) float64 {
	if !denominator.IsPos() {
		return 0
	}
	return toFloat(numerator.Div(denominator))
}
