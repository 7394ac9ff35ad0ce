package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/internal/config"
	"github.com/peter-kozarec/quantex/internal/logging"
	"github.com/peter-kozarec/quantex/pkg/audit"
	"github.com/peter-kozarec/quantex/pkg/datasource"
	"github.com/peter-kozarec/quantex/pkg/engine"
	"github.com/peter-kozarec/quantex/pkg/middleware"
	"github.com/peter-kozarec/quantex/pkg/simulation"
	"github.com/peter-kozarec/quantex/pkg/utility"
)

func main() {
	configPath := flag.String("config", "quantex.yaml", "path to the YAML configuration")
	monitor := flag.String("monitor", "orders,fills", "events to log: bars, signals, orders, fills, all, none")
	parallelism := flag.Int("parallelism", 0, "concurrent sweep jobs, 0 uses GOMAXPROCS")
	seed := flag.Int64("seed", 0, "seed of the execution ids")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	monitorFlags, err := middleware.ParseMonitorFlags(*monitor)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b := &backtest{logger: logger, cfg: cfg, monitor: monitorFlags, seed: *seed}
	if err := b.run(ctx, *parallelism); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("backtest interrupted")
			return
		}
		logger.Error("backtest failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

type backtest struct {
	logger  *zap.Logger
	cfg     config.Config
	monitor middleware.MonitorFlags
	seed    int64
	sink    audit.Sink
}

func (b *backtest) run(ctx context.Context, parallelism int) error {
	sink, err := b.cfg.OpenSink(ctx, b.logger.Named("audit"))
	if err != nil {
		return fmt.Errorf("open audit sink: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			b.logger.Warn("close audit sink", zap.Error(err))
		}
	}()
	b.sink = sink

	strategies := b.cfg.Strategies()
	jobs := make([]simulation.Job, len(strategies))
	for i, sc := range strategies {
		name := fmt.Sprintf("%s#%d", sc.Name, i)
		jobs[i] = simulation.Job{
			Name: name,
			Run: func(ctx context.Context) (simulation.BacktestResult, error) {
				if b.cfg.Mode == config.ModeVectorized {
					return b.vectorized(ctx, sc)
				}
				return b.event(ctx, name, sc)
			},
		}
	}

	b.logger.Info("backtest started",
		zap.String("mode", b.cfg.Mode),
		zap.String("source", b.cfg.Data.Source),
		zap.Int("jobs", len(jobs)))

	results, err := simulation.Sweep(ctx, jobs, parallelism)
	if err != nil {
		return err
	}
	for _, result := range results {
		simulation.NewReport(result).Print(b.logger.With(zap.String("job", result.Metadata["job"])))
	}
	return nil
}

func (b *backtest) event(ctx context.Context, name string, sc config.StrategyConfig) (simulation.BacktestResult, error) {
	def, err := sc.Build()
	if err != nil {
		return simulation.BacktestResult{}, err
	}
	engineCfg, err := b.cfg.Engine()
	if err != nil {
		return simulation.BacktestResult{}, err
	}
	src, closeSource, err := b.cfg.OpenSource(ctx)
	if err != nil {
		return simulation.BacktestResult{}, err
	}
	defer func() {
		_ = closeSource()
	}()

	logger := b.logger.Named(name)
	monitor := middleware.NewMonitor(logger, b.monitor)
	telemetry := middleware.NewTelemetry(logger)
	performance := middleware.NewPerformance(logger)

	e, err := engine.NewEngine(logger, engineCfg, def, src,
		engine.WithAudit(b.sink),
		engine.WithKillSwitch(b.cfg.KillSwitch()),
		engine.WithSandbox(b.cfg.SandboxOptions()...),
		engine.WithExecutionID(utility.SeededExecutionID(name, b.seed)),
		engine.WithMiddleware(engine.Middleware{
			Market: middleware.Chain(telemetry.WithMarket, performance.WithMarket, monitor.WithMarket),
			Signal: middleware.Chain(telemetry.WithSignal, performance.WithSignal, monitor.WithSignal),
			Order:  middleware.Chain(telemetry.WithOrder, performance.WithOrder, monitor.WithOrder),
			Fill:   middleware.Chain(telemetry.WithFill, performance.WithFill, monitor.WithFill),
		}))
	if err != nil {
		return simulation.BacktestResult{}, err
	}

	result, err := e.Run(ctx)
	if err != nil {
		return simulation.BacktestResult{}, err
	}

	result.Router.Print(logger)
	telemetry.PrintStatistics()
	performance.PrintStatistics()
	logger.Info("risk decisions",
		zap.Int("allowed", result.Allowed()),
		zap.Any("denied", result.Denied()),
		zap.Int("gaps", result.Gaps))
	return result.BacktestResult, nil
}

func (b *backtest) vectorized(ctx context.Context, sc config.StrategyConfig) (simulation.BacktestResult, error) {
	def, err := sc.Build()
	if err != nil {
		return simulation.BacktestResult{}, err
	}
	src, closeSource, err := b.cfg.OpenSource(ctx)
	if err != nil {
		return simulation.BacktestResult{}, err
	}
	defer func() {
		_ = closeSource()
	}()

	bars, err := datasource.Collect(ctx, src)
	if err != nil {
		return simulation.BacktestResult{}, err
	}

	vcfg := b.cfg.Vectorized()
	vcfg.WindowDepth = def.Depth
	v, err := simulation.NewVectorized(b.logger.Named(sc.Name), vcfg)
	if err != nil {
		return simulation.BacktestResult{}, err
	}
	return v.Run(bars, def.Strategy)
}
