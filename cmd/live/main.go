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
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/quantex/internal/config"
	"github.com/peter-kozarec/quantex/internal/control"
	"github.com/peter-kozarec/quantex/internal/logging"
	"github.com/peter-kozarec/quantex/pkg/audit"
	"github.com/peter-kozarec/quantex/pkg/broker"
	"github.com/peter-kozarec/quantex/pkg/broker/live"
	alpacabroker "github.com/peter-kozarec/quantex/pkg/broker/live/alpaca"
	"github.com/peter-kozarec/quantex/pkg/broker/live/bridge"
	"github.com/peter-kozarec/quantex/pkg/broker/sandbox"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/data/kv"
	alpacadata "github.com/peter-kozarec/quantex/pkg/datasource/alpaca"
	"github.com/peter-kozarec/quantex/pkg/engine"
	"github.com/peter-kozarec/quantex/pkg/risk"
	"github.com/peter-kozarec/quantex/pkg/utility"
)

var (
	_ live.FillStore = (*kv.FillStore)(nil)
	_ live.Gateway   = (*alpacabroker.Gateway)(nil)
	_ live.Gateway   = (*bridge.Client)(nil)
)

func main() {
	configPath := flag.String("config", "quantex.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.ValidateLive()
	}
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

	if err := run(ctx, logger, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("live run failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("done")
}

func run(ctx context.Context, logger *zap.Logger, cfg config.Config) error {
	sink, err := cfg.OpenSink(ctx, logger.Named("audit"))
	if err != nil {
		return fmt.Errorf("open audit sink: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("close audit sink", zap.Error(err))
		}
	}()

	store, err := kv.OpenFillStore(kv.Options{Path: cfg.Live.FillStore})
	if err != nil {
		return fmt.Errorf("open fill store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	gateway, closeGateway, err := openGateway(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer closeGateway()

	executionID := utility.NewExecutionID()
	history, err := loadHistory(ctx, sink, store)
	if err != nil {
		return err
	}
	if err := store.AddRun(executionID); err != nil {
		return err
	}
	logger.Info("fill history loaded", zap.Int("fills", len(history)))

	def, err := cfg.Strategy.Build()
	if err != nil {
		return err
	}
	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	configured := cfg.KillSwitch()
	if cfg.KillSwitch.Source == config.KillSwitchHTTP {
		configured = risk.Static(false)
	}

	runner, err := engine.NewLiveRunner(logger, engineCfg, def, cfg.Live.PollInterval,
		engine.WithAudit(sink),
		engine.WithKillSwitch(configured),
		engine.WithExecutionID(executionID),
		engine.WithHistory(history),
		engine.WithBroker(func(logger *zap.Logger, _ sandbox.PriceSource, executionID utility.ExecutionID) (broker.Broker, error) {
			adapter, err := live.NewAdapter(logger, gateway, store, cfg.Adapter(), live.WithExecutionID(executionID))
			if err != nil {
				return nil, err
			}
			return adapter, nil
		}))
	if err != nil {
		return err
	}
	if cfg.KillSwitch.Source == config.KillSwitchHTTP {
		runner.KillSwitch().Set(cfg.KillSwitch.Engaged)
	}

	poller := alpacadata.NewPoller(logger, alpacadata.Credentials{
		APIKey:    cfg.Live.Alpaca.APIKey,
		APISecret: cfg.Live.Alpaca.APISecret,
		BaseURL:   cfg.Live.Alpaca.BaseURL,
	}, cfg.Data.Symbols, cfg.Live.BarInterval, cfg.Data.Period)

	bars := make(chan []common.Bar, 16)
	killUpdates := make(chan bool, 1)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(ctx, bars)
	})
	g.Go(func() error {
		return runner.Run(ctx, bars, killUpdates)
	})
	g.Go(func() error {
		return control.Serve(ctx, logger, cfg.Live.ControlAddr, control.NewRouter(logger, runner, runner.KillSwitch()))
	})
	g.Go(func() error {
		forwardKillSignals(ctx, killUpdates)
		return nil
	})

	logger.Info("live run started",
		zap.Stringer("eid", runner.ExecutionID()),
		zap.String("strategy", def.Name),
		zap.String("gateway", cfg.Live.Gateway),
		zap.Strings("symbols", cfg.Data.Symbols))
	return g.Wait()
}

// loadHistory reads back the fills of every run that shared the fill store. Those fill ids are
// already remembered, so without the replay the new ledger would never see them.
func loadHistory(ctx context.Context, sink audit.Sink, store *kv.FillStore) ([]common.Fill, error) {
	runs, err := store.Runs()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	log, ok := sink.(audit.FillLog)
	if !ok {
		return nil, fmt.Errorf("audit sink %T cannot replay fills of %d earlier runs", sink, len(runs))
	}
	return engine.LoadHistory(ctx, log, runs)
}

func openGateway(ctx context.Context, logger *zap.Logger, cfg config.Config) (live.Gateway, func(), error) {
	switch cfg.Live.Gateway {
	case config.GatewayBridge:
		client, err := bridge.Dial(ctx, logger, cfg.Live.BridgeURL, cfg.Live.Heartbeat)
		if err != nil {
			return nil, nil, fmt.Errorf("connect bridge: %w", err)
		}
		return client, client.Close, nil
	default:
		gateway := alpacabroker.NewGateway(logger, alpacabroker.Credentials{
			APIKey:    cfg.Live.Alpaca.APIKey,
			APISecret: cfg.Live.Alpaca.APISecret,
			BaseURL:   cfg.Live.Alpaca.BaseURL,
		})
		return gateway, func() {}, nil
	}
}

// forwardKillSignals engages the kill switch on SIGUSR1 and releases it on SIGUSR2.
func forwardKillSignals(ctx context.Context, updates chan<- bool) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			select {
			case updates <- sig == syscall.SIGUSR1:
			case <-ctx.Done():
				return
			}
		}
	}
}
