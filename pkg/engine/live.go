package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/audit"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/datasource"
	"github.com/peter-kozarec/quantex/pkg/ledger"
	"github.com/peter-kozarec/quantex/pkg/risk"
	"github.com/peter-kozarec/quantex/pkg/strategy"
	"github.com/peter-kozarec/quantex/pkg/utility"
)

const DefaultPollInterval = 5 * time.Second

// anyEngaged is engaged while any of its switches is.
type anyEngaged []risk.KillSwitch

func (a anyEngaged) Engaged() bool {
	for _, killSwitch := range a {
		if killSwitch.Engaged() {
			return true
		}
	}
	return false
}

// LiveRunner drives the pipeline from a live bar feed. The ledger, router and broker are only
// touched by the goroutine executing Run; other goroutines read published snapshots.
type LiveRunner struct {
	logger       *zap.Logger
	pipeline     *pipeline
	killSwitch   *risk.Switch
	pollInterval time.Duration

	snapshot atomic.Pointer[ledger.Snapshot]
	running  atomic.Bool
}

func NewLiveRunner(logger *zap.Logger, cfg Config, def strategy.Definition, pollInterval time.Duration, opts ...Option) (*LiveRunner, error) {
	o := options{
		broker:     sandboxFactory(),
		sink:       audit.NewLogger(logger.Named("audit")),
		killSwitch: risk.Static(false),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.executionID == (utility.ExecutionID{}) {
		o.executionID = utility.NewExecutionID()
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	killSwitch := risk.NewSwitch(false)
	o.killSwitch = anyEngaged{o.killSwitch, killSwitch}

	p, err := newPipeline(logger, cfg, def, o)
	if err != nil {
		return nil, err
	}
	p.lenientFills = true

	r := &LiveRunner{
		logger:       logger,
		pipeline:     p,
		killSwitch:   killSwitch,
		pollInterval: pollInterval,
	}
	p.onInstant = func(time.Time) { r.publish() }
	r.publish()
	return r, nil
}

// LoadHistory collects the fills booked by earlier runs, oldest run first, in the order each
// run applied them. The result feeds WithHistory.
func LoadHistory(ctx context.Context, log audit.FillLog, runs []utility.ExecutionID) ([]common.Fill, error) {
	var history []common.Fill
	for _, executionID := range runs {
		fills, err := log.Fills(ctx, executionID)
		if err != nil {
			return nil, fmt.Errorf("load fills of run %s: %w", executionID, err)
		}
		history = append(history, fills...)
	}
	return history, nil
}

func (r *LiveRunner) ExecutionID() utility.ExecutionID {
	return r.pipeline.executionID
}

// Ledger returns the book as of the last processed instant or fill poll.
func (r *LiveRunner) Ledger() ledger.Snapshot {
	return *r.snapshot.Load()
}

// KillSwitch is the runner owned switch. Engaging it denies every new order.
func (r *LiveRunner) KillSwitch() *risk.Switch {
	return r.killSwitch
}

// Run processes bar batches until the feed closes or ctx is cancelled. Batches may span several
// instants; instants not later than the last processed one are dropped.
func (r *LiveRunner) Run(ctx context.Context, bars <-chan []common.Bar, killUpdates <-chan bool) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("live runner already running")
	}
	defer r.running.Store(false)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	listenCtx, stopListening := context.WithCancel(ctx)
	defer stopListening()
	go r.killSwitch.Listen(listenCtx, killUpdates)

	r.logger.Info("live runner started",
		zap.String("strategy", r.pipeline.strategy.Name),
		zap.Stringer("eid", r.pipeline.executionID),
		zap.Duration("poll_interval", r.pollInterval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("live runner stopped", zap.Error(ctx.Err()))
			return ctx.Err()

		case batch, ok := <-bars:
			if !ok {
				r.logger.Info("bar feed closed")
				return nil
			}
			for _, instant := range r.instants(batch) {
				if err := r.pipeline.instant(ctx, instant); err != nil {
					return err
				}
			}

		case <-ticker.C:
			if err := r.pollFills(ctx); err != nil {
				return err
			}
		}
	}
}

// pollFills runs a fill phase between bars. Fills are stamped at the last instant so they
// never precede events already dispatched.
func (r *LiveRunner) pollFills(ctx context.Context) error {
	p := r.pipeline
	if p.tick == 0 {
		return nil
	}
	if err := p.postFills(ctx, p.now); err != nil {
		return err
	}
	if err := p.bus.Drain(ctx); err != nil {
		return err
	}
	r.publish()
	return nil
}

func (r *LiveRunner) instants(batch []common.Bar) [][]common.Bar {
	sorted := append([]common.Bar(nil), batch...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return datasource.Less(sorted[i], sorted[j])
	})

	var instants [][]common.Bar
	for _, bar := range sorted {
		if r.pipeline.tick > 0 && !bar.TimeStamp.After(r.pipeline.now) {
			r.logger.Warn("stale bar dropped",
				zap.String("symbol", bar.Symbol),
				zap.Time("ts", bar.TimeStamp),
				zap.Time("last", r.pipeline.now))
			continue
		}
		last := len(instants) - 1
		if last >= 0 && instants[last][0].TimeStamp.Equal(bar.TimeStamp) {
			instants[last] = append(instants[last], bar)
			continue
		}
		instants = append(instants, []common.Bar{bar})
	}
	return instants
}

func (r *LiveRunner) publish() {
	snapshot := r.pipeline.ledger.Snapshot()
	r.snapshot.Store(&snapshot)
}
