// Package live forwards orders to an external venue through a Gateway and reconciles the fills
// it reports.
package live

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/peter-kozarec/quantex/pkg/broker"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
	"go.uber.org/zap"
)

const adapterComponentName = "broker.live.adapter"

var ErrInvalidConfig = errors.New("invalid live broker config")

// Gateway is the venue specific transport. Implementations must be safe for concurrent use
// because cancels run in the background.
type Gateway interface {
	Place(ctx context.Context, order common.OrderRequest, clientOrderId string) (string, error)
	Cancel(ctx context.Context, brokerOrderId string) error
	// Fills returns fills executed at or after since.
	Fills(ctx context.Context, since time.Time) ([]common.Fill, error)
	// Closed returns orders submitted at or after since that closed with an unfilled remainder.
	// Only BrokerOrderId, Remaining, Reason and TimeStamp need to be set.
	Closed(ctx context.Context, since time.Time) ([]common.Closure, error)
}

type Config struct {
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay" json:"max_delay"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	// FillOverlap widens every fill query back from the newest fill seen. Fills reported late
	// with an earlier execution time are still picked up; the fill store drops the repeats.
	FillOverlap time.Duration `yaml:"fill_overlap" json:"fill_overlap"`
}

func DefaultConfig() Config {
	return Config{
		Timeout:     5 * time.Second,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		MaxRetries:  3,
		FillOverlap: 5 * time.Minute,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout %s must be positive", c.Timeout))
	}
	if c.BaseDelay <= 0 || c.MaxDelay < c.BaseDelay {
		errs = append(errs, fmt.Errorf("backoff %s..%s is not a valid range", c.BaseDelay, c.MaxDelay))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries %d must not be negative", c.MaxRetries))
	}
	if c.FillOverlap < 0 {
		errs = append(errs, fmt.Errorf("fill overlap %s must not be negative", c.FillOverlap))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Backoff returns the delay before the given retry, doubling from BaseDelay up to MaxDelay.
func (c Config) Backoff(retry int) time.Duration {
	delay := c.BaseDelay
	for i := 1; i < retry && delay < c.MaxDelay; i++ {
		delay *= 2
	}
	return min(delay, c.MaxDelay)
}

type Option func(*Adapter)

func WithExecutionID(executionID utility.ExecutionID) Option {
	return func(a *Adapter) {
		a.executionID = executionID
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(a *Adapter) {
		a.sleep = sleep
	}
}

func WithStartTime(since time.Time) Option {
	return func(a *Adapter) {
		a.cursor = since
	}
}

// WithClock replaces the wall clock used to date placed orders.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// working is an order placed by this adapter that has neither filled nor closed yet.
type working struct {
	order    common.OrderRequest
	placedAt time.Time
	filled   fixed.Point
}

type Adapter struct {
	logger      *zap.Logger
	gateway     Gateway
	store       FillStore
	cfg         Config
	executionID utility.ExecutionID
	sleep       func(context.Context, time.Duration) error
	now         func() time.Time

	cursor  time.Time
	working map[string]*working
	pending sync.WaitGroup
}

func NewAdapter(logger *zap.Logger, gateway Gateway, store FillStore, cfg Config, options ...Option) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = NewMemoryFillStore()
	}

	a := &Adapter{
		logger:  logger.Named(adapterComponentName),
		gateway: gateway,
		store:   store,
		cfg:     cfg,
		sleep:   sleepContext,
		now:     time.Now,
		working: make(map[string]*working),
	}
	for _, option := range options {
		option(a)
	}
	return a, nil
}

func (a *Adapter) Submit(ctx context.Context, order common.OrderRequest) (string, error) {
	clientOrderId := utility.ClientOrderID(a.executionID, order.Id)

	var brokerOrderId string
	err := a.retry(ctx, "place "+order.Id, func(ctx context.Context) error {
		var err error
		brokerOrderId, err = a.gateway.Place(ctx, order, clientOrderId)
		return err
	})
	if err != nil {
		return "", err
	}
	a.working[brokerOrderId] = &working{order: order, placedAt: a.now()}

	a.logger.Info("order placed",
		zap.String("order_id", order.Id),
		zap.String("client_order_id", clientOrderId),
		zap.String("broker_order_id", brokerOrderId))
	return brokerOrderId, nil
}

// PollFills returns fills not handed out before, ordered by time then id. The query reaches
// FillOverlap behind the newest fill seen so late reports are not skipped.
func (a *Adapter) PollFills(ctx context.Context) ([]common.Fill, error) {
	since := a.cursor
	if !since.IsZero() {
		since = since.Add(-a.cfg.FillOverlap)
	}

	var reported []common.Fill
	err := a.retry(ctx, "poll fills", func(ctx context.Context) error {
		var err error
		reported, err = a.gateway.Fills(ctx, since)
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(reported, func(i, j int) bool {
		if !reported[i].TimeStamp.Equal(reported[j].TimeStamp) {
			return reported[i].TimeStamp.Before(reported[j].TimeStamp)
		}
		return reported[i].Id < reported[j].Id
	})

	fresh := make([]common.Fill, 0, len(reported))
	batch := make(map[string]struct{}, len(reported))
	for _, fill := range reported {
		if _, dup := batch[fill.Id]; dup {
			continue
		}
		seen, err := a.store.Seen(fill.Id)
		if err != nil {
			return nil, fmt.Errorf("fill store: %w", err)
		}
		if seen {
			a.logger.Debug("duplicate fill ignored", zap.String("fill_id", fill.Id))
			continue
		}
		batch[fill.Id] = struct{}{}
		fill.ExecutionID = a.executionID
		fresh = append(fresh, fill)
	}

	if len(fresh) == 0 {
		return nil, nil
	}

	ids := make([]string, len(fresh))
	for i, fill := range fresh {
		ids[i] = fill.Id
	}
	if err := a.store.Remember(ids...); err != nil {
		return nil, fmt.Errorf("fill store: %w", err)
	}
	for _, fill := range fresh {
		a.settle(fill)
	}
	if last := fresh[len(fresh)-1].TimeStamp; last.After(a.cursor) {
		a.cursor = last
	}
	return fresh, nil
}

// settle books a fill against the working order it belongs to.
func (a *Adapter) settle(fill common.Fill) {
	w, ok := a.working[fill.BrokerOrderId]
	if !ok {
		return
	}
	w.filled = w.filled.Add(fill.Quantity)
	if w.filled.Gte(w.order.Quantity) {
		delete(a.working, fill.BrokerOrderId)
	}
}

// PollClosures asks the venue about orders still working here and returns those that closed
// with quantity unfilled, each once.
func (a *Adapter) PollClosures(ctx context.Context) ([]common.Closure, error) {
	if len(a.working) == 0 {
		return nil, nil
	}

	var since time.Time
	for _, w := range a.working {
		if since.IsZero() || w.placedAt.Before(since) {
			since = w.placedAt
		}
	}
	since = since.Add(-a.cfg.FillOverlap)

	var reported []common.Closure
	err := a.retry(ctx, "poll closures", func(ctx context.Context) error {
		var err error
		reported, err = a.gateway.Closed(ctx, since)
		return err
	})
	if err != nil {
		return nil, err
	}

	closures := make([]common.Closure, 0, len(reported))
	for _, closure := range reported {
		w, ok := a.working[closure.BrokerOrderId]
		if !ok {
			continue
		}
		delete(a.working, closure.BrokerOrderId)
		if !closure.Remaining.IsPos() {
			continue
		}

		closure.OrderId = w.order.Id
		closure.Symbol = w.order.Symbol
		closure.Side = w.order.Side
		closure.ExecutionID = a.executionID
		closures = append(closures, closure)

		a.logger.Info("order closed",
			zap.String("order_id", closure.OrderId),
			zap.String("broker_order_id", closure.BrokerOrderId),
			zap.String("remaining", closure.Remaining.String()),
			zap.String("reason", closure.Reason))
	}

	sort.SliceStable(closures, func(i, j int) bool {
		if !closures[i].TimeStamp.Equal(closures[j].TimeStamp) {
			return closures[i].TimeStamp.Before(closures[j].TimeStamp)
		}
		return closures[i].OrderId < closures[j].OrderId
	})
	return closures, nil
}

// Cancel is fire and forget. The request runs in the background with the configured timeout
// and a failure is only logged; the next fill poll reconciles whatever happened.
func (a *Adapter) Cancel(ctx context.Context, brokerOrderId string) error {
	ctx = context.WithoutCancel(ctx)

	a.pending.Add(1)
	go func() {
		defer a.pending.Done()

		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()

		if err := a.gateway.Cancel(callCtx, brokerOrderId); err != nil {
			a.logger.Warn("cancel failed", zap.String("broker_order_id", brokerOrderId), zap.Error(err))
			return
		}
		a.logger.Info("order cancelled", zap.String("broker_order_id", brokerOrderId))
	}()
	return nil
}

// Close waits for background cancels to finish.
func (a *Adapter) Close() {
	a.pending.Wait()
}

func (a *Adapter) retry(ctx context.Context, op string, call func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		err := call(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		if broker.IsRejection(err) {
			return err
		}
		if ctx.Err() != nil {
			return &broker.ConnectivityError{Op: op, Attempts: attempt, Err: ctx.Err()}
		}
		if attempt > a.cfg.MaxRetries {
			return &broker.ConnectivityError{Op: op, Attempts: attempt, Err: unwrapConnectivity(err)}
		}

		delay := a.cfg.Backoff(attempt)
		a.logger.Warn("broker call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		if err := a.sleep(ctx, delay); err != nil {
			return &broker.ConnectivityError{Op: op, Attempts: attempt, Err: err}
		}
	}
}

func unwrapConnectivity(err error) error {
	var connectivity *broker.ConnectivityError
	if errors.As(err, &connectivity) && connectivity.Err != nil {
		return connectivity.Err
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
