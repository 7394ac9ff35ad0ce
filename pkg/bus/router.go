package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/common"
)

// ErrOutOfOrder is fatal: an event would be processed before one already dispatched.
var ErrOutOfOrder = errors.New("event out of order")

// Router is a single threaded, time ordered event dispatcher. It is not safe for concurrent use;
// handlers post follow up events from within dispatch.
type Router struct {
	logger *zap.Logger
	events *queue

	seq        uint64
	last       key
	dispatched bool

	// Handlers
	OnMarket MarketEventHandler
	OnSignal SignalEventHandler
	OnOrder  OrderEventHandler
	OnFill   FillEventHandler

	// Statistics
	runTime       time.Duration
	postCount     uint64
	postFails     uint64
	dispatchCount uint64
	dispatchFails uint64
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		logger: logger,
		events: newQueue(),
	}
}

// Post queues an event. Posting behind the last dispatched event fails with ErrOutOfOrder.
func (r *Router) Post(id EventId, ts time.Time, data any) error {
	r.seq++
	ev := event{key: key{ts: ts.UnixNano(), id: id, seq: r.seq}, data: data}

	if r.dispatched && ev.less(r.last) {
		r.postFails++
		return fmt.Errorf("%w: %s event at %s posted after %s event at %s",
			ErrOutOfOrder, id, ts.UTC(), r.last.id, time.Unix(0, r.last.ts).UTC())
	}

	r.events.push(ev)
	r.postCount++
	return nil
}

func (r *Router) Pending() int {
	return r.events.len()
}

// Drain dispatches queued events, including those posted by handlers, until the queue is empty.
func (r *Router) Drain(ctx context.Context) error {
	start := time.Now()
	defer func() {
		r.runTime += time.Since(start)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, ok := r.events.pop()
		if !ok {
			return nil
		}
		if r.dispatched && ev.less(r.last) {
			return fmt.Errorf("%w: %s event at %s", ErrOutOfOrder, ev.id, ev.TimeStamp())
		}
		r.last = ev.key
		r.dispatched = true

		r.dispatchCount++
		if err := r.dispatch(ctx, ev); err != nil {
			r.dispatchFails++
			return err
		}
	}
}

// ExecLoop drains the queue and calls doOnce whenever it runs empty. doOnce feeds the next
// events; its error ends the loop and is returned as is.
func (r *Router) ExecLoop(ctx context.Context, doOnce func(context.Context) error) error {
	for {
		if err := r.Drain(ctx); err != nil {
			return err
		}
		if err := doOnce(ctx); err != nil {
			return err
		}
	}
}

func (r *Router) Statistics() Statistics {
	throughput := 0.0
	if r.runTime > 0 {
		throughput = float64(r.dispatchCount) / r.runTime.Seconds()
	}
	return Statistics{
		RunTime:       r.runTime,
		PostCount:     r.postCount,
		PostFails:     r.postFails,
		DispatchCount: r.dispatchCount,
		DispatchFails: r.dispatchFails,
		Throughput:    throughput,
	}
}

func (r *Router) dispatch(ctx context.Context, ev event) error {
	switch ev.id {
	case MarketEvent:
		bar, ok := ev.data.(common.Bar)
		if !ok {
			return errors.New("invalid type assertion for market event")
		}
		if r.OnMarket != nil {
			return r.OnMarket(ctx, bar)
		}
	case SignalEvent:
		signal, ok := ev.data.(common.Signal)
		if !ok {
			return errors.New("invalid type assertion for signal event")
		}
		if r.OnSignal != nil {
			return r.OnSignal(ctx, signal)
		}
	case OrderEvent:
		order, ok := ev.data.(common.OrderRequest)
		if !ok {
			return errors.New("invalid type assertion for order event")
		}
		if r.OnOrder != nil {
			return r.OnOrder(ctx, order)
		}
	case FillEvent:
		fill, ok := ev.data.(common.Fill)
		if !ok {
			return errors.New("invalid type assertion for fill event")
		}
		if r.OnFill != nil {
			return r.OnFill(ctx, fill)
		}
	default:
		return fmt.Errorf("unsupported event id: %v", ev.id)
	}
	r.logger.Debug("no handler registered", zap.Stringer("event", ev.id))
	return nil
}
