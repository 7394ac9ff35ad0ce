package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/bus"
	"github.com/peter-kozarec/quantex/pkg/common"
)

// Telemetry counts the events that reach the handlers and the ones that failed.
type Telemetry struct {
	logger *zap.Logger

	marketEventCounter int64
	signalEventCounter int64
	orderEventCounter  int64
	fillEventCounter   int64
	failedEventCounter int64
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	return &Telemetry{
		logger: logger,
	}
}

func (t *Telemetry) count(counter *int64, err error) error {
	*counter++
	if err != nil {
		t.failedEventCounter++
	}
	return err
}

func (t *Telemetry) WithMarket(handler bus.MarketEventHandler) bus.MarketEventHandler {
	return func(ctx context.Context, bar common.Bar) error {
		return t.count(&t.marketEventCounter, handler(ctx, bar))
	}
}

func (t *Telemetry) WithSignal(handler bus.SignalEventHandler) bus.SignalEventHandler {
	return func(ctx context.Context, signal common.Signal) error {
		return t.count(&t.signalEventCounter, handler(ctx, signal))
	}
}

func (t *Telemetry) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return func(ctx context.Context, order common.OrderRequest) error {
		return t.count(&t.orderEventCounter, handler(ctx, order))
	}
}

func (t *Telemetry) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return func(ctx context.Context, fill common.Fill) error {
		return t.count(&t.fillEventCounter, handler(ctx, fill))
	}
}

type Counters struct {
	Market int64
	Signal int64
	Order  int64
	Fill   int64
	Failed int64
}

func (t *Telemetry) Counters() Counters {
	return Counters{
		Market: t.marketEventCounter,
		Signal: t.signalEventCounter,
		Order:  t.orderEventCounter,
		Fill:   t.fillEventCounter,
		Failed: t.failedEventCounter,
	}
}

func (t *Telemetry) PrintStatistics() {
	t.logger.Info("event statistics",
		zap.Int64("market_events", t.marketEventCounter),
		zap.Int64("signal_events", t.signalEventCounter),
		zap.Int64("order_events", t.orderEventCounter),
		zap.Int64("fill_events", t.fillEventCounter),
		zap.Int64("failed_events", t.failedEventCounter))
}
