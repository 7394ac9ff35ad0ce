package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/bus"
	"github.com/peter-kozarec/quantex/pkg/common"
)

// Performance accumulates the time spent inside each kind of handler.
type Performance struct {
	logger *zap.Logger

	totalMarketHandlerDur time.Duration
	totalSignalHandlerDur time.Duration
	totalOrderHandlerDur  time.Duration
	totalFillHandlerDur   time.Duration
}

func NewPerformance(logger *zap.Logger) *Performance {
	return &Performance{
		logger: logger,
	}
}

func timed[T any](total *time.Duration, handler bus.EventHandler[T]) bus.EventHandler[T] {
	return func(ctx context.Context, event T) error {
		startTime := time.Now()
		err := handler(ctx, event)
		*total += time.Since(startTime)
		return err
	}
}

func (p *Performance) WithMarket(handler bus.MarketEventHandler) bus.MarketEventHandler {
	return timed[common.Bar](&p.totalMarketHandlerDur, handler)
}

func (p *Performance) WithSignal(handler bus.SignalEventHandler) bus.SignalEventHandler {
	return timed[common.Signal](&p.totalSignalHandlerDur, handler)
}

func (p *Performance) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return timed[common.OrderRequest](&p.totalOrderHandlerDur, handler)
}

func (p *Performance) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return timed[common.Fill](&p.totalFillHandlerDur, handler)
}

func (p *Performance) Total() time.Duration {
	return p.totalMarketHandlerDur + p.totalSignalHandlerDur + p.totalOrderHandlerDur + p.totalFillHandlerDur
}

func (p *Performance) PrintStatistics() {
	p.logger.Info("handler durations",
		zap.Duration("market", p.totalMarketHandlerDur),
		zap.Duration("signal", p.totalSignalHandlerDur),
		zap.Duration("order", p.totalOrderHandlerDur),
		zap.Duration("fill", p.totalFillHandlerDur),
		zap.Duration("total", p.Total()))
}
