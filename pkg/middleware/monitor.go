package middleware

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/bus"
	"github.com/peter-kozarec/quantex/pkg/common"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorBars
	MonitorSignals
	MonitorOrders
	MonitorFills
)

const monitorComponentName = "monitor"

var monitorFlagNames = map[string]MonitorFlags{
	"none":    MonitorNone,
	"all":     MonitorAll,
	"bars":    MonitorBars,
	"signals": MonitorSignals,
	"orders":  MonitorOrders,
	"fills":   MonitorFills,
}

// ParseMonitorFlags reads a comma separated list such as "orders,fills".
func ParseMonitorFlags(value string) (MonitorFlags, error) {
	flags := MonitorNone
	for _, name := range strings.Split(value, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		flag, ok := monitorFlagNames[name]
		if !ok {
			return MonitorNone, fmt.Errorf("unknown monitor flag %q", name)
		}
		flags |= flag
	}
	return flags, nil
}

// Monitor logs the events selected by its flags before handing them on.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger.Named(monitorComponentName),
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

func (m *Monitor) WithMarket(handler bus.MarketEventHandler) bus.MarketEventHandler {
	return func(ctx context.Context, bar common.Bar) error {
		if m.enabled(MonitorBars) {
			m.logger.Info("event",
				zap.String("bar", bar.Symbol),
				zap.Time("ts", bar.TimeStamp),
				zap.String("close", bar.Close.String()),
				zap.String("volume", bar.Volume.String()))
		}
		return handler(ctx, bar)
	}
}

func (m *Monitor) WithSignal(handler bus.SignalEventHandler) bus.SignalEventHandler {
	return func(ctx context.Context, signal common.Signal) error {
		if m.enabled(MonitorSignals) {
			m.logger.Info("event",
				zap.String("signal", signal.Symbol),
				zap.Time("ts", signal.TimeStamp),
				zap.String("exposure", signal.Exposure.String()),
				zap.String("src", signal.Source))
		}
		return handler(ctx, signal)
	}
}

func (m *Monitor) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return func(ctx context.Context, order common.OrderRequest) error {
		if m.enabled(MonitorOrders) {
			m.logger.Info("event",
				zap.String("order", order.Id),
				zap.String("symbol", order.Symbol),
				zap.Stringer("side", order.Side),
				zap.String("quantity", order.Quantity.String()),
				zap.Time("ts", order.TimeStamp))
		}
		return handler(ctx, order)
	}
}

func (m *Monitor) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return func(ctx context.Context, fill common.Fill) error {
		if m.enabled(MonitorFills) {
			m.logger.Info("event",
				zap.String("fill", fill.Id),
				zap.String("order", fill.OrderId),
				zap.String("symbol", fill.Symbol),
				zap.Stringer("side", fill.Side),
				zap.String("quantity", fill.Quantity.String()),
				zap.String("price", fill.Price.String()),
				zap.Time("ts", fill.TimeStamp))
		}
		return handler(ctx, fill)
	}
}
