package engine

import (
	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/audit"
	"github.com/peter-kozarec/quantex/pkg/broker"
	"github.com/peter-kozarec/quantex/pkg/broker/sandbox"
	"github.com/peter-kozarec/quantex/pkg/bus"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/risk"
	"github.com/peter-kozarec/quantex/pkg/utility"
)

// BrokerFactory builds the broker of a run once the market state it prices against exists.
type BrokerFactory func(logger *zap.Logger, prices sandbox.PriceSource, executionID utility.ExecutionID) (broker.Broker, error)

// Middleware decorates the handlers registered on the event router.
type Middleware struct {
	Market func(bus.MarketEventHandler) bus.MarketEventHandler
	Signal func(bus.SignalEventHandler) bus.SignalEventHandler
	Order  func(bus.OrderEventHandler) bus.OrderEventHandler
	Fill   func(bus.FillEventHandler) bus.FillEventHandler
}

type Option func(*options)

type options struct {
	broker      BrokerFactory
	sink        audit.Sink
	killSwitch  risk.KillSwitch
	executionID utility.ExecutionID
	middleware  []Middleware
	history     []common.Fill
}

// WithBroker replaces the default simulated broker.
func WithBroker(factory BrokerFactory) Option {
	return func(o *options) {
		o.broker = factory
	}
}

// WithSandbox builds the default simulated broker with the given options.
func WithSandbox(opts ...sandbox.Option) Option {
	return func(o *options) {
		o.broker = sandboxFactory(opts...)
	}
}

func WithAudit(sink audit.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

func WithKillSwitch(killSwitch risk.KillSwitch) Option {
	return func(o *options) {
		o.killSwitch = killSwitch
	}
}

func WithExecutionID(executionID utility.ExecutionID) Option {
	return func(o *options) {
		o.executionID = executionID
	}
}

// WithHistory replays fills booked by earlier runs into the ledger before the first bar.
// Fills must be in the order they were applied.
func WithHistory(fills []common.Fill) Option {
	return func(o *options) {
		o.history = append(o.history, fills...)
	}
}

// WithMiddleware wraps the event handlers. Middleware listed first runs outermost.
func WithMiddleware(middleware ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, middleware...)
	}
}

func sandboxFactory(opts ...sandbox.Option) BrokerFactory {
	return func(logger *zap.Logger, prices sandbox.PriceSource, executionID utility.ExecutionID) (broker.Broker, error) {
		simulator, err := sandbox.NewSimulator(logger, prices, append([]sandbox.Option{sandbox.WithExecutionID(executionID)}, opts...)...)
		if err != nil {
			return nil, err
		}
		return simulator, nil
	}
}
