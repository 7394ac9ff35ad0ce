package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/quantex/pkg/broker"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/cost"
	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
	"go.uber.org/zap"
)

const (
	simulatorComponentName = "broker.sandbox.simulator"
	simulatorVenue         = "SIM"
)

var ErrInvalidOption = errors.New("invalid simulator option")

// FillTiming selects which bar an order executes against.
type FillTiming string

const (
	// SameTick fills at the close of the bar the order was submitted on.
	SameTick FillTiming = "same_tick"
	// NextTick fills at the close of the first bar after submission.
	NextTick FillTiming = "next_tick"
)

func (t FillTiming) Validate() error {
	switch t {
	case SameTick, NextTick:
		return nil
	default:
		return fmt.Errorf("%w: unknown fill timing %q", ErrInvalidOption, t)
	}
}

// PriceSource provides the latest bar per symbol.
type PriceSource interface {
	LastBar(symbol string) (common.Bar, bool)
}

type openOrder struct {
	brokerOrderId string
	order         common.OrderRequest
	remaining     fixed.Point
	submittedAt   time.Time
	lastFillAt    time.Time
}

// Simulator is a deterministic broker that fills market orders against bar closes.
type Simulator struct {
	logger *zap.Logger
	prices PriceSource

	costModel     cost.CostModel
	slippageModel cost.SlippageModel
	timing        FillTiming
	participation fixed.Point
	executionID   utility.ExecutionID

	orderIds *utility.Sequence
	fillIds  *utility.Sequence

	openOrders []*openOrder
	closed     map[string]struct{}
	closures   []common.Closure
}

func NewSimulator(logger *zap.Logger, prices PriceSource, options ...Option) (*Simulator, error) {
	s := &Simulator{
		logger:        logger.Named(simulatorComponentName),
		prices:        prices,
		costModel:     cost.CostModel{RateBps: fixed.Zero},
		slippageModel: cost.SlippageModel{RateBps: fixed.Zero},
		timing:        NextTick,
		participation: fixed.Zero,
		orderIds:      utility.NewSequence(simulatorVenue),
		fillIds:       utility.NewSequence(simulatorVenue + "-F"),
		closed:        make(map[string]struct{}),
	}

	for _, option := range options {
		option(s)
	}

	if err := s.timing.Validate(); err != nil {
		return nil, err
	}
	if s.participation.IsNeg() || s.participation.Gt(fixed.One) {
		return nil, fmt.Errorf("%w: volume participation %s outside [0, 1]", ErrInvalidOption, s.participation)
	}
	if s.costModel.RateBps.IsNeg() || s.slippageModel.RateBps.IsNeg() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOption, cost.ErrNegativeRate)
	}
	return s, nil
}

func (s *Simulator) Timing() FillTiming {
	return s.timing
}

func (s *Simulator) Submit(_ context.Context, order common.OrderRequest) (string, error) {
	if !order.Quantity.IsPos() {
		return "", &broker.RejectionError{OrderId: order.Id, Reason: "quantity must be positive"}
	}
	bar, ok := s.prices.LastBar(order.Symbol)
	if !ok {
		return "", &broker.RejectionError{OrderId: order.Id, Reason: "no price for " + order.Symbol}
	}

	brokerOrderId := s.orderIds.Next()
	s.openOrders = append(s.openOrders, &openOrder{
		brokerOrderId: brokerOrderId,
		order:         order,
		remaining:     order.Quantity,
		submittedAt:   bar.TimeStamp,
	})

	s.logger.Debug("order accepted",
		zap.String("order_id", order.Id),
		zap.String("broker_order_id", brokerOrderId),
		zap.Stringer("side", order.Side),
		zap.String("quantity", order.Quantity.String()))
	return brokerOrderId, nil
}

func (s *Simulator) PollFills(_ context.Context) ([]common.Fill, error) {
	var fills []common.Fill
	stillOpen := make([]*openOrder, 0, len(s.openOrders))

	for _, open := range s.openOrders {
		bar, ok := s.prices.LastBar(open.order.Symbol)
		if ok && s.executable(open, bar) {
			if fill, ok := s.execute(open, bar); ok {
				fills = append(fills, fill)
			}
		}

		if open.remaining.IsPos() {
			stillOpen = append(stillOpen, open)
		} else {
			s.closed[open.brokerOrderId] = struct{}{}
		}
	}

	s.openOrders = stillOpen
	return fills, nil
}

func (s *Simulator) Cancel(_ context.Context, brokerOrderId string) error {
	for idx, open := range s.openOrders {
		if open.brokerOrderId == brokerOrderId {
			s.logger.Debug("order cancelled",
				zap.String("broker_order_id", brokerOrderId),
				zap.String("remaining", open.remaining.String()))
			s.openOrders = append(s.openOrders[:idx], s.openOrders[idx+1:]...)
			s.closed[brokerOrderId] = struct{}{}
			s.closures = append(s.closures, s.closure(open, "cancelled"))
			return nil
		}
	}
	if _, ok := s.closed[brokerOrderId]; ok {
		return nil
	}
	return fmt.Errorf("cancel %s: %w", brokerOrderId, broker.ErrUnknownOrder)
}

// PollClosures returns the orders cancelled since the previous call.
func (s *Simulator) PollClosures(_ context.Context) ([]common.Closure, error) {
	closures := s.closures
	s.closures = nil
	return closures, nil
}

func (s *Simulator) closure(open *openOrder, reason string) common.Closure {
	ts := open.submittedAt
	if bar, ok := s.prices.LastBar(open.order.Symbol); ok && bar.TimeStamp.After(ts) {
		ts = bar.TimeStamp
	}
	return common.Closure{
		OrderId:       open.order.Id,
		BrokerOrderId: open.brokerOrderId,
		Symbol:        open.order.Symbol,
		Side:          open.order.Side,
		Remaining:     open.remaining,
		Reason:        reason,
		ExecutionID:   s.executionID,
		TimeStamp:     ts,
	}
}

// OpenQuantity returns the unfilled quantity of a working order.
func (s *Simulator) OpenQuantity(brokerOrderId string) fixed.Point {
	for _, open := range s.openOrders {
		if open.brokerOrderId == brokerOrderId {
			return open.remaining
		}
	}
	return fixed.Zero
}

func (s *Simulator) executable(open *openOrder, bar common.Bar) bool {
	if !open.lastFillAt.IsZero() && !bar.TimeStamp.After(open.lastFillAt) {
		return false
	}
	if s.timing == SameTick {
		return !bar.TimeStamp.Before(open.submittedAt)
	}
	return bar.TimeStamp.After(open.submittedAt)
}

func (s *Simulator) execute(open *openOrder, bar common.Bar) (common.Fill, bool) {
	quantity := open.remaining
	if s.participation.IsPos() {
		capacity := bar.Volume.Mul(s.participation).Floor(0)
		if !capacity.IsPos() {
			s.logger.Debug("no capacity in bar",
				zap.String("broker_order_id", open.brokerOrderId),
				zap.Time("bar", bar.TimeStamp))
			return common.Fill{}, false
		}
		quantity = quantity.Min(capacity)
	}

	side := open.order.Side
	price := s.slippageModel.AdjustPrice(bar.Close, side)
	notional := quantity.Mul(price)

	open.remaining = open.remaining.Sub(quantity)
	open.lastFillAt = bar.TimeStamp

	return common.Fill{
		Id:            s.fillIds.Next(),
		OrderId:       open.order.Id,
		BrokerOrderId: open.brokerOrderId,
		Symbol:        open.order.Symbol,
		Side:          side,
		Quantity:      quantity,
		Price:         price,
		Commission:    s.costModel.Commission(notional),
		Slippage:      price.Sub(bar.Close).Abs().Mul(quantity),
		Venue:         simulatorVenue,
		ExecutionID:   s.executionID,
		TimeStamp:     bar.TimeStamp,
	}, true
}
