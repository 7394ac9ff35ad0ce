package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/audit"
	"github.com/peter-kozarec/quantex/pkg/broker"
	"github.com/peter-kozarec/quantex/pkg/bus"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/ledger"
	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/risk"
	"github.com/peter-kozarec/quantex/pkg/routing"
	"github.com/peter-kozarec/quantex/pkg/strategy"
	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// ErrAudit wraps a failed audit write. It always ends the run.
var ErrAudit = errors.New("audit write failed")

// workingOrder is a submitted order whose quantity has not all been filled or closed yet.
type workingOrder struct {
	symbol        string
	brokerOrderId string
	side          common.OrderSide
	remaining     fixed.Point
}

// pipeline is the Market -> Signal -> Order -> Fill chain shared by backtest and live runs.
// Every method runs on the goroutine that owns the run.
type pipeline struct {
	logger      *zap.Logger
	bus         *bus.Router
	state       *market.State
	ledger      *ledger.Ledger
	risk        *risk.Engine
	router      *routing.Router
	broker      broker.Broker
	sink        audit.Sink
	day         *risk.DayGuard
	gaps        *market.GapDetector
	gapPolicy   market.GapPolicy
	gapInterval time.Duration
	strategy    strategy.Definition
	executionID utility.ExecutionID
	traces      *utility.Sequence

	tick    int
	now     time.Time
	working map[string]*workingOrder

	gapCount  int
	decisions []common.RiskDecision
	fills     []common.Fill
	traded    fixed.Point
	costs     fixed.Point

	onInstant func(time.Time)
	// lenientFills logs failed fill polls instead of ending the run.
	lenientFills bool
}

func newPipeline(logger *zap.Logger, cfg Config, def strategy.Definition, o options) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if def.Strategy == nil {
		return nil, fmt.Errorf("%w: strategy is required", ErrInvalidConfig)
	}

	riskEngine, err := risk.NewEngine(cfg.Limits, o.killSwitch)
	if err != nil {
		return nil, err
	}
	router, err := routing.NewRouter(logger, cfg.Routing, utility.NewSequence("ORD"))
	if err != nil {
		return nil, err
	}

	book := ledger.New(cfg.InitialCash)
	if len(o.history) > 0 {
		if book, err = ledger.Replay(cfg.InitialCash, o.history); err != nil {
			return nil, fmt.Errorf("replay history: %w", err)
		}
	}

	p := &pipeline{
		logger:      logger,
		bus:         bus.NewRouter(logger),
		state:       market.NewState(def.Depth),
		ledger:      book,
		risk:        riskEngine,
		router:      router,
		sink:        o.sink,
		day:         risk.NewDayGuard(cfg.Limits, cfg.Location),
		gaps:        market.NewGapDetector(cfg.GapInterval),
		gapPolicy:   cfg.GapPolicy,
		gapInterval: cfg.GapInterval,
		strategy:    def,
		executionID: o.executionID,
		traces:      utility.NewSequence("SIG"),
		working:     make(map[string]*workingOrder),
	}

	p.broker, err = o.broker(logger, p.state, o.executionID)
	if err != nil {
		return nil, fmt.Errorf("create broker: %w", err)
	}

	onMarket, onSignal, onOrder, onFill := p.onMarket, p.onSignal, p.onOrder, p.onFill
	for i := len(o.middleware) - 1; i >= 0; i-- {
		mw := o.middleware[i]
		if mw.Market != nil {
			onMarket = mw.Market(onMarket)
		}
		if mw.Signal != nil {
			onSignal = mw.Signal(onSignal)
		}
		if mw.Order != nil {
			onOrder = mw.Order(onOrder)
		}
		if mw.Fill != nil {
			onFill = mw.Fill(onFill)
		}
	}
	p.bus.OnMarket = onMarket
	p.bus.OnSignal = onSignal
	p.bus.OnOrder = onOrder
	p.bus.OnFill = onFill
	return p, nil
}

// instant runs one timestamp through all stages. Each stage is drained before the next one is
// posted, so the strategy sees every bar of the instant and orders see every signal.
func (p *pipeline) instant(ctx context.Context, batch []common.Bar) error {
	if len(batch) == 0 {
		return nil
	}
	t := batch[0].TimeStamp
	p.tick++
	p.now = t

	for _, bar := range batch {
		if err := p.bus.Post(bus.MarketEvent, t, bar); err != nil {
			return err
		}
	}
	if err := p.bus.Drain(ctx); err != nil {
		return err
	}

	for _, stage := range []func(context.Context, time.Time) error{p.postSignals, p.postOrders, p.postFills} {
		if err := stage(ctx, t); err != nil {
			return err
		}
		if err := p.bus.Drain(ctx); err != nil {
			return err
		}
	}

	p.closeInstant(t)
	return nil
}

func (p *pipeline) onMarket(_ context.Context, bar common.Bar) error {
	if err := p.gaps.Check(bar); err != nil {
		var gap *market.DataGapError
		if !errors.As(err, &gap) || p.gapPolicy != market.GapPolicyForwardFill {
			return err
		}
		filled := p.state.ForwardFill(bar.Symbol, bar.TimeStamp, p.gapInterval)
		p.gapCount++
		p.logger.Warn("data gap forward filled",
			zap.String("symbol", gap.Symbol),
			zap.Time("previous", gap.Previous),
			zap.Time("got", gap.Got),
			zap.Int("missing", gap.Missing()),
			zap.Int("filled", filled))
	}

	p.state.Update(bar)
	p.ledger.Mark(bar.Symbol, bar.Close, bar.TimeStamp)
	return nil
}

func (p *pipeline) postSignals(_ context.Context, t time.Time) error {
	p.day.Observe(t, p.ledger.Equity())

	exposures, err := p.strategy.Strategy.GenerateSignal(p.state)
	if err != nil {
		return fmt.Errorf("strategy %s at %s: %w", p.strategy.Name, t, err)
	}

	symbols := make([]string, 0, len(exposures))
	for symbol := range exposures {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		signal := common.Signal{
			Source:      p.strategy.Name,
			Symbol:      symbol,
			ExecutionID: p.executionID,
			TraceID:     p.traces.NextTraceID(),
			TimeStamp:   t,
			Exposure:    exposures[symbol],
		}
		if err := p.bus.Post(bus.SignalEvent, t, signal); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) onSignal(_ context.Context, signal common.Signal) error {
	p.router.Schedule(signal, p.tick)
	return nil
}

func (p *pipeline) postOrders(_ context.Context, t time.Time) error {
	snapshot := p.ledger.Snapshot()
	for _, signal := range p.router.Due(p.tick) {
		bar, ok := p.state.LastBar(signal.Symbol)
		if !ok {
			p.logger.Warn("signal for symbol without price", zap.String("symbol", signal.Symbol))
			continue
		}
		order, ok := p.router.Size(signal, bar.Close, snapshot, p.pendingQuantity()[signal.Symbol])
		if !ok {
			continue
		}
		order.TimeStamp = t
		if err := p.bus.Post(bus.OrderEvent, t, order); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) onOrder(ctx context.Context, order common.OrderRequest) error {
	book := risk.Book{
		Snapshot: p.ledger.Snapshot(),
		Working:  p.pendingQuantity(),
		Prices:   p.state.Prices(),
	}
	decision := p.risk.Evaluate(order, book, p.day.State())
	if err := p.sink.RecordDecision(ctx, order, decision); err != nil {
		return fmt.Errorf("%w: %w", ErrAudit, err)
	}
	p.decisions = append(p.decisions, decision)

	if !decision.Allowed {
		p.logger.Info("order denied",
			zap.String("order_id", order.Id),
			zap.String("symbol", order.Symbol),
			zap.String("reason", string(decision.Reason)),
			zap.String("notional", decision.Context.Notional.String()))
		return nil
	}
	return p.submit(ctx, order)
}

func (p *pipeline) submit(ctx context.Context, order common.OrderRequest) error {
	brokerOrderId, err := p.broker.Submit(ctx, order)

	submission := common.Submission{
		OrderId:       order.Id,
		BrokerOrderId: brokerOrderId,
		Status:        common.SubmissionSubmitted,
		Attempts:      1,
		ExecutionID:   p.executionID,
		TimeStamp:     order.TimeStamp,
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		submission.Error = err.Error()
		submission.Attempts = broker.Attempts(err)
		if broker.IsRejection(err) {
			submission.Status = common.SubmissionRejected
			submission.Reason = common.ReasonBrokerRejected
		} else {
			submission.Status = common.SubmissionFailed
			submission.Reason = common.ReasonBrokerUnavailable
		}
		p.logger.Warn("order not submitted",
			zap.String("order_id", order.Id),
			zap.String("status", string(submission.Status)),
			zap.Int("attempts", submission.Attempts),
			zap.Error(err))
	}

	if err := p.sink.RecordSubmission(ctx, submission); err != nil {
		return fmt.Errorf("%w: %w", ErrAudit, err)
	}
	if submission.Status == common.SubmissionSubmitted {
		p.working[order.Id] = &workingOrder{
			symbol:        order.Symbol,
			brokerOrderId: brokerOrderId,
			side:          order.Side,
			remaining:     order.Quantity,
		}
	}
	return nil
}

// pendingQuantity sums the signed unfilled quantity of working orders per symbol.
func (p *pipeline) pendingQuantity() map[string]fixed.Point {
	pending := make(map[string]fixed.Point)
	for _, w := range p.working {
		pending[w.symbol] = pending[w.symbol].Add(w.remaining.Mul(w.side.Sign()))
	}
	return pending
}

// settle takes quantity off a working order and forgets the order once nothing is left.
func (p *pipeline) settle(orderId, brokerOrderId string, quantity fixed.Point) {
	w, ok := p.working[orderId]
	if !ok && brokerOrderId != "" {
		for id, candidate := range p.working {
			if candidate.brokerOrderId == brokerOrderId {
				orderId, w, ok = id, candidate, true
				break
			}
		}
	}
	if !ok {
		return
	}
	w.remaining = w.remaining.Sub(quantity)
	if !w.remaining.IsPos() {
		delete(p.working, orderId)
	}
}

func (p *pipeline) postFills(ctx context.Context, t time.Time) error {
	fills, err := p.broker.PollFills(ctx)
	if err != nil {
		if p.lenientFills && ctx.Err() == nil {
			p.logger.Warn("poll fills failed", zap.Error(err))
			return nil
		}
		return fmt.Errorf("poll fills: %w", err)
	}
	for _, fill := range fills {
		if err := p.bus.Post(bus.FillEvent, t, fill); err != nil {
			return err
		}
	}
	if len(p.working) == 0 {
		return nil
	}

	closures, err := p.broker.PollClosures(ctx)
	if err != nil {
		if p.lenientFills && ctx.Err() == nil {
			p.logger.Warn("poll closures failed", zap.Error(err))
			return nil
		}
		return fmt.Errorf("poll closures: %w", err)
	}
	for _, closure := range closures {
		if err := p.onClosure(ctx, t, closure); err != nil {
			return err
		}
	}
	return nil
}

// onClosure releases the unfilled remainder of an order the broker cancelled or expired.
func (p *pipeline) onClosure(ctx context.Context, t time.Time, closure common.Closure) error {
	submission := common.Submission{
		OrderId:       closure.OrderId,
		BrokerOrderId: closure.BrokerOrderId,
		Status:        common.SubmissionClosed,
		Reason:        common.ReasonBrokerClosed,
		Error:         closure.Reason,
		ExecutionID:   p.executionID,
		TimeStamp:     t,
	}
	if err := p.sink.RecordSubmission(ctx, submission); err != nil {
		return fmt.Errorf("%w: %w", ErrAudit, err)
	}
	p.settle(closure.OrderId, closure.BrokerOrderId, closure.Remaining)

	p.logger.Info("order closed unfilled",
		zap.String("order_id", closure.OrderId),
		zap.String("symbol", closure.Symbol),
		zap.String("remaining", closure.Remaining.String()),
		zap.String("reason", closure.Reason))
	return nil
}

func (p *pipeline) onFill(ctx context.Context, fill common.Fill) error {
	if err := p.ledger.Check(fill); err != nil {
		return err
	}
	if err := p.sink.RecordFill(ctx, fill); err != nil {
		return fmt.Errorf("%w: %w", ErrAudit, err)
	}
	if err := p.ledger.Apply(fill); err != nil {
		return err
	}
	p.settle(fill.OrderId, fill.BrokerOrderId, fill.Quantity)

	p.fills = append(p.fills, fill)
	p.traded = p.traded.Add(fill.Notional())
	p.costs = p.costs.Add(fill.Commission).Add(fill.Slippage)
	return nil
}

// closeInstant values the book at the closing prices of the instant.
func (p *pipeline) closeInstant(t time.Time) {
	for symbol, price := range p.state.Prices() {
		p.ledger.Mark(symbol, price, t)
	}
	if p.onInstant != nil {
		p.onInstant(t)
	}
	p.traded = fixed.Zero
	p.costs = fixed.Zero
}
