// Package risk gates order requests. Evaluation has no side effects and a denial is a value,
// never an error.
package risk

import (
	"fmt"
	"sort"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/ledger"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Book is the exposure an order is checked against: filled positions plus the signed quantity of
// accepted orders still working at the broker.
type Book struct {
	Snapshot ledger.Snapshot
	Working  map[string]fixed.Point
	// Prices values symbols by their latest close. Symbols missing here fall back to the
	// position mark.
	Prices map[string]fixed.Point
}

// Quantity is the position a symbol ends at once its working orders fill.
func (b Book) Quantity(symbol string) fixed.Point {
	return b.Snapshot.Quantity(symbol).Add(b.Working[symbol])
}

func (b Book) price(symbol string) fixed.Point {
	if price, ok := b.Prices[symbol]; ok && price.IsPos() {
		return price
	}
	return b.Snapshot.Position(symbol).ValuationPrice()
}

// symbols returns every held or working symbol in lexical order.
func (b Book) symbols() []string {
	symbols := b.Snapshot.Symbols()
	for symbol, qty := range b.Working {
		if _, held := b.Snapshot.Positions[symbol]; !held && !qty.IsZero() {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}

type Engine struct {
	limits     Limits
	killSwitch KillSwitch
}

func NewEngine(limits Limits, killSwitch KillSwitch) (*Engine, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if killSwitch == nil {
		return nil, fmt.Errorf("%w: kill switch source is required", ErrInvalidLimits)
	}
	return &Engine{limits: limits, killSwitch: killSwitch}, nil
}

func (e *Engine) Limits() Limits {
	return e.limits
}

// Evaluate checks an order against the book, first violation wins. The order reference price
// values the traded symbol; other symbols are valued at the book prices.
func (e *Engine) Evaluate(order common.OrderRequest, book Book, day DayState) common.RiskDecision {
	ctx := decisionContext(order, book, day)
	decision := common.RiskDecision{
		OrderId:     order.Id,
		Allowed:     true,
		Context:     ctx,
		ExecutionID: order.ExecutionID,
		TimeStamp:   order.TimeStamp,
	}

	switch {
	case e.killSwitch.Engaged():
		decision.Reason = common.ReasonKillSwitch
	case day.Latched || ctx.DailyPnL.Lte(e.limits.DailyLossThreshold()):
		decision.Reason = common.ReasonMaxDailyLoss
	case ctx.GrossAfter.Gt(e.limits.MaxGrossNotional):
		decision.Reason = common.ReasonMaxGrossNotional
	case ctx.SymbolNotionalAfter.Gt(e.limits.MaxPositionNotional):
		decision.Reason = common.ReasonMaxPositionNotional
	}

	decision.Allowed = decision.Reason == common.ReasonNone
	return decision
}

func decisionContext(order common.OrderRequest, book Book, day DayState) common.DecisionContext {
	qtyAfter := book.Quantity(order.Symbol).Add(order.SignedQuantity())
	symbolAfter := qtyAfter.Mul(order.ReferencePrice).Abs()

	gross := symbolAfter
	for _, symbol := range book.symbols() {
		if symbol != order.Symbol {
			gross = gross.Add(book.Quantity(symbol).Mul(book.price(symbol)).Abs())
		}
	}

	return common.DecisionContext{
		Notional:            order.Notional(),
		SymbolNotionalAfter: symbolAfter,
		GrossAfter:          gross,
		DailyPnL:            day.PnL,
	}
}
