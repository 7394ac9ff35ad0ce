package ledger

import (
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Position is the ledger state for one symbol. Quantity is signed, negative when short.
type Position struct {
	Symbol      string      `json:"symbol"`
	Quantity    fixed.Point `json:"quantity"`
	AverageCost fixed.Point `json:"average_cost"`
	RealizedPnL fixed.Point `json:"realized_pnl"`
	Commissions fixed.Point `json:"commissions"`
	MarkPrice   fixed.Point `json:"mark_price"`
	FillCount   int         `json:"fill_count"`
}

func (p Position) IsFlat() bool {
	return p.Quantity.IsZero()
}

// ValuationPrice is the mark, or the average cost before the first mark.
func (p Position) ValuationPrice() fixed.Point {
	if p.MarkPrice.IsZero() {
		return p.AverageCost
	}
	return p.MarkPrice
}

// MarketValue is the signed value of the position at its mark.
func (p Position) MarketValue() fixed.Point {
	return p.Quantity.Mul(p.ValuationPrice())
}

// Notional is the absolute value of the position at its mark.
func (p Position) Notional() fixed.Point {
	return p.MarketValue().Abs()
}

func (p Position) UnrealizedPnL() fixed.Point {
	return p.Quantity.Mul(p.ValuationPrice().Sub(p.AverageCost))
}

// apply moves the position by a signed quantity at price and returns the realized profit.
func (p *Position) apply(signedQty, price fixed.Point) fixed.Point {
	q0 := p.Quantity
	q1 := q0.Add(signedQty)
	realized := fixed.Zero

	switch {
	case q0.IsZero() || q0.Sign() == signedQty.Sign():
		cost := q0.Abs().Mul(p.AverageCost).Add(signedQty.Abs().Mul(price))
		p.AverageCost = cost.Div(q1.Abs())
	default:
		closed := signedQty.Abs().Min(q0.Abs())
		realized = closed.Mul(price.Sub(p.AverageCost))
		if q0.IsNeg() {
			realized = realized.Neg()
		}
		switch {
		case q1.IsZero():
			p.AverageCost = fixed.Zero
		case q1.Sign() != q0.Sign():
			p.AverageCost = price
		}
	}

	p.Quantity = q1
	p.RealizedPnL = p.RealizedPnL.Add(realized)
	p.MarkPrice = price
	p.FillCount++
	return realized
}
