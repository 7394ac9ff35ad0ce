// Package cost holds the transaction cost and slippage models shared by the simulated broker
// and the vectorized backtest.
package cost

import (
	"errors"
	"fmt"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var ErrNegativeRate = errors.New("rate must not be negative")

// ChargeMode selects when the vectorized path deducts transaction cost from returns.
type ChargeMode string

const (
	ChargePerTrade ChargeMode = "per_trade"
	ChargeDaily    ChargeMode = "daily"
)

func (m ChargeMode) Validate() error {
	switch m {
	case ChargePerTrade, ChargeDaily:
		return nil
	default:
		return fmt.Errorf("unknown charge mode %q", m)
	}
}

// CostModel charges a basis point rate on turnover.
type CostModel struct {
	RateBps fixed.Point
}

func NewCostModel(rateBps fixed.Point) (CostModel, error) {
	if rateBps.IsNeg() {
		return CostModel{}, fmt.Errorf("cost rate %s bps: %w", rateBps, ErrNegativeRate)
	}
	return CostModel{RateBps: rateBps}, nil
}

func (m CostModel) Rate() fixed.Point {
	return fixed.FromBps(m.RateBps)
}

// Commission returns the cost of trading the given notional.
func (m CostModel) Commission(notional fixed.Point) fixed.Point {
	return notional.Abs().Mul(m.Rate())
}

// ReturnDrag returns the cost in return units for a turnover expressed as a fraction of equity.
func (m CostModel) ReturnDrag(turnover fixed.Point) fixed.Point {
	return turnover.Abs().Mul(m.Rate())
}

// SlippageModel moves execution prices against the trader by a basis point rate.
type SlippageModel struct {
	RateBps fixed.Point
}

func NewSlippageModel(rateBps fixed.Point) (SlippageModel, error) {
	if rateBps.IsNeg() {
		return SlippageModel{}, fmt.Errorf("slippage rate %s bps: %w", rateBps, ErrNegativeRate)
	}
	return SlippageModel{RateBps: rateBps}, nil
}

func (m SlippageModel) Rate() fixed.Point {
	return fixed.FromBps(m.RateBps)
}

// Slippage returns the price impact incurred on the given notional.
func (m SlippageModel) Slippage(notional fixed.Point) fixed.Point {
	return notional.Abs().Mul(m.Rate())
}

// ReturnDrag returns the slippage in return units for a turnover expressed as a fraction of equity.
func (m SlippageModel) ReturnDrag(turnover fixed.Point) fixed.Point {
	return turnover.Abs().Mul(m.Rate())
}

// AdjustPrice worsens price for the trader: buys pay more, sells receive less.
func (m SlippageModel) AdjustPrice(price fixed.Point, side common.OrderSide) fixed.Point {
	impact := price.Mul(m.Rate())
	if side == common.OrderSideSell {
		return price.Sub(impact)
	}
	return price.Add(impact)
}
