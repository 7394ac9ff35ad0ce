package strategy

import (
	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Carry uses the rolling mean of recent returns as a proxy for expected carry.
type Carry struct {
	Lookback int
}

func NewCarry(lookback int) Carry {
	if lookback <= 0 {
		lookback = 21
	}
	return Carry{Lookback: lookback}
}

func (Carry) Name() string { return "carry" }

func (c Carry) GenerateSignal(window market.Window) (map[string]fixed.Point, error) {
	return perSymbol(window, func(closes []fixed.Point) (fixed.Point, bool) {
		if len(closes) < 2 {
			return fixed.Zero, false
		}
		start := len(closes) - c.Lookback - 1
		if start < 0 {
			start = 0
		}
		returns := make([]fixed.Point, 0, len(closes)-start-1)
		for i := start + 1; i < len(closes); i++ {
			returns = append(returns, fixed.PctChange(closes[i-1], closes[i]))
		}
		return fixed.Mean(returns), true
	}), nil
}
