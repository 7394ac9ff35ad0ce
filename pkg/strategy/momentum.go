package strategy

import (
	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Momentum goes with the return over Lookback bars, ignoring the most recent Skip bars.
type Momentum struct {
	Lookback int
	Skip     int
}

func NewMomentum(lookback, skip int) Momentum {
	if lookback <= 0 {
		lookback = 252
	}
	if skip < 0 || skip >= lookback {
		skip = 0
	}
	return Momentum{Lookback: lookback, Skip: skip}
}

func (Momentum) Name() string { return "momentum" }

func (m Momentum) GenerateSignal(window market.Window) (map[string]fixed.Point, error) {
	return perSymbol(window, func(closes []fixed.Point) (fixed.Point, bool) {
		n := len(closes)
		if n <= m.Lookback {
			return fixed.Zero, false
		}
		return fixed.PctChange(closes[n-1-m.Lookback], closes[n-1-m.Skip]), true
	}), nil
}
