// Package strategy defines the signal capability and the built-in strategy variants.
package strategy

import (
	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Strategy maps market state to a target exposure per symbol. Symbols missing from the result
// keep their current exposure. Implementations must not hold on to the window.
type Strategy interface {
	Name() string
	GenerateSignal(window market.Window) (map[string]fixed.Point, error)
}

// Func adapts a plain function to Strategy.
type Func struct {
	Label string
	Fn    func(window market.Window) (map[string]fixed.Point, error)
}

func (f Func) Name() string { return f.Label }

func (f Func) GenerateSignal(window market.Window) (map[string]fixed.Point, error) {
	return f.Fn(window)
}

// ToPosition maps a raw score to -1, 0 or 1.
func ToPosition(score fixed.Point) fixed.Point {
	switch score.Sign() {
	case 1:
		return fixed.One
	case -1:
		return fixed.NegOne
	default:
		return fixed.Zero
	}
}

// perSymbol evaluates score for every symbol of the window and keeps the ones that produced one.
func perSymbol(window market.Window, score func(closes []fixed.Point) (fixed.Point, bool)) map[string]fixed.Point {
	exposures := make(map[string]fixed.Point)
	for _, symbol := range window.Symbols() {
		if value, ok := score(window.Closes(symbol)); ok {
			exposures[symbol] = ToPosition(value)
		}
	}
	return exposures
}
