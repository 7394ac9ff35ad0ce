package strategy

import (
	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Constant holds the same exposure in every symbol it sees.
type Constant struct {
	Exposure fixed.Point
}

func (Constant) Name() string { return "constant" }

func (c Constant) GenerateSignal(window market.Window) (map[string]fixed.Point, error) {
	exposures := make(map[string]fixed.Point)
	for _, symbol := range window.Symbols() {
		exposures[symbol] = c.Exposure
	}
	return exposures, nil
}
