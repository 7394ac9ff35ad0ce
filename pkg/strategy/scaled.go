package strategy

import (
	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Scaled multiplies every exposure of the wrapped strategy by Factor.
type Scaled struct {
	Strategy Strategy
	Factor   fixed.Point
}

func (s Scaled) Name() string { return s.Strategy.Name() }

func (s Scaled) GenerateSignal(window market.Window) (map[string]fixed.Point, error) {
	exposures, err := s.Strategy.GenerateSignal(window)
	if err != nil {
		return nil, err
	}
	scaled := make(map[string]fixed.Point, len(exposures))
	for symbol, exposure := range exposures {
		scaled[symbol] = exposure.Mul(s.Factor)
	}
	return scaled, nil
}
