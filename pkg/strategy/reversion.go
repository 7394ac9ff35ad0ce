package strategy

import (
	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// MeanReversion fades the z-score of the close against its moving average: rich prices are sold
// and cheap ones bought.
type MeanReversion struct {
	Lookback   int
	MinPeriods int
}

func NewMeanReversion(lookback int) MeanReversion {
	if lookback <= 1 {
		lookback = 63
	}
	return MeanReversion{Lookback: lookback, MinPeriods: max(lookback/2, 2)}
}

func (MeanReversion) Name() string { return "mean_reversion" }

func (m MeanReversion) GenerateSignal(window market.Window) (map[string]fixed.Point, error) {
	return perSymbol(window, func(closes []fixed.Point) (fixed.Point, bool) {
		if len(closes) < m.MinPeriods {
			return fixed.Zero, false
		}

		buffer := fixed.NewRingBuffer(m.Lookback)
		for _, c := range closes {
			buffer.Add(c)
		}

		stdDev := buffer.SampleStdDev()
		if stdDev.IsZero() {
			return fixed.Zero, false
		}
		z := closes[len(closes)-1].Sub(buffer.Mean()).Div(stdDev)
		return z.Neg(), true
	}), nil
}
