// Package synthetic produces reproducible geometric Brownian motion bars.
package synthetic

import (
	"context"
	"math/rand"
	"time"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/datasource"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const (
	barGeneratorComponentName = "datasource.synthetic.generator"

	tradingDaysPerYear = 252
	normPriceDigits    = 4
)

var pointFive = fixed.FromInt64(5, 1)

// BarGenerator emits daily bars whose closes follow a GBM with annualised drift mu and
// volatility sigma. The same seed produces the same series.
type BarGenerator struct {
	symbol string
	rng    *rand.Rand

	interval  time.Duration
	steps     int
	t         int
	lastTime  time.Time
	lastPrice fixed.Point

	avgVolume      fixed.Point
	volumeVariance float64

	deltaLogPre1 fixed.Point
	deltaLogPre2 fixed.Point
}

func NewBarGenerator(symbol string, seed int64, start time.Time, startPrice fixed.Point, mu, sigma float64, steps int) *BarGenerator {
	deltaT := fixed.One.DivInt(tradingDaysPerYear)
	muFixed := fixed.FromFloat64(mu)
	sigmaFixed := fixed.FromFloat64(sigma)

	return &BarGenerator{
		symbol: symbol,
		rng:    rand.New(rand.NewSource(seed)), // #nosec G404

		interval:  24 * time.Hour,
		steps:     steps,
		lastTime:  start.UTC(),
		lastPrice: startPrice,

		avgVolume:      fixed.FromInt64(1_000_000, 0),
		volumeVariance: 0.3,

		// Pre-calculated values for GBM
		deltaLogPre1: muFixed.Sub(sigmaFixed.Mul(sigmaFixed).Mul(pointFive)).Mul(deltaT),
		deltaLogPre2: sigmaFixed.Mul(deltaT.Sqrt()),
	}
}

func (g *BarGenerator) SetInterval(interval time.Duration) {
	g.interval = interval
}

func (g *BarGenerator) Next(ctx context.Context) (common.Bar, error) {
	if err := ctx.Err(); err != nil {
		return common.Bar{}, err
	}
	if g.t >= g.steps {
		return common.Bar{}, datasource.ErrEof
	}

	open := g.lastPrice
	z := g.rng.NormFloat64()
	deltaLog := g.deltaLogPre1.Add(g.deltaLogPre2.Mul(fixed.FromFloat64(z)))
	closePrice := open.Mul(deltaLog.Exp()).Round(normPriceDigits)

	if g.t > 0 {
		g.lastTime = g.lastTime.Add(g.interval)
	}
	g.lastPrice = closePrice
	g.t++

	high, low := open.Max(closePrice), open.Min(closePrice)
	wick := high.Sub(low).Mul(fixed.FromFloat64(g.rng.Float64() * 0.5)).Round(normPriceDigits)

	return common.Bar{
		Source:    barGeneratorComponentName,
		Symbol:    g.symbol,
		TimeStamp: g.lastTime,
		Period:    g.interval,
		Open:      open,
		High:      high.Add(wick),
		Low:       low.Sub(wick),
		Close:     closePrice,
		Volume:    g.generateVolume(),
	}, nil
}

func (g *BarGenerator) generateVolume() fixed.Point {
	variation := g.rng.NormFloat64() * g.volumeVariance
	volume := g.avgVolume.Mul(fixed.FromFloat64(variation).Exp()).Round(0)

	// Ensure positive volumes
	if volume.Lte(fixed.Zero) {
		volume = fixed.One
	}
	return volume
}
