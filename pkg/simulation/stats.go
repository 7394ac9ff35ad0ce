package simulation

import (
	"math"

	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const DefaultPeriodsPerYear = 252

// Stats summarize a return series. Every value is finite; undefined results are reported as 0.
type Stats struct {
	TotalReturn    float64 `json:"total_return"`
	Sharpe         float64 `json:"sharpe"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	AvgDailyReturn float64 `json:"avg_daily_return"`
	VolDaily       float64 `json:"vol_daily"`
}

func (s Stats) Map() map[string]float64 {
	return map[string]float64{
		"total_return":     s.TotalReturn,
		"sharpe":           s.Sharpe,
		"max_drawdown":     s.MaxDrawdown,
		"avg_daily_return": s.AvgDailyReturn,
		"vol_daily":        s.VolDaily,
	}
}

// ComputeStats derives summary statistics from per period net returns. The equity curve is
// the cumulative product of 1 + return starting from 1.
func ComputeStats(returns []float64, periodsPerYear int) Stats {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}
	equity := EquityCurve(returns)

	stats := Stats{}
	if len(equity) > 0 {
		stats.TotalReturn = equity[len(equity)-1] - 1
	}
	stats.AvgDailyReturn = mean(returns)
	stats.VolDaily = sampleStd(returns, stats.AvgDailyReturn)
	if len(returns) >= 2 && stats.VolDaily > 0 {
		stats.Sharpe = stats.AvgDailyReturn / stats.VolDaily * math.Sqrt(float64(periodsPerYear))
	}
	stats.MaxDrawdown = MaxDrawdown(equity)

	stats.TotalReturn = finite(stats.TotalReturn)
	stats.Sharpe = finite(stats.Sharpe)
	stats.MaxDrawdown = finite(stats.MaxDrawdown)
	stats.AvgDailyReturn = finite(stats.AvgDailyReturn)
	stats.VolDaily = finite(stats.VolDaily)
	return stats
}

func EquityCurve(returns []float64) []float64 {
	equity := make([]float64, len(returns))
	level := 1.0
	for i, r := range returns {
		level *= 1 + r
		equity[i] = level
	}
	return equity
}

// MaxDrawdown returns the minimum of equity / running maximum - 1, a value <= 0.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, value := range equity {
		peak = math.Max(peak, value)
		if peak > 0 {
			worst = math.Min(worst, value/peak-1)
		}
	}
	return worst
}

// ReturnsFromEquity converts an account equity curve into per period returns. The first return
// is measured against initial.
func ReturnsFromEquity(initial fixed.Point, equity []fixed.Point) []float64 {
	returns := make([]float64, len(equity))
	previous := initial
	for i, value := range equity {
		if previous.IsPos() {
			r, _ := value.Div(previous).Sub(fixed.One).Float64()
			returns[i] = r
		}
		previous = value
	}
	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStd(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
