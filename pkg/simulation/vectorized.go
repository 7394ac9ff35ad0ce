package simulation

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/cost"
	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/strategy"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const vectorizedComponentName = "simulation.vectorized"

var (
	ErrInvalidConfig = errors.New("invalid vectorized configuration")
	ErrInvalidSeries = errors.New("invalid bar series")
)

type Configuration struct {
	Delay          int                `yaml:"delay" json:"delay"`
	PeriodsPerYear int                `yaml:"periods_per_year" json:"periods_per_year"`
	Cost           cost.CostModel     `yaml:"-" json:"-"`
	Slippage       cost.SlippageModel `yaml:"-" json:"-"`
	ChargeMode     cost.ChargeMode    `yaml:"charge_mode" json:"charge_mode"`
	PriceColumn    string             `yaml:"price_col" json:"price_col"`
	// WindowDepth bounds the history handed to the strategy, 0 means the whole series so far.
	WindowDepth int `yaml:"window_depth" json:"window_depth"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		Delay:          1,
		PeriodsPerYear: DefaultPeriodsPerYear,
		ChargeMode:     cost.ChargePerTrade,
		PriceColumn:    "close",
	}
}

func (c Configuration) Validate() error {
	var errs []error
	if c.Delay < 0 {
		errs = append(errs, fmt.Errorf("%w: delay %d must not be negative", ErrInvalidConfig, c.Delay))
	}
	if c.PeriodsPerYear <= 0 {
		errs = append(errs, fmt.Errorf("%w: periods per year %d must be positive", ErrInvalidConfig, c.PeriodsPerYear))
	}
	if err := c.ChargeMode.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if _, err := priceGetter(c.PriceColumn); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if c.Cost.RateBps.IsNeg() || c.Slippage.RateBps.IsNeg() {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, cost.ErrNegativeRate))
	}
	return errors.Join(errs...)
}

// Vectorized screens a strategy on one symbol without going through the event pipeline. It
// shares the cost and slippage functions and the statistics with event driven runs.
type Vectorized struct {
	logger *zap.Logger
	cfg    Configuration
	price  func(common.Bar) fixed.Point
}

func NewVectorized(logger *zap.Logger, cfg Configuration) (*Vectorized, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	price, _ := priceGetter(cfg.PriceColumn)
	return &Vectorized{
		logger: logger.Named(vectorizedComponentName),
		cfg:    cfg,
		price:  price,
	}, nil
}

// Run evaluates strat over growing windows of bars. The strategy output at t becomes the
// position at t+Delay and the position held over (t-1, t] earns the return of period t. A
// period without output for the symbol keeps the previous exposure.
func (v *Vectorized) Run(bars []common.Bar, strat strategy.Strategy) (BacktestResult, error) {
	if err := validateSeries(bars); err != nil {
		return BacktestResult{}, err
	}
	n := len(bars)
	symbol := bars[0].Symbol

	depth := v.cfg.WindowDepth
	if depth <= 0 {
		depth = n
	}
	state := market.NewState(depth)

	raw := make([]float64, n)
	exposure := 0.0
	for t, bar := range bars {
		state.Update(bar)
		signals, err := strat.GenerateSignal(state)
		if err != nil {
			return BacktestResult{}, fmt.Errorf("strategy %s at %s: %w", strat.Name(), bar.TimeStamp, err)
		}
		if value, ok := signals[symbol]; ok {
			exposure, _ = value.Float64()
		}
		raw[t] = exposure
	}

	result := BacktestResult{
		TimeStamps: make([]time.Time, n),
		Equity:     make([]float64, n),
		Returns:    make([]float64, n),
		Positions:  make([]float64, n),
		Turnover:   make([]float64, n),
		Metadata: map[string]string{
			"strategy":  strat.Name(),
			"price_col": v.cfg.PriceColumn,
			"symbol":    symbol,
		},
	}

	pending := 0.0
	for t := range bars {
		result.TimeStamps[t] = bars[t].TimeStamp
		if t >= v.cfg.Delay {
			result.Positions[t] = raw[t-v.cfg.Delay]
		}
		previous := 0.0
		if t > 0 {
			previous = result.Positions[t-1]
		}
		result.Turnover[t] = abs(result.Positions[t] - previous)

		gross := 0.0
		if t > 0 {
			gross = previous * pctChange(v.price(bars[t-1]), v.price(bars[t]))
		}

		drag := v.drag(result.Turnover[t])
		result.Costs += drag
		switch v.cfg.ChargeMode {
		case cost.ChargeDaily:
			pending += drag
			if t == n-1 || !sameDay(bars[t].TimeStamp, bars[t+1].TimeStamp) {
				gross -= pending
				pending = 0
			}
		default:
			gross -= drag
		}
		result.Returns[t] = gross
	}

	result.Equity = EquityCurve(result.Returns)
	result.Stats = ComputeStats(result.Returns, v.cfg.PeriodsPerYear)

	v.logger.Debug("vectorized run finished",
		zap.String("strategy", strat.Name()),
		zap.String("symbol", symbol),
		zap.Int("periods", n),
		zap.Float64("total_return", result.Stats.TotalReturn))
	return result, nil
}

func (v *Vectorized) drag(turnover float64) float64 {
	if turnover == 0 {
		return 0
	}
	t := fixed.FromFloat64(turnover)
	d, _ := v.cfg.Cost.ReturnDrag(t).Add(v.cfg.Slippage.ReturnDrag(t)).Float64()
	return d
}

func validateSeries(bars []common.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: no bars", ErrInvalidSeries)
	}
	for i, bar := range bars {
		if bar.Symbol != bars[0].Symbol {
			return fmt.Errorf("%w: expected a single symbol, got %s and %s", ErrInvalidSeries, bars[0].Symbol, bar.Symbol)
		}
		if i > 0 && !bar.TimeStamp.After(bars[i-1].TimeStamp) {
			return fmt.Errorf("%w: bar %d at %s is not after %s", ErrInvalidSeries, i, bar.TimeStamp, bars[i-1].TimeStamp)
		}
	}
	return nil
}

func priceGetter(column string) (func(common.Bar) fixed.Point, error) {
	switch column {
	case "close", "":
		return func(b common.Bar) fixed.Point { return b.Close }, nil
	case "open":
		return func(b common.Bar) fixed.Point { return b.Open }, nil
	case "high":
		return func(b common.Bar) fixed.Point { return b.High }, nil
	case "low":
		return func(b common.Bar) fixed.Point { return b.Low }, nil
	default:
		return nil, fmt.Errorf("unknown price column %q", column)
	}
}

func pctChange(prev, cur fixed.Point) float64 {
	if !prev.IsPos() {
		return 0
	}
	r, _ := fixed.PctChange(prev, cur).Float64()
	return r
}

func sameDay(a, b time.Time) bool {
	ya, ma, da := a.UTC().Date()
	yb, mb, db := b.UTC().Date()
	return ya == yb && ma == mb && da == db
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
