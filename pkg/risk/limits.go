package risk

import (
	"errors"
	"fmt"

	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var ErrInvalidLimits = errors.New("invalid risk limits")

type Limits struct {
	MaxPositionNotional fixed.Point `yaml:"max_position_notional" json:"max_position_notional"`
	MaxGrossNotional    fixed.Point `yaml:"max_gross_notional" json:"max_gross_notional"`
	// MaxDailyLoss is a loss magnitude. Negative values are accepted and mean the same.
	MaxDailyLoss fixed.Point `yaml:"max_daily_loss" json:"max_daily_loss"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxPositionNotional: fixed.FromInt(50_000, 0),
		MaxGrossNotional:    fixed.FromInt(250_000, 0),
		MaxDailyLoss:        fixed.FromInt(2_500, 0),
	}
}

// DailyLossThreshold returns the P&L at or below which trading stops for the day.
func (l Limits) DailyLossThreshold() fixed.Point {
	return l.MaxDailyLoss.Abs().Neg()
}

func (l Limits) Validate() error {
	var errs []error
	if !l.MaxPositionNotional.IsPos() {
		errs = append(errs, fmt.Errorf("%w: max position notional %s must be positive", ErrInvalidLimits, l.MaxPositionNotional))
	}
	if !l.MaxGrossNotional.IsPos() {
		errs = append(errs, fmt.Errorf("%w: max gross notional %s must be positive", ErrInvalidLimits, l.MaxGrossNotional))
	}
	if l.MaxDailyLoss.IsZero() {
		errs = append(errs, fmt.Errorf("%w: max daily loss must not be zero", ErrInvalidLimits))
	}
	if l.MaxPositionNotional.IsPos() && l.MaxGrossNotional.IsPos() && l.MaxPositionNotional.Gt(l.MaxGrossNotional) {
		errs = append(errs, fmt.Errorf("%w: max position notional %s exceeds max gross notional %s",
			ErrInvalidLimits, l.MaxPositionNotional, l.MaxGrossNotional))
	}
	return errors.Join(errs...)
}
