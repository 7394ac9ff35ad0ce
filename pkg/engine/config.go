package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/risk"
	"github.com/peter-kozarec/quantex/pkg/routing"
	"github.com/peter-kozarec/quantex/pkg/simulation"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var ErrInvalidConfig = errors.New("invalid engine configuration")

type Config struct {
	InitialCash    fixed.Point      `yaml:"initial_cash" json:"initial_cash"`
	PeriodsPerYear int              `yaml:"periods_per_year" json:"periods_per_year"`
	Routing        routing.Config   `yaml:"routing" json:"routing"`
	Limits         risk.Limits      `yaml:"limits" json:"limits"`
	GapPolicy      market.GapPolicy `yaml:"gap_policy" json:"gap_policy"`
	// GapInterval is the longest expected distance between two bars of a symbol, 0 disables
	// gap detection.
	GapInterval time.Duration `yaml:"gap_interval" json:"gap_interval"`
	// Location defines the trading day used by the daily loss limit.
	Location *time.Location `yaml:"-" json:"-"`
}

func DefaultConfig() Config {
	return Config{
		InitialCash:    fixed.FromInt(100_000, 0),
		PeriodsPerYear: simulation.DefaultPeriodsPerYear,
		Routing:        routing.DefaultConfig(),
		Limits:         risk.DefaultLimits(),
		GapPolicy:      market.GapPolicyFail,
		Location:       time.UTC,
	}
}

func (c Config) Validate() error {
	var errs []error
	if !c.InitialCash.IsPos() {
		errs = append(errs, fmt.Errorf("%w: initial cash %s must be positive", ErrInvalidConfig, c.InitialCash))
	}
	if c.PeriodsPerYear <= 0 {
		errs = append(errs, fmt.Errorf("%w: periods per year %d must be positive", ErrInvalidConfig, c.PeriodsPerYear))
	}
	if c.GapInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: gap interval %s must not be negative", ErrInvalidConfig, c.GapInterval))
	}
	if c.GapInterval > 0 {
		if err := c.GapPolicy.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
	}
	if err := c.Routing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Limits.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
