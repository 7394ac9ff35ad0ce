package config

import (
	"time"

	"github.com/peter-kozarec/quantex/pkg/broker/live"
	"github.com/peter-kozarec/quantex/pkg/broker/sandbox"
	"github.com/peter-kozarec/quantex/pkg/cost"
	"github.com/peter-kozarec/quantex/pkg/engine"
	"github.com/peter-kozarec/quantex/pkg/risk"
	"github.com/peter-kozarec/quantex/pkg/routing"
	"github.com/peter-kozarec/quantex/pkg/simulation"
	"github.com/peter-kozarec/quantex/pkg/strategy"
)

func (c Config) Engine() (engine.Config, error) {
	location, err := time.LoadLocation(c.Location)
	if err != nil {
		return engine.Config{}, &ConfigurationError{Field: "location", Reason: err.Error()}
	}

	return engine.Config{
		InitialCash:    c.InitialCash,
		PeriodsPerYear: c.PeriodsPerYear,
		Routing: routing.Config{
			Delay:       c.Execution.Delay,
			CapitalBase: c.Execution.CapitalBase,
			MinQuantity: c.Execution.MinQuantity,
		},
		Limits:      c.RiskLimits(),
		GapPolicy:   c.Data.GapPolicy,
		GapInterval: c.Data.GapInterval,
		Location:    location,
	}, nil
}

func (c Config) RiskLimits() risk.Limits {
	return risk.Limits{
		MaxPositionNotional: c.Limits.MaxPositionNotional,
		MaxGrossNotional:    c.Limits.MaxGrossNotional,
		MaxDailyLoss:        c.Limits.MaxDailyLoss,
	}
}

func (c Config) CostModel() cost.CostModel {
	return cost.CostModel{RateBps: c.Execution.CostBps}
}

func (c Config) SlippageModel() cost.SlippageModel {
	return cost.SlippageModel{RateBps: c.Execution.SlippageBps}
}

func (c Config) SandboxOptions() []sandbox.Option {
	return []sandbox.Option{
		sandbox.WithCostModel(c.CostModel()),
		sandbox.WithSlippageModel(c.SlippageModel()),
		sandbox.WithFillTiming(c.Execution.FillTiming),
		sandbox.WithVolumeParticipation(c.Execution.VolumeParticipation),
	}
}

func (c Config) Vectorized() simulation.Configuration {
	cfg := simulation.DefaultConfiguration()
	cfg.Delay = c.Execution.Delay
	cfg.PeriodsPerYear = c.PeriodsPerYear
	cfg.Cost = c.CostModel()
	cfg.Slippage = c.SlippageModel()
	cfg.ChargeMode = c.Execution.ChargeMode
	return cfg
}

// KillSwitch builds the configured switch. An http source returns a *risk.Switch for the
// control server to flip.
func (c Config) KillSwitch() risk.KillSwitch {
	switch c.KillSwitch.Source {
	case KillSwitchStatic:
		return risk.Static(c.KillSwitch.Engaged)
	case KillSwitchHTTP:
		return risk.NewSwitch(c.KillSwitch.Engaged)
	default:
		return risk.NewEnvKillSwitch(c.KillSwitch.Env)
	}
}

func (c Config) Adapter() live.Config {
	return live.Config{
		Timeout:     c.Live.Timeout,
		BaseDelay:   c.Live.BaseDelay,
		MaxDelay:    c.Live.MaxDelay,
		MaxRetries:  c.Live.MaxRetries,
		FillOverlap: c.Live.FillOverlap,
	}
}

func (s StrategyConfig) Build() (strategy.Definition, error) {
	return strategy.New(s.Name, strategy.Params(s.Params))
}

// Strategies returns the main strategy followed by the sweep entries.
func (c Config) Strategies() []StrategyConfig {
	return append([]StrategyConfig{c.Strategy}, c.Sweep...)
}
