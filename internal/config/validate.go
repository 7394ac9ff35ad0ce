package config

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"go.uber.org/multierr"

	"github.com/peter-kozarec/quantex/pkg/strategy"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9./-]{0,15}$`)

type validator struct {
	errs error
}

func (v *validator) fail(field, format string, args ...any) {
	v.errs = multierr.Append(v.errs, &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (v *validator) positive(field string, value fixed.Point) {
	if !value.IsPos() {
		v.fail(field, "must be positive, got %s", value)
	}
}

func (v *validator) notNegative(field string, value fixed.Point) {
	if value.IsNeg() {
		v.fail(field, "must not be negative, got %s", value)
	}
}

func (v *validator) oneOf(field, value string, allowed ...string) {
	if !slices.Contains(allowed, value) {
		v.fail(field, "unknown value %q, expected one of %v", value, allowed)
	}
}

// Validate checks the configuration used by backtests. The returned error lists every problem;
// multierr.Errors splits it into *ConfigurationError values.
func (c Config) Validate() error {
	v := &validator{}

	v.oneOf("mode", c.Mode, ModeEvent, ModeVectorized)
	v.positive("initial_cash", c.InitialCash)
	if c.PeriodsPerYear <= 0 {
		v.fail("periods_per_year", "must be positive, got %d", c.PeriodsPerYear)
	}
	if _, err := time.LoadLocation(c.Location); err != nil {
		v.fail("location", "%v", err)
	}

	c.Execution.validate(v)
	c.Limits.validate(v)
	v.oneOf("kill_switch.source", c.KillSwitch.Source, KillSwitchStatic, KillSwitchEnv, KillSwitchHTTP)

	c.Strategy.validate(v, "strategy")
	for i, s := range c.Sweep {
		s.validate(v, fmt.Sprintf("sweep[%d]", i))
	}

	c.Data.validate(v)
	if c.Mode == ModeVectorized && len(c.Data.Symbols) > 1 {
		v.fail("data.symbols", "vectorized mode runs one symbol, got %d", len(c.Data.Symbols))
	}
	c.Audit.validate(v)
	return v.errs
}

// ValidateLive additionally checks the settings a live run needs.
func (c Config) ValidateLive() error {
	v := &validator{errs: c.Validate()}
	l := c.Live

	v.oneOf("live.gateway", l.Gateway, GatewayAlpaca, GatewayBridge)
	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"live.timeout", l.Timeout},
		{"live.base_delay", l.BaseDelay},
		{"live.max_delay", l.MaxDelay},
		{"live.poll_interval", l.PollInterval},
		{"live.bar_interval", l.BarInterval},
	} {
		if d.value <= 0 {
			v.fail(d.field, "must be positive, got %s", d.value)
		}
	}
	if l.MaxRetries < 0 {
		v.fail("live.max_retries", "must not be negative, got %d", l.MaxRetries)
	}
	if l.FillOverlap < 0 {
		v.fail("live.fill_overlap", "must not be negative, got %s", l.FillOverlap)
	}
	if l.Gateway == GatewayBridge && l.BridgeURL == "" {
		v.fail("live.bridge_url", "required by the bridge gateway")
	}
	if l.Gateway == GatewayAlpaca || c.Data.Source == SourceAlpaca {
		if l.Alpaca.APIKey == "" || l.Alpaca.APISecret == "" {
			v.fail("live.alpaca", "api key and secret are required (APCA_API_KEY_ID, APCA_API_SECRET_KEY)")
		}
	}
	if c.Data.Source != SourceAlpaca {
		v.fail("data.source", "live runs read bars from %q, got %q", SourceAlpaca, c.Data.Source)
	}
	if c.Audit.Sink != SinkSQLite && c.Audit.Sink != SinkPostgres {
		v.fail("audit.sink", "live runs replay fills on restart and need %q or %q, got %q", SinkSQLite, SinkPostgres, c.Audit.Sink)
	}
	return v.errs
}

func (e ExecutionConfig) validate(v *validator) {
	if e.Delay < 0 {
		v.fail("execution.delay", "must not be negative, got %d", e.Delay)
	}
	v.notNegative("execution.capital_base", e.CapitalBase)
	v.notNegative("execution.min_quantity", e.MinQuantity)
	v.notNegative("execution.cost_bps", e.CostBps)
	v.notNegative("execution.slippage_bps", e.SlippageBps)
	if err := e.ChargeMode.Validate(); err != nil {
		v.fail("execution.charge_mode", "%v", err)
	}
	if err := e.FillTiming.Validate(); err != nil {
		v.fail("execution.fill_timing", "%v", err)
	}
	if e.VolumeParticipation.IsNeg() || e.VolumeParticipation.Gt(fixed.One) {
		v.fail("execution.volume_participation", "must be within [0, 1], got %s", e.VolumeParticipation)
	}
}

func (l LimitsConfig) validate(v *validator) {
	v.positive("limits.max_position_notional", l.MaxPositionNotional)
	v.positive("limits.max_gross_notional", l.MaxGrossNotional)
	if l.MaxDailyLoss.IsZero() {
		v.fail("limits.max_daily_loss", "must not be zero")
	}
}

func (s StrategyConfig) validate(v *validator, field string) {
	if !slices.Contains(strategy.Names(), s.Name) {
		v.fail(field+".name", "unknown strategy %q, expected one of %v", s.Name, strategy.Names())
	}
}

func (d DataConfig) validate(v *validator) {
	v.oneOf("data.source", d.Source, SourceCSV, SourceHistorical, SourceDuckDB, SourceParquet, SourceSynthetic, SourceAlpaca)

	switch d.Source {
	case SourceCSV, SourceHistorical, SourceParquet, SourceDuckDB:
		if d.Path == "" {
			v.fail("data.path", "required by the %s source", d.Source)
		}
	}
	switch d.Source {
	case SourceHistorical, SourceSynthetic:
		if len(d.Symbols) != 1 {
			v.fail("data.symbols", "the %s source needs exactly one symbol, got %d", d.Source, len(d.Symbols))
		}
	case SourceDuckDB:
		if d.Table == "" {
			v.fail("data.table", "required by the duckdb source")
		}
	case SourceAlpaca:
		if len(d.Symbols) == 0 {
			v.fail("data.symbols", "the alpaca source needs at least one symbol")
		}
	}

	seen := make(map[string]bool, len(d.Symbols))
	for _, symbol := range d.Symbols {
		if !symbolPattern.MatchString(symbol) {
			v.fail("data.symbols", "unknown symbol %q", symbol)
		}
		if seen[symbol] {
			v.fail("data.symbols", "duplicate symbol %q", symbol)
		}
		seen[symbol] = true
	}

	if !d.From.IsZero() && !d.To.IsZero() && !d.To.After(d.From) {
		v.fail("data.to", "must be after data.from")
	}
	if d.Period <= 0 && (d.Source == SourceHistorical || d.Source == SourceAlpaca) {
		v.fail("data.period", "must be positive for the %s source", d.Source)
	}
	if d.GapInterval < 0 {
		v.fail("data.gap_interval", "must not be negative, got %s", d.GapInterval)
	}
	if d.GapInterval > 0 {
		if err := d.GapPolicy.Validate(); err != nil {
			v.fail("data.gap_policy", "%v", err)
		}
	}
	if d.Source == SourceSynthetic {
		v.positive("data.synthetic.start_price", d.Synthetic.StartPrice)
		if d.Synthetic.Steps <= 0 {
			v.fail("data.synthetic.steps", "must be positive, got %d", d.Synthetic.Steps)
		}
		if d.Synthetic.Sigma < 0 {
			v.fail("data.synthetic.sigma", "must not be negative, got %g", d.Synthetic.Sigma)
		}
	}
}

func (a AuditConfig) validate(v *validator) {
	v.oneOf("audit.sink", a.Sink, SinkMemory, SinkSQLite, SinkPostgres, SinkLog)
	if a.Sink == SinkSQLite && a.Path == "" {
		v.fail("audit.path", "required by the sqlite sink")
	}
	if a.Sink == SinkPostgres && a.DSN == "" {
		v.fail("audit.dsn", "required by the postgres sink")
	}
}
