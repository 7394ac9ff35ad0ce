// Package config loads the run configuration shared by the commands.
package config

import (
	"fmt"
	"time"

	"github.com/peter-kozarec/quantex/internal/logging"
	"github.com/peter-kozarec/quantex/pkg/broker/sandbox"
	"github.com/peter-kozarec/quantex/pkg/cost"
	"github.com/peter-kozarec/quantex/pkg/market"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// ConfigurationError describes one invalid field. Validate reports every problem at once.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

const (
	ModeEvent      = "event"
	ModeVectorized = "vectorized"
)

type Config struct {
	Mode           string      `yaml:"mode"`
	InitialCash    fixed.Point `yaml:"initial_cash"`
	PeriodsPerYear int         `yaml:"periods_per_year"`

	// Location names the time zone of the trading day, e.g. America/New_York.
	Location string `yaml:"location"`

	Execution  ExecutionConfig  `yaml:"execution"`
	Limits     LimitsConfig     `yaml:"limits"`
	KillSwitch KillSwitchConfig `yaml:"kill_switch"`
	Strategy   StrategyConfig   `yaml:"strategy"`

	// Sweep lists extra strategies run side by side with Strategy by cmd/backtest.
	Sweep []StrategyConfig `yaml:"sweep"`

	Data    DataConfig     `yaml:"data"`
	Audit   AuditConfig    `yaml:"audit"`
	Logging logging.Config `yaml:"logging"`
	Live    LiveConfig     `yaml:"live"`
}

type ExecutionConfig struct {
	Delay               int                `yaml:"delay"`
	CapitalBase         fixed.Point        `yaml:"capital_base"`
	MinQuantity         fixed.Point        `yaml:"min_quantity"`
	CostBps             fixed.Point        `yaml:"cost_bps"`
	SlippageBps         fixed.Point        `yaml:"slippage_bps"`
	ChargeMode          cost.ChargeMode    `yaml:"charge_mode"`
	FillTiming          sandbox.FillTiming `yaml:"fill_timing"`
	VolumeParticipation fixed.Point        `yaml:"volume_participation"`
}

type LimitsConfig struct {
	MaxPositionNotional fixed.Point `yaml:"max_position_notional"`
	MaxGrossNotional    fixed.Point `yaml:"max_gross_notional"`
	MaxDailyLoss        fixed.Point `yaml:"max_daily_loss"`
}

const (
	KillSwitchStatic = "static"
	KillSwitchEnv    = "env"
	KillSwitchHTTP   = "http"
)

type KillSwitchConfig struct {
	Source string `yaml:"source"`

	// Engaged is the value of a static switch and the initial value of an http switch.
	Engaged bool `yaml:"engaged"`
	// Env names the variable read by an env switch.
	Env string `yaml:"env"`
}

type StrategyConfig struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params"`
}

const (
	SourceCSV        = "csv"
	SourceHistorical = "historical"
	SourceDuckDB     = "duckdb"
	SourceParquet    = "parquet"
	SourceSynthetic  = "synthetic"
	SourceAlpaca     = "alpaca"
)

type DataConfig struct {
	Source  string    `yaml:"source"`
	Path    string    `yaml:"path"`
	Table   string    `yaml:"table"`
	Symbols []string  `yaml:"symbols"`
	From    time.Time `yaml:"from"`
	To      time.Time `yaml:"to"`

	// Period is the bar length, used by historical files and the alpaca poller.
	Period      time.Duration    `yaml:"period"`
	GapPolicy   market.GapPolicy `yaml:"gap_policy"`
	GapInterval time.Duration    `yaml:"gap_interval"`
	Synthetic   SyntheticConfig  `yaml:"synthetic"`
}

type SyntheticConfig struct {
	Seed       int64         `yaml:"seed"`
	StartPrice fixed.Point   `yaml:"start_price"`
	Mu         float64       `yaml:"mu"`
	Sigma      float64       `yaml:"sigma"`
	Steps      int           `yaml:"steps"`
	Interval   time.Duration `yaml:"interval"`
}

const (
	SinkMemory   = "memory"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
	SinkLog      = "log"
)

type AuditConfig struct {
	Sink string `yaml:"sink"`
	Path string `yaml:"path"`
	DSN  string `yaml:"dsn"`

	// Log mirrors every record to the application log.
	Log bool `yaml:"log"`
}

const (
	GatewayAlpaca = "alpaca"
	GatewayBridge = "bridge"
)

type LiveConfig struct {
	Gateway      string        `yaml:"gateway"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// FillOverlap re-reads this much fill history before the newest fill seen, so late reports
	// are not missed.
	FillOverlap time.Duration `yaml:"fill_overlap"`

	// BarInterval is how often the bar feed is polled.
	BarInterval time.Duration `yaml:"bar_interval"`
	BridgeURL   string        `yaml:"bridge_url"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
	FillStore   string        `yaml:"fill_store"`
	ControlAddr string        `yaml:"control_addr"`
	Alpaca      AlpacaConfig  `yaml:"alpaca"`
}

type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

func Default() Config {
	return Config{
		Mode:           ModeEvent,
		InitialCash:    fixed.FromInt(100_000, 0),
		PeriodsPerYear: 252,
		Location:       "UTC",
		Execution: ExecutionConfig{
			Delay:               1,
			CapitalBase:         fixed.Zero,
			MinQuantity:         fixed.One,
			CostBps:             fixed.Zero,
			SlippageBps:         fixed.Zero,
			ChargeMode:          cost.ChargePerTrade,
			FillTiming:          sandbox.NextTick,
			VolumeParticipation: fixed.Zero,
		},
		Limits: LimitsConfig{
			MaxPositionNotional: fixed.FromInt(50_000, 0),
			MaxGrossNotional:    fixed.FromInt(250_000, 0),
			MaxDailyLoss:        fixed.FromInt(2_500, 0),
		},
		KillSwitch: KillSwitchConfig{Source: KillSwitchEnv},
		Strategy:   StrategyConfig{Name: "constant"},
		Data: DataConfig{
			Source: SourceCSV,
			Period: 24 * time.Hour,
			Synthetic: SyntheticConfig{
				StartPrice: fixed.FromInt(100, 0),
				Sigma:      0.01,
				Steps:      252,
				Interval:   24 * time.Hour,
			},
		},
		Audit: AuditConfig{Sink: SinkMemory},
		Live: LiveConfig{
			Gateway:      GatewayAlpaca,
			Timeout:      5 * time.Second,
			MaxRetries:   3,
			BaseDelay:    250 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			PollInterval: 5 * time.Second,
			FillOverlap:  5 * time.Minute,
			BarInterval:  time.Minute,
			Heartbeat:    15 * time.Second,
			FillStore:    "data/fills",
			ControlAddr:  "127.0.0.1:8081",
		},
	}
}
