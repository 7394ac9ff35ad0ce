package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const EnvPrefix = "QUANTEX_"

// Load reads the YAML file at path over the defaults, applies the environment and validates
// the result. A .env file next to the working directory is loaded first when present; variables
// already set in the process win over it.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(bytes.NewReader(data)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

type envBinding struct {
	name  string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"APCA_API_KEY_ID", func(cfg *Config, v string) error { cfg.Live.Alpaca.APIKey = v; return nil }},
	{"APCA_API_SECRET_KEY", func(cfg *Config, v string) error { cfg.Live.Alpaca.APISecret = v; return nil }},
	{"APCA_API_BASE_URL", func(cfg *Config, v string) error { cfg.Live.Alpaca.BaseURL = v; return nil }},
	{EnvPrefix + "MODE", func(cfg *Config, v string) error { cfg.Mode = v; return nil }},
	{EnvPrefix + "STRATEGY", func(cfg *Config, v string) error { cfg.Strategy.Name = v; return nil }},
	{EnvPrefix + "DATA_SOURCE", func(cfg *Config, v string) error { cfg.Data.Source = v; return nil }},
	{EnvPrefix + "DATA_PATH", func(cfg *Config, v string) error { cfg.Data.Path = v; return nil }},
	{EnvPrefix + "SYMBOLS", func(cfg *Config, v string) error { cfg.Data.Symbols = splitList(v); return nil }},
	{EnvPrefix + "AUDIT_SINK", func(cfg *Config, v string) error { cfg.Audit.Sink = v; return nil }},
	{EnvPrefix + "AUDIT_PATH", func(cfg *Config, v string) error { cfg.Audit.Path = v; return nil }},
	{EnvPrefix + "AUDIT_DSN", func(cfg *Config, v string) error { cfg.Audit.DSN = v; return nil }},
	{EnvPrefix + "LOG_LEVEL", func(cfg *Config, v string) error { cfg.Logging.Level = v; return nil }},
	{EnvPrefix + "LOG_FILE", func(cfg *Config, v string) error { cfg.Logging.File = v; return nil }},
	{EnvPrefix + "GATEWAY", func(cfg *Config, v string) error { cfg.Live.Gateway = v; return nil }},
	{EnvPrefix + "BRIDGE_URL", func(cfg *Config, v string) error { cfg.Live.BridgeURL = v; return nil }},
	{EnvPrefix + "CONTROL_ADDR", func(cfg *Config, v string) error { cfg.Live.ControlAddr = v; return nil }},
	{EnvPrefix + "INITIAL_CASH", func(cfg *Config, v string) (err error) {
		cfg.InitialCash, err = fixed.FromString(v)
		return err
	}},
	{EnvPrefix + "COST_BPS", func(cfg *Config, v string) (err error) {
		cfg.Execution.CostBps, err = fixed.FromString(v)
		return err
	}},
	{EnvPrefix + "SLIPPAGE_BPS", func(cfg *Config, v string) (err error) {
		cfg.Execution.SlippageBps, err = fixed.FromString(v)
		return err
	}},
	{EnvPrefix + "DELAY", func(cfg *Config, v string) (err error) {
		cfg.Execution.Delay, err = strconv.Atoi(v)
		return err
	}},
}

// ApplyEnv overrides fields from the environment. Empty variables are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs error
	for _, binding := range envBindings {
		value, ok := lookup(binding.name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := binding.apply(c, strings.TrimSpace(value)); err != nil {
			errs = multierr.Append(errs, &ConfigurationError{Field: binding.name, Reason: err.Error()})
		}
	}
	return errs
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
