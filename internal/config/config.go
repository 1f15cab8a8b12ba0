// Package config loads and validates the platform's YAML configuration.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/tradekit-lab/tradekit/internal/broker/virtual/commission"
	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// CommissionConfig selects and parameterizes the fee model.
type CommissionConfig struct {
	// Model is one of zero, per_trade, per_unit
	Model string `yaml:"model" validate:"omitempty,oneof=zero per_trade per_unit"`
	// Amount is the flat fee (per_trade) or the per-unit rate (per_unit)
	Amount float64 `yaml:"amount" validate:"gte=0"`
	// Minimum is the floor per fill for the per_unit model
	Minimum float64 `yaml:"minimum" validate:"gte=0"`
}

// Build returns the configured commission model.
func (c CommissionConfig) Build() commission.Model {
	switch c.Model {
	case "per_trade":
		return commission.NewPerTrade(c.Amount)
	case "per_unit":
		return commission.NewPerUnit(c.Amount, c.Minimum)
	default:
		return commission.NewZero()
	}
}

// Config is the full runtime configuration shared by backtest and live
// sessions.
type Config struct {
	InitialCapital  float64 `yaml:"initial_capital" validate:"gt=0"`
	AccountCurrency string  `yaml:"account_currency" validate:"required,len=3"`
	Leverage        float64 `yaml:"leverage" validate:"gt=0"`
	RiskFraction    float64 `yaml:"risk_fraction" validate:"gt=0,lte=1"`
	SpreadPips      float64 `yaml:"spread_pips" validate:"gte=0"`

	Commission CommissionConfig `yaml:"commission"`

	Granularity types.Granularity `yaml:"granularity" validate:"required"`
	Instruments []string          `yaml:"instruments" validate:"required,min=1,dive,required"`

	// AllowIncompleteCandles lets strategies see bars that are still
	// open. Off by default.
	AllowIncompleteCandles bool `yaml:"allow_incomplete_candles"`

	// Strategy names the registered strategy and carries its params.
	Strategy       string             `yaml:"strategy" validate:"required"`
	StrategyParams map[string]float64 `yaml:"strategy_params"`

	// Rates is a static quote-to-account conversion table keyed
	// "FROM/TO", e.g. "JPY/USD": 0.0068.
	Rates map[string]float64 `yaml:"rates"`

	// StartTime and EndTime bound the backtest window.
	StartTime optional.Option[time.Time] `yaml:"-"`
	EndTime   optional.Option[time.Time] `yaml:"-"`

	// ResultsDir is where backtest results are written.
	ResultsDir string `yaml:"results_dir"`
}

// raw mirrors Config for unmarshalling with pointer times.
type rawTimes struct {
	StartTime *time.Time `yaml:"start_time"`
	EndTime   *time.Time `yaml:"end_time"`
}

var configValidator = validator.New()

// Parse reads a Config from YAML bytes and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	times := rawTimes{}
	if err := yaml.Unmarshal(data, &times); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config times", err)
	}

	if times.StartTime != nil {
		cfg.StartTime = optional.Some(times.StartTime.UTC())
	}

	if times.EndTime != nil {
		cfg.EndTime = optional.Some(times.EndTime.UTC())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	return Parse(data)
}

// Validate checks structural and semantic validity.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "config validation failed", err)
	}

	if _, err := c.Granularity.Duration(); err != nil {
		return err
	}

	for _, symbol := range c.Instruments {
		if _, err := market.Lookup(symbol); err != nil {
			return err
		}
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "end_time is before start_time")
	}

	return nil
}

// RateSource builds the static conversion table.
func (c *Config) RateSource() market.RateSource {
	if len(c.Rates) == 0 {
		return market.StaticRates{}
	}

	return market.StaticRates(c.Rates)
}
