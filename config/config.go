// Package config defines the per-run simulation configuration and its
// YAML/JSON loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantlab/backtest/portfolio"
)

// Config is the immutable configuration for one simulation run.
type Config struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	Currency       string  `json:"currency" yaml:"currency"`
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	SlippageRate   float64 `json:"slippage_rate" yaml:"slippage_rate"`
	MarginEnabled  bool    `json:"margin_enabled" yaml:"margin_enabled"`
	MarginRate     float64 `json:"margin_rate" yaml:"margin_rate"`
	RiskFreeRate   float64 `json:"risk_free_rate" yaml:"risk_free_rate"`

	FillModel         portfolio.FillModel `json:"fill_model" yaml:"fill_model"`
	AllowPartialFills bool                `json:"allow_partial_fills" yaml:"allow_partial_fills"`
	VolumeCheck       bool                `json:"volume_check" yaml:"volume_check"`
	MaxVolumeFraction float64             `json:"max_volume_fraction" yaml:"max_volume_fraction"`
	MaxPositionSize   float64             `json:"max_position_size" yaml:"max_position_size"`

	MaxDrawdown       float64 `json:"max_drawdown" yaml:"max_drawdown"`
	StopOnMaxDrawdown bool    `json:"stop_on_max_drawdown" yaml:"stop_on_max_drawdown"`
}

// Default returns a configuration with sensible defaults.
func Default() Config {
	return Config{
		InitialCapital:    100_000,
		Currency:          "USD",
		CommissionRate:    0.001,
		SlippageRate:      0.0005,
		MarginEnabled:     false,
		MarginRate:        1.0,
		RiskFreeRate:      0.02,
		FillModel:         portfolio.FillClose,
		AllowPartialFills: false,
		VolumeCheck:       false,
		MaxVolumeFraction: 0.1,
		MaxPositionSize:   0.95,
		MaxDrawdown:       0.5,
		StopOnMaxDrawdown: false,
	}
}

// LoadFromFile loads a configuration from a YAML or JSON file, applied over
// the defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive")
	}
	if c.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("commission_rate must be in [0, 1)")
	}
	if c.SlippageRate < 0 || c.SlippageRate >= 1 {
		return fmt.Errorf("slippage_rate must be in [0, 1)")
	}
	if c.MarginRate <= 0 {
		return fmt.Errorf("margin_rate must be positive")
	}
	switch c.FillModel {
	case portfolio.FillClose, portfolio.FillNextOpen, portfolio.FillVWAP:
	default:
		return fmt.Errorf("unknown fill_model: %s", c.FillModel)
	}
	if c.VolumeCheck && (c.MaxVolumeFraction <= 0 || c.MaxVolumeFraction > 1) {
		return fmt.Errorf("max_volume_fraction must be in (0, 1]")
	}
	if c.MaxPositionSize <= 0 || c.MaxPositionSize > 1 {
		return fmt.Errorf("max_position_size must be in (0, 1]")
	}
	if c.MaxDrawdown <= 0 || c.MaxDrawdown > 1 {
		return fmt.Errorf("max_drawdown must be in (0, 1]")
	}
	return nil
}

// Ledger extracts the execution parameters consumed by the portfolio
// ledger.
func (c Config) Ledger() portfolio.Config {
	return portfolio.Config{
		CommissionRate:    c.CommissionRate,
		SlippageRate:      c.SlippageRate,
		MarginEnabled:     c.MarginEnabled,
		MarginRate:        c.MarginRate,
		FillModel:         c.FillModel,
		AllowPartialFills: c.AllowPartialFills,
		VolumeCheck:       c.VolumeCheck,
		MaxVolumeFraction: c.MaxVolumeFraction,
		MaxPositionSize:   c.MaxPositionSize,
	}
}
