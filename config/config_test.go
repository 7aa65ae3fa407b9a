package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/backtest/portfolio"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100_000.0, cfg.InitialCapital)
	assert.Equal(t, portfolio.FillClose, cfg.FillModel)
	assert.False(t, cfg.MarginEnabled)
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	data := `
initial_capital: 50000
commission_rate: 0.002
fill_model: next_open
margin_enabled: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 50_000.0, cfg.InitialCapital)
	assert.Equal(t, 0.002, cfg.CommissionRate)
	assert.Equal(t, portfolio.FillNextOpen, cfg.FillModel)
	assert.True(t, cfg.MarginEnabled)

	// Unset fields keep their defaults.
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 0.0005, cfg.SlippageRate)
}

func TestLoadFromFileJSON(t *testing.T) {
	t.Parallel()

	data := `{"initial_capital": 25000, "slippage_rate": 0.001}`
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25_000.0, cfg.InitialCapital)
	assert.Equal(t, 0.001, cfg.SlippageRate)
}

func TestLoadFromFileErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("initial_capital: [oops"), 0o644))
		_, err := LoadFromFile(path)
		assert.ErrorContains(t, err, "parse config")
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("initial_capital: -5"), 0o644))
		_, err := LoadFromFile(path)
		assert.ErrorContains(t, err, "invalid config")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }, "initial_capital"},
		{"no currency", func(c *Config) { c.Currency = "" }, "currency"},
		{"commission too high", func(c *Config) { c.CommissionRate = 1 }, "commission_rate"},
		{"negative slippage", func(c *Config) { c.SlippageRate = -0.1 }, "slippage_rate"},
		{"zero margin rate", func(c *Config) { c.MarginRate = 0 }, "margin_rate"},
		{"bad fill model", func(c *Config) { c.FillModel = "midpoint" }, "fill_model"},
		{"bad volume fraction", func(c *Config) { c.VolumeCheck = true; c.MaxVolumeFraction = 0 }, "max_volume_fraction"},
		{"bad position size", func(c *Config) { c.MaxPositionSize = 1.5 }, "max_position_size"},
		{"bad max drawdown", func(c *Config) { c.MaxDrawdown = 0 }, "max_drawdown"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}

func TestLedgerSubset(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.CommissionRate = 0.005
	cfg.MarginEnabled = true

	lc := cfg.Ledger()
	assert.Equal(t, 0.005, lc.CommissionRate)
	assert.True(t, lc.MarginEnabled)
	assert.Equal(t, cfg.FillModel, lc.FillModel)
	assert.Equal(t, cfg.MaxPositionSize, lc.MaxPositionSize)
}
