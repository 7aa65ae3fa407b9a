package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/backtest/config"
	"github.com/quantlab/backtest/market"
	"github.com/quantlab/backtest/metrics"
	"github.com/quantlab/backtest/portfolio"
	"github.com/quantlab/backtest/strategy"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// series builds a daily bar series from close prices; open/high/low are
// derived so every close sits inside the bar range.
func series(symbol string, closes ...float64) *market.Series {
	s := &market.Series{Symbol: symbol, Interval: "1d"}
	for i, c := range closes {
		s.Bars = append(s.Bars, market.Bar{
			Time:   t0.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1e6,
		})
	}
	return s
}

func defaults() config.Config {
	cfg := config.Default()
	cfg.SlippageRate = 0
	return cfg
}

func TestRunBuyHoldCompletes(t *testing.T) {
	t.Parallel()

	eng := New(defaults())
	res, err := eng.Run(context.Background(), RunConfig{
		Strategy: "buy-hold",
		Series:   series("BTC", 100, 110, 120, 130),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Empty(t, res.Error)
	assert.Equal(t, 4, res.BarsProcessed)
	assert.Equal(t, 4, res.TotalBars)
	assert.Len(t, res.EquityCurve, 4)
	assert.Len(t, res.Trades, 1)
	assert.NotEmpty(t, res.RunID)
	assert.Greater(t, res.FinalEquity, 100_000.0)
}

func TestRunUnknownStrategy(t *testing.T) {
	t.Parallel()

	eng := New(defaults())
	res, err := eng.Run(context.Background(), RunConfig{
		Strategy: "nope",
		Series:   series("BTC", 100, 110),
	})
	require.NoError(t, err, "lifecycle errors must not surface as returned errors")

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "unknown strategy")
	assert.Empty(t, res.Trades)
	assert.Empty(t, res.EquityCurve)
}

func TestRunEmptyDateRange(t *testing.T) {
	t.Parallel()

	eng := New(defaults())
	res, err := eng.Run(context.Background(), RunConfig{
		Strategy: "buy-hold",
		Series:   series("BTC", 100, 110),
		Start:    t0.AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "no bars")
	assert.Equal(t, metrics.PerformanceMetrics{}, res.Metrics)
}

func TestMaxDrawdownStop(t *testing.T) {
	t.Parallel()

	cfg := defaults()
	cfg.MaxDrawdown = 0.25
	cfg.StopOnMaxDrawdown = true

	// Buy at 100, then a slide past -25%.
	eng := New(cfg)
	res, err := eng.Run(context.Background(), RunConfig{
		Strategy: "buy-hold",
		Series:   series("BTC", 100, 100, 90, 70, 60, 60, 60),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusStopped, res.Status)
	assert.Less(t, res.BarsProcessed, res.TotalBars)
	assert.GreaterOrEqual(t, res.EquityCurve[len(res.EquityCurve)-1].DrawdownPct, 25.0)
}

func TestContextCancelStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	eng := New(defaults())
	eng.Subscribe(func(ev Event) {
		// Cancel as soon as the first trade happens; the loop must notice
		// at the next bar boundary.
		if ev.Kind == EventTrade {
			cancel()
		}
	})

	res, err := eng.Run(ctx, RunConfig{
		Strategy: "buy-hold",
		Series:   series("BTC", 100, 101, 102, 103, 104),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusStopped, res.Status)
	assert.Less(t, res.BarsProcessed, res.TotalBars)
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	t.Parallel()

	eng := New(defaults())
	eng.Subscribe(func(ev Event) { panic("bad subscriber") })

	var kinds []EventKind
	eng.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	res, err := eng.Run(context.Background(), RunConfig{
		Strategy: "buy-hold",
		Series:   series("BTC", 100, 110, 120),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Contains(t, kinds, EventStarted)
	assert.Contains(t, kinds, EventTrade)
	assert.Contains(t, kinds, EventCompleted)
}

func TestRunEmitsProgress(t *testing.T) {
	t.Parallel()

	eng := New(defaults())
	var progress []ProgressPayload
	eng.Subscribe(func(ev Event) {
		if p, ok := ev.Payload.(ProgressPayload); ok {
			progress = append(progress, p)
		}
	})

	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	_, err := eng.Run(context.Background(), RunConfig{
		Strategy: "buy-hold",
		Series:   series("BTC", closes...),
	})
	require.NoError(t, err)

	require.NotEmpty(t, progress)
	assert.InDelta(t, 100, progress[len(progress)-1].Percent, 1e-9)
}

func TestRerunIsDeterministic(t *testing.T) {
	t.Parallel()

	eng := New(defaults())
	rc := RunConfig{
		Strategy: "sma-cross",
		Params:   map[string]float64{"fast": 2, "slow": 4},
		Series:   series("BTC", 100, 101, 102, 103, 90, 80, 85, 95, 105, 110),
	}

	res1, err := eng.Run(context.Background(), rc)
	require.NoError(t, err)
	res2, err := eng.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, res1.Trades, res2.Trades)
	assert.Equal(t, res1.EquityCurve, res2.EquityCurve)
	assert.NotEqual(t, res1.RunID, res2.RunID)
}

func TestConcurrentRunRejected(t *testing.T) {
	t.Parallel()

	eng := New(defaults())

	var nestedErr error
	eng.Subscribe(func(ev Event) {
		if ev.Kind == EventStarted {
			// Events fire synchronously mid-run, so this overlaps.
			_, nestedErr = eng.Run(context.Background(), RunConfig{
				Strategy: "buy-hold",
				Series:   series("BTC", 100),
			})
		}
	})

	_, err := eng.Run(context.Background(), RunConfig{
		Strategy: "buy-hold",
		Series:   series("BTC", 100, 110),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrRunInProgress)
}

func TestStrategyErrorBecomesErrorResult(t *testing.T) {
	t.Parallel()

	strategy.Register("always-fails", func() strategy.Strategy { return failingStrategy{} })

	eng := New(defaults())
	res, err := eng.Run(context.Background(), RunConfig{
		Strategy: "always-fails",
		Series:   series("BTC", 100, 110),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "boom")
}

func TestStrategyPanicBecomesErrorResult(t *testing.T) {
	t.Parallel()

	strategy.Register("always-panics", func() strategy.Strategy { return panickingStrategy{} })

	eng := New(defaults())
	res, err := eng.Run(context.Background(), RunConfig{
		Strategy: "always-panics",
		Series:   series("BTC", 100, 110),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "panic")
}

func TestOptimizeSweep(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i) + 10*float64(i%7)
	}

	eng := New(defaults())
	out, err := eng.Optimize(context.Background(), OptimizeConfig{
		Run: RunConfig{
			Strategy: "sma-cross",
			Series:   series("BTC", closes...),
		},
		Axes: []ParamAxis{
			{Name: "fast", Values: []float64{2, 3}},
			{Name: "slow", Values: []float64{5, 8, 13}},
		},
		Metric: "total_return",
	})
	require.NoError(t, err)

	require.Len(t, out.Runs, 6)
	require.NotNil(t, out.Best)

	// First axis varies slowest.
	wantOrder := [][2]float64{{2, 5}, {2, 8}, {2, 13}, {3, 5}, {3, 8}, {3, 13}}
	for i, want := range wantOrder {
		assert.Equal(t, want[0], out.Runs[i].Params["fast"], "combo %d", i)
		assert.Equal(t, want[1], out.Runs[i].Params["slow"], "combo %d", i)
	}

	for _, combo := range out.Runs {
		if combo.Result.Status != StatusError {
			assert.LessOrEqual(t, combo.Score, out.Best.Score)
		}
	}
}

func TestOptimizeUnknownMetric(t *testing.T) {
	t.Parallel()

	eng := New(defaults())
	_, err := eng.Optimize(context.Background(), OptimizeConfig{
		Run:    RunConfig{Strategy: "buy-hold", Series: series("BTC", 100)},
		Axes:   []ParamAxis{{Name: "x", Values: []float64{1}}},
		Metric: "made-up",
	})
	assert.Error(t, err)
}

func TestEquityIdentityAcrossRun(t *testing.T) {
	t.Parallel()

	eng := New(defaults())
	res, err := eng.Run(context.Background(), RunConfig{
		Strategy: "buy-hold",
		Series:   series("BTC", 100, 105, 95, 110, 90),
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)

	for _, pt := range res.EquityCurve {
		assert.InDelta(t, pt.Cash+pt.PositionValue, pt.Equity, 1e-9, "bar %d", pt.BarIndex)
	}
}

type failingStrategy struct{}

func (failingStrategy) Name() string                                  { return "ALWAYS_FAILS" }
func (failingStrategy) Init(bars []market.Bar, symbol string) error   { return nil }
func (failingStrategy) End(bars []market.Bar, symbol string) error    { return nil }
func (failingStrategy) SetParams(params map[string]float64) error     { return nil }
func (failingStrategy) Execute(bar market.Bar, index int, bars []market.Bar, symbol string) ([]portfolio.Signal, error) {
	return nil, fmt.Errorf("boom")
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string                                { return "ALWAYS_PANICS" }
func (panickingStrategy) Init(bars []market.Bar, symbol string) error { return nil }
func (panickingStrategy) End(bars []market.Bar, symbol string) error  { return nil }
func (panickingStrategy) SetParams(params map[string]float64) error   { return nil }
func (panickingStrategy) Execute(bar market.Bar, index int, bars []market.Bar, symbol string) ([]portfolio.Signal, error) {
	panic("strategy blew up")
}
