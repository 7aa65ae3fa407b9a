// Package engine drives a backtest: it walks the bar series once, feeds
// strategy signals into the portfolio ledger, records equity, emits
// lifecycle events, and assembles the final result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quantlab/backtest/config"
	"github.com/quantlab/backtest/market"
	"github.com/quantlab/backtest/metrics"
	"github.com/quantlab/backtest/pkg/id"
	"github.com/quantlab/backtest/portfolio"
	"github.com/quantlab/backtest/strategy"
)

var (
	// ErrRunInProgress is returned when Run is called while another run is
	// active on the same engine. Runs never queue.
	ErrRunInProgress = errors.New("a run is already in progress")

	ErrNoData = errors.New("no bars in the requested date range")
)

// Engine executes simulation runs one at a time. The bar loop itself is
// fully synchronous; cancellation is cooperative and observed only at bar
// boundaries.
type Engine struct {
	defaults config.Config

	mu       sync.Mutex
	running  bool
	handlers []Handler
}

func New(defaults config.Config) *Engine {
	return &Engine{defaults: defaults}
}

// RunConfig describes one run. A nil Config uses the engine defaults.
type RunConfig struct {
	Strategy string
	Params   map[string]float64
	Series   *market.Series
	Start    time.Time
	End      time.Time
	Config   *config.Config
}

func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *Engine) finish() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Run executes one simulation. Lifecycle failures — unknown strategy,
// empty date range, strategy errors or panics — come back as an
// error-status Result, not as a returned error. The only returned error is
// ErrRunInProgress for an overlapping call.
func (e *Engine) Run(ctx context.Context, rc RunConfig) (*Result, error) {
	if !e.begin() {
		return nil, ErrRunInProgress
	}
	defer e.finish()

	res := &Result{
		RunID:     id.NewRun(),
		Strategy:  rc.Strategy,
		StartedAt: time.Now(),
	}
	if rc.Series != nil {
		res.Symbol = rc.Series.Symbol
		res.Interval = rc.Series.Interval
	}

	e.execute(ctx, rc, res)

	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)

	switch res.Status {
	case StatusError:
		e.emit(EventError, res.Error)
	case StatusStopped:
		e.emit(EventStopped, res)
	default:
		e.emit(EventCompleted, res)
	}
	return res, nil
}

// execute fills in the result. Any panic from strategy code is converted
// into an error status here.
func (e *Engine) execute(ctx context.Context, rc RunConfig, res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusError
			res.Error = fmt.Sprintf("run panic: %v", r)
		}
	}()

	cfg := e.defaults
	if rc.Config != nil {
		cfg = *rc.Config
	}
	if err := cfg.Validate(); err != nil {
		e.fail(res, err)
		return
	}

	strat, err := strategy.New(rc.Strategy)
	if err != nil {
		e.fail(res, err)
		return
	}
	if len(rc.Params) > 0 {
		if err := strat.SetParams(rc.Params); err != nil {
			e.fail(res, err)
			return
		}
	}

	if rc.Series == nil {
		e.fail(res, ErrNoData)
		return
	}
	bars := rc.Series.FilterRange(rc.Start, rc.End)
	if len(bars) == 0 {
		e.fail(res, ErrNoData)
		return
	}
	res.TotalBars = len(bars)

	ledger := portfolio.NewLedger(cfg.Ledger(), cfg.InitialCapital)
	symbol := rc.Series.Symbol

	e.emit(EventStarted, map[string]any{
		"run_id":   res.RunID,
		"strategy": strat.Name(),
		"symbol":   symbol,
		"bars":     len(bars),
	})

	if err := strat.Init(bars, symbol); err != nil {
		e.fail(res, fmt.Errorf("strategy init: %w", err))
		return
	}

	stopped := false
	progressStep := len(bars) / 10
	if progressStep == 0 {
		progressStep = 1
	}

	for i, bar := range bars {
		if ctx.Err() != nil {
			stopped = true
			break
		}

		signals, err := strat.Execute(bar, i, bars, symbol)
		if err != nil {
			e.fail(res, fmt.Errorf("strategy execute at bar %d: %w", i, err))
			return
		}
		for _, sig := range signals {
			ledger.SubmitOrder(sig, i)
		}
		fills := ledger.ProcessOrders(bar, i)
		ledger.RecordEquity(bar.Time, i, map[string]float64{symbol: bar.Close})

		if len(signals) > 0 {
			e.emit(EventSignal, signals)
		}
		if len(fills) > 0 {
			e.emit(EventTrade, fills)
		}
		if (i+1)%progressStep == 0 || i == len(bars)-1 {
			e.emit(EventProgress, ProgressPayload{
				Processed: i + 1,
				Total:     len(bars),
				Percent:   float64(i+1) / float64(len(bars)) * 100,
			})
		}

		res.BarsProcessed = i + 1

		if cfg.StopOnMaxDrawdown && ledger.CurrentDrawdownPct() >= cfg.MaxDrawdown*100 {
			stopped = true
			break
		}
	}

	if err := strat.End(bars, symbol); err != nil {
		e.fail(res, fmt.Errorf("strategy end: %w", err))
		return
	}

	trades := ledger.Trades()
	equity := ledger.EquityCurve()

	res.Metrics = metrics.Compute(trades, equity, cfg.RiskFreeRate)
	res.MonthlyReturns = metrics.MonthlyReturns(equity)
	res.Trades = trades
	res.EquityCurve = equity
	res.Orders = ledger.Orders()
	res.Positions = ledger.Positions()
	res.FinalCash = ledger.Cash()
	res.FinalEquity = ledger.Equity()

	if stopped {
		res.Status = StatusStopped
	} else {
		res.Status = StatusCompleted
	}
}

// fail marks the result as errored with empty metrics and history.
func (e *Engine) fail(res *Result, err error) {
	res.Status = StatusError
	res.Error = err.Error()
	res.Metrics = metrics.PerformanceMetrics{}
	res.Trades = nil
	res.EquityCurve = nil
	res.MonthlyReturns = nil
}
