package engine

import (
	"time"

	"github.com/quantlab/backtest/metrics"
	"github.com/quantlab/backtest/portfolio"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

// Result is the full outcome of one simulation run: status and timing,
// the computed statistics, and the ledger's final state. It is what the
// presentation and persistence layers consume.
type Result struct {
	RunID    string `json:"run_id"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
	Strategy string `json:"strategy"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	BarsProcessed int `json:"bars_processed"`
	TotalBars     int `json:"total_bars"`

	Metrics        metrics.PerformanceMetrics `json:"metrics"`
	MonthlyReturns []metrics.MonthlyReturn    `json:"monthly_returns,omitempty"`
	Trades         []portfolio.Trade          `json:"trades,omitempty"`
	EquityCurve    []portfolio.EquityPoint    `json:"equity_curve,omitempty"`
	Orders         []portfolio.Order          `json:"orders,omitempty"`
	Positions      []portfolio.Position       `json:"positions,omitempty"`

	FinalCash   float64 `json:"final_cash"`
	FinalEquity float64 `json:"final_equity"`
}
