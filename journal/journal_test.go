package journal

import (
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/backtest/engine"
	"github.com/quantlab/backtest/portfolio"
)

func sampleResult() *engine.Result {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pnl, pnlPct := 150.0, 1.5

	return &engine.Result{
		RunID:         "01RUNID",
		Status:        engine.StatusCompleted,
		Strategy:      "sma-cross",
		Symbol:        "BTC",
		Interval:      "1d",
		StartedAt:     t0,
		FinishedAt:    t0.Add(time.Second),
		BarsProcessed: 3,
		TotalBars:     3,
		FinalCash:     4_905,
		FinalEquity:   100_150,
		Trades: []portfolio.Trade{
			{
				ID: "trd-1", OrderID: "ord-1", Symbol: "BTC", Side: portfolio.Buy,
				Quantity: 100, Price: 50, Commission: 5, Time: t0, BarIndex: 0,
			},
			{
				ID: "trd-2", OrderID: "ord-2", Symbol: "BTC", Side: portfolio.Sell,
				Quantity: 100, Price: 51.5, Commission: 5.15, Time: t0.AddDate(0, 0, 2),
				BarIndex: 2, PnL: &pnl, PnLPct: &pnlPct,
			},
		},
		EquityCurve: []portfolio.EquityPoint{
			{BarIndex: 0, Time: t0, Equity: 100_000, Cash: 95_000, PositionValue: 5_000},
			{BarIndex: 1, Time: t0.AddDate(0, 0, 1), Equity: 99_900, Cash: 95_000, PositionValue: 4_900, Drawdown: 100, DrawdownPct: 0.1},
			{BarIndex: 2, Time: t0.AddDate(0, 0, 2), Equity: 100_150, Cash: 100_150},
		},
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordRun(sampleResult()))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var status string
	var finalEquity float64
	err = db.QueryRow(`SELECT status, final_equity FROM runs WHERE run_id = ?`, "01RUNID").
		Scan(&status, &finalEquity)
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
	assert.Equal(t, 100_150.0, finalEquity)

	var trades int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM trades WHERE run_id = ?`, "01RUNID").Scan(&trades))
	assert.Equal(t, 2, trades)

	var pnl sql.NullFloat64
	err = db.QueryRow(`SELECT pnl FROM trades WHERE trade_id = ?`, "trd-1").Scan(&pnl)
	require.NoError(t, err)
	assert.False(t, pnl.Valid, "opening trade carries no realized pnl")

	err = db.QueryRow(`SELECT pnl FROM trades WHERE trade_id = ?`, "trd-2").Scan(&pnl)
	require.NoError(t, err)
	require.True(t, pnl.Valid)
	assert.Equal(t, 150.0, pnl.Float64)

	var points int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM equity WHERE run_id = ?`, "01RUNID").Scan(&points))
	assert.Equal(t, 3, points)
}

func TestSQLiteDuplicateRunID(t *testing.T) {
	t.Parallel()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer j.Close()

	res := sampleResult()
	require.NoError(t, j.RecordRun(res))
	assert.Error(t, j.RecordRun(res), "run_id is a primary key")
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, j.RecordRun(sampleResult()))
	require.NoError(t, j.Close())

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 3, "header plus two trades")
	assert.Equal(t, "trade_id", trades[0][1])
	assert.Equal(t, "trd-1", trades[1][1])
	assert.Equal(t, "", trades[1][11], "no pnl on the opening trade")
	assert.Equal(t, "150", trades[2][11])

	equity := readCSV(t, equityPath)
	require.Len(t, equity, 4, "header plus three points")
	assert.Equal(t, "100000", equity[1][3])
	assert.Equal(t, "0.1", equity[2][7])
}

func TestCSVHeadersFlushedOnCreate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	defer j.Close()

	// Headers must be on disk before any run is recorded.
	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 1)
	assert.Equal(t, "run_id", trades[0][0])

	equity := readCSV(t, equityPath)
	require.Len(t, equity, 1)
	assert.Equal(t, "drawdown_pct", equity[0][7])
}

func TestCSVCreateFailureClosesTradesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")

	_, err := NewCSV(tradesPath, filepath.Join(dir, "missing", "equity.csv"))
	require.Error(t, err)

	// The trades file was closed again, so the handle count is balanced
	// and the file is removable.
	require.NoError(t, os.Remove(tradesPath))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}
