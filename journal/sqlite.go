package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quantlab/backtest/engine"
	"github.com/quantlab/backtest/portfolio"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordRun(res *engine.Result) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m := res.Metrics
	_, err = tx.Exec(`
		INSERT INTO runs
		(run_id, strategy, symbol, interval, status, error,
		 started_at, finished_at, bars_processed, total_bars,
		 final_cash, final_equity, total_return_pct, cagr,
		 sharpe_ratio, sortino_ratio, max_drawdown_pct,
		 total_trades, win_rate, profit_factor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Strategy, res.Symbol, res.Interval, string(res.Status), res.Error,
		res.StartedAt, res.FinishedAt, res.BarsProcessed, res.TotalBars,
		res.FinalCash, res.FinalEquity, m.TotalReturnPct, m.CAGR,
		m.SharpeRatio, m.SortinoRatio, m.MaxDrawdownPct,
		m.TotalTrades, m.WinRate, m.ProfitFactor,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, t := range res.Trades {
		if err := insertTrade(tx, res.RunID, t); err != nil {
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
	}
	for _, pt := range res.EquityCurve {
		_, err := tx.Exec(`
			INSERT INTO equity
			(run_id, bar_index, time, equity, cash, position_value, drawdown, drawdown_pct)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, pt.BarIndex, pt.Time, pt.Equity, pt.Cash,
			pt.PositionValue, pt.Drawdown, pt.DrawdownPct,
		)
		if err != nil {
			return fmt.Errorf("insert equity point %d: %w", pt.BarIndex, err)
		}
	}

	return tx.Commit()
}

func insertTrade(tx *sql.Tx, runID string, t portfolio.Trade) error {
	var pnl, pnlPct any
	if t.PnL != nil {
		pnl = *t.PnL
	}
	if t.PnLPct != nil {
		pnlPct = *t.PnLPct
	}
	_, err := tx.Exec(`
		INSERT INTO trades
		(trade_id, run_id, order_id, symbol, side, quantity, price,
		 commission, slippage, time, bar_index, pnl, pnl_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, runID, t.OrderID, t.Symbol, string(t.Side), t.Quantity, t.Price,
		t.Commission, t.Slippage, t.Time, t.BarIndex, pnl, pnlPct,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
