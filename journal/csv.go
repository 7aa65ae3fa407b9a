package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/quantlab/backtest/engine"
)

// CSVJournal writes trades and equity points to two flat files. The run
// summary itself is not persisted; SQLite is the richer backend.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	// Flush the headers now so I/O failures surface here, not on the
	// first RecordRun.
	tw.Write([]string{"run_id", "trade_id", "order_id", "symbol", "side", "quantity", "price", "commission", "slippage", "time", "bar_index", "pnl", "pnl_pct"})
	tw.Flush()
	ew.Write([]string{"run_id", "bar_index", "time", "equity", "cash", "position_value", "drawdown", "drawdown_pct"})
	ew.Flush()
	if err := tw.Error(); err != nil {
		tf.Close()
		ef.Close()
		return nil, err
	}
	if err := ew.Error(); err != nil {
		tf.Close()
		ef.Close()
		return nil, err
	}

	return &CSVJournal{trades: tw, equity: ew, tf: tf, ef: ef}, nil
}

func (j *CSVJournal) RecordRun(res *engine.Result) error {
	for _, t := range res.Trades {
		pnl, pnlPct := "", ""
		if t.PnL != nil {
			pnl = f(*t.PnL)
		}
		if t.PnLPct != nil {
			pnlPct = f(*t.PnLPct)
		}
		err := j.trades.Write([]string{
			res.RunID, t.ID, t.OrderID, t.Symbol, string(t.Side),
			f(t.Quantity), f(t.Price), f(t.Commission), f(t.Slippage),
			t.Time.Format(time.RFC3339), strconv.Itoa(t.BarIndex), pnl, pnlPct,
		})
		if err != nil {
			return err
		}
	}
	for _, pt := range res.EquityCurve {
		err := j.equity.Write([]string{
			res.RunID, strconv.Itoa(pt.BarIndex), pt.Time.Format(time.RFC3339),
			f(pt.Equity), f(pt.Cash), f(pt.PositionValue),
			f(pt.Drawdown), f(pt.DrawdownPct),
		})
		if err != nil {
			return err
		}
	}

	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}
	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
