// Package journal persists finished run results so they can be browsed and
// compared later. Two backends: SQLite and plain CSV files.
package journal

import "github.com/quantlab/backtest/engine"

type Journal interface {
	// RecordRun stores the run summary plus its trades and equity curve.
	RecordRun(res *engine.Result) error
	Close() error
}
