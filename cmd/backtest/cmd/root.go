package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Bar-by-bar strategy backtesting and grid-search optimization",
	Long: `Backtest simulates trading strategies against historical OHLCV data.

It provides:
  - Deterministic order matching for market, limit, stop, and stop-limit orders
  - Position lifecycle accounting with realized/unrealized P&L
  - A full performance report (Sharpe, Sortino, Calmar, drawdowns, expectancy)
  - Grid-search parameter optimization
  - SQLite/CSV journaling of runs for later comparison`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
