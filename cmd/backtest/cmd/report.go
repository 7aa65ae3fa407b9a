package cmd

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/quantlab/backtest/engine"
)

// PrintResult writes a human-readable run report.
func PrintResult(w io.Writer, res *engine.Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", res.RunID)
	fmt.Fprintf(w, "Strategy:      %s\n", res.Strategy)
	fmt.Fprintf(w, "Symbol:        %s (%s)\n", res.Symbol, res.Interval)
	fmt.Fprintf(w, "Status:        %s\n", res.Status)
	if res.Error != "" {
		fmt.Fprintf(w, "Error:         %s\n", res.Error)
	}
	fmt.Fprintf(w, "Bars:          %d/%d\n", res.BarsProcessed, res.TotalBars)
	fmt.Fprintf(w, "Elapsed:       %s\n", res.Duration.Round(time.Millisecond))

	if res.Status == engine.StatusError {
		fmt.Fprintln(w)
		return
	}

	m := res.Metrics

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Returns")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Final Equity:  %.2f\n", res.FinalEquity)
	fmt.Fprintf(w, "Total Return:  %.2f (%.2f%%)\n", m.TotalReturn, m.TotalReturnPct)
	fmt.Fprintf(w, "CAGR:          %.2f%%\n", m.CAGR)
	fmt.Fprintf(w, "Annualized:    %.2f%%\n", m.AnnualizedReturn)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Risk")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Volatility:    %.2f%%\n", m.Volatility)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", m.SharpeRatio)
	fmt.Fprintf(w, "Sortino:       %.2f\n", m.SortinoRatio)
	fmt.Fprintf(w, "Calmar:        %.2f\n", m.CalmarRatio)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%% (%.1f days)\n", m.MaxDrawdownPct, m.MaxDrawdownDuration)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trades")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d (%d wins / %d losses)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", m.WinRate)
	fmt.Fprintf(w, "Profit Factor: %s\n", ratio(m.ProfitFactor))
	fmt.Fprintf(w, "Payoff Ratio:  %s\n", ratio(m.PayoffRatio))
	fmt.Fprintf(w, "Expectancy:    %.2f\n", m.Expectancy)
	fmt.Fprintf(w, "Avg Win/Loss:  %.2f / %.2f\n", m.AvgWin, m.AvgLoss)
	fmt.Fprintf(w, "Commission:    %.2f\n", m.TotalCommission)
	fmt.Fprintf(w, "Slippage:      %.2f\n", m.TotalSlippage)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exposure")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Avg/Max:       %.1f%% / %.1f%%\n", m.AvgExposure, m.MaxExposure)
	fmt.Fprintf(w, "In Market:     %.1f%% of bars\n", m.TimeInMarket)

	if len(res.MonthlyReturns) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Monthly Returns")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, mr := range res.MonthlyReturns {
			fmt.Fprintf(w, "%d-%02d:       %+.2f%%\n", mr.Year, mr.Month, mr.ReturnPct)
		}
	}
	fmt.Fprintln(w)
}

func ratio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
