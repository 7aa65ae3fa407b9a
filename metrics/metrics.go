// Package metrics derives performance statistics from a finished run's
// trade list and equity curve. Everything here is a pure function; nothing
// is computed incrementally during the simulation.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/quantlab/backtest/portfolio"
)

const tradingDaysPerYear = 252

type PerformanceMetrics struct {
	// Returns
	TotalReturn      float64 `json:"total_return"`
	TotalReturnPct   float64 `json:"total_return_pct"`
	CAGR             float64 `json:"cagr"`
	AnnualizedReturn float64 `json:"annualized_return"`

	// Risk
	DailyVolatility float64 `json:"daily_volatility"`
	Volatility      float64 `json:"volatility"` // annualized, percent
	SharpeRatio     float64 `json:"sharpe_ratio"`
	SortinoRatio    float64 `json:"sortino_ratio"`
	CalmarRatio     float64 `json:"calmar_ratio"`

	// Drawdown
	MaxDrawdown         float64 `json:"max_drawdown"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
	MaxDrawdownDuration float64 `json:"max_drawdown_duration"` // days
	AvgDrawdownPct      float64 `json:"avg_drawdown_pct"`

	// Trades. Only trades carrying a realized P&L count toward the counts;
	// commission and slippage totals cover every trade.
	TotalTrades          int     `json:"total_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
	WinRate              float64 `json:"win_rate"` // percent
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"` // magnitude
	AvgWinPct            float64 `json:"avg_win_pct"`
	AvgLossPct           float64 `json:"avg_loss_pct"` // magnitude
	LargestWin           float64 `json:"largest_win"`
	LargestLoss          float64 `json:"largest_loss"` // magnitude
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	ProfitFactor         float64 `json:"profit_factor"` // +Inf when no losses
	PayoffRatio          float64 `json:"payoff_ratio"`  // +Inf when no losses
	Expectancy           float64 `json:"expectancy"`
	TotalCommission      float64 `json:"total_commission"`
	TotalSlippage        float64 `json:"total_slippage"`

	// Exposure
	AvgExposure  float64 `json:"avg_exposure"`   // percent
	MaxExposure  float64 `json:"max_exposure"`   // percent
	TimeInMarket float64 `json:"time_in_market"` // percent of points
}

// MonthlyReturn is the equity change over one calendar month, opening at
// the first equity point seen in that month and closing at the last.
type MonthlyReturn struct {
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	Open      float64 `json:"open"`
	Close     float64 `json:"close"`
	Return    float64 `json:"return"`
	ReturnPct float64 `json:"return_pct"`
}

// Compute calculates the full metric set. An empty equity curve yields the
// zero value.
func Compute(trades []portfolio.Trade, equity []portfolio.EquityPoint, riskFreeRate float64) PerformanceMetrics {
	var m PerformanceMetrics
	if len(equity) == 0 {
		return m
	}

	initial := equity[0].Equity
	final := equity[len(equity)-1].Equity
	returns := periodReturns(equity)

	m.TotalReturn = final - initial
	if initial > 0 {
		m.TotalReturnPct = m.TotalReturn / initial * 100
	}

	years := equity[len(equity)-1].Time.Sub(equity[0].Time).Hours() / (24 * 365)
	m.CAGR = cagr(initial, final, years)
	if years > 0 {
		m.AnnualizedReturn = m.TotalReturnPct / years
	} else {
		m.AnnualizedReturn = m.TotalReturnPct
	}

	mean, stddev := meanStddev(returns)
	m.DailyVolatility = stddev
	m.Volatility = stddev * math.Sqrt(tradingDaysPerYear) * 100

	// The denominator intentionally mixes an annualized-volatility fraction
	// with a risk-free rate annualized by plain multiplication; kept as-is
	// for parity with established results.
	annVol := stddev * math.Sqrt(tradingDaysPerYear)
	if annVol > 0 {
		m.SharpeRatio = (mean*tradingDaysPerYear - riskFreeRate) / annVol
	}

	dailyRF := riskFreeRate / tradingDaysPerYear
	downDev := downsideDeviation(returns, dailyRF)
	annDown := downDev * math.Sqrt(tradingDaysPerYear)
	if annDown > 0 {
		m.SortinoRatio = (mean*tradingDaysPerYear - riskFreeRate) / annDown
	}

	m.computeDrawdowns(equity)

	// Calmar re-annualizes by bar count rather than wall time.
	barYears := float64(len(equity)) / tradingDaysPerYear
	if barCAGR := cagr(initial, final, barYears); m.MaxDrawdownPct > 0 {
		m.CalmarRatio = barCAGR / m.MaxDrawdownPct
	}

	m.computeTrades(trades)
	m.computeExposure(equity)
	return m
}

// periodReturns is the simple return between consecutive equity points,
// skipping pairs with a non-positive starting equity.
func periodReturns(equity []portfolio.EquityPoint) []float64 {
	var out []float64
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			continue
		}
		out = append(out, (equity[i].Equity-prev)/prev)
	}
	return out
}

// cagr returns the compound annual growth rate in percent, 0 when the
// inputs cannot support the computation.
func cagr(initial, final, years float64) float64 {
	if years <= 0 || initial <= 0 || final <= 0 {
		return 0
	}
	return (math.Pow(final/initial, 1/years) - 1) * 100
}

func meanStddev(xs []float64) (mean, stddev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}

// downsideDeviation measures dispersion of returns below the minimum
// acceptable return, over the below-target subset only.
func downsideDeviation(xs []float64, mar float64) float64 {
	sum := 0.0
	n := 0
	for _, x := range xs {
		if x < mar {
			d := x - mar
			sum += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

func (m *PerformanceMetrics) computeDrawdowns(equity []portfolio.EquityPoint) {
	var ddSum float64
	var ddCount int
	var inDD bool
	var ddStart time.Time

	for _, pt := range equity {
		if pt.Drawdown > m.MaxDrawdown {
			m.MaxDrawdown = pt.Drawdown
		}
		if pt.DrawdownPct > m.MaxDrawdownPct {
			m.MaxDrawdownPct = pt.DrawdownPct
		}
		if pt.DrawdownPct > 0 {
			ddSum += pt.DrawdownPct
			ddCount++
			if !inDD {
				inDD = true
				ddStart = pt.Time
			}
		} else if inDD {
			if d := pt.Time.Sub(ddStart).Hours() / 24; d > m.MaxDrawdownDuration {
				m.MaxDrawdownDuration = d
			}
			inDD = false
		}
	}
	// A drawdown still open at the end of the series counts.
	if inDD {
		last := equity[len(equity)-1].Time
		if d := last.Sub(ddStart).Hours() / 24; d > m.MaxDrawdownDuration {
			m.MaxDrawdownDuration = d
		}
	}
	if ddCount > 0 {
		m.AvgDrawdownPct = ddSum / float64(ddCount)
	}
}

func (m *PerformanceMetrics) computeTrades(trades []portfolio.Trade) {
	var grossWin, grossLoss float64
	var winPctSum, lossPctSum float64
	var winStreak, lossStreak int

	for _, t := range trades {
		m.TotalCommission += t.Commission
		m.TotalSlippage += t.Slippage

		if t.PnL == nil {
			continue
		}
		m.TotalTrades++
		pnl := *t.PnL
		switch {
		case pnl > 0:
			m.WinningTrades++
			grossWin += pnl
			if t.PnLPct != nil {
				winPctSum += *t.PnLPct
			}
			if pnl > m.LargestWin {
				m.LargestWin = pnl
			}
			winStreak++
			lossStreak = 0
			if winStreak > m.MaxConsecutiveWins {
				m.MaxConsecutiveWins = winStreak
			}
		case pnl < 0:
			m.LosingTrades++
			grossLoss += -pnl
			if t.PnLPct != nil {
				lossPctSum += -*t.PnLPct
			}
			if -pnl > m.LargestLoss {
				m.LargestLoss = -pnl
			}
			lossStreak++
			winStreak = 0
			if lossStreak > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = lossStreak
			}
		default:
			winStreak, lossStreak = 0, 0
		}
	}

	if m.TotalTrades == 0 {
		return
	}

	winFrac := float64(m.WinningTrades) / float64(m.TotalTrades)
	m.WinRate = winFrac * 100
	if m.WinningTrades > 0 {
		m.AvgWin = grossWin / float64(m.WinningTrades)
		m.AvgWinPct = winPctSum / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = grossLoss / float64(m.LosingTrades)
		m.AvgLossPct = lossPctSum / float64(m.LosingTrades)
	}

	m.ProfitFactor = infGuardRatio(grossWin, grossLoss)
	m.PayoffRatio = infGuardRatio(m.AvgWin, m.AvgLoss)
	m.Expectancy = winFrac*m.AvgWin - (1-winFrac)*m.AvgLoss
}

// infGuardRatio divides num by den, reporting +Inf when den is zero but
// num is positive, and 0 when both are zero.
func infGuardRatio(num, den float64) float64 {
	if den == 0 {
		if num > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return num / den
}

func (m *PerformanceMetrics) computeExposure(equity []portfolio.EquityPoint) {
	var sum float64
	var inMarket int
	for _, pt := range equity {
		exp := 0.0
		if pt.Equity > 0 {
			exp = pt.PositionValue / pt.Equity * 100
		}
		sum += exp
		if exp > m.MaxExposure {
			m.MaxExposure = exp
		}
		if pt.PositionValue != 0 {
			inMarket++
		}
	}
	n := float64(len(equity))
	m.AvgExposure = sum / n
	m.TimeInMarket = float64(inMarket) / n * 100
}

// MonthlyReturns groups equity points by calendar month. The month opens at
// the first point seen and closes at the last, in input order.
func MonthlyReturns(equity []portfolio.EquityPoint) []MonthlyReturn {
	type key struct {
		year  int
		month int
	}
	byMonth := make(map[key]*MonthlyReturn)

	for _, pt := range equity {
		k := key{pt.Time.Year(), int(pt.Time.Month())}
		mr, ok := byMonth[k]
		if !ok {
			mr = &MonthlyReturn{Year: k.year, Month: k.month, Open: pt.Equity}
			byMonth[k] = mr
		}
		mr.Close = pt.Equity
	}

	out := make([]MonthlyReturn, 0, len(byMonth))
	for _, mr := range byMonth {
		mr.Return = mr.Close - mr.Open
		if mr.Open > 0 {
			mr.ReturnPct = mr.Return / mr.Open * 100
		}
		out = append(out, *mr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}
