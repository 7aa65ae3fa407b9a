package engine

import (
	"context"
	"fmt"

	"github.com/quantlab/backtest/metrics"
)

// ParamAxis is one named dimension of a grid search.
type ParamAxis struct {
	Name   string
	Values []float64
}

// OptimizeConfig describes a grid search: the base run plus the axes to
// sweep and the metric to maximize.
type OptimizeConfig struct {
	Run    RunConfig
	Axes   []ParamAxis
	Metric string
}

// Combination is one evaluated point of the grid.
type Combination struct {
	Params map[string]float64 `json:"params"`
	Score  float64            `json:"score"`
	Result *Result            `json:"result"`
}

type OptimizeResult struct {
	Metric string        `json:"metric"`
	Best   *Combination  `json:"best,omitempty"`
	Runs   []Combination `json:"runs"`
}

// Optimize runs the full cross-product of the axes, first axis varying
// slowest, strictly one run after another. The best combination is the one
// maximizing the requested metric; ties keep the first found. Runs ending
// in an error status are recorded but never win.
func (e *Engine) Optimize(ctx context.Context, oc OptimizeConfig) (*OptimizeResult, error) {
	if len(oc.Axes) == 0 {
		return nil, fmt.Errorf("optimize: no parameter axes")
	}
	for _, ax := range oc.Axes {
		if len(ax.Values) == 0 {
			return nil, fmt.Errorf("optimize: axis %q has no values", ax.Name)
		}
	}
	if _, err := metricValue(metrics.PerformanceMetrics{}, oc.Metric); err != nil {
		return nil, err
	}

	out := &OptimizeResult{Metric: oc.Metric}

	for _, params := range enumerate(oc.Axes) {
		rc := oc.Run
		rc.Params = merge(oc.Run.Params, params)

		res, err := e.Run(ctx, rc)
		if err != nil {
			return nil, err
		}

		combo := Combination{Params: params, Result: res}
		if res.Status != StatusError {
			combo.Score, _ = metricValue(res.Metrics, oc.Metric)
			if out.Best == nil || combo.Score > out.Best.Score {
				c := combo
				out.Best = &c
			}
		}
		out.Runs = append(out.Runs, combo)
	}
	return out, nil
}

// enumerate yields the cross-product in order, first axis slowest.
func enumerate(axes []ParamAxis) []map[string]float64 {
	total := 1
	for _, ax := range axes {
		total *= len(ax.Values)
	}

	out := make([]map[string]float64, 0, total)
	idx := make([]int, len(axes))
	for {
		params := make(map[string]float64, len(axes))
		for i, ax := range axes {
			params[ax.Name] = ax.Values[idx[i]]
		}
		out = append(out, params)

		// Increment like an odometer, last axis fastest.
		i := len(axes) - 1
		for i >= 0 {
			idx[i]++
			if idx[i] < len(axes[i].Values) {
				break
			}
			idx[i] = 0
			i--
		}
		if i < 0 {
			return out
		}
	}
}

func merge(base, override map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func metricValue(m metrics.PerformanceMetrics, name string) (float64, error) {
	switch name {
	case "total_return":
		return m.TotalReturn, nil
	case "total_return_pct":
		return m.TotalReturnPct, nil
	case "cagr":
		return m.CAGR, nil
	case "annualized_return":
		return m.AnnualizedReturn, nil
	case "sharpe_ratio":
		return m.SharpeRatio, nil
	case "sortino_ratio":
		return m.SortinoRatio, nil
	case "calmar_ratio":
		return m.CalmarRatio, nil
	case "profit_factor":
		return m.ProfitFactor, nil
	case "win_rate":
		return m.WinRate, nil
	case "expectancy":
		return m.Expectancy, nil
	}
	return 0, fmt.Errorf("unknown optimization metric: %s", name)
}
