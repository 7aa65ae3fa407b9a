package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantlab/backtest/config"
	"github.com/quantlab/backtest/engine"
	"github.com/quantlab/backtest/market"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid-search strategy parameters over a CSV bar file",
	Long: `Optimize runs the backtest once per combination of the supplied
parameter axes and reports the combination maximizing the chosen metric.

Example:
  backtest optimize --bars data/btcusdt_1d.csv --strategy sma-cross \
      --axis fast=5,10,20 --axis slow=30,50,100 --metric sharpe_ratio`,
	RunE: runOptimize,
}

var (
	optBarsPath   string
	optSymbol     string
	optInterval   string
	optStrategy   string
	optConfigPath string
	optStartStr   string
	optEndStr     string
	optAxes       []string
	optMetric     string
)

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVarP(&optBarsPath, "bars", "b", "", "path to bar CSV (required)")
	optimizeCmd.Flags().StringVarP(&optSymbol, "symbol", "S", "SYM", "symbol of the bar series")
	optimizeCmd.Flags().StringVarP(&optInterval, "interval", "i", "1d", "bar interval label")
	optimizeCmd.Flags().StringVarP(&optStrategy, "strategy", "s", "sma-cross", "strategy id")
	optimizeCmd.Flags().StringVarP(&optConfigPath, "config", "c", "", "path to YAML/JSON simulation config")
	optimizeCmd.Flags().StringVar(&optStartStr, "start", "", "start date (YYYY-MM-DD)")
	optimizeCmd.Flags().StringVar(&optEndStr, "end", "", "end date (YYYY-MM-DD, inclusive)")
	optimizeCmd.Flags().StringArrayVarP(&optAxes, "axis", "a", nil, "parameter axis, name=v1,v2,... (repeatable, required)")
	optimizeCmd.Flags().StringVarP(&optMetric, "metric", "m", "sharpe_ratio", "metric to maximize")

	optimizeCmd.MarkFlagRequired("bars")
	optimizeCmd.MarkFlagRequired("axis")
}

func runOptimize(cobraCmd *cobra.Command, args []string) error {
	series, err := market.LoadCSV(optBarsPath, optSymbol, optInterval)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if optConfigPath != "" {
		cfg, err = config.LoadFromFile(optConfigPath)
		if err != nil {
			return err
		}
	}

	start, end, err := parseDates(optStartStr, optEndStr)
	if err != nil {
		return err
	}

	axes, err := parseAxes(optAxes)
	if err != nil {
		return err
	}

	eng := engine.New(cfg)
	out, err := eng.Optimize(context.Background(), engine.OptimizeConfig{
		Run: engine.RunConfig{
			Strategy: optStrategy,
			Series:   series,
			Start:    start,
			End:      end,
		},
		Axes:   axes,
		Metric: optMetric,
	})
	if err != nil {
		return err
	}

	w := os.Stdout
	fmt.Fprintf(w, "Evaluated %d combinations, metric: %s\n\n", len(out.Runs), out.Metric)
	for _, combo := range out.Runs {
		fmt.Fprintf(w, "  %-40s %s = %.4f (%s)\n",
			formatParams(combo.Params), out.Metric, combo.Score, combo.Result.Status)
	}
	if out.Best == nil {
		fmt.Fprintln(w, "\nNo combination produced a usable result.")
		return nil
	}
	fmt.Fprintf(w, "\nBest: %s with %s = %.4f\n", formatParams(out.Best.Params), out.Metric, out.Best.Score)
	PrintResult(w, out.Best.Result)
	return nil
}

func parseAxes(specs []string) ([]engine.ParamAxis, error) {
	axes := make([]engine.ParamAxis, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("bad --axis %q: want name=v1,v2,...", spec)
		}
		var vals []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("bad --axis %q: %w", spec, err)
			}
			vals = append(vals, v)
		}
		axes = append(axes, engine.ParamAxis{Name: name, Values: vals})
	}
	return axes, nil
}

func formatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, params[k]))
	}
	return strings.Join(parts, " ")
}
