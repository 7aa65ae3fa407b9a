package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantlab/backtest/config"
	"github.com/quantlab/backtest/engine"
	"github.com/quantlab/backtest/journal"
	"github.com/quantlab/backtest/market"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single backtest over a CSV bar file",
	Long: `Run executes one backtest and prints a performance report.

Example:
  backtest run --bars data/btcusdt_1d.csv --symbol BTCUSDT --strategy sma-cross \
      --param fast=10 --param slow=30 --db runs.sqlite`,
	RunE: runRun,
}

var (
	runBarsPath   string
	runSymbol     string
	runInterval   string
	runStrategy   string
	runConfigPath string
	runStartStr   string
	runEndStr     string
	runDBPath     string
	runParams     []string
	runResample   string
	runQuiet      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runBarsPath, "bars", "b", "", "path to bar CSV (time,open,high,low,close,volume[,vwap]) (required)")
	runCmd.Flags().StringVarP(&runSymbol, "symbol", "S", "SYM", "symbol of the bar series")
	runCmd.Flags().StringVarP(&runInterval, "interval", "i", "1d", "bar interval label")
	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "sma-cross", "strategy id")
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to YAML/JSON simulation config")
	runCmd.Flags().StringVar(&runStartStr, "start", "", "start date (YYYY-MM-DD, inclusive)")
	runCmd.Flags().StringVar(&runEndStr, "end", "", "end date (YYYY-MM-DD, inclusive of the full day)")
	runCmd.Flags().StringVarP(&runDBPath, "db", "d", "", "SQLite journal to record the run into")
	runCmd.Flags().StringArrayVarP(&runParams, "param", "p", nil, "strategy parameter, name=value (repeatable)")
	runCmd.Flags().StringVarP(&runResample, "resample", "r", "", "aggregate input bars to a coarser interval (e.g. 1h, 4h, 24h)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress progress output")

	runCmd.MarkFlagRequired("bars")
}

func runRun(cobraCmd *cobra.Command, args []string) error {
	series, err := market.LoadCSV(runBarsPath, runSymbol, runInterval)
	if err != nil {
		return err
	}

	if runResample != "" {
		width, err := time.ParseDuration(runResample)
		if err != nil {
			return fmt.Errorf("bad --resample: %w", err)
		}
		series, err = market.Resample(series, width, runResample)
		if err != nil {
			return err
		}
	}

	cfg := config.Default()
	if runConfigPath != "" {
		cfg, err = config.LoadFromFile(runConfigPath)
		if err != nil {
			return err
		}
	}

	start, end, err := parseDates(runStartStr, runEndStr)
	if err != nil {
		return err
	}

	params, err := parseParams(runParams)
	if err != nil {
		return err
	}

	eng := engine.New(cfg)
	if !runQuiet {
		eng.Subscribe(func(ev engine.Event) {
			if p, ok := ev.Payload.(engine.ProgressPayload); ok && ev.Kind == engine.EventProgress {
				fmt.Fprintf(os.Stderr, "\r%3.0f%% (%d/%d bars)", p.Percent, p.Processed, p.Total)
			}
		})
	}

	res, err := eng.Run(context.Background(), engine.RunConfig{
		Strategy: runStrategy,
		Params:   params,
		Series:   series,
		Start:    start,
		End:      end,
	})
	if err != nil {
		return err
	}
	if !runQuiet {
		fmt.Fprintln(os.Stderr)
	}

	PrintResult(os.Stdout, res)

	if runDBPath != "" {
		j, err := journal.NewSQLite(runDBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		if err := j.RecordRun(res); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		fmt.Printf("Run %s recorded in %s\n", res.RunID, runDBPath)
	}

	if res.Status == engine.StatusError {
		return fmt.Errorf("run failed: %s", res.Error)
	}
	return nil
}

func parseDates(startStr, endStr string) (start, end time.Time, err error) {
	const layout = "2006-01-02"
	if startStr != "" {
		start, err = time.Parse(layout, startStr)
		if err != nil {
			return start, end, fmt.Errorf("bad --start: %w", err)
		}
	}
	if endStr != "" {
		end, err = time.Parse(layout, endStr)
		if err != nil {
			return start, end, fmt.Errorf("bad --end: %w", err)
		}
	}
	return start, end, nil
}

func parseParams(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("bad --param %q: want name=value", pair)
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("bad --param %q: %w", pair, err)
		}
		out[name] = v
	}
	return out, nil
}
