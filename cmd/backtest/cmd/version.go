package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantlab/backtest/strategy"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("backtest (dev)")
	},
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List registered strategy ids",
	Run: func(cmd *cobra.Command, args []string) {
		for _, id := range strategy.IDs() {
			fmt.Println(id)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd, strategiesCmd)
}
