package cli

import (
	"github.com/spf13/cobra"
)

var (
	watchAlertOnly bool
	watchCSV       bool
	watchXLSX      bool
	watchProvider  string
	watchWorkers   int
)

var watchCmd = &cobra.Command{
	Use:   "watch <subscription_prefix> <group|tag|subscription> [grouping_key]",
	Short: "Run the analysis on a schedule and expose prometheus metrics",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseAnalyzeArgs(args)
		if err != nil {
			return err
		}
		opts.AlertOnly = watchAlertOnly
		opts.CSV = watchCSV
		opts.XLSX = watchXLSX
		opts.Provider = watchProvider
		opts.Workers = watchWorkers

		return getApp().Watch(cmd.Context(), opts)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchAlertOnly, "alert", false, "Only report groups that raised an alert")
	watchCmd.Flags().BoolVar(&watchCSV, "csv", false, "Write CSV reports on every run")
	watchCmd.Flags().BoolVar(&watchXLSX, "xlsx", false, "Write a spreadsheet on every run")
	watchCmd.Flags().StringVar(&watchProvider, "provider", "", "Cost provider override: azure or aws")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 0, "Subscriptions analysed concurrently (default from config)")
}
