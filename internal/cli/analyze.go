package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"azure-cost-alerts/internal/analysis"
	"azure-cost-alerts/internal/app"
)

var (
	analyzeAlertOnly bool
	analyzeCSV       bool
	analyzeXLSX      bool
	analyzeChart     bool
	analyzeDate      string
	analyzeOutput    string
	analyzeProvider  string
	analyzeWorkers   int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <subscription_prefix> <group|tag|subscription> [grouping_key]",
	Short: "Compare the analysis date cost of each group with its trailing six day baseline",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseAnalyzeArgs(args)
		if err != nil {
			return err
		}
		opts.Date = analyzeDate
		opts.AlertOnly = analyzeAlertOnly
		opts.CSV = analyzeCSV
		opts.XLSX = analyzeXLSX
		opts.Chart = analyzeChart
		opts.Output = analyzeOutput
		opts.Provider = analyzeProvider
		opts.Workers = analyzeWorkers

		return getApp().Analyze(cmd.Context(), opts)
	},
}

// parseAnalyzeArgs maps positional arguments shared by analyze and watch.
func parseAnalyzeArgs(args []string) (app.AnalyzeOptions, error) {
	analysisType, err := analysis.ParseAnalysisType(args[1])
	if err != nil {
		return app.AnalyzeOptions{}, err
	}
	opts := app.AnalyzeOptions{Prefix: args[0], Type: analysisType}
	if len(args) > 2 {
		opts.GroupingKey = args[2]
	}
	if analysisType.NeedsGroupingKey() && opts.GroupingKey == "" {
		return app.AnalyzeOptions{}, fmt.Errorf("grouping_key is required for %s analysis", analysisType)
	}
	return opts, nil
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeAlertOnly, "alert", false, "Only report groups that raised an alert")
	analyzeCmd.Flags().BoolVar(&analyzeCSV, "csv", false, "Write one CSV report per subscription")
	analyzeCmd.Flags().BoolVar(&analyzeXLSX, "xlsx", false, "Write a spreadsheet with one sheet per subscription")
	analyzeCmd.Flags().BoolVar(&analyzeChart, "chart", false, "Write a PNG pie chart of analysis date cost per subscription")
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "Analysis date (YYYY-MM-DD, default yesterday)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "Console output format: table, json or yaml")
	analyzeCmd.Flags().StringVar(&analyzeProvider, "provider", "", "Cost provider override: azure or aws")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Subscriptions analysed concurrently (default from config)")
}
