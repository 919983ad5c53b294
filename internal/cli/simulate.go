package cli

import (
	"github.com/spf13/cobra"

	"azure-cost-alerts/internal/app"
)

var (
	simulateFile      string
	simulateLabel     string
	simulateDate      string
	simulateAlertOnly bool
	simulateOutput    string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the analysis over a local group,date,cost CSV file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Simulate(cmd.Context(), app.SimulateOptions{
			File:       simulateFile,
			GroupLabel: simulateLabel,
			Date:       simulateDate,
			AlertOnly:  simulateAlertOnly,
			Output:     simulateOutput,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateFile, "file", "", "Records file with group,date,cost rows")
	simulateCmd.Flags().StringVar(&simulateLabel, "group-label", "", "Column header for group keys")
	simulateCmd.Flags().StringVar(&simulateDate, "date", "", "Analysis date (YYYY-MM-DD, default yesterday)")
	simulateCmd.Flags().BoolVar(&simulateAlertOnly, "alert", false, "Only report groups that raised an alert")
	simulateCmd.Flags().StringVar(&simulateOutput, "output", "", "Console output format: table, json or yaml")
	_ = simulateCmd.MarkFlagRequired("file")
}
