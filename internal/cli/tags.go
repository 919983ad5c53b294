package cli

import (
	"github.com/spf13/cobra"

	"azure-cost-alerts/internal/app"
)

var tagsCSV bool

var tagsCmd = &cobra.Command{
	Use:   "tags <subscription_prefix>",
	Short: "List resource tags and whether each resource type supports tagging",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Tags(cmd.Context(), app.TagsOptions{Prefix: args[0], CSV: tagsCSV})
	},
}

func init() {
	tagsCmd.Flags().BoolVar(&tagsCSV, "csv", false, "Write one tag CSV per subscription")
}
