package cli

import (
	"github.com/spf13/cobra"

	"pricewatch/internal/app"
)

var compareCmd = &cobra.Command{
	Use:   "compare <category>",
	Short: "Rank equivalent products in a category by current price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Compare(cmd.Context(), app.CompareOptions{Category: args[0]})
	},
}
