package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pricewatch/internal/app"
	"pricewatch/internal/money"
)

var (
	addStore  string
	addTarget string
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Track a storefront product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.AddOptions{Store: addStore, URL: args[0]}

		if addStore == "" {
			return fmt.Errorf("--store is required")
		}
		if addTarget != "" {
			target, err := money.Parse(addTarget)
			if err != nil {
				return fmt.Errorf("invalid --target value: %w", err)
			}
			opts.Target = &target
		}

		return getApp().Add(cmd.Context(), opts)
	},
}

func init() {
	addCmd.Flags().StringVar(&addStore, "store", "", "Store name the product belongs to")
	addCmd.Flags().StringVar(&addTarget, "target", "", "Target price that triggers an alert")
}
