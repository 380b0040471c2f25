package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"pricewatch/internal/app"
)

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Fetch current prices and evaluate alerts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.UpdateOptions{}
		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			opts.ID = id
		}
		return getApp().Update(cmd.Context(), opts)
	},
}
