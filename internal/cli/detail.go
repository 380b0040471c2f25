package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

var detailCmd = &cobra.Command{
	Use:   "detail <id>",
	Short: "Show a product with its windowed statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		return getApp().Detail(cmd.Context(), id)
	},
}
