package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"pricewatch/internal/app"
)

var removePurge bool

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Stop tracking a product",
	Long:  "Deactivates a product while retaining its history. With --purge the product and its history are deleted permanently.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		return getApp().Remove(cmd.Context(), app.RemoveOptions{ID: id, Purge: removePurge})
	},
}

func init() {
	removeCmd.Flags().BoolVar(&removePurge, "purge", false, "Delete the product and its history permanently")
}
