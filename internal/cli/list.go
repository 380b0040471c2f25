package cli

import (
	"github.com/spf13/cobra"

	"pricewatch/internal/app"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked products",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().List(cmd.Context(), app.ListOptions{All: listAll})
	},
}

func init() {
	listCmd.Flags().BoolVar(&listAll, "all", false, "Include deactivated products")
}
