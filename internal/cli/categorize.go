package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"pricewatch/internal/app"
)

var categorizeAll bool

var categorizeCmd = &cobra.Command{
	Use:   "categorize [id]",
	Short: "Assign generic category labels to products",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.CategorizeOptions{All: categorizeAll}
		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			opts.ID = id
		}
		return getApp().Categorize(cmd.Context(), opts)
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List assigned categories with product counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Categories(cmd.Context())
	},
}

func init() {
	categorizeCmd.Flags().BoolVar(&categorizeAll, "all", false, "Categorize every active product missing a label")
}
