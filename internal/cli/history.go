package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"pricewatch/internal/app"
)

var (
	historyLimit     int
	historyPNGPath   string
	historyCSVPath   string
	historyMaxPoints int
)

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show or export the price history of a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		return getApp().History(cmd.Context(), app.HistoryOptions{
			ID:        id,
			Limit:     historyLimit,
			PNGPath:   historyPNGPath,
			CSVPath:   historyCSVPath,
			MaxPoints: historyMaxPoints,
		})
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 30, "Number of recent observations to print")
	historyCmd.Flags().StringVar(&historyPNGPath, "png", "", "Path to write PNG chart")
	historyCmd.Flags().StringVar(&historyCSVPath, "csv", "", "Path to write CSV data")
	historyCmd.Flags().IntVar(&historyMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
