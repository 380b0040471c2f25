package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [id]",
	Short: "Re-evaluate alert rules from stored prices without fetching",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if len(args) == 1 {
			parsed, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			id = parsed
		}
		return getApp().Check(cmd.Context(), id)
	},
}
