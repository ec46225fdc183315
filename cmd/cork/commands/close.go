package commands

import (
	"github.com/spf13/cobra"
)

var closeCmd = &cobra.Command{
	Use:   "close <window>",
	Short: "Mark a window as closed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetOpen(args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(closeCmd)
}
