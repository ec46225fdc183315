package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/service"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo the most recent local edit",
	Long: `Undo the most recent local edit.

Only edits made through this replica's history are undone; changes
merged in from peers are not affected.`,
	Args: cobra.NoArgs,
	RunE: runUndo,
}

func init() {
	rootCmd.AddCommand(undoCmd)
}

func runUndo(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		done, err := svc.Undo(ctx)
		if err != nil {
			return err
		}
		if !done {
			printer.Info("Nothing to undo")
			return nil
		}
		printer.Success("Undid the last edit")
		return nil
	})
}
