package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/service"
)

var removeCmd = &cobra.Command{
	Use:   "remove <window>",
	Short: "Remove a window from the board",
	Long: `Remove a window from the board.

Removal only forgets the board entry; nothing on disk is touched.
Use 'cork undo' to bring a removed window back.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		rec, err := resolveRecord(svc.Board(), args[0])
		if err != nil {
			return err
		}
		if err := svc.RemoveRecord(ctx, rec.ID); err != nil {
			return err
		}
		printer.Success("Removed '%s' (%s)", rec.Name, shortID(rec.ID))
		return nil
	})
}
