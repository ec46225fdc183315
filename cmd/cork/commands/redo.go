package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/service"
)

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Reapply the most recently undone edit",
	Args:  cobra.NoArgs,
	RunE:  runRedo,
}

func init() {
	rootCmd.AddCommand(redoCmd)
}

func runRedo(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		done, err := svc.Redo(ctx)
		if err != nil {
			return err
		}
		if !done {
			printer.Info("Nothing to redo")
			return nil
		}
		printer.Success("Reapplied the last undone edit")
		return nil
	})
}
