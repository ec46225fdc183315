package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/service"
)

var openCmd = &cobra.Command{
	Use:   "open <window>",
	Short: "Mark a window as open",
	Long: `Mark a window as open and refresh its last-active time.

Open windows show a filled marker in 'cork list'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetOpen(args[0], true)
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func runSetOpen(ref string, isOpen bool) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		rec, err := resolveRecord(svc.Board(), ref)
		if err != nil {
			return err
		}
		if err := svc.SetOpen(ctx, rec.ID, isOpen); err != nil {
			return err
		}
		if isOpen {
			printer.Success("Opened '%s'", rec.Name)
		} else {
			printer.Success("Closed '%s'", rec.Name)
		}
		return nil
	})
}
