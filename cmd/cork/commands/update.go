package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/service"
	"github.com/duskmoor/corkboard/pkg/board"
)

var (
	updateName   string
	updatePath   string
	updateBranch string
)

var updateCmd = &cobra.Command{
	Use:   "update <window>",
	Short: "Edit a window's name, path or branch",
	Long: `Edit a window's name, path or branch.

Only the fields given as flags change; the rest of the window is left
alone. An explicitly empty --branch clears the branch.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateName, "name", "", "New name for the window")
	updateCmd.Flags().StringVar(&updatePath, "path", "", "New workspace path for the window")
	updateCmd.Flags().StringVar(&updateBranch, "branch", "", "New branch for the window (empty clears it)")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	var patch board.FieldPatch
	if cmd.Flags().Changed("name") {
		patch.Name = &updateName
	}
	if cmd.Flags().Changed("path") {
		patch.Path = &updatePath
	}
	if cmd.Flags().Changed("branch") {
		patch.Branch = &updateBranch
	}
	if patch.Name == nil && patch.Path == nil && patch.Branch == nil {
		return printer.Error(
			"Nothing to update",
			"no fields were given",
			[]string{"Pass at least one of --name, --path or --branch"},
		)
	}

	return withService(func(ctx context.Context, svc *service.Service) error {
		rec, err := resolveRecord(svc.Board(), args[0])
		if err != nil {
			return err
		}
		err = svc.UpdateRecord(ctx, rec.ID, patch)
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return printer.Error("Invalid window", verr.Error(), nil)
		}
		if err != nil {
			return err
		}
		printer.Success("Updated '%s' (%s)", rec.Name, shortID(rec.ID))
		return nil
	})
}
