package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/duskmoor/corkboard/internal/git"
	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/service"
	"github.com/duskmoor/corkboard/pkg/board"
)

var (
	addColumn string
	addBranch string
)

var addCmd = &cobra.Command{
	Use:   "add <name> <path>",
	Short: "Track a new window on the board",
	Long: `Track a new window on the board.

The window is appended to the end of the target column (backlog by
default). Name and path must be non-empty; the path is stored as
given, it is not required to exist on this machine.

When the path is a checked-out Git repository and --branch is not
given, the current branch is recorded automatically.`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addColumn, "column", "c", "backlog", "Column to add the window to (name or id)")
	addCmd.Flags().StringVarP(&addBranch, "branch", "b", "", "Branch to record for the window")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]

	branch := addBranch
	if branch == "" {
		// Best effort: when the workspace is a checked-out repository,
		// record its current branch.
		branch = git.NewInspector().DetectBranch(path)
	}

	return withService(func(ctx context.Context, svc *service.Service) error {
		col, err := resolveColumn(svc.Board(), addColumn)
		if err != nil {
			return err
		}

		rec, err := svc.AddRecord(ctx, col.ID, name, path)
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return printer.Error("Invalid window", verr.Error(), nil)
		}
		if err != nil {
			return err
		}

		if branch != "" {
			if err := svc.UpdateRecord(ctx, rec.ID, board.FieldPatch{Branch: &branch}); err != nil {
				return err
			}
		}

		printer.Success("Added '%s' to %s (%s)", rec.Name, col.Name, shortID(rec.ID))
		return nil
	})
}
