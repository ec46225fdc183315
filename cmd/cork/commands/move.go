package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/service"
)

var moveCmd = &cobra.Command{
	Use:   "move <window> <column> [position]",
	Short: "Move a window to another column or position",
	Long: `Move a window to another column, or to a new position within one.

The window can be named by id, unique id prefix or unique name; the
column by name or id. Position counts from 0 and defaults to the end
of the target column. Out-of-range positions are clamped.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		b := svc.Board()

		rec, err := resolveRecord(b, args[0])
		if err != nil {
			return err
		}
		col, err := resolveColumn(b, args[1])
		if err != nil {
			return err
		}

		// Default to the end of the destination column. Clamping in the
		// board transform handles same-column moves, where the gap left
		// behind makes the real maximum one smaller.
		toOrder := b.NextOrder(col.ID)
		if len(args) == 3 {
			toOrder, err = strconv.Atoi(args[2])
			if err != nil || toOrder < 0 {
				return printer.Error(
					"Invalid position",
					"position must be a non-negative integer",
					nil,
				)
			}
		}

		if err := svc.MoveRecord(ctx, rec.ID, col.ID, toOrder); err != nil {
			return err
		}
		printer.Success("Moved '%s' to %s", rec.Name, col.Name)
		return nil
	})
}
