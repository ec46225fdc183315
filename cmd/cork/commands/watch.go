package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/service"
	"github.com/duskmoor/corkboard/pkg/board"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream board changes as they happen",
	Long: `Stream board changes as they happen.

Prints a summary line whenever the board changes, whether the change
came from this replica or was merged in from a peer. Runs until
interrupted with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		printer.Info("Watching board as replica %s (Ctrl+C to stop)", shortID(svc.ReplicaID()))
		printer.Println(summaryLine(svc.Board()))

		changes := make(chan board.Board, 16)
		unsubscribe := svc.OnStateChange(func(b board.Board) {
			select {
			case changes <- b:
			default:
			}
		})
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				printer.Info("Stopped watching")
				return nil
			case b := <-changes:
				printer.Println(summaryLine(b))
			}
		}
	})
}

func summaryLine(b board.Board) string {
	cols := append([]board.Column(nil), b.Columns...)
	sort.Slice(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })

	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%s: %d", c.Name, len(b.InColumn(c.ID))))
	}
	ts := time.UnixMilli(b.LastModifiedMs).Format("15:04:05")
	return fmt.Sprintf("[%s] %s", ts, strings.Join(parts, "  "))
}
