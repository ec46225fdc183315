package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/service"
	"github.com/duskmoor/corkboard/internal/timespec"
	"github.com/duskmoor/corkboard/pkg/board"
)

var (
	listJSON  bool
	listStale string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the board, column by column",
	Long: `List the board, column by column.

For each window, displays:
  • Short id and name
  • Open/closed status
  • Workspace path and branch
  • Time since last activity

Use --json for machine-readable output, and --stale to only show
windows with no activity since the given time ("72h", or an RFC3339
timestamp).`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output the board in JSON format")
	listCmd.Flags().StringVar(&listStale, "stale", "", "Only show windows inactive since this time (duration or RFC3339)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		b := svc.Board()

		if listStale != "" {
			cutoff, err := timespec.Parse(listStale)
			if err != nil {
				return err
			}
			kept := b.Windows[:0:0]
			for _, w := range b.Windows {
				if w.LastActiveMs <= cutoff {
					kept = append(kept, w)
				}
			}
			b.Windows = kept
		}

		if listJSON {
			out, err := json.MarshalIndent(b, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		cols := append([]board.Column(nil), b.Columns...)
		sort.Slice(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })

		for _, col := range cols {
			windows := b.InColumn(col.ID)
			printer.Heading(fmt.Sprintf("%s (%d)", col.Name, len(windows)), col.Color)
			if len(windows) == 0 {
				printer.Println("  (empty)")
				continue
			}
			for _, w := range windows {
				status := " "
				if w.IsOpen {
					status = "●"
				}
				printer.Printf("  %s %s  %s\n", status, shortID(w.ID), w.Name)
				detail := w.Path
				if w.Branch != "" {
					detail += " @ " + w.Branch
				}
				printer.Printf("      %s  (%s)\n", detail, sinceMs(w.LastActiveMs))
			}
		}
		return nil
	})
}

func sinceMs(ms int64) string {
	d := time.Since(time.UnixMilli(ms)).Round(time.Second)
	if d < time.Second {
		return "just now"
	}
	return fmt.Sprintf("%s ago", d)
}
