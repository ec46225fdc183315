package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/scaffold"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init [board-name]",
	Short: "Create a corkboard.yml in the current directory",
	Long: `Create a corkboard.yml configuration file in the current directory.

The board name defaults to the name of the current directory. The
generated configuration uses the file backend; edit it to point at
Redis when several machines should share the board.

Use --force to overwrite an existing configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing corkboard.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	boardName := ""
	if len(args) == 1 {
		boardName = args[0]
	}
	if boardName == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		boardName = filepath.Base(wd)
	}

	if !forceInit {
		if err := scaffold.CheckExisting(configPath); err != nil {
			return printer.Error(
				"Configuration already exists",
				err.Error(),
				[]string{"Use --force to overwrite it"},
			)
		}
	}

	if err := scaffold.Initialize(configPath, boardName); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess(configPath, boardName)
	return nil
}
