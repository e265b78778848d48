package main

import (
	"context"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:      "report",
		Usage:     "Browse backtest results in the terminal",
		ArgsUsage: "[results directory or result.yaml]",
		Version:   version.GetVersion(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			root := cmd.Args().First()
			if root == "" {
				root = "results"
			}

			_, err := tea.NewProgram(NewModel(root), tea.WithAltScreen()).Run()

			return err
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
