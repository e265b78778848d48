package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy/builtins"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/urfave/cli/v3"
)

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	l, err := logger.NewLoggerWithLevel(cmd.String("log-level"))
	if err != nil {
		return err
	}
	defer l.Sync()

	summary, err := runBatch(ctx, batchConfig{
		ConfigPath: cmd.String("config"),
		DataGlob:   cmd.String("data"),
		Symbol:     cmd.String("symbol"),
		Strategy:   cmd.String("strategy"),
		ParamsPath: cmd.String("params"),
		OutputDir:  cmd.String("output"),
		Progress:   !cmd.Bool("quiet"),
	}, l)

	fmt.Printf("\n%d result(s) written to %s\n", len(summary.Written), cmd.String("output"))

	return err
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest",
		Usage:   "Backtest a strategy on daily bar files",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Glob of Parquet or CSV bar files",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Engine config file (YAML or JSON). Defaults apply when omitted",
			},
			&cli.StringFlag{
				Name:    "symbol",
				Aliases: []string{"s"},
				Usage:   "Symbol to backtest. Every symbol of each file when omitted",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "Strategy type key",
				Value: builtins.MovingAverageType,
			},
			&cli.StringFlag{
				Name:    "params",
				Aliases: []string{"p"},
				Usage:   "Strategy parameter file (YAML or JSON)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory results are written to",
				Value:   "results",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "warn",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide the progress bar",
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
