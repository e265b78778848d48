package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	enginev1 "github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/server"
	"github.com/rxtech-lab/argo-backtest/internal/service"
	"github.com/rxtech-lab/argo-backtest/internal/strategy/builtins"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func engineSchema() (string, error) {
	config := enginev1.EmptyConfig()

	return config.GenerateSchemaJSON()
}

func newServer(l *logger.Logger) (*server.Server, error) {
	registry, err := builtins.NewRegistry(indicator.NewDefaultIndicatorRegistry(), l)
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy registry: %w", err)
	}

	return server.NewServer(service.NewBacktestService(registry, l), engineSchema, l), nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	l, err := logger.NewLoggerWithLevel(cmd.String("log-level"))
	if err != nil {
		return err
	}
	defer l.Sync()

	srv, err := newServer(l)
	if err != nil {
		return err
	}

	if err := srv.Start(cmd.String("addr")); err != nil {
		return err
	}

	l.Info("Backtest API listening", zap.String("url", srv.BaseURL()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	l.Info("Shutting down")

	return srv.Stop()
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest-server",
		Usage:   "Serve the backtest HTTP API",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address",
				Value: "127.0.0.1:8080",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "info",
			},
		},
		Action: serveAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
