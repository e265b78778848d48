package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	engine "github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/mocks"
	"github.com/rxtech-lab/argo-backtest/pkg/marketdata/writer"
	"github.com/urfave/cli/v3"
)

const (
	schemaName       = "backtest-engine-v1-config.json"
	sampleConfigName = "backtest-engine-v1-config.yaml"
)

func validatePaths(schemaPath string, sampleConfigPath string) error {
	if schemaPath == "" {
		return fmt.Errorf("schema path cannot be empty")
	}

	if sampleConfigPath == "" {
		return fmt.Errorf("sample config path cannot be empty")
	}

	return nil
}

func validateSchemaName(name string) error {
	if name == "" {
		return fmt.Errorf("schema name cannot be empty")
	}

	if filepath.Ext(name) != ".json" {
		return fmt.Errorf("schema name %q must have .json extension", name)
	}

	return nil
}

func getSchemaReference(name string) string {
	return "# yaml-language-server: $schema=" + name + "\n"
}

func generateSchemaFile(config engine.BacktestEngineV1Config, schemaPath string) error {
	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(schemaPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return os.WriteFile(schemaPath, []byte(schemaJSON), 0644)
}

// generateSampleConfig writes the default config with a schema reference.
// An existing file is left alone.
func generateSampleConfig(sampleConfigPath string, schemaName string) (bool, error) {
	if _, err := os.Stat(sampleConfigPath); err == nil {
		return false, nil
	}

	sample, err := engine.SampleYAML()
	if err != nil {
		return false, fmt.Errorf("failed to render sample config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(sampleConfigPath), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(sampleConfigPath, []byte(getSchemaReference(schemaName)+sample), 0644); err != nil {
		return false, err
	}

	return true, nil
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	schemaPath := filepath.Join(dir, schemaName)
	sampleConfigPath := filepath.Join(dir, sampleConfigName)

	if err := validatePaths(schemaPath, sampleConfigPath); err != nil {
		return err
	}

	if err := validateSchemaName(schemaName); err != nil {
		return err
	}

	if err := generateSchemaFile(engine.EmptyConfig(), schemaPath); err != nil {
		return err
	}

	written, err := generateSampleConfig(sampleConfigPath, schemaName)
	if err != nil {
		return err
	}

	if written {
		log.Printf("Sample config successfully generated at %s", sampleConfigPath)
	}

	log.Printf("Schema successfully generated at %s", schemaPath)

	return nil
}

func barsAction(_ context.Context, cmd *cli.Command) error {
	start, err := time.Parse(time.DateOnly, cmd.String("start"))
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	config := mocks.DefaultConfig()
	config.StartDate = start
	config.Count = int(cmd.Int("count"))
	config.InitialPrice = cmd.Float("price")
	config.Volatility = cmd.Float("volatility")
	config.Trend = cmd.Float("trend")

	generator := mocks.NewDataGenerator(int64(cmd.Int("seed")))

	var bars []types.Bar
	for _, symbol := range strings.Split(cmd.String("symbols"), ",") {
		config.Symbol = strings.TrimSpace(symbol)
		bars = append(bars, generator.Generate(config)...)
	}

	output := cmd.String("output")
	if err := writer.WriteBars(output, bars, logger.NewNopLogger()); err != nil {
		return err
	}

	log.Printf("%d bars written to %s", len(bars), output)

	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Usage:   "Generate engine config schemas and sample bar files",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "schema",
				Usage: "Write the engine config JSON schema and a sample config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Output directory",
						Value: "./config",
					},
				},
				Action: schemaAction,
			},
			{
				Name:  "bars",
				Usage: "Write random daily bars to a Parquet file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Parquet file to write", Required: true},
					&cli.StringFlag{Name: "symbols", Usage: "Comma separated symbols", Value: "600000"},
					&cli.StringFlag{Name: "start", Usage: "First date (YYYY-MM-DD)", Value: "2024-01-02"},
					&cli.IntFlag{Name: "count", Usage: "Trading days per symbol", Value: 250},
					&cli.IntFlag{Name: "seed", Usage: "Random seed", Value: 42},
					&cli.FloatFlag{Name: "price", Usage: "Initial price", Value: 10},
					&cli.FloatFlag{Name: "volatility", Usage: "Daily standard deviation of returns", Value: 0.02},
					&cli.FloatFlag{Name: "trend", Usage: "Total drift over the series", Value: 0},
				},
				Action: barsAction,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
