package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	enginev1 "github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/strategy/builtins"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type batchConfig struct {
	ConfigPath string
	DataGlob   string
	Symbol     string
	Strategy   string
	ParamsPath string
	OutputDir  string
	Progress   bool
}

type job struct {
	dataPath string
	symbol   string
	bars     []types.Bar
}

type batchSummary struct {
	Written []string
	Failed  int
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	return string(content), nil
}

// runBatch backtests the strategy on every symbol of every matching data
// file and writes one result directory per run. A failing run is logged
// and counted; the others still run.
func runBatch(ctx context.Context, cfg batchConfig, log *logger.Logger) (batchSummary, error) {
	var summary batchSummary

	engineConfig, err := readOptional(cfg.ConfigPath)
	if err != nil {
		return summary, err
	}

	parsed, err := enginev1.ParseConfig(engineConfig)
	if err != nil {
		return summary, err
	}

	params, err := readOptional(cfg.ParamsPath)
	if err != nil {
		return summary, err
	}

	registry, err := builtins.NewRegistry(indicator.NewDefaultIndicatorRegistry(), log)
	if err != nil {
		return summary, err
	}

	// fail fast on an unknown strategy or bad parameters
	if _, err := registry.Create(cfg.Strategy, params); err != nil {
		return summary, err
	}

	files, err := filepath.Glob(cfg.DataGlob)
	if err != nil {
		return summary, fmt.Errorf("invalid data pattern %q: %w", cfg.DataGlob, err)
	}

	if len(files) == 0 {
		return summary, fmt.Errorf("no data files match %q", cfg.DataGlob)
	}

	jobs, failed := loadJobs(files, cfg.Symbol, parsed, log)
	summary.Failed = failed

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetDescription("Backtesting"),
			progressbar.OptionShowCount(),
		)
	}

	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		dir, err := runJob(ctx, j, cfg, engineConfig, params, parsed, registry, log)
		if err != nil {
			summary.Failed++

			log.Error("Backtest failed",
				zap.String("data", j.dataPath),
				zap.String("symbol", j.symbol),
				zap.Error(err),
			)
		} else {
			summary.Written = append(summary.Written, dir)
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d of %d backtests failed", summary.Failed, len(jobs)+failed)
	}

	return summary, nil
}

// loadJobs reads the bars of every file. A file that cannot be read is
// logged and counted as one failed backtest.
func loadJobs(files []string, symbol string, config enginev1.BacktestEngineV1Config, log *logger.Logger) ([]job, int) {
	var jobs []job

	failed := 0

	for _, file := range files {
		fileJobs, err := loadFile(file, symbol, config, log)
		if err != nil {
			failed++

			log.Error("Failed to load data file", zap.String("data", file), zap.Error(err))

			continue
		}

		jobs = append(jobs, fileJobs...)
	}

	return jobs, failed
}

func loadFile(file string, symbol string, config enginev1.BacktestEngineV1Config, log *logger.Logger) ([]job, error) {
	source, err := datasource.NewDataSource(":memory:", log)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := source.Close(); err != nil {
			log.Warn("Failed to close data source", zap.String("data", file), zap.Error(err))
		}
	}()

	return readFile(source, file, symbol, config)
}

func readFile(source datasource.DataSource, file string, symbol string, config enginev1.BacktestEngineV1Config) ([]job, error) {
	if err := source.Initialize(file); err != nil {
		return nil, err
	}

	count, err := source.Count(config.StartTime, config.EndTime)
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return nil, errors.Newf(errors.ErrCodeEmptyBarSeries, "%s has no bars in the configured period", filepath.Base(file))
	}

	symbols := []string{symbol}

	if symbol == "" {
		if symbols, err = source.Symbols(); err != nil {
			return nil, err
		}
	}

	jobs := make([]job, 0, len(symbols))

	for _, s := range symbols {
		bars, err := source.ReadBars(s, config.StartTime, config.EndTime)
		if err != nil {
			return nil, err
		}

		// files without a symbol column are named after the file
		name := s
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}

		jobs = append(jobs, job{dataPath: file, symbol: name, bars: bars})
	}

	return jobs, nil
}

func runJob(ctx context.Context, j job, cfg batchConfig, engineConfig string, params string,
	parsed enginev1.BacktestEngineV1Config, registry *strategy.Registry, log *logger.Logger,
) (string, error) {
	strat, err := registry.Create(cfg.Strategy, params)
	if err != nil {
		return "", err
	}

	backtestEngine := enginev1.NewBacktestEngineV1(log)
	defer backtestEngine.Close()

	if err := backtestEngine.Initialize(engineConfig); err != nil {
		return "", err
	}

	result, err := backtestEngine.Run(ctx, strat, j.bars, j.symbol)
	if err != nil {
		return "", err
	}

	dir := parsed.ResultFolder(cfg.OutputDir, strat.Name(), j.dataPath, j.symbol)
	if err := backtestEngine.Write(dir, result); err != nil {
		return "", err
	}

	log.Info("Backtest written",
		zap.String("dir", dir),
		zap.Int("trades", result.Metrics.TotalTrades),
		zap.Float64("strategy_return", result.Metrics.StrategyReturn),
	)

	return dir, nil
}
