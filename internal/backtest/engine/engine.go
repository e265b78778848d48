package engine

import (
	"context"

	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// Engine runs one strategy over one daily bar series and reports the result.
type Engine interface {
	// Initialize the engine with the given YAML or JSON configuration.
	// An empty document keeps the defaults.
	Initialize(config string) error
	// Run backtests strategy over bars. Every bar is tagged with symbol, or
	// keeps its own symbol when symbol is empty. An empty series fails
	// before any strategy method runs.
	Run(ctx context.Context, strategy strategy.Strategy, bars []types.Bar, symbol string) (types.BacktestResult, error)
	// Write saves result.yaml and the Parquet journals of result into dir.
	Write(dir string, result types.BacktestResult) error
	// GetConfigSchema returns the schema of the engine configuration
	GetConfigSchema() (string, error)
	// Close releases the journal databases.
	Close() error
}

// ResultFileName is the name of the result document written by Write.
const ResultFileName = "result.yaml"
