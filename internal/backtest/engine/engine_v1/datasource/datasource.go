package datasource

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// Format is the on-disk layout of a bar file.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

type DataSource interface {
	// Initialize loads the daily bar file at path. Parquet and CSV are
	// detected from the file extension.
	Initialize(path string) error
	// ReadBars returns the bars of symbol between start and end inclusive,
	// oldest first. An empty symbol reads every symbol.
	ReadBars(symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.Bar, error)
	// Symbols returns the distinct symbols in the loaded file, sorted.
	Symbols() ([]string, error)
	// Count returns the number of bars between start and end inclusive.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Close closes the data source and releases any resources
	Close() error
}
