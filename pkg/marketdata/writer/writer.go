package writer

import (
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// BarWriter persists daily bars to a file the data source can load.
type BarWriter interface {
	// Initialize sets up the writer, potentially creating tables or files.
	Initialize() error
	// Write validates and buffers one bar.
	Write(bar types.Bar) error
	// Finalize commits the buffered bars and exports the output file.
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	GetOutputPath() string
}
