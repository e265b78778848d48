package main

import "github.com/rxtech-lab/argo-backtest/internal/types"

// ResultsFoundMsg carries the result files found under the root directory.
type ResultsFoundMsg struct {
	Paths []string
}

// ResultLoadedMsg carries a parsed result file.
type ResultLoadedMsg struct {
	Path   string
	Result types.BacktestResult
	// Warning is set when the result was written by an incompatible engine.
	Warning string
}

// LoadErrorMsg indicates a result could not be found or read.
type LoadErrorMsg struct {
	Err error
}
