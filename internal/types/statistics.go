package types

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type Metrics struct {
	// (close[last] - close[first]) / close[first]
	BuyHoldReturn float64 `yaml:"buy_hold_return" json:"buy_hold_return"`
	// Zero when no trade happened.
	StrategyReturn float64 `yaml:"strategy_return" json:"strategy_return"`
	ExcessReturn   float64 `yaml:"excess_return" json:"excess_return"`
	// Peak-to-trough decline of the cash curve replayed from trades only.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	TotalTrades int     `yaml:"total_trades" json:"total_trades"`
	// Winning closed sells divided by closed sells, buys paired FIFO.
	WinRate       float64 `yaml:"win_rate" json:"win_rate"`
	ClosedTrades  int     `yaml:"closed_trades" json:"closed_trades"`
	WinningTrades int     `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades  int     `yaml:"losing_trades" json:"losing_trades"`
	RealizedPnL   float64 `yaml:"realized_pnl" json:"realized_pnl"`
	TotalFees     float64 `yaml:"total_fees" json:"total_fees"`
	// Final cash plus open positions marked at the last close.
	FinalEquity float64 `yaml:"final_equity" json:"final_equity"`
}

type DataInfo struct {
	BarCount   int       `yaml:"bar_count" json:"bar_count"`
	StartDate  time.Time `yaml:"start_date" json:"start_date"`
	EndDate    time.Time `yaml:"end_date" json:"end_date"`
	FirstClose float64   `yaml:"first_close" json:"first_close"`
	LastClose  float64   `yaml:"last_close" json:"last_close"`
}

// RunSettings is the subset of engine configuration a result was produced with.
type RunSettings struct {
	InitialCapital    float64 `yaml:"initial_capital" json:"initial_capital"`
	CommissionRate    float64 `yaml:"commission_rate" json:"commission_rate"`
	MinimumCommission float64 `yaml:"minimum_commission" json:"minimum_commission"`
	Slippage          float64 `yaml:"slippage" json:"slippage"`
	MaxPosition       float64 `yaml:"max_position" json:"max_position"`
	CostModel         string  `yaml:"cost_model" json:"cost_model"`
}

// BacktestResult is the outcome of one run. Results are passed by value and
// every accessor hands out copies, so a result never changes once built.
type BacktestResult struct {
	ID             string           `yaml:"id" json:"id"`
	EngineVersion  string           `yaml:"engine_version" json:"engine_version"`
	StrategyName   string           `yaml:"strategy_name" json:"strategy_name"`
	Symbol         string           `yaml:"symbol" json:"symbol"`
	CreatedAt      time.Time        `yaml:"created_at" json:"created_at"`
	InitialCapital float64          `yaml:"initial_capital" json:"initial_capital"`
	FinalCash      float64          `yaml:"final_cash" json:"final_cash"`
	FinalPositions map[string]int64 `yaml:"final_positions" json:"final_positions"`
	Trades         []Trade          `yaml:"trades" json:"trades"`
	Rejections     []Rejection      `yaml:"rejections" json:"rejections"`
	SignalCount    int              `yaml:"signal_count" json:"signal_count"`
	Metrics        Metrics          `yaml:"metrics" json:"metrics"`
	DataInfo       DataInfo         `yaml:"data_info" json:"data_info"`
	Settings       RunSettings      `yaml:"settings" json:"settings"`
	Logs           []string         `yaml:"logs" json:"logs"`
}

// Clone returns a deep copy of the result.
func (r BacktestResult) Clone() BacktestResult {
	clone := r
	clone.FinalPositions = maps.Clone(r.FinalPositions)
	clone.Trades = slices.Clone(r.Trades)
	clone.Rejections = slices.Clone(r.Rejections)
	clone.Logs = slices.Clone(r.Logs)

	return clone
}

func WriteBacktestResult(path string, result BacktestResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest result to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest result to file: %w", err)
	}

	return nil
}

func ReadBacktestResult(path string) (BacktestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BacktestResult{}, fmt.Errorf("failed to read backtest result: %w", err)
	}

	var result BacktestResult
	if err := yaml.Unmarshal(data, &result); err != nil {
		return BacktestResult{}, fmt.Errorf("failed to parse backtest result: %w", err)
	}

	return result, nil
}
