package strategy

import (
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// Strategy supplies the two variable stages of a backtest run. The stage
// order around them is fixed by Run.
type Strategy interface {
	// Name returns the strategy type key
	Name() string
	// Initialize configures the strategy from a YAML or JSON parameter
	// document. An empty document keeps the defaults.
	Initialize(config string) error
	// Preprocess computes the indicator values the strategy needs for every bar
	Preprocess(bars []types.Bar) ([]types.EnrichedBar, error)
	// GenerateSignals returns the Buy and Sell decisions, in bar order
	GenerateSignals(bars []types.EnrichedBar) ([]types.Signal, error)
}

// Initializer is implemented by strategies that need setup before preprocessing.
type Initializer interface {
	OnInit(account *Account) error
}

// RiskController is implemented by strategies that replace the default
// advisory position check.
type RiskController interface {
	RiskControl(account *Account) ([]RiskNotice, error)
}

// RiskNotice reports a position above the configured fraction of equity.
type RiskNotice struct {
	Symbol   string  `yaml:"symbol" json:"symbol"`
	Fraction float64 `yaml:"fraction" json:"fraction"`
	Limit    float64 `yaml:"limit" json:"limit"`
}

// Summary is the snapshot returned by the finish stage.
type Summary struct {
	Cash       float64          `yaml:"cash" json:"cash"`
	Positions  map[string]int64 `yaml:"positions" json:"positions"`
	Lots       map[string]int   `yaml:"lots" json:"lots"`
	TradeCount int              `yaml:"trade_count" json:"trade_count"`
}
