package builtins

import (
	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	pkgstrategy "github.com/rxtech-lab/argo-backtest/pkg/strategy"
)

const (
	MomentumType      = "momentum"
	MeanReversionType = "mean_reversion"
)

// NewRegistry returns a registry holding the built-in strategies plus the
// declared types that have no implementation yet.
func NewRegistry(indicators indicator.IndicatorRegistry, logger *logger.Logger) (*strategy.Registry, error) {
	registry := strategy.NewRegistry()

	schema, err := pkgstrategy.ToJSONSchema(DefaultMovingAverageConfig())
	if err != nil {
		return nil, err
	}

	descriptors := []strategy.Descriptor{
		{
			Type:  MovingAverageType,
			Label: "Moving Average",
			Description: "Trend following on two simple moving averages of the close. " +
				"Buys when the short average crosses above the long one (golden cross) and " +
				"sells when it crosses below (death cross). Needs at least long_window bars.",
			Schema: schema,
			Factory: func() strategy.Strategy {
				return NewMovingAverageStrategy(indicators, logger)
			},
		},
		{
			Type:        MomentumType,
			Label:       "Momentum",
			Description: "Trades in the direction of recent price momentum. Not implemented yet.",
		},
		{
			Type:        MeanReversionType,
			Label:       "Mean Reversion",
			Description: "Trades price deviations back toward a moving mean. Not implemented yet.",
		},
	}

	for _, descriptor := range descriptors {
		if err := registry.Register(descriptor); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
