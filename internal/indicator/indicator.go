package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

type IndicatorType string

const (
	IndicatorTypeMA IndicatorType = "ma"
)

// Indicator computes one value per bar over a whole bar series.
type Indicator interface {
	// Name returns the name of the indicator
	Name() IndicatorType
	// Config sets the indicator parameters
	Config(params ...any) error
	// Compute returns one value per bar, None where the indicator is still warming up
	Compute(bars []types.Bar) ([]optional.Option[float64], error)
}
