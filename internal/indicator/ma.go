package indicator

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// MA is a trailing simple moving average of closing prices.
type MA struct {
	period int
}

// NewMA creates an MA with the default period of 20.
func NewMA() Indicator {
	return &MA{
		period: 20,
	}
}

func (m *MA) Name() IndicatorType {
	return IndicatorTypeMA
}

// Config expects one parameter: period (int or float64).
func (m *MA) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeInvalidParameter, "Config expects 1 parameter: period (int)")
	}

	var period int

	switch p := params[0].(type) {
	case int:
		period = p
	case float64:
		period = int(p)
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "invalid type for period parameter, expected int or float, got %T", params[0])
	}

	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	m.period = period

	return nil
}

func (m *MA) Period() int {
	return m.period
}

// Compute returns the average of the last period closes at each index.
// The first period-1 values are None. A series shorter than the period
// yields only None values.
func (m *MA) Compute(bars []types.Bar) ([]optional.Option[float64], error) {
	if m.period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", m.period)
	}

	values := make([]optional.Option[float64], len(bars))

	for i := range bars {
		if i+1 < m.period {
			values[i] = optional.None[float64]()

			continue
		}

		average, err := calculateSimpleMovingAverage(bars[i+1-m.period : i+1])
		if err != nil {
			return nil, fmt.Errorf("failed to calculate MA at %s: %w", bars[i].Date.Format("2006-01-02"), err)
		}

		values[i] = optional.Some(average)
	}

	return values, nil
}

func calculateSimpleMovingAverage(window []types.Bar) (float64, error) {
	if len(window) == 0 {
		return 0, errors.New(errors.ErrCodeIndicatorCalculation, "empty window")
	}

	sum := 0.0
	for _, bar := range window {
		sum += bar.Close
	}

	return sum / float64(len(window)), nil
}
