package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Bar is one trading day of OHLCV data for one instrument.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Date   time.Time `yaml:"date" json:"date" csv:"date" validate:"required"`
	Open   float64   `yaml:"open" json:"open" csv:"open" validate:"gt=0"`
	High   float64   `yaml:"high" json:"high" csv:"high" validate:"gt=0,gtefield=Low"`
	Low    float64   `yaml:"low" json:"low" csv:"low" validate:"gt=0"`
	Close  float64   `yaml:"close" json:"close" csv:"close" validate:"gt=0"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume" validate:"gte=0"`
}

func (b Bar) Validate() error {
	validate := validator.New()

	if err := validate.Struct(b); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidBar, err, "invalid bar on %s", b.Date.Format(time.DateOnly))
	}

	return nil
}

// WithSymbol returns a copy of bars tagged with symbol.
func WithSymbol(bars []Bar, symbol string) []Bar {
	tagged := make([]Bar, len(bars))
	for i, bar := range bars {
		bar.Symbol = symbol
		tagged[i] = bar
	}

	return tagged
}

// Closes returns the closing prices of bars in order.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	return closes
}

// EnrichedBar is a bar plus the named indicator values computed for it.
// A value is None while its indicator is still warming up.
type EnrichedBar struct {
	Bar
	Values map[string]optional.Option[float64]
}

// Value returns the named value, or None when it was never computed.
func (e EnrichedBar) Value(key string) optional.Option[float64] {
	value, ok := e.Values[key]
	if !ok {
		return optional.None[float64]()
	}

	return value
}
