package types

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestBarValidate(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		bar         Bar
		shouldError bool
	}{
		{
			name:        "valid bar",
			bar:         Bar{Date: day, Open: 10, High: 11, Low: 9.5, Close: 10.5, Volume: 1000},
			shouldError: false,
		},
		{
			name:        "missing date",
			bar:         Bar{Open: 10, High: 11, Low: 9.5, Close: 10.5},
			shouldError: true,
		},
		{
			name:        "zero close",
			bar:         Bar{Date: day, Open: 10, High: 11, Low: 9.5, Close: 0},
			shouldError: true,
		},
		{
			name:        "high below low",
			bar:         Bar{Date: day, Open: 10, High: 9, Low: 9.5, Close: 9.6},
			shouldError: true,
		},
		{
			name:        "negative volume",
			bar:         Bar{Date: day, Open: 10, High: 11, Low: 9.5, Close: 10.5, Volume: -1},
			shouldError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.bar.Validate()
			if tc.shouldError {
				assert.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidBar))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithSymbolCopies(t *testing.T) {
	bars := []Bar{{Close: 1}, {Close: 2}}
	tagged := WithSymbol(bars, "000001")

	assert.Equal(t, "000001", tagged[0].Symbol)
	assert.Equal(t, "000001", tagged[1].Symbol)
	assert.Empty(t, bars[0].Symbol)
	assert.Equal(t, []float64{1, 2}, Closes(tagged))
}

func TestEnrichedBarValue(t *testing.T) {
	bar := EnrichedBar{Values: map[string]optional.Option[float64]{
		"ma_short": optional.Some(10.5),
		"ma_long":  optional.None[float64](),
	}}

	assert.Equal(t, 10.5, bar.Value("ma_short").Unwrap())
	assert.True(t, bar.Value("ma_long").IsNone())
	assert.True(t, bar.Value("missing").IsNone())
}
