package indicator

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type MATestSuite struct {
	suite.Suite
}

func TestMASuite(t *testing.T) {
	suite.Run(t, new(MATestSuite))
}

func barsWithCloses(closes ...float64) []types.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))

	for i, c := range closes {
		bars[i] = types.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}

	return bars
}

func (suite *MATestSuite) TestNewMADefaults() {
	ma := NewMA()
	suite.Equal(IndicatorTypeMA, ma.Name())
	suite.Equal(20, ma.(*MA).Period())
}

func (suite *MATestSuite) TestConfig() {
	tests := []struct {
		name     string
		params   []any
		expected int
		code     errors.ErrorCode
	}{
		{name: "int", params: []any{10}, expected: 10},
		{name: "float", params: []any{15.0}, expected: 15},
		{name: "no params", params: nil, code: errors.ErrCodeInvalidParameter},
		{name: "too many", params: []any{1, 2}, code: errors.ErrCodeInvalidParameter},
		{name: "string", params: []any{"5"}, code: errors.ErrCodeInvalidParameter},
		{name: "zero", params: []any{0}, code: errors.ErrCodeInvalidPeriod},
		{name: "negative", params: []any{-3}, code: errors.ErrCodeInvalidPeriod},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			ma := NewMA().(*MA)
			err := ma.Config(tc.params...)

			if tc.code != 0 {
				suite.True(errors.HasCode(err, tc.code), "got %v", err)
				suite.Equal(20, ma.Period())

				return
			}

			suite.NoError(err)
			suite.Equal(tc.expected, ma.Period())
		})
	}
}

func (suite *MATestSuite) TestComputeWarmUp() {
	ma := NewMA()
	suite.Require().NoError(ma.Config(3))

	values, err := ma.Compute(barsWithCloses(1, 2, 3, 4, 5))
	suite.Require().NoError(err)
	suite.Require().Len(values, 5)

	suite.True(values[0].IsNone())
	suite.True(values[1].IsNone())
	suite.InDelta(2.0, values[2].Unwrap(), 1e-12)
	suite.InDelta(3.0, values[3].Unwrap(), 1e-12)
	suite.InDelta(4.0, values[4].Unwrap(), 1e-12)
}

func (suite *MATestSuite) TestComputeShortSeries() {
	ma := NewMA()

	values, err := ma.Compute(barsWithCloses(1, 2, 3))
	suite.Require().NoError(err)

	for _, v := range values {
		suite.True(v.IsNone())
	}
}

func (suite *MATestSuite) TestComputeFlatSeriesIsExact() {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}

	ma := NewMA()
	values, err := ma.Compute(barsWithCloses(closes...))
	suite.Require().NoError(err)
	suite.Equal(100.0, values[24].Unwrap())
	suite.Equal(100.0, values[19].Unwrap())
	suite.True(values[18].IsNone())
}

func (suite *MATestSuite) TestComputeEmpty() {
	values, err := NewMA().Compute(nil)
	suite.NoError(err)
	suite.Empty(values)
}
