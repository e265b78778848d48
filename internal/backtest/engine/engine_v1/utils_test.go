package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type UtilsTestSuite struct {
	suite.Suite
}

func TestUtilsSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

func (suite *UtilsTestSuite) TestResultFolder() {
	jan1 := optional.Some(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	dec31 := optional.Some(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	none := optional.None[time.Time]()

	tests := []struct {
		name         string
		dataPath     string
		symbol       string
		startTime    optional.Option[time.Time]
		endTime      optional.Option[time.Time]
		expectedPath string
	}{
		{"without time range", "/data/bars.parquet", "600000", none, none, "/results/moving_average/bars/600000"},
		{"with time range", "/data/bars.parquet", "600000", jan1, dec31, "/results/moving_average/20230101_20231231/bars/600000"},
		{"only start time", "/data/bars.csv", "600000", jan1, none, "/results/moving_average/20230101_all/bars/600000"},
		{"only end time", "/data/bars.csv", "600000", none, dec31, "/results/moving_average/all_20231231/bars/600000"},
		{"dotted file name", "/data/a.share.2023.parquet", "", none, none, "/results/moving_average/a.share.2023"},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			config := EmptyConfig()
			config.StartTime = tc.startTime
			config.EndTime = tc.endTime

			path := config.ResultFolder("/results", "moving_average", tc.dataPath, tc.symbol)

			suite.Equal(filepath.Clean(tc.expectedPath), path)
		})
	}
}

func (suite *UtilsTestSuite) TestFormatBound() {
	suite.Equal("open", formatBound(time.Time{}))
	suite.Equal("2024-03-05", formatBound(time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)))
	suite.Equal("0.125000", ftoa(0.125))
}
