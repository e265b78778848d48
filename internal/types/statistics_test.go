package types

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type StatisticsTestSuite struct {
	suite.Suite
}

func TestStatisticsSuite(t *testing.T) {
	suite.Run(t, new(StatisticsTestSuite))
}

func (suite *StatisticsTestSuite) sampleResult() BacktestResult {
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	return BacktestResult{
		ID:             "run-1",
		EngineVersion:  "1.0.0",
		StrategyName:   "moving_average",
		Symbol:         "600000",
		CreatedAt:      day,
		InitialCapital: 1_000_000,
		FinalCash:      250_000,
		FinalPositions: map[string]int64{"600000": 1500},
		Trades:         []Trade{NewTrade(day, "600000", TradeActionBuy, 500, 1500, 0)},
		Metrics:        Metrics{TotalTrades: 1, BuyHoldReturn: 0.1},
		Logs:           []string{"started"},
	}
}

func (suite *StatisticsTestSuite) TestWriteAndReadBacktestResult() {
	path := filepath.Join(suite.T().TempDir(), "result.yaml")
	result := suite.sampleResult()

	suite.Require().NoError(WriteBacktestResult(path, result))

	loaded, err := ReadBacktestResult(path)
	suite.Require().NoError(err)
	suite.Equal(result.ID, loaded.ID)
	suite.Equal(result.FinalPositions, loaded.FinalPositions)
	suite.Require().Len(loaded.Trades, 1)
	suite.Equal(750_000.0, loaded.Trades[0].Amount)
	suite.True(result.CreatedAt.Equal(loaded.CreatedAt))
}

func (suite *StatisticsTestSuite) TestReadMissingFile() {
	_, err := ReadBacktestResult(filepath.Join(suite.T().TempDir(), "missing.yaml"))
	suite.Error(err)
}

func (suite *StatisticsTestSuite) TestCloneIsIndependent() {
	result := suite.sampleResult()
	clone := result.Clone()

	clone.FinalPositions["600000"] = 0
	clone.Trades[0].Shares = 1
	clone.Logs[0] = "changed"

	suite.Equal(int64(1500), result.FinalPositions["600000"])
	suite.Equal(int64(1500), result.Trades[0].Shares)
	suite.Equal("started", result.Logs[0])
}
