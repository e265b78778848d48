package engine

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// BacktestStateTestSuite is a test suite for BacktestState
type BacktestStateTestSuite struct {
	suite.Suite
	state  *BacktestState
	logger *logger.Logger
}

func TestBacktestStateSuite(t *testing.T) {
	suite.Run(t, new(BacktestStateTestSuite))
}

func (suite *BacktestStateTestSuite) SetupSuite() {
	logger, err := logger.NewLogger()
	suite.Require().NoError(err)
	suite.logger = logger

	suite.state, err = NewBacktestState(suite.logger)
	suite.Require().NoError(err)
	suite.Require().NotNil(suite.state)
}

func (suite *BacktestStateTestSuite) TearDownSuite() {
	suite.Require().NoError(suite.state.Close())
}

func (suite *BacktestStateTestSuite) SetupTest() {
	suite.Require().NoError(suite.state.Initialize())
}

func (suite *BacktestStateTestSuite) TearDownTest() {
	suite.Require().NoError(suite.state.Cleanup())
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func (suite *BacktestStateTestSuite) executions() []types.ExecutionResult {
	return []types.ExecutionResult{
		types.Executed(types.NewTrade(day(2), "600000", types.TradeActionBuy, 10, 1000, 3)),
		types.Rejected(types.Rejection{
			Date:    day(2),
			Symbol:  "600000",
			Action:  types.TradeActionSell,
			Reason:  types.RejectReasonSameDayRestriction,
			Message: "shares bought today cannot be sold",
		}),
		types.Executed(types.NewTrade(day(3), "600000", types.TradeActionSell, 11, 600, 2)),
		types.Rejected(types.Rejection{
			Symbol:  "600000",
			Action:  types.TradeActionBuy,
			Reason:  types.RejectReasonInvalidQuantity,
			Message: "quantity 150 is not a multiple of 100",
		}),
	}
}

func (suite *BacktestStateTestSuite) TestRecordAndRead() {
	executions := suite.executions()
	suite.Require().NoError(suite.state.Record("run-1", executions))

	trades, err := suite.state.GetTrades("run-1")
	suite.Require().NoError(err)
	suite.Require().Len(trades, 2)

	buy := executions[0].Trade.Unwrap()
	suite.Equal(buy.ID, trades[0].ID)
	suite.True(buy.Timestamp.Equal(trades[0].Timestamp))
	suite.Equal(types.TradeActionBuy, trades[0].Action)
	suite.Equal(int64(1000), trades[0].Shares)
	suite.Equal(10000.0, trades[0].Amount)
	suite.Equal(3.0, trades[0].Fee)
	suite.Equal(types.TradeActionSell, trades[1].Action)
	suite.Equal(int64(600), trades[1].Shares)

	rejections, err := suite.state.GetRejections("run-1")
	suite.Require().NoError(err)
	suite.Require().Len(rejections, 2)
	suite.Equal(types.RejectReasonSameDayRestriction, rejections[0].Reason)
	suite.True(day(2).Equal(rejections[0].Date))
	suite.Equal(types.RejectReasonInvalidQuantity, rejections[1].Reason)
	suite.True(rejections[1].Date.IsZero())
}

func (suite *BacktestStateTestSuite) TestRunsAreIsolated() {
	suite.Require().NoError(suite.state.Record("run-1", suite.executions()))
	suite.Require().NoError(suite.state.Record("run-2", []types.ExecutionResult{
		types.Executed(types.NewTrade(day(5), "000001", types.TradeActionBuy, 5, 100, 0)),
	}))

	trades, err := suite.state.GetTrades("run-2")
	suite.Require().NoError(err)
	suite.Require().Len(trades, 1)
	suite.Equal("000001", trades[0].Symbol)

	rejections, err := suite.state.GetRejections("run-2")
	suite.Require().NoError(err)
	suite.Empty(rejections)

	found, err := suite.state.HasRun("run-2")
	suite.Require().NoError(err)
	suite.True(found)

	found, err = suite.state.HasRun("run-3")
	suite.Require().NoError(err)
	suite.False(found)
}

func (suite *BacktestStateTestSuite) TestRecordNothing() {
	suite.NoError(suite.state.Record("empty", nil))

	found, err := suite.state.HasRun("empty")
	suite.Require().NoError(err)
	suite.False(found)
}

func (suite *BacktestStateTestSuite) TestSummary() {
	suite.Require().NoError(suite.state.Record("run-1", suite.executions()))

	summary, err := suite.state.Summary("run-1")
	suite.Require().NoError(err)

	suite.Equal(TradeSummary{
		Buys:       1,
		Sells:      1,
		Shares:     1600,
		Turnover:   16600,
		Fees:       5,
		Rejections: 2,
	}, summary)

	empty, err := suite.state.Summary("missing")
	suite.Require().NoError(err)
	suite.Equal(TradeSummary{}, empty)
}

func (suite *BacktestStateTestSuite) TestRecordResult() {
	result := types.BacktestResult{
		ID: "stored",
		Trades: []types.Trade{
			types.NewTrade(day(8), "600000", types.TradeActionBuy, 20, 200, 0),
		},
	}

	suite.Require().NoError(suite.state.RecordResult(result))

	trades, err := suite.state.GetTrades("stored")
	suite.Require().NoError(err)
	suite.Require().Len(trades, 1)
	suite.Equal(result.Trades[0].ID, trades[0].ID)
}

func (suite *BacktestStateTestSuite) TestWrite() {
	suite.Require().NoError(suite.state.Record("run-1", suite.executions()))
	suite.Require().NoError(suite.state.Record("run-2", []types.ExecutionResult{
		types.Executed(types.NewTrade(day(5), "000001", types.TradeActionBuy, 5, 100, 0)),
	}))

	dir := filepath.Join(suite.T().TempDir(), "out")
	suite.Require().NoError(suite.state.Write(dir, "run-1"))

	db, err := sql.Open("duckdb", "")
	suite.Require().NoError(err)

	defer db.Close()

	var count int

	suite.Require().NoError(db.QueryRow(
		fmt.Sprintf(`SELECT COUNT(*) FROM read_parquet('%s')`, filepath.Join(dir, "trades.parquet")),
	).Scan(&count))
	suite.Equal(2, count)

	suite.Require().NoError(db.QueryRow(
		fmt.Sprintf(`SELECT COUNT(*) FROM read_parquet('%s') WHERE reason = 'same_day_restriction'`, filepath.Join(dir, "rejections.parquet")),
	).Scan(&count))
	suite.Equal(1, count)
}

func (suite *BacktestStateTestSuite) TestCleanupDropsRuns() {
	suite.Require().NoError(suite.state.Record("run-1", suite.executions()))
	suite.Require().NoError(suite.state.Cleanup())

	trades, err := suite.state.GetTrades("run-1")
	suite.Require().NoError(err)
	suite.Empty(trades)
}

func (suite *BacktestStateTestSuite) TestNilState() {
	var state *BacktestState

	err := state.Initialize()
	suite.Equal(errors.ErrCodeBacktestStateNil, errors.GetCode(err))

	err = state.Record("run", suite.executions())
	suite.Equal(errors.ErrCodeBacktestStateNil, errors.GetCode(err))

	suite.NoError(state.Close())
}
