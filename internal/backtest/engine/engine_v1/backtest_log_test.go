package engine

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

// BacktestLogTestSuite is a test suite for BacktestLog
type BacktestLogTestSuite struct {
	suite.Suite
	logStorage *BacktestLog
	logger     *logger.Logger
}

func TestBacktestLogSuite(t *testing.T) {
	suite.Run(t, new(BacktestLogTestSuite))
}

func (suite *BacktestLogTestSuite) SetupSuite() {
	logger, err := logger.NewLogger()
	suite.Require().NoError(err)
	suite.logger = logger

	logStorage, err := NewBacktestLog(suite.logger)
	suite.Require().NoError(err)
	suite.logStorage = logStorage
}

func (suite *BacktestLogTestSuite) TearDownSuite() {
	suite.NoError(suite.logStorage.Close())
}

func (suite *BacktestLogTestSuite) SetupTest() {
	suite.Require().NoError(suite.logStorage.Cleanup())
	suite.logStorage.Begin("run-1")
}

func (suite *BacktestLogTestSuite) TestLogAndGetLogs() {
	suite.Require().NoError(suite.logStorage.Log(log.LogEntry{
		Timestamp: day(2),
		Symbol:    "600000",
		Level:     types.LogLevelInfo,
		Message:   "buy executed",
		Fields:    map[string]string{"shares": "1000", "price": "10"},
	}))
	suite.Require().NoError(suite.logStorage.Log(log.LogEntry{
		Timestamp: day(3),
		Level:     types.LogLevelWarn,
		Message:   "sell rejected",
	}))

	logs, err := suite.logStorage.GetLogs()
	suite.Require().NoError(err)
	suite.Require().Len(logs, 2)

	suite.Equal("buy executed", logs[0].Message)
	suite.Equal("600000", logs[0].Symbol)
	suite.Equal(types.LogLevelInfo, logs[0].Level)
	suite.Equal(map[string]string{"shares": "1000", "price": "10"}, logs[0].Fields)
	suite.True(day(2).Equal(logs[0].Timestamp))

	suite.Equal(types.LogLevelWarn, logs[1].Level)
	suite.Nil(logs[1].Fields)
}

func (suite *BacktestLogTestSuite) TestRunsAreIsolated() {
	suite.Require().NoError(suite.logStorage.Log(log.LogEntry{Timestamp: day(2), Level: types.LogLevelInfo, Message: "first"}))

	suite.logStorage.Begin("run-2")
	suite.Require().NoError(suite.logStorage.Log(log.LogEntry{Timestamp: day(4), Level: types.LogLevelInfo, Message: "second"}))

	current, err := suite.logStorage.GetLogs()
	suite.Require().NoError(err)
	suite.Require().Len(current, 1)
	suite.Equal("second", current[0].Message)

	previous, err := suite.logStorage.LogsFor("run-1")
	suite.Require().NoError(err)
	suite.Require().Len(previous, 1)
	suite.Equal("first", previous[0].Message)
}

func (suite *BacktestLogTestSuite) TestLinesKeepInsertionOrder() {
	for i, message := range []string{"started", "signal", "finished"} {
		suite.Require().NoError(suite.logStorage.Log(log.LogEntry{
			Timestamp: day(10 - i),
			Level:     types.LogLevelInfo,
			Message:   message,
		}))
	}

	lines, err := suite.logStorage.Lines("run-1")
	suite.Require().NoError(err)
	suite.Equal([]string{
		"[2024-01-10] INFO: started",
		"[2024-01-09] INFO: signal",
		"[2024-01-08] INFO: finished",
	}, lines)
}

func (suite *BacktestLogTestSuite) TestWrite() {
	suite.Require().NoError(suite.logStorage.Log(log.LogEntry{Timestamp: day(2), Level: types.LogLevelInfo, Message: "kept"}))

	suite.logStorage.Begin("run-2")
	suite.Require().NoError(suite.logStorage.Log(log.LogEntry{Timestamp: day(2), Level: types.LogLevelInfo, Message: "other run"}))

	dir := suite.T().TempDir()
	suite.Require().NoError(suite.logStorage.Write(dir, "run-1"))

	db, err := sql.Open("duckdb", "")
	suite.Require().NoError(err)

	defer db.Close()

	var message string

	var count int

	suite.Require().NoError(db.QueryRow(
		fmt.Sprintf(`SELECT COUNT(*), MIN(message) FROM read_parquet('%s')`, filepath.Join(dir, "logs.parquet")),
	).Scan(&count, &message))
	suite.Equal(1, count)
	suite.Equal("kept", message)
}

func (suite *BacktestLogTestSuite) TestCleanup() {
	suite.Require().NoError(suite.logStorage.Log(log.LogEntry{Timestamp: day(2), Level: types.LogLevelInfo, Message: "gone"}))
	suite.Require().NoError(suite.logStorage.Cleanup())

	logs, err := suite.logStorage.GetLogs()
	suite.Require().NoError(err)
	suite.Empty(logs)
}
