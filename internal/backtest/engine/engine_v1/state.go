package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// BacktestState journals the executed trades and the rejected signals of
// every run in an in-memory DuckDB database, keyed by run id.
type BacktestState struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// TradeSummary aggregates the journaled trades of one run.
type TradeSummary struct {
	Buys       int
	Sells      int
	Shares     int64
	Turnover   float64
	Fees       float64
	Rejections int
}

func NewBacktestState(logger *logger.Logger) (*BacktestState, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))

		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to open state database", err)
	}

	return &BacktestState{
		logger: logger,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the trades and rejections tables.
func (b *BacktestState) Initialize() error {
	if b == nil || b.db == nil {
		return errors.New(errors.ErrCodeBacktestStateNil, "backtest state is nil")
	}

	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			run_id TEXT,
			trade_id TEXT,
			timestamp TIMESTAMP,
			symbol TEXT,
			action TEXT,
			price DOUBLE,
			shares BIGINT,
			amount DOUBLE,
			fee DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create trades table", err)
	}

	_, err = b.db.Exec(`
		CREATE TABLE IF NOT EXISTS rejections (
			run_id TEXT,
			date TIMESTAMP,
			symbol TEXT,
			action TEXT,
			reason TEXT,
			message TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create rejections table", err)
	}

	return nil
}

// Record journals the executions of a run in one transaction.
func (b *BacktestState) Record(runID string, executions []types.ExecutionResult) error {
	var trades []types.Trade

	var rejections []types.Rejection

	for _, execution := range executions {
		if trade, err := execution.Trade.Take(); err == nil {
			trades = append(trades, trade)
		}

		if rejection, err := execution.Rejection.Take(); err == nil {
			rejections = append(rejections, rejection)
		}
	}

	return b.insert(runID, trades, rejections)
}

// RecordResult journals the trades and rejections carried by a result,
// for results produced elsewhere.
func (b *BacktestState) RecordResult(result types.BacktestResult) error {
	return b.insert(result.ID, result.Trades, result.Rejections)
}

func (b *BacktestState) insert(runID string, trades []types.Trade, rejections []types.Rejection) error {
	if b == nil || b.db == nil {
		return errors.New(errors.ErrCodeBacktestStateNil, "backtest state is nil")
	}

	if len(trades) == 0 && len(rejections) == 0 {
		return nil
	}

	tx, err := b.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	if len(trades) > 0 {
		insertQuery := b.sq.
			Insert("trades").
			Columns("run_id", "trade_id", "timestamp", "symbol", "action", "price", "shares", "amount", "fee")

		for _, trade := range trades {
			insertQuery = insertQuery.Values(
				runID, trade.ID, trade.Timestamp, trade.Symbol, string(trade.Action),
				trade.Price, trade.Shares, trade.Amount, trade.Fee,
			)
		}

		if _, err := insertQuery.RunWith(tx).Exec(); err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert trades", err)
		}
	}

	if len(rejections) > 0 {
		insertQuery := b.sq.
			Insert("rejections").
			Columns("run_id", "date", "symbol", "action", "reason", "message")

		for _, rejection := range rejections {
			var date any
			if !rejection.Date.IsZero() {
				date = rejection.Date
			}

			insertQuery = insertQuery.Values(
				runID, date, rejection.Symbol, string(rejection.Action),
				string(rejection.Reason), rejection.Message,
			)
		}

		if _, err := insertQuery.RunWith(tx).Exec(); err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert rejections", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to commit journal", err)
	}

	return nil
}

// HasRun reports whether anything was journaled for runID.
func (b *BacktestState) HasRun(runID string) (bool, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM trades WHERE run_id = ?) +
			(SELECT COUNT(*) FROM rejections WHERE run_id = ?)
	`

	var count int
	if err := b.db.QueryRow(query, runID, runID).Scan(&count); err != nil {
		return false, errors.Wrap(errors.ErrCodeReadFailed, "failed to look up run", err)
	}

	return count > 0, nil
}

// GetTrades returns the journaled trades of runID in execution order.
func (b *BacktestState) GetTrades(runID string) ([]types.Trade, error) {
	rows, err := b.sq.
		Select("trade_id", "timestamp", "symbol", "action", "price", "shares", "amount", "fee").
		From("trades").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("rowid").
		RunWith(b.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeReadFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.Trade

	for rows.Next() {
		var trade types.Trade

		var action string

		if err := rows.Scan(&trade.ID, &trade.Timestamp, &trade.Symbol, &action,
			&trade.Price, &trade.Shares, &trade.Amount, &trade.Fee); err != nil {
			return nil, errors.Wrap(errors.ErrCodeReadFailed, "failed to scan trade", err)
		}

		trade.Action = types.TradeAction(action)
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeReadFailed, "error iterating trades", err)
	}

	return trades, nil
}

// GetRejections returns the journaled rejections of runID.
func (b *BacktestState) GetRejections(runID string) ([]types.Rejection, error) {
	rows, err := b.sq.
		Select("date", "symbol", "action", "reason", "message").
		From("rejections").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("rowid").
		RunWith(b.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeReadFailed, "failed to query rejections", err)
	}
	defer rows.Close()

	var rejections []types.Rejection

	for rows.Next() {
		var rejection types.Rejection

		var date sql.NullTime

		var action, reason string

		if err := rows.Scan(&date, &rejection.Symbol, &action, &reason, &rejection.Message); err != nil {
			return nil, errors.Wrap(errors.ErrCodeReadFailed, "failed to scan rejection", err)
		}

		if date.Valid {
			rejection.Date = date.Time
		}

		rejection.Action = types.TradeAction(action)
		rejection.Reason = types.RejectReason(reason)
		rejections = append(rejections, rejection)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeReadFailed, "error iterating rejections", err)
	}

	return rejections, nil
}

// Summary aggregates the trades of runID.
func (b *BacktestState) Summary(runID string) (TradeSummary, error) {
	query := `
		SELECT
			CAST(COALESCE(SUM(CASE WHEN action = 'buy' THEN 1 ELSE 0 END), 0) AS BIGINT),
			CAST(COALESCE(SUM(CASE WHEN action = 'sell' THEN 1 ELSE 0 END), 0) AS BIGINT),
			CAST(COALESCE(SUM(shares), 0) AS BIGINT),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(fee), 0),
			(SELECT COUNT(*) FROM rejections WHERE run_id = ?)
		FROM trades
		WHERE run_id = ?
	`

	var summary TradeSummary
	if err := b.db.QueryRow(query, runID, runID).Scan(
		&summary.Buys,
		&summary.Sells,
		&summary.Shares,
		&summary.Turnover,
		&summary.Fees,
		&summary.Rejections,
	); err != nil {
		return TradeSummary{}, errors.Wrap(errors.ErrCodeReadFailed, "failed to summarize trades", err)
	}

	return summary, nil
}

// Write exports the trades and rejections of runID as Parquet files in dir.
func (b *BacktestState) Write(dir string, runID string) error {
	if b == nil || b.db == nil {
		return errors.New(errors.ErrCodeBacktestStateNil, "backtest state is nil")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to create directory", err)
	}

	tradesPath := filepath.Join(dir, "trades.parquet")
	rejectionsPath := filepath.Join(dir, "rejections.parquet")

	// squirrel has no COPY
	exports := map[string]string{
		tradesPath: fmt.Sprintf(
			`COPY (SELECT trade_id, timestamp, symbol, action, price, shares, amount, fee FROM trades WHERE run_id = '%s') TO '%s' (FORMAT PARQUET)`,
			escape(runID), escape(tradesPath)),
		rejectionsPath: fmt.Sprintf(
			`COPY (SELECT date, symbol, action, reason, message FROM rejections WHERE run_id = '%s') TO '%s' (FORMAT PARQUET)`,
			escape(runID), escape(rejectionsPath)),
	}

	for path, query := range exports {
		if _, err := b.db.Exec(query); err != nil {
			return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to export %s", filepath.Base(path))
		}
	}

	b.logger.Info("Exported backtest journal to Parquet files",
		zap.String("trades", tradesPath),
		zap.String("rejections", rejectionsPath),
	)

	return nil
}

// Cleanup drops every journaled run.
func (b *BacktestState) Cleanup() error {
	if b == nil || b.db == nil {
		return errors.New(errors.ErrCodeBacktestStateNil, "backtest state is nil")
	}

	if _, err := b.db.Exec(`
		DROP TABLE IF EXISTS trades;
		DROP TABLE IF EXISTS rejections;
	`); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to drop journal tables", err)
	}

	return b.Initialize()
}

func (b *BacktestState) Close() error {
	if b == nil || b.db == nil {
		return nil
	}

	return b.db.Close()
}

func escape(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
