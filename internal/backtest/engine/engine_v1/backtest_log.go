package engine

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// BacktestLog implements log.Log for backtest runs. Entries go to an
// in-memory DuckDB table tagged with the run that is currently open.
type BacktestLog struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	mu     sync.Mutex
	runID  string
	seq    int64
}

var _ log.Log = (*BacktestLog)(nil)

func NewBacktestLog(logger *logger.Logger) (*BacktestLog, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))

		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to open log database", err)
	}

	if err := db.Ping(); err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to connect to log database", err)
	}

	logStorage := &BacktestLog{
		logger: logger,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := logStorage.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return logStorage, nil
}

// Begin opens runID. Later entries belong to it until the next Begin.
func (l *BacktestLog) Begin(runID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.runID = runID
}

// Log implements log.Log.
func (l *BacktestLog) Log(entry log.LogEntry) error {
	if l == nil || l.db == nil {
		return errors.New(errors.ErrCodeBacktestStateNil, "backtest log or database is nil")
	}

	var fieldsJSON string

	if len(entry.Fields) > 0 {
		fieldsBytes, err := json.Marshal(entry.Fields)
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to marshal log fields", err)
		}

		fieldsJSON = string(fieldsBytes)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++

	_, err := l.sq.
		Insert("logs").
		Columns("id", "run_id", "timestamp", "symbol", "level", "message", "fields").
		Values(l.seq, l.runID, entry.Timestamp, entry.Symbol, string(entry.Level), entry.Message, fieldsJSON).
		RunWith(l.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert log entry", err)
	}

	return nil
}

// GetLogs implements log.Log. It returns the entries of the open run.
func (l *BacktestLog) GetLogs() ([]log.LogEntry, error) {
	l.mu.Lock()
	runID := l.runID
	l.mu.Unlock()

	return l.LogsFor(runID)
}

// LogsFor returns the entries of runID in insertion order.
func (l *BacktestLog) LogsFor(runID string) ([]log.LogEntry, error) {
	if l == nil || l.db == nil {
		return nil, errors.New(errors.ErrCodeBacktestStateNil, "backtest log or database is nil")
	}

	rows, err := l.sq.
		Select("timestamp", "symbol", "level", "message", "fields").
		From("logs").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("id ASC").
		RunWith(l.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeReadFailed, "failed to query logs", err)
	}
	defer rows.Close()

	var logs []log.LogEntry

	for rows.Next() {
		var entry log.LogEntry

		var level string

		var fieldsJSON sql.NullString

		if err := rows.Scan(&entry.Timestamp, &entry.Symbol, &level, &entry.Message, &fieldsJSON); err != nil {
			return nil, errors.Wrap(errors.ErrCodeReadFailed, "failed to scan log entry", err)
		}

		entry.Level = types.LogLevel(level)

		if fieldsJSON.Valid && fieldsJSON.String != "" {
			if err := json.Unmarshal([]byte(fieldsJSON.String), &entry.Fields); err != nil {
				return nil, errors.Wrap(errors.ErrCodeReadFailed, "failed to unmarshal log fields", err)
			}
		}

		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeReadFailed, "error iterating logs", err)
	}

	return logs, nil
}

// Lines renders the entries of runID with LogEntry.String.
func (l *BacktestLog) Lines(runID string) ([]string, error) {
	entries, err := l.LogsFor(runID)
	if err != nil {
		return nil, err
	}

	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = entry.String()
	}

	return lines, nil
}

// Write exports the entries of runID to logs.parquet in dir.
func (l *BacktestLog) Write(dir string, runID string) error {
	if l == nil || l.db == nil {
		return errors.New(errors.ErrCodeBacktestStateNil, "backtest log or database is nil")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to create directory", err)
	}

	logsPath := filepath.Join(dir, "logs.parquet")

	_, err := l.db.Exec(fmt.Sprintf(
		`COPY (SELECT timestamp, symbol, level, message, fields FROM logs WHERE run_id = '%s' ORDER BY id) TO '%s' (FORMAT PARQUET)`,
		escape(runID), escape(logsPath),
	))
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to export logs to Parquet", err)
	}

	l.logger.Debug("Exported run log to Parquet", zap.String("logs", logsPath))

	return nil
}

// Cleanup drops every entry.
func (l *BacktestLog) Cleanup() error {
	if l == nil || l.db == nil {
		return errors.New(errors.ErrCodeBacktestStateNil, "backtest log or database is nil")
	}

	if _, err := l.db.Exec(`DROP TABLE IF EXISTS logs`); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to drop logs table", err)
	}

	return l.initialize()
}

func (l *BacktestLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}

	return l.db.Close()
}

func (l *BacktestLog) initialize() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS logs (
			id BIGINT PRIMARY KEY,
			run_id TEXT,
			timestamp TIMESTAMP,
			symbol TEXT,
			level TEXT,
			message TEXT,
			fields TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create logs table", err)
	}

	return nil
}
