package writer

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// DuckDBWriter buffers bars in an in-memory DuckDB table inside one
// transaction and exports them as a Parquet or CSV file on Finalize.
type DuckDBWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	stmt       *sql.Stmt
	outputPath string
	count      int
	logger     *logger.Logger
}

// NewDuckDBWriter creates a writer for outputPath. A .csv path is exported
// as CSV, anything else as Parquet.
func NewDuckDBWriter(outputPath string, logger *logger.Logger) BarWriter {
	return &DuckDBWriter{
		outputPath: outputPath,
		logger:     logger,
	}
}

func (w *DuckDBWriter) Initialize() (err error) {
	w.db, err = sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to open DuckDB connection", err)
	}

	_, err = w.db.Exec(`
		CREATE TABLE IF NOT EXISTS market_data (
			id TEXT,
			time TIMESTAMP,
			symbol TEXT,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		)
	`)
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to create table", err)
	}

	w.tx, err = w.db.Begin()
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	w.stmt, err = w.tx.Prepare(`
		INSERT INTO market_data (id, time, symbol, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		w.tx.Rollback()
		w.db.Close()

		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to prepare statement", err)
	}

	return nil
}

// Write inserts a bar. Bars that fail validation are refused.
func (w *DuckDBWriter) Write(bar types.Bar) error {
	if w.stmt == nil {
		return errors.New(errors.ErrCodeWriteFailed, "writer not initialized")
	}

	if err := bar.Validate(); err != nil {
		return err
	}

	_, err := w.stmt.Exec(
		uuid.New().String(),
		bar.Date,
		bar.Symbol,
		bar.Open,
		bar.High,
		bar.Low,
		bar.Close,
		bar.Volume,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert bar", err)
	}

	w.count++

	return nil
}

// Finalize commits the transaction and exports the bars ordered by date.
func (w *DuckDBWriter) Finalize() (string, error) {
	if w.tx == nil {
		return "", errors.New(errors.ErrCodeWriteFailed, "writer not initialized or already finalized")
	}

	if err := w.stmt.Close(); err != nil {
		w.logger.Warn("Failed to close insert statement", zap.Error(err))
	}

	w.stmt = nil

	if err := w.tx.Commit(); err != nil {
		w.tx.Rollback()
		w.tx = nil

		return "", errors.Wrap(errors.ErrCodeWriteFailed, "failed to commit transaction", err)
	}

	w.tx = nil

	format := "PARQUET"
	if strings.HasSuffix(strings.ToLower(w.outputPath), ".csv") {
		format = "CSV, HEADER"
	}

	query := fmt.Sprintf(
		`COPY (SELECT time, symbol, open, high, low, close, volume FROM market_data ORDER BY time, symbol) TO '%s' (FORMAT %s)`,
		strings.ReplaceAll(w.outputPath, "'", "''"), format,
	)
	if _, err := w.db.Exec(query); err != nil {
		return "", errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to export bars to %s", w.outputPath)
	}

	w.logger.Info("Exported bars",
		zap.String("path", w.outputPath),
		zap.Int("count", w.count),
	)

	return w.outputPath, nil
}

// Close rolls back an unfinished transaction and closes the database.
func (w *DuckDBWriter) Close() error {
	var closeErrors []string

	if w.stmt != nil {
		if err := w.stmt.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Sprintf("close statement: %v", err))
		}

		w.stmt = nil
	}

	if w.tx != nil {
		if err := w.tx.Rollback(); err != nil {
			w.logger.Warn("Failed to rollback transaction during close", zap.Error(err))
		}

		w.tx = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Sprintf("close db: %v", err))
		}

		w.db = nil
	}

	if len(closeErrors) > 0 {
		return errors.Newf(errors.ErrCodeWriteFailed, "errors occurred during close: %s", strings.Join(closeErrors, "; "))
	}

	return nil
}

func (w *DuckDBWriter) GetOutputPath() string {
	return w.outputPath
}

// WriteBars writes bars to path in one pass.
func WriteBars(path string, bars []types.Bar, logger *logger.Logger) error {
	w := NewDuckDBWriter(path, logger)
	if err := w.Initialize(); err != nil {
		return err
	}
	defer w.Close()

	for _, bar := range bars {
		if err := w.Write(bar); err != nil {
			return err
		}
	}

	_, err := w.Finalize()

	return err
}
