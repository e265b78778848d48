package datasource

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// accepted spellings of the date column, in order of preference
var dateColumns = []string{"time", "date", "timestamp", "trade_date"}

var priceColumns = []string{"open", "high", "low", "close", "volume"}

type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	loaded bool
}

// NewDataSource opens a DuckDB database at path (":memory:" for an
// in-memory one). Bars are loaded later by Initialize.
func NewDataSource(path string, logger *logger.Logger) (DataSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to connect to duckdb", err)
	}

	return &DuckDBDataSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// FormatOf returns the bar file format implied by the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return FormatParquet, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", errors.Newf(errors.ErrCodeUnsupportedDataFormat, "unsupported bar file %s, expected .parquet or .csv", path)
	}
}

// Initialize implements DataSource. The market_data view normalizes the
// file columns to time, symbol, open, high, low, close and volume.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.logger.Debug("Initializing DuckDB data source", zap.String("path", path))

	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	reader := fmt.Sprintf("read_parquet('%s')", quote(path))
	if format == FormatCSV {
		reader = fmt.Sprintf("read_csv_auto('%s', header = true)", quote(path))
	}

	columns, err := d.describe(reader)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to read %s", path)
	}

	dateColumn := ""

	for _, candidate := range dateColumns {
		if slices.Contains(columns, candidate) {
			dateColumn = candidate

			break
		}
	}

	if dateColumn == "" {
		return errors.Newf(errors.ErrCodeUnsupportedDataFormat, "%s has no date column, expected one of %s", path, strings.Join(dateColumns, ", "))
	}

	for _, column := range priceColumns {
		if !slices.Contains(columns, column) {
			return errors.Newf(errors.ErrCodeUnsupportedDataFormat, "%s has no %s column", path, column)
		}
	}

	symbol := "''"
	if slices.Contains(columns, "symbol") {
		symbol = "CAST(symbol AS VARCHAR)"
	}

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS market_data`); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop existing view", err)
	}

	// squirrel has no CREATE VIEW
	query := fmt.Sprintf(`
		CREATE VIEW market_data AS
		SELECT
			CAST(%s AS TIMESTAMP) AS time,
			%s AS symbol,
			CAST(open AS DOUBLE) AS open,
			CAST(high AS DOUBLE) AS high,
			CAST(low AS DOUBLE) AS low,
			CAST(close AS DOUBLE) AS close,
			CAST(volume AS DOUBLE) AS volume
		FROM %s
	`, dateColumn, symbol, reader)

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to create market_data view for %s", path)
	}

	d.loaded = true

	return nil
}

func (d *DuckDBDataSource) describe(reader string) ([]string, error) {
	rows, err := d.db.Query(fmt.Sprintf("SELECT column_name FROM (DESCRIBE SELECT * FROM %s)", reader))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string

	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return nil, err
		}

		columns = append(columns, strings.ToLower(column))
	}

	return columns, rows.Err()
}

// ReadBars implements DataSource.
func (d *DuckDBDataSource) ReadBars(symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.Bar, error) {
	if !d.loaded {
		return nil, errors.New(errors.ErrCodeDataSourceUnavailable, "data source is not initialized")
	}

	query := d.where(d.sq.
		Select("time", "symbol", "open", "high", "low", "close", "volume").
		From("market_data"), start, end).
		OrderBy("time ASC", "symbol ASC")

	if symbol != "" {
		query = query.Where(squirrel.Eq{"symbol": symbol})
	}

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build bar query", err)
	}

	rows, err := d.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err)
	}
	defer rows.Close()

	bars := make([]types.Bar, 0, 256)

	for rows.Next() {
		var bar types.Bar

		if err := rows.Scan(&bar.Date, &bar.Symbol, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating bars", err)
	}

	d.logger.Debug("Read bars",
		zap.String("symbol", symbol),
		zap.Int("count", len(bars)),
	)

	return bars, nil
}

// Symbols implements DataSource.
func (d *DuckDBDataSource) Symbols() ([]string, error) {
	if !d.loaded {
		return nil, errors.New(errors.ErrCodeDataSourceUnavailable, "data source is not initialized")
	}

	sqlQuery, args, err := d.sq.
		Select("DISTINCT symbol").
		From("market_data").
		OrderBy("symbol ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build symbol query", err)
	}

	rows, err := d.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query symbols", err)
	}
	defer rows.Close()

	var symbols []string

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan symbol", err)
		}

		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	if !d.loaded {
		return 0, errors.New(errors.ErrCodeDataSourceUnavailable, "data source is not initialized")
	}

	sqlQuery, args, err := d.where(d.sq.Select("COUNT(*)").From("market_data"), start, end).ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(sqlQuery, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	if d.db == nil {
		return nil
	}

	return d.db.Close()
}

func (d *DuckDBDataSource) where(query squirrel.SelectBuilder, start optional.Option[time.Time], end optional.Option[time.Time]) squirrel.SelectBuilder {
	if from, err := start.Take(); err == nil {
		query = query.Where(squirrel.GtOrEq{"time": from})
	}

	if to, err := end.Take(); err == nil {
		query = query.Where(squirrel.LtOrEq{"time": to})
	}

	return query
}

func quote(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}
