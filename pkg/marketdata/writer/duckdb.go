package writer

import (
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// DuckDB buffers candles in an in-memory table inside one transaction
// and exports them as a single Parquet file on Finalize.
type DuckDB struct {
	db         *sql.DB
	tx         *sql.Tx
	stmt       *sql.Stmt
	outputPath string
}

func NewDuckDB(outputPath string) *DuckDB {
	return &DuckDB{outputPath: outputPath}
}

func (w *DuckDB) Initialize() error {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeProviderWriteFailed, "failed to open duckdb", err)
	}

	w.db = db

	_, err = w.db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT,
			time TIMESTAMP,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		)
	`)
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodeProviderWriteFailed, "failed to create candles table", err)
	}

	w.tx, err = w.db.Begin()
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodeProviderWriteFailed, "failed to begin transaction", err)
	}

	w.stmt, err = w.tx.Prepare(`
		INSERT INTO candles (symbol, time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		w.tx.Rollback()
		w.db.Close()

		return errors.Wrap(errors.ErrCodeProviderWriteFailed, "failed to prepare insert", err)
	}

	return nil
}

func (w *DuckDB) Write(candle types.Candle) error {
	if w.stmt == nil {
		return errors.New(errors.ErrCodeProviderWriteFailed, "writer not initialized")
	}

	_, err := w.stmt.Exec(
		candle.Symbol,
		candle.Time,
		candle.Open,
		candle.High,
		candle.Low,
		candle.Close,
		candle.Volume,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeProviderWriteFailed, "failed to insert candle", err)
	}

	return nil
}

// Finalize commits the buffered inserts and exports them to Parquet.
func (w *DuckDB) Finalize() (string, error) {
	if w.tx == nil {
		return "", errors.New(errors.ErrCodeProviderWriteFailed, "writer not initialized")
	}

	if err := w.tx.Commit(); err != nil {
		w.tx.Rollback()

		return "", errors.Wrap(errors.ErrCodeProviderWriteFailed, "failed to commit candles", err)
	}

	w.tx = nil

	_, err := w.db.Exec(fmt.Sprintf(`COPY (SELECT * FROM candles ORDER BY time) TO '%s' (FORMAT PARQUET)`, w.outputPath))
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeProviderWriteFailed, err, "failed to export parquet to %s", w.outputPath)
	}

	return w.outputPath, nil
}

func (w *DuckDB) Close() error {
	var firstErr error

	if w.stmt != nil {
		if err := w.stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		w.stmt = nil
	}

	if w.tx != nil {
		w.tx.Rollback()
		w.tx = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		w.db = nil
	}

	if firstErr != nil {
		return errors.Wrap(errors.ErrCodeProviderWriteFailed, "failed to close writer", firstErr)
	}

	return nil
}

func (w *DuckDB) OutputPath() string { return w.outputPath }

var _ Writer = (*DuckDB)(nil)
