package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/tradekit-lab/tradekit/internal/logger"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

const readBatchSize = 10000

// DuckDB reads candles through an in-memory DuckDB instance with a view
// over the backing Parquet or CSV file. DuckDB does the file scanning
// and ordering; iteration happens in fixed-size batches.
type DuckDB struct {
	db   *sql.DB
	log  *logger.Logger
	path string
}

func NewDuckDB(log *logger.Logger) (*DuckDB, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	return &DuckDB{db: db, log: log}, nil
}

// Initialize creates the candles view over the given file. Parquet and
// CSV files are both accepted; the reader is picked by extension.
func (d *DuckDB) Initialize(path string) error {
	reader := "read_parquet"
	if strings.HasSuffix(path, ".csv") {
		reader = "read_csv_auto"
	}

	query := fmt.Sprintf(`
		CREATE OR REPLACE VIEW candles AS
		SELECT
			symbol,
			time,
			open,
			high,
			low,
			close,
			volume
		FROM %s('%s')
		ORDER BY time ASC;
	`, reader, path)

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to create view over %s", path)
	}

	d.path = path
	d.log.Debug("datasource initialized", zap.String("path", path))

	return nil
}

func timeBounds(start, end optional.Option[time.Time]) string {
	conditions := []string{}

	if start.IsSome() {
		conditions = append(conditions, fmt.Sprintf("time >= '%s'", start.Unwrap().UTC().Format(time.RFC3339)))
	}

	if end.IsSome() {
		conditions = append(conditions, fmt.Sprintf("time <= '%s'", end.Unwrap().UTC().Format(time.RFC3339)))
	}

	if len(conditions) == 0 {
		return ""
	}

	return " WHERE " + strings.Join(conditions, " AND ")
}

// ReadAll streams the candles in ascending time order in batches, so
// arbitrarily large files never load at once.
func (d *DuckDB) ReadAll(start, end optional.Option[time.Time]) func(yield func(types.Candle, error) bool) {
	return func(yield func(types.Candle, error) bool) {
		total, err := d.Count(start, end)
		if err != nil {
			yield(types.Candle{}, err)

			return
		}

		for offset := 0; offset < total; offset += readBatchSize {
			query := fmt.Sprintf(`
				SELECT symbol, time, open, high, low, close, volume
				FROM candles%s
				ORDER BY time ASC
				LIMIT %d OFFSET %d;
			`, timeBounds(start, end), readBatchSize, offset)

			rows, err := d.db.Query(query)
			if err != nil {
				yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read candle batch", err))

				return
			}

			for rows.Next() {
				var candle types.Candle
				if err := rows.Scan(&candle.Symbol, &candle.Time, &candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume); err != nil {
					rows.Close()
					yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan candle", err))

					return
				}

				// Stored history only contains closed bars
				candle.Complete = true
				candle.Time = candle.Time.UTC()

				if !yield(candle, nil) {
					rows.Close()

					return
				}
			}

			if err := rows.Err(); err != nil {
				rows.Close()
				yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "row iteration failed", err))

				return
			}

			rows.Close()
		}
	}
}

// ReadLast returns the newest candle for the symbol.
func (d *DuckDB) ReadLast(symbol string) (types.Candle, error) {
	query := `
		SELECT symbol, time, open, high, low, close, volume
		FROM candles
		WHERE symbol = ?
		ORDER BY time DESC
		LIMIT 1;
	`

	var candle types.Candle

	err := d.db.QueryRow(query, symbol).
		Scan(&candle.Symbol, &candle.Time, &candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Candle{}, errors.Newf(errors.ErrCodeNoDataFound, "no candles for %s", symbol)
		}

		return types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read last candle", err)
	}

	candle.Complete = true
	candle.Time = candle.Time.UTC()

	return candle, nil
}

// Count returns the number of candles between the optional bounds.
func (d *DuckDB) Count(start, end optional.Option[time.Time]) (int, error) {
	query := "SELECT COUNT(*) FROM candles" + timeBounds(start, end) + ";"

	var count int
	if err := d.db.QueryRow(query).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count candles", err)
	}

	return count, nil
}

// Close shuts the embedded database down.
func (d *DuckDB) Close() error {
	return d.db.Close()
}
