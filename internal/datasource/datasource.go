// Package datasource provides ordered candle streams for backtests:
// a DuckDB-backed store over Parquet/CSV files and an in-memory
// implementation for tests and programmatic feeds.
package datasource

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/tradekit-lab/tradekit/internal/types"
)

// DataSource streams candles in ascending time order.
type DataSource interface {
	// Initialize points the source at its backing data.
	Initialize(path string) error
	// ReadAll iterates every candle between the optional bounds in
	// ascending time order. The iteration is restartable: each call
	// starts from the beginning.
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Candle, error) bool)
	// ReadLast returns the most recent candle for the symbol.
	ReadLast(symbol string) (types.Candle, error)
	// Count returns the number of candles between the optional bounds.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Close releases the underlying resources.
	Close() error
}
