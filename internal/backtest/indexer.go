package backtest

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/tradekit-lab/tradekit/internal/datasource"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// Indexer wraps a datasource with stream-integrity checks. Candles come
// out lazily in ascending time order; a timestamp that fails to advance
// for its symbol is a DataGap, which is fatal in backtests because every
// result after it would be silently wrong.
type Indexer struct {
	source datasource.DataSource
	start  optional.Option[time.Time]
	end    optional.Option[time.Time]
}

func NewIndexer(source datasource.DataSource, start, end optional.Option[time.Time]) *Indexer {
	return &Indexer{source: source, start: start, end: end}
}

// Count returns the number of candles the iteration will produce.
func (ix *Indexer) Count() (int, error) {
	return ix.source.Count(ix.start, ix.end)
}

// Candles iterates the stream, validating per-symbol monotonicity. The
// iteration is restartable; each call starts over.
func (ix *Indexer) Candles() func(yield func(types.Candle, error) bool) {
	return func(yield func(types.Candle, error) bool) {
		lastSeen := make(map[string]time.Time)

		for candle, err := range ix.source.ReadAll(ix.start, ix.end) {
			if err != nil {
				yield(types.Candle{}, err)

				return
			}

			if last, ok := lastSeen[candle.Symbol]; ok && !candle.Time.After(last) {
				yield(types.Candle{}, errors.Newf(errors.ErrCodeDataGap,
					"candle for %s at %s does not advance past %s",
					candle.Symbol, candle.Time.Format(time.RFC3339), last.Format(time.RFC3339)))

				return
			}

			lastSeen[candle.Symbol] = candle.Time

			if !yield(candle, nil) {
				return
			}
		}
	}
}
