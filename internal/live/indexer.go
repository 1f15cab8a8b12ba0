// Package live runs strategies against a real clock: one session per
// instrument, polling for the most recently closed candle and trading
// through a broker client.
package live

import (
	"context"
	"time"

	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// CandleFetcher supplies the newest candle for a symbol. Satisfied by
// broker.Client.
type CandleFetcher interface {
	LatestCandle(ctx context.Context, symbol string, granularity types.Granularity) (types.Candle, error)
}

// Indexer resolves "the most recently closed bar" against the wall
// clock. A bar whose open time falls inside the current granularity
// window is still forming; asking for it yields PartialCandle unless
// incomplete candles were explicitly allowed.
type Indexer struct {
	fetcher         CandleFetcher
	granularity     types.Granularity
	allowIncomplete bool

	// now is the clock, replaceable in tests
	now func() time.Time

	lastSeen map[string]time.Time
}

func NewIndexer(fetcher CandleFetcher, granularity types.Granularity, allowIncomplete bool) *Indexer {
	return &Indexer{
		fetcher:         fetcher,
		granularity:     granularity,
		allowIncomplete: allowIncomplete,
		now:             time.Now,
		lastSeen:        make(map[string]time.Time),
	}
}

// Next returns the newest candle not yet handed out for the symbol.
//
// Error codes the caller is expected to handle:
//   - PartialCandle: the newest bar is still open, or no bar newer than
//     the last handed-out one exists yet. Retry on the next poll.
//   - DataGap: the feed skipped at least one bar boundary. Not fatal in
//     live mode; the caller logs it and keeps going.
func (ix *Indexer) Next(ctx context.Context, symbol string) (types.Candle, error) {
	candle, err := ix.fetcher.LatestCandle(ctx, symbol, ix.granularity)
	if err != nil {
		return types.Candle{}, err
	}

	interval, err := ix.granularity.Duration()
	if err != nil {
		return types.Candle{}, err
	}

	// Open time of the bar that is currently forming
	forming := ix.now().UTC().Truncate(interval)

	stillOpen := !candle.Complete || !candle.Time.Before(forming)
	if stillOpen && !ix.allowIncomplete {
		return types.Candle{}, errors.Newf(errors.ErrCodePartialCandle,
			"newest %s bar for %s at %s is still open",
			ix.granularity, symbol, candle.Time.Format(time.RFC3339))
	}

	if stillOpen {
		candle.Complete = false
	}

	if last, seen := ix.lastSeen[symbol]; seen {
		if !candle.Time.After(last) {
			return types.Candle{}, errors.Newf(errors.ErrCodePartialCandle,
				"no bar for %s newer than %s yet", symbol, last.Format(time.RFC3339))
		}

		if expected := last.Add(interval); candle.Time.After(expected) {
			ix.lastSeen[symbol] = candle.Time

			return candle, errors.Newf(errors.ErrCodeDataGap,
				"feed for %s jumped from %s to %s",
				symbol, last.Format(time.RFC3339), candle.Time.Format(time.RFC3339))
		}
	}

	ix.lastSeen[symbol] = candle.Time

	return candle, nil
}
