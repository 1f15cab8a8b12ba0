package datasource

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// Memory serves candles from a slice. Used by tests and by live paper
// sessions that accumulate their own history.
type Memory struct {
	candles []types.Candle
}

// NewMemory copies and time-sorts the given candles.
func NewMemory(candles []types.Candle) *Memory {
	sorted := make([]types.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	return &Memory{candles: sorted}
}

// Initialize is a no-op; the candles were supplied at construction.
func (m *Memory) Initialize(path string) error { return nil }

// Append adds a candle keeping time order.
func (m *Memory) Append(candle types.Candle) {
	m.candles = append(m.candles, candle)
	sort.SliceStable(m.candles, func(i, j int) bool {
		return m.candles[i].Time.Before(m.candles[j].Time)
	})
}

func (m *Memory) inBounds(candle types.Candle, start, end optional.Option[time.Time]) bool {
	if start.IsSome() && candle.Time.Before(start.Unwrap()) {
		return false
	}

	if end.IsSome() && candle.Time.After(end.Unwrap()) {
		return false
	}

	return true
}

func (m *Memory) ReadAll(start, end optional.Option[time.Time]) func(yield func(types.Candle, error) bool) {
	return func(yield func(types.Candle, error) bool) {
		for _, candle := range m.candles {
			if !m.inBounds(candle, start, end) {
				continue
			}

			if !yield(candle, nil) {
				return
			}
		}
	}
}

func (m *Memory) ReadLast(symbol string) (types.Candle, error) {
	for i := len(m.candles) - 1; i >= 0; i-- {
		if m.candles[i].Symbol == symbol {
			return m.candles[i], nil
		}
	}

	return types.Candle{}, errors.Newf(errors.ErrCodeNoDataFound, "no candles for %s", symbol)
}

func (m *Memory) Count(start, end optional.Option[time.Time]) (int, error) {
	count := 0

	for _, candle := range m.candles {
		if m.inBounds(candle, start, end) {
			count++
		}
	}

	return count, nil
}

func (m *Memory) Close() error { return nil }
