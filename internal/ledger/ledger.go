// Package ledger persists closed trades and per-candle equity
// snapshots. Two sinks exist: a DuckDB journal with Parquet export and
// a plain CSV writer.
package ledger

import (
	"github.com/tradekit-lab/tradekit/internal/types"
)

// Ledger records the backtest or session journal.
type Ledger interface {
	AppendTrade(trade types.Trade) error
	AppendEquity(snapshot types.AccountSnapshot) error
	Close() error
}

// Multi fans writes out to several ledgers.
type Multi []Ledger

func (m Multi) AppendTrade(trade types.Trade) error {
	for _, l := range m {
		if err := l.AppendTrade(trade); err != nil {
			return err
		}
	}

	return nil
}

func (m Multi) AppendEquity(snapshot types.AccountSnapshot) error {
	for _, l := range m {
		if err := l.AppendEquity(snapshot); err != nil {
			return err
		}
	}

	return nil
}

func (m Multi) Close() error {
	var firstErr error

	for _, l := range m {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Nop discards everything.
type Nop struct{}

func (Nop) AppendTrade(types.Trade) error            { return nil }
func (Nop) AppendEquity(types.AccountSnapshot) error { return nil }
func (Nop) Close() error                             { return nil }
