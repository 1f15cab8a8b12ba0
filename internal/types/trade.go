package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitReasonStop       ExitReason = "stop"
	ExitReasonTakeProfit ExitReason = "take_profit"
	ExitReasonSignal     ExitReason = "signal"
	ExitReasonEndOfData  ExitReason = "end_of_data"
)

// Position is the single netted holding per instrument. At most one
// position exists per symbol at a time.
type Position struct {
	Symbol     string                   `csv:"symbol" yaml:"symbol"`
	Direction  Direction                `csv:"direction" yaml:"direction"`
	Size       float64                  `csv:"size" yaml:"size"`
	EntryPrice float64                  `csv:"entry_price" yaml:"entry_price"`
	StopLoss   optional.Option[float64] `csv:"-" yaml:"stop_loss,omitempty"`
	TakeProfit optional.Option[float64] `csv:"-" yaml:"take_profit,omitempty"`
	OpenedAt   time.Time                `csv:"opened_at" yaml:"opened_at"`
	Strategy   string                   `csv:"strategy" yaml:"strategy"`

	// UnrealizedPnL is refreshed on every mark to market, in account
	// currency.
	UnrealizedPnL float64 `csv:"unrealized_pnl" yaml:"unrealized_pnl"`
}

// UnrealizedAt computes the open profit at the given price in quote
// currency units, before any quote-to-account conversion.
func (p *Position) UnrealizedAt(price float64) float64 {
	entry := decimal.NewFromFloat(p.EntryPrice)
	mark := decimal.NewFromFloat(price)
	size := decimal.NewFromFloat(p.Size * p.Direction.Sign())

	pnl, _ := mark.Sub(entry).Mul(size).Float64()

	return pnl
}

// Trade is one closed round trip: an entry and the exit that flattened
// (or flipped) it.
type Trade struct {
	ID         string    `csv:"id" yaml:"id"`
	Symbol     string    `csv:"symbol" yaml:"symbol"`
	Direction  Direction `csv:"direction" yaml:"direction"`
	Size       float64   `csv:"size" yaml:"size"`
	EntryPrice float64   `csv:"entry_price" yaml:"entry_price"`
	ExitPrice  float64   `csv:"exit_price" yaml:"exit_price"`
	OpenedAt   time.Time `csv:"opened_at" yaml:"opened_at"`
	ClosedAt   time.Time `csv:"closed_at" yaml:"closed_at"`
	// RealizedPnL is net of fees, in account currency.
	RealizedPnL float64    `csv:"realized_pnl" yaml:"realized_pnl"`
	Fee         float64    `csv:"fee" yaml:"fee"`
	ExitReason  ExitReason `csv:"exit_reason" yaml:"exit_reason"`
	Strategy    string     `csv:"strategy" yaml:"strategy"`
}

// Duration is the trade's holding period.
func (t Trade) Duration() time.Duration {
	return t.ClosedAt.Sub(t.OpenedAt)
}
