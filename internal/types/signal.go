package types

import (
	"time"

	"github.com/moznion/go-optional"
)

type SignalType string

const (
	// SignalTypeNone means the strategy sees nothing to do this candle
	SignalTypeNone SignalType = "none"
	// SignalTypeEnterLong requests a new or flipped long position
	SignalTypeEnterLong SignalType = "enter_long"
	// SignalTypeEnterShort requests a new or flipped short position
	SignalTypeEnterShort SignalType = "enter_short"
	// SignalTypeExit requests flattening the current position
	SignalTypeExit SignalType = "exit"
)

// Signal is a strategy's directional intent for one candle. Sizing and
// precision qualification happen downstream; the strategy only states
// direction and, optionally, protective levels.
type Signal struct {
	// Time is the open time of the candle that produced the signal
	Time time.Time
	// Type is the directional intent
	Type SignalType
	// Symbol is the instrument the signal applies to
	Symbol string
	// Reason is a free-form note from the strategy
	Reason string
	// StopLoss is the protective stop for entries. Risk-based sizing
	// needs it; entries without a stop are skipped.
	StopLoss optional.Option[float64]
	// TakeProfit is the optional profit target
	TakeProfit optional.Option[float64]
}

// IsEntry reports whether the signal requests opening a position.
func (s Signal) IsEntry() bool {
	return s.Type == SignalTypeEnterLong || s.Type == SignalTypeEnterShort
}

// Direction maps an entry signal to its order side.
func (s Signal) Direction() Direction {
	if s.Type == SignalTypeEnterShort {
		return DirectionShort
	}

	return DirectionLong
}
