package virtual

import (
	"github.com/tradekit-lab/tradekit/internal/types"
)

// OrderBook stores resting limit and stop orders. Matching walks the
// book in submission order, so two runs over the same candle stream
// trigger fills identically.
type OrderBook struct {
	resting []types.Order
}

func NewOrderBook() *OrderBook {
	return &OrderBook{resting: make([]types.Order, 0)}
}

// Add parks a limit or stop order until a candle crosses its trigger.
func (b *OrderBook) Add(order types.Order) {
	b.resting = append(b.resting, order)
}

// Cancel removes the order with the given ID. Returns false when the
// order is not resting.
func (b *OrderBook) Cancel(id string) bool {
	for i, order := range b.resting {
		if order.ID == id {
			b.resting = append(b.resting[:i], b.resting[i+1:]...)

			return true
		}
	}

	return false
}

// CancelAll drops every resting order for the symbol.
func (b *OrderBook) CancelAll(symbol string) int {
	kept := b.resting[:0]
	dropped := 0

	for _, order := range b.resting {
		if order.Symbol == symbol {
			dropped++

			continue
		}

		kept = append(kept, order)
	}

	b.resting = kept

	return dropped
}

// Resting returns copies of the parked orders in submission order.
func (b *OrderBook) Resting() []types.Order {
	out := make([]types.Order, len(b.resting))
	copy(out, b.resting)

	return out
}

// Match removes and returns the fills for every resting order whose
// trigger price falls inside the candle's range. Triggered orders fill
// exactly at their trigger price.
//
// Orders submitted during this candle are not in the book yet; they
// become eligible from the next candle, so no fill ever uses
// information from inside its own submission bar.
func (b *OrderBook) Match(candle types.Candle) []Fill {
	var fills []Fill

	kept := b.resting[:0]

	for _, order := range b.resting {
		if order.Symbol != candle.Symbol || !b.triggered(order, candle) {
			kept = append(kept, order)

			continue
		}

		order.Status = types.OrderStatusFilled
		fills = append(fills, Fill{
			Order: order,
			Price: order.TriggerPrice.Unwrap(),
			Time:  candle.Time,
		})
	}

	b.resting = kept

	return fills
}

// triggered applies the classic crossing rules. A buy limit waits for
// the market to trade down to its price, a buy stop for the market to
// trade up through it; sells invert.
func (b *OrderBook) triggered(order types.Order, candle types.Candle) bool {
	if order.TriggerPrice.IsNone() {
		return false
	}

	price := order.TriggerPrice.Unwrap()

	switch {
	case order.Kind == types.OrderKindLimit && order.Direction == types.DirectionLong:
		return candle.Low <= price
	case order.Kind == types.OrderKindLimit && order.Direction == types.DirectionShort:
		return candle.High >= price
	case order.Kind == types.OrderKindStop && order.Direction == types.DirectionLong:
		return candle.High >= price
	case order.Kind == types.OrderKindStop && order.Direction == types.DirectionShort:
		return candle.Low <= price
	default:
		return false
	}
}
