// Package broker defines the wire-client interface live sessions trade
// through, plus a paper implementation backed by the virtual engine.
package broker

import (
	"context"
	"time"

	"github.com/tradekit-lab/tradekit/internal/types"
)

// Execution is a broker's fill confirmation. The live engine reconciles
// executions into the shared account with the same apply-fill contract
// the backtest uses.
type Execution struct {
	Order  types.Order
	Price  float64
	Time   time.Time
	Filled bool
}

// Client is the minimal surface a live session needs from a broker:
// submit an order, fetch the latest candle. Implementations wrap real
// broker APIs or the paper engine.
type Client interface {
	SubmitOrder(ctx context.Context, order types.Order) (Execution, error)
	LatestCandle(ctx context.Context, symbol string, granularity types.Granularity) (types.Candle, error)
}
