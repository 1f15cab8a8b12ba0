package broker

import (
	"context"
	"sync"

	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// Paper simulates instant executions against the most recent candle it
// has been fed. Live paper sessions push candles in as they arrive and
// submit orders exactly as they would against a real broker.
type Paper struct {
	mu         sync.Mutex
	spreadPips float64
	latest     map[string]types.Candle
}

func NewPaper(spreadPips float64) *Paper {
	return &Paper{
		spreadPips: spreadPips,
		latest:     make(map[string]types.Candle),
	}
}

// Push records a new candle as the current market state.
func (p *Paper) Push(candle types.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest[candle.Symbol] = candle
}

// SubmitOrder fills market orders at the latest close, half a spread
// against the trader. Resting kinds are not supported on paper; the
// virtual engine's order book covers those in backtests.
func (p *Paper) SubmitOrder(ctx context.Context, order types.Order) (Execution, error) {
	if err := order.Validate(); err != nil {
		return Execution{}, err
	}

	if order.Kind != types.OrderKindMarket {
		return Execution{}, errors.Newf(errors.ErrCodeInvalidOrder,
			"paper broker only executes market orders, got %s", order.Kind)
	}

	p.mu.Lock()
	candle, ok := p.latest[order.Symbol]
	p.mu.Unlock()

	if !ok {
		return Execution{}, errors.Newf(errors.ErrCodeNoDataFound, "no market data for %s yet", order.Symbol)
	}

	inst, err := market.Lookup(order.Symbol)
	if err != nil {
		return Execution{}, err
	}

	half := p.spreadPips / 2 * inst.PipSize()
	order.Status = types.OrderStatusFilled

	return Execution{
		Order:  order,
		Price:  candle.Close + half*order.Direction.Sign(),
		Time:   candle.Time,
		Filled: true,
	}, nil
}

// LatestCandle returns the most recent pushed candle.
func (p *Paper) LatestCandle(ctx context.Context, symbol string, granularity types.Granularity) (types.Candle, error) {
	p.mu.Lock()
	candle, ok := p.latest[symbol]
	p.mu.Unlock()

	if !ok {
		return types.Candle{}, errors.Newf(errors.ErrCodeNoDataFound, "no market data for %s yet", symbol)
	}

	return candle, nil
}

var _ Client = (*Paper)(nil)
