// Package virtual implements the simulated execution core: a precision
// policy, a risk-based position sizer, a resting order book and a netted
// margin account, driven one candle at a time.
package virtual

import (
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/tradekit-lab/tradekit/internal/broker/virtual/commission"
	"github.com/tradekit-lab/tradekit/internal/logger"
	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// Broker is the virtual matching engine. Every candle is processed in a
// fixed order: protective exits on open positions, resting limit/stop
// orders, then market orders queued since the previous candle. Each
// fill passes the margin check before the account mutates, so two runs
// over the same candle stream produce identical ledgers.
type Broker struct {
	log        *logger.Logger
	account    *Account
	book       *OrderBook
	commission commission.Model
	spreadPips float64

	pendingMarket []types.Order
	rejected      []types.Order
	lastCandle    map[string]types.Candle
}

func NewBroker(account *Account, model commission.Model, spreadPips float64, log *logger.Logger) *Broker {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if model == nil {
		model = commission.NewZero()
	}

	return &Broker{
		log:        log,
		account:    account,
		book:       NewOrderBook(),
		commission: model,
		spreadPips: spreadPips,
		lastCandle: make(map[string]types.Candle),
	}
}

// Account exposes the underlying account for mark to market and
// snapshots.
func (b *Broker) Account() *Account { return b.account }

// Rejected returns the orders refused so far, with their reasons.
func (b *Broker) Rejected() []types.Order {
	out := make([]types.Order, len(b.rejected))
	copy(out, b.rejected)

	return out
}

// Submit routes a new order. Market orders queue until the next candle
// and fill at its open adjusted by half the spread; limit and stop
// orders rest on the book until a candle crosses their trigger.
func (b *Broker) Submit(order types.Order) error {
	if err := order.Validate(); err != nil {
		b.reject(order, types.OrderReasonInvalidOrder, err)

		return err
	}

	order.Status = types.OrderStatusPending

	if order.Kind == types.OrderKindMarket {
		b.pendingMarket = append(b.pendingMarket, order)

		return nil
	}

	b.book.Add(order)

	return nil
}

// CancelOrder removes a resting or queued order by ID.
func (b *Broker) CancelOrder(id string) bool {
	for i, order := range b.pendingMarket {
		if order.ID == id {
			b.pendingMarket = append(b.pendingMarket[:i], b.pendingMarket[i+1:]...)

			return true
		}
	}

	return b.book.Cancel(id)
}

// OnCandle advances the simulation by one bar and returns the round
// trips it closed. Rejected fills are recorded and skipped; only
// account-level failures (unknown instrument, missing conversion rate)
// abort the candle.
func (b *Broker) OnCandle(candle types.Candle) ([]types.Trade, error) {
	b.lastCandle[candle.Symbol] = candle

	var trades []types.Trade

	fills := b.protectiveExits(candle)
	fills = append(fills, b.book.Match(candle)...)
	fills = append(fills, b.queuedMarketFills(candle)...)

	for _, fill := range fills {
		trade, err := b.apply(fill)
		if err != nil {
			if errors.IsRejection(err) {
				b.reject(fill.Order, rejectionReason(err), err)

				continue
			}

			return trades, err
		}

		if trade.IsSome() {
			trades = append(trades, trade.Unwrap())
		}
	}

	return trades, nil
}

// protectiveExits turns triggered stop-loss and take-profit levels on
// the open position into closing fills. When both levels fall inside
// one candle's range the stop wins; intrabar ordering is unknowable
// from OHLC data, so the engine books the worse outcome.
func (b *Broker) protectiveExits(candle types.Candle) []Fill {
	pos, ok := b.account.Position(candle.Symbol)
	if !ok {
		return nil
	}

	stopHit := false
	if pos.StopLoss.IsSome() {
		level := pos.StopLoss.Unwrap()
		if pos.Direction == types.DirectionLong {
			stopHit = candle.Low <= level
		} else {
			stopHit = candle.High >= level
		}
	}

	takeHit := false
	if pos.TakeProfit.IsSome() {
		level := pos.TakeProfit.Unwrap()
		if pos.Direction == types.DirectionLong {
			takeHit = candle.High >= level
		} else {
			takeHit = candle.Low <= level
		}
	}

	switch {
	case stopHit:
		return []Fill{b.closingFill(pos, pos.StopLoss.Unwrap(), candle.Time,
			types.ExitReasonStop, types.OrderReasonStopLoss)}
	case takeHit:
		return []Fill{b.closingFill(pos, pos.TakeProfit.Unwrap(), candle.Time,
			types.ExitReasonTakeProfit, types.OrderReasonTakeProfit)}
	default:
		return nil
	}
}

// queuedMarketFills prices the market orders submitted since the last
// candle at this candle's open, half a spread against the trader.
func (b *Broker) queuedMarketFills(candle types.Candle) []Fill {
	var fills []Fill

	kept := b.pendingMarket[:0]

	for _, order := range b.pendingMarket {
		if order.Symbol != candle.Symbol {
			kept = append(kept, order)

			continue
		}

		price, err := b.executionPrice(order.Symbol, candle.Open, order.Direction)
		if err != nil {
			b.reject(order, types.OrderReasonInvalidOrder, err)

			continue
		}

		order.Status = types.OrderStatusFilled
		fills = append(fills, Fill{Order: order, Price: price, Time: candle.Time})
	}

	b.pendingMarket = kept

	return fills
}

// executionPrice shifts the reference price by half the configured
// spread against the trader's direction.
func (b *Broker) executionPrice(symbol string, reference float64, direction types.Direction) (float64, error) {
	inst, err := market.Lookup(symbol)
	if err != nil {
		return 0, err
	}

	half := b.spreadPips / 2 * inst.PipSize()

	return reference + half*direction.Sign(), nil
}

func (b *Broker) apply(fill Fill) (optional.Option[types.Trade], error) {
	fee := b.commission.Calculate(fill.Order.Size, fill.Price)

	trade, err := b.account.ApplyFill(fill, fee)
	if err != nil {
		return optional.None[types.Trade](), err
	}

	if trade.IsSome() {
		closed := trade.Unwrap()
		b.log.Debug("closed trade",
			zap.String("symbol", closed.Symbol),
			zap.String("direction", string(closed.Direction)),
			zap.Float64("size", closed.Size),
			zap.Float64("pnl", closed.RealizedPnL),
			zap.String("exit_reason", string(closed.ExitReason)))
	}

	return trade, nil
}

// CloseAll flattens every open position at the last seen close price
// with the given exit reason. Used at the end of a backtest and on
// session shutdown.
func (b *Broker) CloseAll(reason types.ExitReason) ([]types.Trade, error) {
	var trades []types.Trade

	for _, pos := range b.account.Positions() {
		last, ok := b.lastCandle[pos.Symbol]
		if !ok {
			return trades, errors.Newf(errors.ErrCodeNoDataFound,
				"no market data seen for %s, cannot close", pos.Symbol)
		}

		orderReason := types.OrderReasonEndOfData
		if reason == types.ExitReasonSignal {
			orderReason = types.OrderReasonStrategy
		}

		fill := b.closingFill(pos, last.Close, last.Time, reason, orderReason)

		trade, err := b.apply(fill)
		if err != nil {
			return trades, err
		}

		if trade.IsSome() {
			trades = append(trades, trade.Unwrap())
		}
	}

	return trades, nil
}

// closingFill builds a synthetic opposite-side market fill that flattens
// the position at the given price.
func (b *Broker) closingFill(pos types.Position, price float64, at time.Time, exit types.ExitReason, orderReason string) Fill {
	return Fill{
		Order: types.Order{
			ID:        uuid.New().String(),
			Symbol:    pos.Symbol,
			Direction: pos.Direction.Opposite(),
			Kind:      types.OrderKindMarket,
			Size:      pos.Size,
			Status:    types.OrderStatusFilled,
			Reason:    types.Reason{Reason: orderReason, Message: pos.Strategy},
			CreatedAt: at,
		},
		Price:      price,
		Time:       at,
		ExitReason: exit,
	}
}

func (b *Broker) reject(order types.Order, reason string, cause error) {
	order.Status = types.OrderStatusRejected
	order.Reason = types.Reason{Reason: reason, Message: cause.Error()}
	b.rejected = append(b.rejected, order)

	b.log.Warn("order rejected",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("reason", reason),
		zap.Error(cause))
}

func rejectionReason(err error) string {
	switch errors.GetCode(err) {
	case errors.ErrCodePrecisionViolation:
		return types.OrderReasonPrecisionViolation
	case errors.ErrCodeInsufficientMargin:
		return types.OrderReasonInsufficientMargin
	case errors.ErrCodeSizeTooSmall:
		return types.OrderReasonSizeTooSmall
	default:
		return types.OrderReasonInvalidOrder
	}
}
