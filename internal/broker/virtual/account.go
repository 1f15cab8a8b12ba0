package virtual

import (
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// Fill describes one execution produced by the matching engine.
type Fill struct {
	Order types.Order
	Price float64
	Time  time.Time
	// ExitReason is set when the fill exists to close a position
	// (protective trigger, exit signal or end of data).
	ExitReason types.ExitReason
}

// Account tracks balance, equity, margin and the netted positions. All
// amounts are in the account currency. A single mutex guards every
// mutation so backtest and live sessions can share one instance.
type Account struct {
	mu sync.Mutex

	currency string
	leverage float64
	rates    market.RateSource

	balance        float64
	marginUsed     float64
	peakEquity     float64
	maxDrawdownPct float64
	equity         float64
	totalFees      float64

	positions map[string]*types.Position
}

func NewAccount(initialCapital float64, currency string, leverage float64, rates market.RateSource) *Account {
	return &Account{
		currency:   currency,
		leverage:   leverage,
		rates:      rates,
		balance:    initialCapital,
		equity:     initialCapital,
		peakEquity: initialCapital,
		positions:  make(map[string]*types.Position),
	}
}

// Currency returns the account denomination.
func (a *Account) Currency() string { return a.currency }

// Leverage returns the configured leverage factor.
func (a *Account) Leverage() float64 { return a.leverage }

// Rates exposes the conversion source for sizing calculations.
func (a *Account) Rates() market.RateSource { return a.rates }

// Balance returns the realized cash balance.
func (a *Account) Balance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.balance
}

// Position returns a copy of the open position for the symbol.
func (a *Account) Position(symbol string) (types.Position, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pos, ok := a.positions[symbol]
	if !ok {
		return types.Position{}, false
	}

	return *pos, true
}

// Positions returns copies of all open positions in symbol order.
func (a *Account) Positions() []types.Position {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]types.Position, 0, len(a.positions))
	for _, symbol := range a.sortedSymbols() {
		out = append(out, *a.positions[symbol])
	}

	return out
}

// ApplyFill nets the fill into the account. The margin check happens on
// the prospective state before anything mutates; a fill that would push
// margin past balance*leverage is rejected with InsufficientMargin and
// leaves the account untouched. Returns the closed round trip when the
// fill flattens (or flips through) an existing position.
func (a *Account) ApplyFill(fill Fill, fee float64) (optional.Option[types.Trade], error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	none := optional.None[types.Trade]()

	inst, err := market.Lookup(fill.Order.Symbol)
	if err != nil {
		return none, err
	}

	factor, err := market.QuoteToAccount(inst, a.currency, a.rates)
	if err != nil {
		return none, err
	}

	existing := a.positions[fill.Order.Symbol]
	next, closed, realized := a.net(existing, fill, factor)

	balanceAfter := a.balance + realized - fee

	marginAfter, err := a.marginWith(fill.Order.Symbol, next)
	if err != nil {
		return none, err
	}

	if marginAfter > balanceAfter*a.leverage {
		return none, errors.Newf(errors.ErrCodeInsufficientMargin,
			"fill requires %.2f margin against a cap of %.2f", marginAfter, balanceAfter*a.leverage)
	}

	a.balance = balanceAfter
	a.marginUsed = marginAfter
	a.totalFees += fee

	if next == nil {
		delete(a.positions, fill.Order.Symbol)
	} else {
		a.positions[fill.Order.Symbol] = next
	}

	a.refreshEquity()

	if closed == nil {
		return none, nil
	}

	closed.Fee = fee
	closed.RealizedPnL = realized - fee

	return optional.Some(*closed), nil
}

// net computes the position resulting from applying the fill to the
// existing position, plus the closed round trip and realized PnL in
// account currency. Pure: no account state is touched.
func (a *Account) net(existing *types.Position, fill Fill, factor float64) (*types.Position, *types.Trade, float64) {
	order := fill.Order

	opened := &types.Position{
		Symbol:     order.Symbol,
		Direction:  order.Direction,
		Size:       order.Size,
		EntryPrice: fill.Price,
		StopLoss:   order.StopLoss,
		TakeProfit: order.TakeProfit,
		OpenedAt:   fill.Time,
		Strategy:   order.Reason.Message,
	}

	if existing == nil {
		return opened, nil, 0
	}

	if existing.Direction == order.Direction {
		// Increase: size-weighted average entry, levels replaced only
		// when the order carries its own.
		total := existing.Size + order.Size
		entry := decimal.NewFromFloat(existing.EntryPrice).Mul(decimal.NewFromFloat(existing.Size)).
			Add(decimal.NewFromFloat(fill.Price).Mul(decimal.NewFromFloat(order.Size))).
			Div(decimal.NewFromFloat(total))

		merged := *existing
		merged.Size = total
		merged.EntryPrice, _ = entry.Float64()

		if order.StopLoss.IsSome() {
			merged.StopLoss = order.StopLoss
		}

		if order.TakeProfit.IsSome() {
			merged.TakeProfit = order.TakeProfit
		}

		return &merged, nil, 0
	}

	closedSize := existing.Size
	if order.Size < existing.Size {
		closedSize = order.Size
	}

	move := decimal.NewFromFloat(fill.Price).Sub(decimal.NewFromFloat(existing.EntryPrice))
	realized, _ := move.
		Mul(decimal.NewFromFloat(closedSize * existing.Direction.Sign())).
		Mul(decimal.NewFromFloat(factor)).
		Float64()

	reason := fill.ExitReason
	if reason == "" {
		reason = types.ExitReasonSignal
	}

	trade := &types.Trade{
		ID:         order.ID,
		Symbol:     existing.Symbol,
		Direction:  existing.Direction,
		Size:       closedSize,
		EntryPrice: existing.EntryPrice,
		ExitPrice:  fill.Price,
		OpenedAt:   existing.OpenedAt,
		ClosedAt:   fill.Time,
		ExitReason: reason,
		Strategy:   existing.Strategy,
	}

	switch {
	case order.Size < existing.Size:
		reduced := *existing
		reduced.Size = existing.Size - order.Size
		reduced.UnrealizedPnL = existing.UnrealizedPnL * reduced.Size / existing.Size

		return &reduced, trade, realized
	case order.Size == existing.Size:
		return nil, trade, realized
	default:
		// Flip: close the whole position, open the remainder on the
		// other side at the fill price.
		flipped := *opened
		flipped.Size = order.Size - existing.Size

		return &flipped, trade, realized
	}
}

// marginWith recomputes total margin with the given symbol's position
// replaced. Margin is reserved at the entry price.
func (a *Account) marginWith(symbol string, replacement *types.Position) (float64, error) {
	total := decimal.Zero

	symbols := a.sortedSymbols()
	if _, ok := a.positions[symbol]; !ok {
		symbols = append(symbols, symbol)
		sort.Strings(symbols)
	}

	for _, s := range symbols {
		pos := a.positions[s]
		if s == symbol {
			pos = replacement
		}

		if pos == nil {
			continue
		}

		inst, err := market.Lookup(s)
		if err != nil {
			return 0, err
		}

		factor, err := market.QuoteToAccount(inst, a.currency, a.rates)
		if err != nil {
			return 0, err
		}

		notional := decimal.NewFromFloat(pos.Size).
			Mul(decimal.NewFromFloat(pos.EntryPrice)).
			Mul(decimal.NewFromFloat(factor))
		total = total.Add(notional.Div(decimal.NewFromFloat(a.leverage)))
	}

	result, _ := total.Float64()

	return result, nil
}

// MarkToMarket revalues open positions against the candle close and
// refreshes equity, the peak and the drawdown. Applying the same candle
// twice leaves every derived value unchanged.
func (a *Account) MarkToMarket(candle types.Candle) types.AccountSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	if pos, ok := a.positions[candle.Symbol]; ok {
		inst, err := market.Lookup(candle.Symbol)
		if err == nil {
			factor, ferr := market.QuoteToAccount(inst, a.currency, a.rates)
			if ferr == nil {
				pos.UnrealizedPnL = pos.UnrealizedAt(candle.Close) * factor
			}
		}
	}

	a.refreshEquity()

	return a.snapshot(candle.Time)
}

// refreshEquity recomputes equity from the balance and the recorded
// unrealized PnL, then rolls the peak and drawdown forward. Must be
// called with the lock held after every balance or position mutation
// so snapshots always satisfy equity = balance + sum of unrealized.
func (a *Account) refreshEquity() {
	unrealized := 0.0
	for _, symbol := range a.sortedSymbols() {
		unrealized += a.positions[symbol].UnrealizedPnL
	}

	a.equity = a.balance + unrealized

	if a.equity > a.peakEquity {
		a.peakEquity = a.equity
	}

	if a.peakEquity > 0 {
		drawdown := (a.equity - a.peakEquity) / a.peakEquity * 100
		if drawdown < a.maxDrawdownPct {
			a.maxDrawdownPct = drawdown
		}
	}
}

// Snapshot returns the current account state without revaluing.
func (a *Account) Snapshot(at time.Time) types.AccountSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.snapshot(at)
}

func (a *Account) snapshot(at time.Time) types.AccountSnapshot {
	return types.AccountSnapshot{
		Time:           at,
		Balance:        a.balance,
		Equity:         a.equity,
		UnrealizedPnL:  a.equity - a.balance,
		MarginUsed:     a.marginUsed,
		FreeMargin:     a.equity - a.marginUsed,
		PeakEquity:     a.peakEquity,
		MaxDrawdownPct: a.maxDrawdownPct,
		OpenPositions:  len(a.positions),
	}
}

// TotalFees returns the accumulated commission paid.
func (a *Account) TotalFees() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.totalFees
}

// sortedSymbols must be called with the lock held.
func (a *Account) sortedSymbols() []string {
	symbols := make([]string, 0, len(a.positions))
	for s := range a.positions {
		symbols = append(symbols, s)
	}

	sort.Strings(symbols)

	return symbols
}

// SetProtectiveLevels replaces the stop and take on an open position.
func (a *Account) SetProtectiveLevels(symbol string, stop, take optional.Option[float64]) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pos, ok := a.positions[symbol]
	if !ok {
		return errors.Newf(errors.ErrCodePositionNotFound, "no open position for %s", symbol)
	}

	pos.StopLoss = stop
	pos.TakeProfit = take

	return nil
}
