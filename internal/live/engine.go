package live

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/tradekit-lab/tradekit/internal/broker"
	"github.com/tradekit-lab/tradekit/internal/broker/virtual"
	"github.com/tradekit-lab/tradekit/internal/config"
	"github.com/tradekit-lab/tradekit/internal/ledger"
	"github.com/tradekit-lab/tradekit/internal/logger"
	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/internal/strategy"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// session is one instrument/strategy pairing with its own indexer and
// indicator state.
type session struct {
	symbol   string
	inst     market.Instrument
	policy   virtual.PrecisionPolicy
	sizer    virtual.PositionSizer
	pipValue float64
	indexer  *Indexer
	strat    strategy.Strategy
}

// Engine runs one session per configured instrument against a broker
// client. All sessions share a single account guarded by its own lock;
// fills come back as executions and reconcile through the same
// apply-fill path the backtest uses. Stopping is graceful: each session
// finishes its in-flight candle before the engine returns.
type Engine struct {
	log     *logger.Logger
	cfg     *config.Config
	client  broker.Client
	account *virtual.Account
	journal ledger.Ledger

	sessions []*session

	// PollInterval overrides the candle-granularity polling cadence.
	// Used by tests; zero means poll once per granularity interval.
	PollInterval time.Duration
}

func NewEngine(cfg *config.Config, client broker.Client, journal ledger.Ledger, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if journal == nil {
		journal = ledger.Nop{}
	}

	rates := cfg.RateSource()
	account := virtual.NewAccount(cfg.InitialCapital, cfg.AccountCurrency, cfg.Leverage, rates)

	engine := &Engine{
		log:     log,
		cfg:     cfg,
		client:  client,
		account: account,
		journal: journal,
	}

	for _, symbol := range cfg.Instruments {
		inst, err := market.Lookup(symbol)
		if err != nil {
			return nil, err
		}

		pipValue, err := market.PipValue(inst, cfg.AccountCurrency, rates)
		if err != nil {
			return nil, err
		}

		strat, err := strategy.New(cfg.Strategy, cfg.StrategyParams)
		if err != nil {
			return nil, err
		}

		engine.sessions = append(engine.sessions, &session{
			symbol:   inst.Symbol,
			inst:     inst,
			policy:   virtual.NewPrecisionPolicy(inst),
			sizer:    virtual.NewPositionSizer(inst),
			pipValue: pipValue,
			indexer:  NewIndexer(client, cfg.Granularity, cfg.AllowIncompleteCandles),
			strat:    strat,
		})
	}

	return engine, nil
}

// Account exposes the shared account.
func (e *Engine) Account() *virtual.Account { return e.account }

// Run polls until the context is cancelled. Each session runs in its
// own goroutine; Run returns once every session has finished its
// in-flight cycle.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.PollInterval
	if interval == 0 {
		duration, err := e.cfg.Granularity.Duration()
		if err != nil {
			return err
		}

		interval = duration
	}

	var wg sync.WaitGroup

	for _, sess := range e.sessions {
		wg.Add(1)

		go func(sess *session) {
			defer wg.Done()
			e.runSession(ctx, sess, interval)
		}(sess)
	}

	wg.Wait()

	return nil
}

func (e *Engine) runSession(ctx context.Context, sess *session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := e.Step(ctx, sess.symbol); err != nil && !errors.HasCode(err, errors.ErrCodePartialCandle) {
			e.log.Error("session cycle failed",
				zap.String("symbol", sess.symbol),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			e.log.Info("session stopped", zap.String("symbol", sess.symbol))

			return
		case <-ticker.C:
		}
	}
}

// Step runs one full evaluation cycle for the symbol: fetch the newest
// closed candle, generate a signal, qualify and submit the order,
// reconcile the execution, mark to market and journal.
func (e *Engine) Step(ctx context.Context, symbol string) error {
	sess := e.sessionFor(symbol)
	if sess == nil {
		return errors.Newf(errors.ErrCodeUnknownInstrument, "no session for %s", symbol)
	}

	candle, err := sess.indexer.Next(ctx, symbol)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeDataGap) {
			// Live feeds have outages; indicators just pick up again
			e.log.Warn("gap in live feed", zap.String("symbol", symbol), zap.Error(err))
		} else {
			return err
		}
	}

	position := optional.None[types.Position]()
	if pos, held := e.account.Position(symbol); held {
		position = optional.Some(pos)
	}

	signal, err := sess.strat.OnCandle(strategy.Context{
		Account:  e.account.Snapshot(candle.Time),
		Position: position,
	}, candle)
	if err != nil {
		return err
	}

	if err := e.act(ctx, sess, candle, signal, position); err != nil {
		return err
	}

	snapshot := e.account.MarkToMarket(candle)

	return e.journal.AppendEquity(snapshot)
}

func (e *Engine) act(ctx context.Context, sess *session, candle types.Candle, signal types.Signal, position optional.Option[types.Position]) error {
	switch signal.Type {
	case types.SignalTypeNone:
		return nil
	case types.SignalTypeExit:
		if position.IsNone() {
			return nil
		}

		pos := position.Unwrap()
		order := types.Order{
			ID:        uuid.New().String(),
			Symbol:    sess.symbol,
			Direction: pos.Direction.Opposite(),
			Kind:      types.OrderKindMarket,
			Size:      pos.Size,
			Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: sess.strat.Name()},
			CreatedAt: candle.Time,
		}

		return e.submit(ctx, order, types.ExitReasonSignal)
	default:
		return e.enter(ctx, sess, candle, signal)
	}
}

func (e *Engine) enter(ctx context.Context, sess *session, candle types.Candle, signal types.Signal) error {
	if signal.StopLoss.IsNone() {
		e.log.Warn("signal skipped",
			zap.String("symbol", sess.symbol),
			zap.Error(errors.New(errors.ErrCodeInsufficientRiskInput, "entry signal without a stop loss")))

		return nil
	}

	direction := signal.Direction()
	entryRef := candle.Close

	stop, take, err := sess.policy.QualifyLevels(direction, entryRef, signal.StopLoss, signal.TakeProfit)
	if err != nil {
		e.log.Warn("signal skipped", zap.String("symbol", sess.symbol), zap.Error(err))

		return nil
	}

	stopPips := sess.sizer.StopDistancePips(entryRef, stop.Unwrap())

	size, err := sess.sizer.Size(e.account.Balance(), e.cfg.RiskFraction, stopPips, sess.pipValue)
	if err != nil {
		if errors.IsRejection(err) {
			e.log.Warn("signal skipped", zap.String("symbol", sess.symbol), zap.Error(err))

			return nil
		}

		return err
	}

	order := types.Order{
		ID:         uuid.New().String(),
		Symbol:     sess.symbol,
		Direction:  direction,
		Kind:       types.OrderKindMarket,
		Size:       size,
		StopLoss:   stop,
		TakeProfit: take,
		Reason:     types.Reason{Reason: types.OrderReasonStrategy, Message: sess.strat.Name()},
		CreatedAt:  candle.Time,
	}

	return e.submit(ctx, order, "")
}

// submit sends the order out and reconciles the execution into the
// shared account.
func (e *Engine) submit(ctx context.Context, order types.Order, exitReason types.ExitReason) error {
	execution, err := e.client.SubmitOrder(ctx, order)
	if err != nil {
		if errors.IsRejection(err) {
			e.log.Warn("order rejected",
				zap.String("symbol", order.Symbol),
				zap.String("order_id", order.ID),
				zap.Error(err))

			return nil
		}

		return err
	}

	if !execution.Filled {
		return nil
	}

	trade, err := e.account.ApplyFill(virtual.Fill{
		Order:      execution.Order,
		Price:      execution.Price,
		Time:       execution.Time,
		ExitReason: exitReason,
	}, 0)
	if err != nil {
		if errors.IsRejection(err) {
			e.log.Warn("fill rejected",
				zap.String("symbol", order.Symbol),
				zap.String("order_id", order.ID),
				zap.Error(err))

			return nil
		}

		return err
	}

	if trade.IsSome() {
		closed := trade.Unwrap()

		e.log.Info("closed trade",
			zap.String("symbol", closed.Symbol),
			zap.Float64("pnl", closed.RealizedPnL),
			zap.String("exit_reason", string(closed.ExitReason)))

		return e.journal.AppendTrade(closed)
	}

	return nil
}

func (e *Engine) sessionFor(symbol string) *session {
	for _, sess := range e.sessions {
		if sess.symbol == symbol {
			return sess
		}
	}

	return nil
}
