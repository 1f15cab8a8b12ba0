// Package backtest replays historical candles through the virtual
// broker and aggregates the results.
package backtest

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/tradekit-lab/tradekit/internal/broker/virtual"
	"github.com/tradekit-lab/tradekit/internal/config"
	"github.com/tradekit-lab/tradekit/internal/datasource"
	"github.com/tradekit-lab/tradekit/internal/ledger"
	"github.com/tradekit-lab/tradekit/internal/logger"
	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/internal/statistics"
	"github.com/tradekit-lab/tradekit/internal/strategy"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// OnProgress reports replay progress to the caller.
type OnProgress func(processed, total int)

// Result is everything a finished backtest produced.
type Result struct {
	Summary     statistics.Summary
	Trades      []types.Trade
	EquityCurve []types.AccountSnapshot
	Rejected    []types.Order
	Skipped     int
}

// instrumentTools caches the per-instrument policy and sizer.
type instrumentTools struct {
	inst     market.Instrument
	policy   virtual.PrecisionPolicy
	sizer    virtual.PositionSizer
	pipValue float64
}

// Engine drives the simulation loop: one evaluation per candle, in the
// fixed order indexer, matching, signal, translation, mark to market,
// journal. It holds no trading logic of its own.
type Engine struct {
	log      *logger.Logger
	cfg      *config.Config
	indexer  *Indexer
	broker   *virtual.Broker
	strat    strategy.Strategy
	journal  ledger.Ledger
	tools    map[string]instrumentTools
	progress OnProgress
	skipped  int
}

func NewEngine(cfg *config.Config, source datasource.DataSource, strat strategy.Strategy, journal ledger.Ledger, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if journal == nil {
		journal = ledger.Nop{}
	}

	rates := cfg.RateSource()
	account := virtual.NewAccount(cfg.InitialCapital, cfg.AccountCurrency, cfg.Leverage, rates)
	broker := virtual.NewBroker(account, cfg.Commission.Build(), cfg.SpreadPips, log)

	tools := make(map[string]instrumentTools, len(cfg.Instruments))

	for _, symbol := range cfg.Instruments {
		inst, err := market.Lookup(symbol)
		if err != nil {
			return nil, err
		}

		pipValue, err := market.PipValue(inst, cfg.AccountCurrency, rates)
		if err != nil {
			return nil, err
		}

		tools[inst.Symbol] = instrumentTools{
			inst:     inst,
			policy:   virtual.NewPrecisionPolicy(inst),
			sizer:    virtual.NewPositionSizer(inst),
			pipValue: pipValue,
		}
	}

	return &Engine{
		log:     log,
		cfg:     cfg,
		indexer: NewIndexer(source, cfg.StartTime, cfg.EndTime),
		broker:  broker,
		strat:   strat,
		journal: journal,
		tools:   tools,
	}, nil
}

// SetProgress installs a progress callback.
func (e *Engine) SetProgress(fn OnProgress) {
	e.progress = fn
}

// Run replays the whole stream. A DataGap or context cancellation
// aborts; order rejections are recorded and replay continues.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	result := Result{}

	total, err := e.indexer.Count()
	if err != nil {
		return result, err
	}

	if total == 0 {
		return result, errors.New(errors.ErrCodeNoDataFound, "datasource produced no candles")
	}

	processed := 0

	var lastTime time.Time

	for candle, err := range e.indexer.Candles() {
		if err != nil {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		trades, err := e.broker.OnCandle(candle)
		if err != nil {
			return result, err
		}

		if candle.Complete || e.cfg.AllowIncompleteCandles {
			if err := e.evaluate(candle); err != nil {
				return result, err
			}
		}

		snapshot := e.broker.Account().MarkToMarket(candle)

		for _, trade := range trades {
			if err := e.journal.AppendTrade(trade); err != nil {
				return result, err
			}
		}

		if err := e.journal.AppendEquity(snapshot); err != nil {
			return result, err
		}

		result.Trades = append(result.Trades, trades...)
		result.EquityCurve = append(result.EquityCurve, snapshot)

		lastTime = candle.Time
		processed++

		if e.progress != nil {
			e.progress(processed, total)
		}
	}

	closed, err := e.broker.CloseAll(types.ExitReasonEndOfData)
	if err != nil {
		return result, err
	}

	for _, trade := range closed {
		if err := e.journal.AppendTrade(trade); err != nil {
			return result, err
		}
	}

	result.Trades = append(result.Trades, closed...)

	if len(closed) > 0 {
		final := e.broker.Account().Snapshot(lastTime)

		if err := e.journal.AppendEquity(final); err != nil {
			return result, err
		}

		result.EquityCurve = append(result.EquityCurve, final)
	}

	result.Rejected = e.broker.Rejected()
	result.Skipped = e.skipped

	summary, err := statistics.Compute(result.Trades, result.EquityCurve)
	if err != nil {
		return result, err
	}

	result.Summary = summary

	if e.cfg.ResultsDir != "" {
		if err := e.writeResults(summary); err != nil {
			return result, err
		}
	}

	e.log.Info("backtest finished",
		zap.Int("candles", processed),
		zap.Int("trades", len(result.Trades)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("skipped", result.Skipped),
		zap.Float64("final_equity", summary.FinalEquity))

	return result, nil
}

// evaluate asks the strategy for a signal and qualifies it into an
// order. Signals that fail precision or sizing are logged as skipped;
// the replay keeps going.
func (e *Engine) evaluate(candle types.Candle) error {
	tools, ok := e.tools[candle.Symbol]
	if !ok {
		// Candle for an instrument the config does not trade
		return nil
	}

	account := e.broker.Account()

	position := optional.None[types.Position]()
	if pos, held := account.Position(candle.Symbol); held {
		position = optional.Some(pos)
	}

	signal, err := e.strat.OnCandle(strategy.Context{
		Account:  account.Snapshot(candle.Time),
		Position: position,
	}, candle)
	if err != nil {
		return err
	}

	switch signal.Type {
	case types.SignalTypeNone:
		return nil
	case types.SignalTypeExit:
		return e.submitExit(candle, position)
	default:
		return e.submitEntry(candle, signal, tools)
	}
}

func (e *Engine) submitExit(candle types.Candle, position optional.Option[types.Position]) error {
	if position.IsNone() {
		return nil
	}

	pos := position.Unwrap()

	order := types.Order{
		ID:        uuid.New().String(),
		Symbol:    candle.Symbol,
		Direction: pos.Direction.Opposite(),
		Kind:      types.OrderKindMarket,
		Size:      pos.Size,
		Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: e.strat.Name()},
		CreatedAt: candle.Time,
	}

	return e.broker.Submit(order)
}

func (e *Engine) submitEntry(candle types.Candle, signal types.Signal, tools instrumentTools) error {
	direction := signal.Direction()

	// The order fills at the next candle's open; the close is the best
	// available reference for qualifying levels and sizing.
	entryRef := candle.Close

	if signal.StopLoss.IsNone() {
		e.skip(signal, errors.New(errors.ErrCodeInsufficientRiskInput, "entry signal without a stop loss"))

		return nil
	}

	stop, take, err := tools.policy.QualifyLevels(direction, entryRef, signal.StopLoss, signal.TakeProfit)
	if err != nil {
		e.skip(signal, err)

		return nil
	}

	stopPips := tools.sizer.StopDistancePips(entryRef, stop.Unwrap())

	size, err := tools.sizer.Size(e.broker.Account().Balance(), e.cfg.RiskFraction, stopPips, tools.pipValue)
	if err != nil {
		if errors.IsRejection(err) {
			e.skip(signal, err)

			return nil
		}

		return err
	}

	order := types.Order{
		ID:         uuid.New().String(),
		Symbol:     candle.Symbol,
		Direction:  direction,
		Kind:       types.OrderKindMarket,
		Size:       size,
		StopLoss:   stop,
		TakeProfit: take,
		Reason:     types.Reason{Reason: types.OrderReasonStrategy, Message: e.strat.Name()},
		CreatedAt:  candle.Time,
	}

	return e.broker.Submit(order)
}

func (e *Engine) skip(signal types.Signal, cause error) {
	e.skipped++

	e.log.Warn("signal skipped",
		zap.String("symbol", signal.Symbol),
		zap.String("type", string(signal.Type)),
		zap.Time("time", signal.Time),
		zap.Error(cause))
}

func (e *Engine) writeResults(summary statistics.Summary) error {
	if err := os.MkdirAll(e.cfg.ResultsDir, 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to create %s", e.cfg.ResultsDir)
	}

	return statistics.WriteYAML(filepath.Join(e.cfg.ResultsDir, "stats.yaml"), summary)
}
