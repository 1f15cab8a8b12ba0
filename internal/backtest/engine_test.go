package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/tradekit-lab/tradekit/internal/config"
	"github.com/tradekit-lab/tradekit/internal/datasource"
	"github.com/tradekit-lab/tradekit/internal/ledger"
	"github.com/tradekit-lab/tradekit/internal/logger"
	"github.com/tradekit-lab/tradekit/internal/strategy"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

type EngineTestSuite struct {
	suite.Suite
	start time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (suite *EngineTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
}

func (suite *EngineTestSuite) config() *config.Config {
	return &config.Config{
		InitialCapital:  10000,
		AccountCurrency: "USD",
		Leverage:        30,
		RiskFraction:    0.01,
		SpreadPips:      0,
		Granularity:     types.GranularityH1,
		Instruments:     []string{"EUR_USD"},
		Strategy:        "open_once",
	}
}

func (suite *EngineTestSuite) candle(i int, open, high, low, closePrice float64) types.Candle {
	return types.Candle{
		Symbol:   "EUR_USD",
		Time:     suite.start.Add(time.Duration(i) * time.Hour),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Complete: true,
	}
}

func (suite *EngineTestSuite) newEngine(cfg *config.Config, candles []types.Candle, stratName string) *Engine {
	strat, err := strategy.New(stratName, map[string]float64{"stop_pips": 50, "take_pips": 100})
	suite.Require().NoError(err)

	engine, err := NewEngine(cfg, datasource.NewMemory(candles), strat, ledger.Nop{}, logger.NewNopLogger())
	suite.Require().NoError(err)

	return engine
}

func (suite *EngineTestSuite) TestTakeProfitRun() {
	candles := []types.Candle{
		suite.candle(0, 1.0990, 1.1005, 1.0985, 1.1000),
		suite.candle(1, 1.1000, 1.1050, 1.0990, 1.1040),
		suite.candle(2, 1.1040, 1.1120, 1.1030, 1.1110),
	}

	engine := suite.newEngine(suite.config(), candles, "open_once")

	result, err := engine.Run(context.Background())
	suite.Require().NoError(err)

	// Signal on candle 0 close at 1.1000: stop 1.0950, take 1.1100,
	// 10000 * 0.01 / (50 pips * 0.0001) = 20000 units, filled at the
	// next open.
	suite.Require().Len(result.Trades, 1)

	trade := result.Trades[0]
	suite.Equal(types.DirectionLong, trade.Direction)
	suite.InDelta(20000.0, trade.Size, 1e-9)
	suite.InDelta(1.1000, trade.EntryPrice, 1e-9)
	suite.InDelta(1.1100, trade.ExitPrice, 1e-9)
	suite.Equal(types.ExitReasonTakeProfit, trade.ExitReason)
	suite.InDelta(200.0, trade.RealizedPnL, 1e-9)

	suite.Require().Len(result.EquityCurve, 3)
	suite.InDelta(10200.0, result.Summary.FinalEquity, 1e-9)
	suite.Equal(1, result.Summary.TotalTrades)
	suite.Equal(1.0, result.Summary.WinRate)
}

func (suite *EngineTestSuite) TestEndOfDataClosesOpenPosition() {
	candles := []types.Candle{
		suite.candle(0, 1.0990, 1.1005, 1.0985, 1.1000),
		suite.candle(1, 1.1000, 1.1030, 1.0990, 1.1020),
	}

	engine := suite.newEngine(suite.config(), candles, "open_once")

	result, err := engine.Run(context.Background())
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	suite.Equal(types.ExitReasonEndOfData, result.Trades[0].ExitReason)
	suite.InDelta(1.1020, result.Trades[0].ExitPrice, 1e-9)

	// The closing fill adds one final equity snapshot
	suite.Len(result.EquityCurve, 3)

	last := result.EquityCurve[len(result.EquityCurve)-1]
	suite.InDelta(last.Balance+last.UnrealizedPnL, last.Equity, 1e-9)
	suite.Equal(0, last.OpenPositions)
}

func (suite *EngineTestSuite) TestStopLossRun() {
	candles := []types.Candle{
		suite.candle(0, 1.0990, 1.1005, 1.0985, 1.1000),
		suite.candle(1, 1.1000, 1.1010, 1.0995, 1.1005),
		suite.candle(2, 1.1005, 1.1008, 1.0940, 1.0950),
	}

	engine := suite.newEngine(suite.config(), candles, "open_once")

	result, err := engine.Run(context.Background())
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	suite.Equal(types.ExitReasonStop, result.Trades[0].ExitReason)
	suite.InDelta(1.0950, result.Trades[0].ExitPrice, 1e-9)
	suite.InDelta(-100.0, result.Trades[0].RealizedPnL, 1e-9)
	suite.Negative(result.Summary.MaxDrawdownPct)
}

func (suite *EngineTestSuite) TestDataGapAborts() {
	candles := []types.Candle{
		suite.candle(0, 1.0990, 1.1005, 1.0985, 1.1000),
		suite.candle(1, 1.1000, 1.1030, 1.0990, 1.1020),
		suite.candle(1, 1.1020, 1.1040, 1.1000, 1.1030),
	}

	engine := suite.newEngine(suite.config(), candles, "open_once")

	_, err := engine.Run(context.Background())
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeDataGap, errors.GetCode(err))
}

func (suite *EngineTestSuite) TestEmptyDataSource() {
	engine := suite.newEngine(suite.config(), nil, "open_once")

	_, err := engine.Run(context.Background())
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeNoDataFound, errors.GetCode(err))
}

func (suite *EngineTestSuite) TestCancellation() {
	candles := []types.Candle{
		suite.candle(0, 1.0990, 1.1005, 1.0985, 1.1000),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := suite.newEngine(suite.config(), candles, "open_once")

	_, err := engine.Run(ctx)
	suite.ErrorIs(err, context.Canceled)
}

func (suite *EngineTestSuite) TestIncompleteCandleSkipsSignal() {
	partial := suite.candle(0, 1.0990, 1.1005, 1.0985, 1.1000)
	partial.Complete = false

	candles := []types.Candle{
		partial,
		suite.candle(1, 1.1000, 1.1030, 1.0990, 1.1020),
	}

	engine := suite.newEngine(suite.config(), candles, "open_once")

	result, err := engine.Run(context.Background())
	suite.Require().NoError(err)

	// The strategy only saw candle 1; its entry never got a fill
	// candle, so no trades and no open position remain.
	suite.Empty(result.Trades)
}

func (suite *EngineTestSuite) TestAllowIncompleteCandles() {
	partial := suite.candle(0, 1.0990, 1.1005, 1.0985, 1.1000)
	partial.Complete = false

	candles := []types.Candle{
		partial,
		suite.candle(1, 1.1000, 1.1030, 1.0990, 1.1020),
	}

	cfg := suite.config()
	cfg.AllowIncompleteCandles = true

	engine := suite.newEngine(cfg, candles, "open_once")

	result, err := engine.Run(context.Background())
	suite.Require().NoError(err)

	// With the override the partial candle generates the entry, which
	// fills on candle 1 and closes at end of data.
	suite.Require().Len(result.Trades, 1)
	suite.Equal(types.ExitReasonEndOfData, result.Trades[0].ExitReason)
}

func (suite *EngineTestSuite) TestDeterministicReplay() {
	prices := []float64{1.1100, 1.1080, 1.1060, 1.1040, 1.1020, 1.1000, 1.1200, 1.1300, 1.1250, 1.1150, 1.1050, 1.0950}

	var candles []types.Candle
	for i, p := range prices {
		candles = append(candles, suite.candle(i, p, p+0.0015, p-0.0015, p))
	}

	run := func() Result {
		engine := suite.newEngine(suite.config(), candles, "ema_cross")

		result, err := engine.Run(context.Background())
		suite.Require().NoError(err)

		return result
	}

	first := run()
	second := run()

	suite.Require().Equal(len(first.Trades), len(second.Trades))

	for i := range first.Trades {
		suite.Equal(first.Trades[i].Symbol, second.Trades[i].Symbol)
		suite.Equal(first.Trades[i].EntryPrice, second.Trades[i].EntryPrice)
		suite.Equal(first.Trades[i].ExitPrice, second.Trades[i].ExitPrice)
		suite.Equal(first.Trades[i].RealizedPnL, second.Trades[i].RealizedPnL)
		suite.Equal(first.Trades[i].ExitReason, second.Trades[i].ExitReason)
	}

	suite.Equal(first.EquityCurve, second.EquityCurve)
	suite.Equal(first.Summary, second.Summary)
}

// entersWithoutStop is a strategy that forgets its protective stop;
// the engine must skip it instead of trading unsized risk.
type entersWithoutStop struct {
	fired bool
}

func (s *entersWithoutStop) Name() string { return "no_stop" }

func (s *entersWithoutStop) OnCandle(ctx strategy.Context, candle types.Candle) (types.Signal, error) {
	if s.fired {
		return types.Signal{Time: candle.Time, Type: types.SignalTypeNone, Symbol: candle.Symbol}, nil
	}

	s.fired = true

	return types.Signal{Time: candle.Time, Type: types.SignalTypeEnterLong, Symbol: candle.Symbol}, nil
}

func (suite *EngineTestSuite) TestEntryWithoutStopIsSkipped() {
	candles := []types.Candle{
		suite.candle(0, 1.0990, 1.1005, 1.0985, 1.1000),
		suite.candle(1, 1.1000, 1.1030, 1.0990, 1.1020),
	}

	engine, err := NewEngine(suite.config(), datasource.NewMemory(candles), &entersWithoutStop{}, ledger.Nop{}, logger.NewNopLogger())
	suite.Require().NoError(err)

	result, err := engine.Run(context.Background())
	suite.Require().NoError(err)

	suite.Empty(result.Trades)
	suite.Equal(1, result.Skipped)
}
