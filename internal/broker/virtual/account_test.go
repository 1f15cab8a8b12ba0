package virtual

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

type AccountTestSuite struct {
	suite.Suite
	account *Account
	now     time.Time
}

func TestAccountSuite(t *testing.T) {
	suite.Run(t, new(AccountTestSuite))
}

func (suite *AccountTestSuite) SetupTest() {
	suite.account = NewAccount(10000, "USD", 30, nil)
	suite.now = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
}

func (suite *AccountTestSuite) fill(direction types.Direction, size, price float64) Fill {
	return Fill{
		Order: types.Order{
			ID:        uuid.New().String(),
			Symbol:    "EUR_USD",
			Direction: direction,
			Kind:      types.OrderKindMarket,
			Size:      size,
			Status:    types.OrderStatusFilled,
		},
		Price: price,
		Time:  suite.now,
	}
}

func (suite *AccountTestSuite) candle(closePrice float64) types.Candle {
	return types.Candle{
		Symbol:   "EUR_USD",
		Time:     suite.now,
		Open:     closePrice,
		High:     closePrice,
		Low:      closePrice,
		Close:    closePrice,
		Complete: true,
	}
}

func (suite *AccountTestSuite) TestOpenPosition() {
	trade, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1000), 0)
	suite.NoError(err)
	suite.True(trade.IsNone())

	pos, ok := suite.account.Position("EUR_USD")
	suite.Require().True(ok)
	suite.Equal(types.DirectionLong, pos.Direction)
	suite.Equal(1000.0, pos.Size)
	suite.InDelta(1.1000, pos.EntryPrice, 1e-9)
	suite.InDelta(10000.0, suite.account.Balance(), 1e-9)
}

func (suite *AccountTestSuite) TestIncreaseAveragesEntry() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1000), 0)
	suite.Require().NoError(err)

	_, err = suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1100), 0)
	suite.Require().NoError(err)

	pos, ok := suite.account.Position("EUR_USD")
	suite.Require().True(ok)
	suite.Equal(2000.0, pos.Size)
	suite.InDelta(1.1050, pos.EntryPrice, 1e-9)
}

func (suite *AccountTestSuite) TestCloseRealizesPnL() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1000), 0)
	suite.Require().NoError(err)

	trade, err := suite.account.ApplyFill(suite.fill(types.DirectionShort, 1000, 1.1050), 0)
	suite.NoError(err)
	suite.Require().True(trade.IsSome())

	closed := trade.Unwrap()
	suite.InDelta(5.0, closed.RealizedPnL, 1e-9)
	suite.Equal(types.DirectionLong, closed.Direction)
	suite.InDelta(1.1000, closed.EntryPrice, 1e-9)
	suite.InDelta(1.1050, closed.ExitPrice, 1e-9)

	_, ok := suite.account.Position("EUR_USD")
	suite.False(ok)
	suite.InDelta(10005.0, suite.account.Balance(), 1e-9)
}

func (suite *AccountTestSuite) TestPartialClose() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1000), 0)
	suite.Require().NoError(err)

	trade, err := suite.account.ApplyFill(suite.fill(types.DirectionShort, 400, 1.1050), 0)
	suite.NoError(err)
	suite.Require().True(trade.IsSome())
	suite.Equal(400.0, trade.Unwrap().Size)
	suite.InDelta(2.0, trade.Unwrap().RealizedPnL, 1e-9)

	pos, ok := suite.account.Position("EUR_USD")
	suite.Require().True(ok)
	suite.Equal(600.0, pos.Size)
	suite.Equal(types.DirectionLong, pos.Direction)
}

func (suite *AccountTestSuite) TestFlipThroughFlat() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1000), 0)
	suite.Require().NoError(err)

	trade, err := suite.account.ApplyFill(suite.fill(types.DirectionShort, 1500, 1.1050), 0)
	suite.NoError(err)
	suite.Require().True(trade.IsSome())
	suite.Equal(1000.0, trade.Unwrap().Size)

	pos, ok := suite.account.Position("EUR_USD")
	suite.Require().True(ok)
	suite.Equal(types.DirectionShort, pos.Direction)
	suite.Equal(500.0, pos.Size)
	suite.InDelta(1.1050, pos.EntryPrice, 1e-9)
}

func (suite *AccountTestSuite) TestFeeReducesBalance() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1000), 2.5)
	suite.Require().NoError(err)
	suite.InDelta(9997.5, suite.account.Balance(), 1e-9)
	suite.InDelta(2.5, suite.account.TotalFees(), 1e-9)
}

func (suite *AccountTestSuite) TestMarginCapRejection() {
	account := NewAccount(1000, "USD", 1, nil)

	fill := suite.fill(types.DirectionLong, 2000, 1.0)
	_, err := account.ApplyFill(fill, 0)
	suite.Error(err)
	suite.Equal(errors.ErrCodeInsufficientMargin, errors.GetCode(err))

	// Rejection leaves the account untouched
	suite.InDelta(1000.0, account.Balance(), 1e-9)
	_, ok := account.Position("EUR_USD")
	suite.False(ok)
	suite.Equal(0, account.Snapshot(suite.now).OpenPositions)
}

func (suite *AccountTestSuite) TestEquityIdentity() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1000), 0)
	suite.Require().NoError(err)

	snap := suite.account.MarkToMarket(suite.candle(1.1080))
	suite.InDelta(8.0, snap.UnrealizedPnL, 1e-9)
	suite.InDelta(snap.Balance+snap.UnrealizedPnL, snap.Equity, 1e-9)
}

// Snapshots taken right after a fill, before any mark, still satisfy
// equity = balance + unrealized even when the fill pays a fee.
func (suite *AccountTestSuite) TestSnapshotAfterFeeFillKeepsIdentity() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1000), 5)
	suite.Require().NoError(err)

	snap := suite.account.Snapshot(suite.now)
	suite.InDelta(9995.0, snap.Balance, 1e-9)
	suite.InDelta(snap.Balance, snap.Equity, 1e-9)
	suite.InDelta(0.0, snap.UnrealizedPnL, 1e-9)

	suite.account.MarkToMarket(suite.candle(1.2000))

	trade, err := suite.account.ApplyFill(suite.fill(types.DirectionShort, 1000, 1.2000), 5)
	suite.Require().NoError(err)
	suite.Require().True(trade.IsSome())

	snap = suite.account.Snapshot(suite.now)
	suite.Equal(0, snap.OpenPositions)
	suite.InDelta(10090.0, snap.Balance, 1e-9)
	suite.InDelta(snap.Balance, snap.Equity, 1e-9)
	suite.InDelta(0.0, snap.UnrealizedPnL, 1e-9)
}

func (suite *AccountTestSuite) TestMarkToMarketIdempotent() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1000), 0)
	suite.Require().NoError(err)

	first := suite.account.MarkToMarket(suite.candle(1.0950))
	second := suite.account.MarkToMarket(suite.candle(1.0950))
	suite.Equal(first, second)
}

func (suite *AccountTestSuite) TestPeakEquityNeverDecreases() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 10000, 1.1000), 0)
	suite.Require().NoError(err)

	up := suite.account.MarkToMarket(suite.candle(1.1100))
	suite.InDelta(10100.0, up.PeakEquity, 1e-9)

	down := suite.account.MarkToMarket(suite.candle(1.0900))
	suite.InDelta(10100.0, down.PeakEquity, 1e-9)
	suite.Less(down.Equity, down.PeakEquity)
}

func (suite *AccountTestSuite) TestMaxDrawdownMonotoneNonPositive() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 10000, 1.1000), 0)
	suite.Require().NoError(err)

	flat := suite.account.MarkToMarket(suite.candle(1.1000))
	suite.Equal(0.0, flat.MaxDrawdownPct)

	dip := suite.account.MarkToMarket(suite.candle(1.0900))
	suite.Negative(dip.MaxDrawdownPct)

	// Recovery never shrinks the recorded maximum drawdown
	recovered := suite.account.MarkToMarket(suite.candle(1.1000))
	suite.Equal(dip.MaxDrawdownPct, recovered.MaxDrawdownPct)

	deeper := suite.account.MarkToMarket(suite.candle(1.0800))
	suite.Less(deeper.MaxDrawdownPct, dip.MaxDrawdownPct)
}

func (suite *AccountTestSuite) TestSetProtectiveLevels() {
	_, err := suite.account.ApplyFill(suite.fill(types.DirectionLong, 1000, 1.1000), 0)
	suite.Require().NoError(err)

	err = suite.account.SetProtectiveLevels("EUR_USD", optional.Some(1.0950), optional.Some(1.1100))
	suite.NoError(err)

	pos, _ := suite.account.Position("EUR_USD")
	suite.True(pos.StopLoss.IsSome())
	suite.InDelta(1.0950, pos.StopLoss.Unwrap(), 1e-12)

	err = suite.account.SetProtectiveLevels("GBP_USD", optional.None[float64](), optional.None[float64]())
	suite.Error(err)
	suite.Equal(errors.ErrCodePositionNotFound, errors.GetCode(err))
}
