package provider

import (
	"context"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// mockKlinesService replays a canned kline response.
type mockKlinesService struct {
	symbol   string
	interval string
	limit    int
	klines   []*binance.Kline
	err      error
}

func (m *mockKlinesService) Symbol(symbol string) KlinesService {
	m.symbol = symbol

	return m
}

func (m *mockKlinesService) Interval(interval string) KlinesService {
	m.interval = interval

	return m
}

func (m *mockKlinesService) Limit(limit int) KlinesService {
	m.limit = limit

	return m
}

func (m *mockKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return m.klines, m.err
}

// mockCreateOrderService records the built order and returns a canned
// response.
type mockCreateOrderService struct {
	symbol    string
	side      binance.SideType
	orderType binance.OrderType
	quantity  string
	price     string
	tif       binance.TimeInForceType
	response  *binance.CreateOrderResponse
	err       error
}

func (m *mockCreateOrderService) Symbol(symbol string) CreateOrderService {
	m.symbol = symbol

	return m
}

func (m *mockCreateOrderService) Side(side binance.SideType) CreateOrderService {
	m.side = side

	return m
}

func (m *mockCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	m.orderType = orderType

	return m
}

func (m *mockCreateOrderService) Quantity(quantity string) CreateOrderService {
	m.quantity = quantity

	return m
}

func (m *mockCreateOrderService) Price(price string) CreateOrderService {
	m.price = price

	return m
}

func (m *mockCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	m.tif = tif

	return m
}

func (m *mockCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return m.response, m.err
}

type mockBinanceAPI struct {
	klines *mockKlinesService
	orders *mockCreateOrderService
}

func (m *mockBinanceAPI) NewKlinesService() KlinesService { return m.klines }

func (m *mockBinanceAPI) NewCreateOrderService() CreateOrderService { return m.orders }

type BinanceTestSuite struct {
	suite.Suite
	api    *mockBinanceAPI
	client *Binance
}

func TestBinanceSuite(t *testing.T) {
	suite.Run(t, new(BinanceTestSuite))
}

func (suite *BinanceTestSuite) SetupTest() {
	suite.api = &mockBinanceAPI{
		klines: &mockKlinesService{},
		orders: &mockCreateOrderService{},
	}
	suite.client = newBinanceWithAPI(suite.api)
}

func kline(openTime time.Time, open, high, low, closePrice string) *binance.Kline {
	return &binance.Kline{
		OpenTime: openTime.UnixMilli(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   "120.5",
	}
}

func (suite *BinanceTestSuite) TestLatestCandleReturnsClosedBar() {
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	suite.api.klines.klines = []*binance.Kline{
		kline(base, "64000", "64500", "63800", "64200"),
		kline(base.Add(time.Hour), "64200", "64300", "64100", "64250"),
	}

	candle, err := suite.client.LatestCandle(context.Background(), "BTC_USDT", types.GranularityH1)
	suite.Require().NoError(err)

	suite.Equal("BTCUSDT", suite.api.klines.symbol)
	suite.Equal("1h", suite.api.klines.interval)
	suite.Equal(2, suite.api.klines.limit)

	// Second-to-last kline is the closed one
	suite.Equal(base, candle.Time)
	suite.InDelta(64200.0, candle.Close, 1e-9)
	suite.True(candle.Complete)
	suite.Equal("BTC_USDT", candle.Symbol)
}

func (suite *BinanceTestSuite) TestLatestCandleSingleBarIsForming() {
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	suite.api.klines.klines = []*binance.Kline{
		kline(base, "64000", "64500", "63800", "64200"),
	}

	candle, err := suite.client.LatestCandle(context.Background(), "BTC_USDT", types.GranularityH1)
	suite.Require().NoError(err)
	suite.False(candle.Complete)
}

func (suite *BinanceTestSuite) TestLatestCandleEmpty() {
	_, err := suite.client.LatestCandle(context.Background(), "BTC_USDT", types.GranularityH1)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeNoDataFound, errors.GetCode(err))
}

func (suite *BinanceTestSuite) TestLatestCandleInvalidGranularity() {
	_, err := suite.client.LatestCandle(context.Background(), "BTC_USDT", "7m")
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeInvalidGranularity, errors.GetCode(err))
}

func (suite *BinanceTestSuite) TestSubmitMarketOrder() {
	suite.api.orders.response = &binance.CreateOrderResponse{
		Status:       binance.OrderStatusTypeFilled,
		TransactTime: time.Date(2024, 3, 4, 11, 0, 1, 0, time.UTC).UnixMilli(),
		Fills: []*binance.Fill{
			{Price: "64000", Quantity: "0.3"},
			{Price: "64100", Quantity: "0.1"},
		},
	}

	order := types.Order{
		ID:        "order-1",
		Symbol:    "BTC_USDT",
		Direction: types.DirectionLong,
		Kind:      types.OrderKindMarket,
		Size:      0.4,
		CreatedAt: time.Now(),
	}

	execution, err := suite.client.SubmitOrder(context.Background(), order)
	suite.Require().NoError(err)

	suite.Equal("BTCUSDT", suite.api.orders.symbol)
	suite.Equal(binance.SideTypeBuy, suite.api.orders.side)
	suite.Equal(binance.OrderTypeMarket, suite.api.orders.orderType)
	suite.Equal("0.4", suite.api.orders.quantity)

	suite.True(execution.Filled)
	suite.Equal(types.OrderStatusFilled, execution.Order.Status)
	// Quantity-weighted across the two fills
	suite.InDelta(64025.0, execution.Price, 1e-9)
}

func (suite *BinanceTestSuite) TestSubmitStopOrderUnsupported() {
	order := types.Order{
		ID:           "order-2",
		Symbol:       "BTC_USDT",
		Direction:    types.DirectionShort,
		Kind:         types.OrderKindStop,
		Size:         0.1,
		TriggerPrice: optional.Some[float64](60000),
		CreatedAt:    time.Now(),
	}

	_, err := suite.client.SubmitOrder(context.Background(), order)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeInvalidOrder, errors.GetCode(err))
}

func (suite *BinanceTestSuite) TestSubmitOrderAPIFailure() {
	suite.api.orders.err = errors.New(errors.ErrCodeUnknown, "binance says no")

	order := types.Order{
		ID:        "order-3",
		Symbol:    "BTC_USDT",
		Direction: types.DirectionShort,
		Kind:      types.OrderKindMarket,
		Size:      0.1,
		CreatedAt: time.Now(),
	}

	_, err := suite.client.SubmitOrder(context.Background(), order)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeOrderFailed, errors.GetCode(err))
}
