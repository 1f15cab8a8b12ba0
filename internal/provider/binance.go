// Package provider adapts real broker APIs to the live session client
// interface.
package provider

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/tradekit-lab/tradekit/internal/broker"
	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// KlinesService is the slice of the Binance klines API the client uses.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// CreateOrderService is the slice of the Binance order API the client uses.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// BinanceAPI abstracts the Binance client so tests can substitute mocks.
type BinanceAPI interface {
	NewKlinesService() KlinesService
	NewCreateOrderService() CreateOrderService
}

type realBinanceAPI struct {
	client *binance.Client
}

func (r *realBinanceAPI) NewKlinesService() KlinesService {
	return &realKlinesService{service: r.client.NewKlinesService()}
}

func (r *realBinanceAPI) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

// Binance trades spot through the Binance REST API. Symbols use the
// platform's underscore form (BTC_USDT) and are flattened to the
// exchange form (BTCUSDT) on the wire.
type Binance struct {
	api BinanceAPI
}

// NewBinance builds a client with the given credentials. When
// useTestnet is set the client talks to the Binance spot testnet.
func NewBinance(apiKey, secretKey string, useTestnet bool) *Binance {
	if useTestnet {
		binance.UseTestnet = true
	}

	return &Binance{api: &realBinanceAPI{client: binance.NewClient(apiKey, secretKey)}}
}

func newBinanceWithAPI(api BinanceAPI) *Binance {
	return &Binance{api: api}
}

// LatestCandle returns the newest kline for the symbol. Binance's last
// kline is the bar currently forming, so the client fetches two and
// reports the forming one with Complete unset only when no closed bar
// exists yet.
func (b *Binance) LatestCandle(ctx context.Context, symbol string, granularity types.Granularity) (types.Candle, error) {
	if _, err := granularity.Duration(); err != nil {
		return types.Candle{}, err
	}

	klines, err := b.api.NewKlinesService().
		Symbol(wireSymbol(symbol)).
		Interval(string(granularity)).
		Limit(2).
		Do(ctx)
	if err != nil {
		return types.Candle{}, errors.Wrapf(errors.ErrCodeProviderFetchFailed, err, "failed to fetch klines for %s", symbol)
	}

	if len(klines) == 0 {
		return types.Candle{}, errors.Newf(errors.ErrCodeNoDataFound, "no klines for %s", symbol)
	}

	// With two klines the first is closed and the second is forming
	if len(klines) >= 2 {
		return klineToCandle(klines[len(klines)-2], symbol, true), nil
	}

	return klineToCandle(klines[0], symbol, false), nil
}

// SubmitOrder places the order on the exchange. Market orders fill
// synchronously in spot trading; the execution reports the average fill
// price from the response.
func (b *Binance) SubmitOrder(ctx context.Context, order types.Order) (broker.Execution, error) {
	if err := order.Validate(); err != nil {
		return broker.Execution{}, err
	}

	inst, err := market.Lookup(order.Symbol)
	if err != nil {
		return broker.Execution{}, err
	}

	side := binance.SideTypeBuy
	if order.Direction == types.DirectionShort {
		side = binance.SideTypeSell
	}

	service := b.api.NewCreateOrderService().
		Symbol(wireSymbol(order.Symbol)).
		Side(side).
		Quantity(strconv.FormatFloat(order.Size, 'f', -1, 64))

	switch order.Kind {
	case types.OrderKindMarket:
		service = service.Type(binance.OrderTypeMarket)
	case types.OrderKindLimit:
		service = service.
			Type(binance.OrderTypeLimit).
			Price(strconv.FormatFloat(order.TriggerPrice.Unwrap(), 'f', int(inst.PriceDecimalPlaces), 64)).
			TimeInForce(binance.TimeInForceTypeGTC)
	default:
		return broker.Execution{}, errors.Newf(errors.ErrCodeInvalidOrder,
			"binance client does not support %s orders", order.Kind)
	}

	response, err := service.Do(ctx)
	if err != nil {
		return broker.Execution{}, errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to place %s order for %s", order.Kind, order.Symbol)
	}

	execution := broker.Execution{
		Order: order,
		Time:  time.UnixMilli(response.TransactTime),
	}

	if response.Status == binance.OrderStatusTypeFilled {
		execution.Filled = true
		execution.Order.Status = types.OrderStatusFilled
		execution.Price = averageFillPrice(response)
	}

	return execution, nil
}

// averageFillPrice derives the quantity-weighted fill price from the
// response fills, falling back to the order price field.
func averageFillPrice(response *binance.CreateOrderResponse) float64 {
	var notional, quantity float64

	for _, fill := range response.Fills {
		price, _ := strconv.ParseFloat(fill.Price, 64)
		qty, _ := strconv.ParseFloat(fill.Quantity, 64)
		notional += price * qty
		quantity += qty
	}

	if quantity > 0 {
		return notional / quantity
	}

	price, _ := strconv.ParseFloat(response.Price, 64)

	return price
}

func klineToCandle(k *binance.Kline, symbol string, complete bool) types.Candle {
	open, _ := strconv.ParseFloat(k.Open, 64)
	high, _ := strconv.ParseFloat(k.High, 64)
	low, _ := strconv.ParseFloat(k.Low, 64)
	closePrice, _ := strconv.ParseFloat(k.Close, 64)
	volume, _ := strconv.ParseFloat(k.Volume, 64)

	return types.Candle{
		Symbol:   symbol,
		Time:     time.UnixMilli(k.OpenTime).UTC(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		Complete: complete,
	}
}

// wireSymbol flattens BTC_USDT to the exchange's BTCUSDT form.
func wireSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "_", "")
}

var _ broker.Client = (*Binance)(nil)
