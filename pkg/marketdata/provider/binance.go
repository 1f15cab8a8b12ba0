package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
	"github.com/tradekit-lab/tradekit/pkg/marketdata/writer"
)

// binancePageSize is the kline page limit enforced by the Binance API.
const binancePageSize = 500

// Binance downloads historical klines from the public Binance API.
// No credentials are needed for candle history.
type Binance struct {
	client *binance.Client
	writer writer.Writer
}

func NewBinance() *Binance {
	return &Binance{client: binance.NewClient("", "")}
}

func (b *Binance) ConfigWriter(w writer.Writer) {
	b.writer = w
}

// Download pages through klines from startDate to endDate. The next
// page starts at the previous page's last close time plus one
// millisecond to avoid duplicates.
func (b *Binance) Download(ctx context.Context, symbol string, startDate, endDate time.Time, granularity types.Granularity, onProgress OnProgress) (string, error) {
	if b.writer == nil {
		return "", errors.New(errors.ErrCodeInvalidProvider, "no writer configured, call ConfigWriter first")
	}

	if _, err := granularity.Duration(); err != nil {
		return "", err
	}

	if err := b.writer.Initialize(); err != nil {
		return "", err
	}
	defer b.writer.Close()

	startMillis := startDate.UnixMilli()
	endMillis := endDate.UnixMilli()
	current := startMillis

	for {
		klines, err := b.client.NewKlinesService().
			Symbol(strings.ReplaceAll(symbol, "_", "")).
			Interval(string(granularity)).
			StartTime(current).
			EndTime(endMillis).
			Limit(binancePageSize).
			Do(ctx)
		if err != nil {
			return "", errors.Wrapf(errors.ErrCodeProviderFetchFailed, err, "failed to fetch klines for %s", symbol)
		}

		for _, k := range klines {
			if err := b.writer.Write(klineCandle(k, symbol)); err != nil {
				return "", err
			}
		}

		if onProgress != nil {
			onProgress(float64(current-startMillis), float64(endMillis-startMillis), fmt.Sprintf("Downloading %s from Binance", symbol))
		}

		if len(klines) < binancePageSize {
			break
		}

		current = klines[len(klines)-1].CloseTime + 1
		if current >= endMillis {
			break
		}
	}

	return b.writer.Finalize()
}

func klineCandle(k *binance.Kline, symbol string) types.Candle {
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
		Complete: true,
	}
}

var _ Provider = (*Binance)(nil)
