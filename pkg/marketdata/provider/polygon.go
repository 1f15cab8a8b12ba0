package provider

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/schollz/progressbar/v3"

	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
	"github.com/tradekit-lab/tradekit/pkg/marketdata/writer"
)

// Polygon downloads aggregate bars from the Polygon.io REST API.
type Polygon struct {
	client *polygon.Client
	writer writer.Writer
}

func NewPolygon(apiKey string) (*Polygon, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidProvider, "polygon requires an api key")
	}

	return &Polygon{client: polygon.New(apiKey)}, nil
}

func (p *Polygon) ConfigWriter(w writer.Writer) {
	p.writer = w
}

// polygonTimespan maps a candle granularity onto Polygon's
// multiplier/timespan pair.
func polygonTimespan(granularity types.Granularity) (int, models.Timespan, error) {
	switch granularity {
	case types.GranularityM1:
		return 1, models.Minute, nil
	case types.GranularityM5:
		return 5, models.Minute, nil
	case types.GranularityM15:
		return 15, models.Minute, nil
	case types.GranularityM30:
		return 30, models.Minute, nil
	case types.GranularityH1:
		return 1, models.Hour, nil
	case types.GranularityH4:
		return 4, models.Hour, nil
	case types.GranularityD1:
		return 1, models.Day, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidGranularity, "unknown granularity %q", string(granularity))
	}
}

func (p *Polygon) Download(ctx context.Context, symbol string, startDate, endDate time.Time, granularity types.Granularity, onProgress OnProgress) (string, error) {
	if p.writer == nil {
		return "", errors.New(errors.ErrCodeInvalidProvider, "no writer configured, call ConfigWriter first")
	}

	multiplier, timespan, err := polygonTimespan(granularity)
	if err != nil {
		return "", err
	}

	if err := p.writer.Initialize(); err != nil {
		return "", err
	}
	defer p.writer.Close()

	totalDays := int(endDate.Sub(startDate).Hours()/24) + 1

	bar := progressbar.NewOptions(totalDays,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", symbol)),
		progressbar.OptionShowCount())

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(startDate),
		To:         models.Millis(endDate),
	}.WithLimit(50000)

	iter := p.client.ListAggs(ctx, params)

	written := 0

	for iter.Next() {
		agg := iter.Item()

		candle := types.Candle{
			Symbol:   symbol,
			Time:     time.Time(agg.Timestamp).UTC(),
			Open:     agg.Open,
			High:     agg.High,
			Low:      agg.Low,
			Close:    agg.Close,
			Volume:   agg.Volume,
			Complete: true,
		}

		if err := p.writer.Write(candle); err != nil {
			return "", err
		}

		written++

		if written%1000 == 0 {
			elapsed := int(time.Time(agg.Timestamp).Sub(startDate).Hours() / 24)
			bar.Set(elapsed)

			if onProgress != nil {
				onProgress(float64(elapsed), float64(totalDays), fmt.Sprintf("Downloading %s", symbol))
			}
		}
	}

	if iter.Err() != nil {
		return "", errors.Wrapf(errors.ErrCodeProviderFetchFailed, iter.Err(), "failed to iterate polygon aggregates for %s", symbol)
	}

	bar.Finish()

	return p.writer.Finalize()
}

var _ Provider = (*Polygon)(nil)
