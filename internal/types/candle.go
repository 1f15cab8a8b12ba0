package types

import (
	"time"

	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// Granularity identifies a candle interval.
type Granularity string

const (
	GranularityM1  Granularity = "1m"
	GranularityM5  Granularity = "5m"
	GranularityM15 Granularity = "15m"
	GranularityM30 Granularity = "30m"
	GranularityH1  Granularity = "1h"
	GranularityH4  Granularity = "4h"
	GranularityD1  Granularity = "1d"
)

// Duration returns the wall-clock length of one candle at this granularity.
func (g Granularity) Duration() (time.Duration, error) {
	switch g {
	case GranularityM1:
		return time.Minute, nil
	case GranularityM5:
		return 5 * time.Minute, nil
	case GranularityM15:
		return 15 * time.Minute, nil
	case GranularityM30:
		return 30 * time.Minute, nil
	case GranularityH1:
		return time.Hour, nil
	case GranularityH4:
		return 4 * time.Hour, nil
	case GranularityD1:
		return 24 * time.Hour, nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidGranularity, "unknown granularity %q", string(g))
	}
}

// Candle is a single OHLCV bar. Time is the bar's open time in UTC.
// Candles are immutable once produced; Complete marks whether the bar
// has closed.
type Candle struct {
	Symbol   string    `csv:"symbol" yaml:"symbol"`
	Time     time.Time `csv:"time" yaml:"time"`
	Open     float64   `csv:"open" yaml:"open"`
	High     float64   `csv:"high" yaml:"high"`
	Low      float64   `csv:"low" yaml:"low"`
	Close    float64   `csv:"close" yaml:"close"`
	Volume   float64   `csv:"volume" yaml:"volume"`
	Complete bool      `csv:"complete" yaml:"complete"`
}

// Contains reports whether price falls inside the candle's traded range.
func (c Candle) Contains(price float64) bool {
	return price >= c.Low && price <= c.High
}
