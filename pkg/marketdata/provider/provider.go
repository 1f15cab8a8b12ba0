// Package provider downloads historical candles from market data
// vendors into a configured writer.
package provider

import (
	"context"
	"time"

	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
	"github.com/tradekit-lab/tradekit/pkg/marketdata/writer"
)

// Type names a supported market data vendor.
type Type string

const (
	TypePolygon Type = "polygon"
	TypeBinance Type = "binance"
)

// OnProgress reports download progress. current and total are in
// vendor-specific units (bars or milliseconds).
type OnProgress = func(current, total float64, message string)

// Provider downloads one symbol's candles for a date range and streams
// them into the configured writer.
type Provider interface {
	// ConfigWriter sets the destination for downloaded candles.
	ConfigWriter(w writer.Writer)
	// Download fetches candles for the symbol between startDate and
	// endDate at the given granularity and returns the output path.
	Download(ctx context.Context, symbol string, startDate, endDate time.Time, granularity types.Granularity, onProgress OnProgress) (path string, err error)
}

// New builds a provider by type. apiKey is required for vendors that
// authenticate reads.
func New(providerType Type, apiKey string) (Provider, error) {
	switch providerType {
	case TypeBinance:
		return NewBinance(), nil
	case TypePolygon:
		return NewPolygon(apiKey)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider %q", string(providerType))
	}
}
