// Package marketdata downloads historical candles from a vendor and
// stores them as Parquet files ready for backtesting.
package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
	"github.com/tradekit-lab/tradekit/pkg/marketdata/provider"
	"github.com/tradekit-lab/tradekit/pkg/marketdata/writer"
)

// WriterType selects the storage format for downloaded candles.
type WriterType string

const (
	WriterDuckDB WriterType = "duckdb"
)

// ClientConfig configures the download client.
type ClientConfig struct {
	ProviderType  provider.Type `validate:"required,oneof=polygon binance"`
	WriterType    WriterType    `validate:"required,oneof=duckdb"`
	DataPath      string        `validate:"required"`
	PolygonAPIKey string        `validate:"required_if=ProviderType polygon"`
}

// DownloadParams describes one download request.
type DownloadParams struct {
	Symbol      string            `validate:"required"`
	StartDate   time.Time         `validate:"required"`
	EndDate     time.Time         `validate:"required,gtfield=StartDate"`
	Granularity types.Granularity `validate:"required"`
}

// Client wires a provider to a writer and runs downloads.
type Client struct {
	provider   provider.Provider
	config     ClientConfig
	validate   *validator.Validate
	onProgress provider.OnProgress
}

func NewClient(config ClientConfig, onProgress provider.OnProgress) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	marketProvider, err := provider.New(config.ProviderType, config.PolygonAPIKey)
	if err != nil {
		return nil, err
	}

	return &Client{
		provider:   marketProvider,
		config:     config,
		validate:   validate,
		onProgress: onProgress,
	}, nil
}

// Download fetches the requested range and returns the Parquet path.
func (c *Client) Download(ctx context.Context, params DownloadParams) (string, error) {
	if err := c.validate.Struct(params); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	marketWriter, err := c.setupWriter(params)
	if err != nil {
		return "", err
	}

	c.provider.ConfigWriter(marketWriter)

	path, err := c.provider.Download(
		ctx,
		params.Symbol,
		params.StartDate,
		params.EndDate,
		params.Granularity,
		c.onProgress,
	)
	if err != nil {
		return "", err
	}

	return path, nil
}

func (c *Client) setupWriter(params DownloadParams) (writer.Writer, error) {
	switch c.config.WriterType {
	case WriterDuckDB:
		fileName := fmt.Sprintf("%s_%s_%s_%s.parquet",
			params.Symbol,
			params.StartDate.Format("2006-01-02"),
			params.EndDate.Format("2006-01-02"),
			params.Granularity)

		if err := os.MkdirAll(c.config.DataPath, 0o755); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeProviderWriteFailed, err, "failed to create %s", c.config.DataPath)
		}

		return writer.NewDuckDB(filepath.Join(c.config.DataPath, fileName)), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported writer %q", string(c.config.WriterType))
	}
}
