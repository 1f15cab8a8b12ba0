// Package writer persists downloaded candles to durable storage.
package writer

import (
	"github.com/tradekit-lab/tradekit/internal/types"
)

// Writer receives candles from a download and produces one output file.
type Writer interface {
	// Initialize sets up the destination, creating tables or files.
	Initialize() error
	// Write persists a single candle.
	Write(candle types.Candle) error
	// Finalize completes the writing process and returns the output path.
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// OutputPath returns the configured output file path.
	OutputPath() string
}
