// Package statistics computes performance summaries from the trade
// ledger and equity curve. Everything here is a pure function of its
// inputs and can be recomputed at any time.
package statistics

import (
	"os"
	"time"

	"github.com/montanaflynn/stats"
	"gopkg.in/yaml.v3"

	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// Summary aggregates closed trades and the equity curve.
type Summary struct {
	TotalTrades   int `yaml:"total_trades"`
	WinningTrades int `yaml:"winning_trades"`
	LosingTrades  int `yaml:"losing_trades"`
	// WinRate is winners over total, in [0, 1]. Zero-PnL trades count
	// as losers.
	WinRate float64 `yaml:"win_rate"`

	LongestWinStreak  int `yaml:"longest_win_streak"`
	LongestLossStreak int `yaml:"longest_loss_streak"`

	TotalRealizedPnL float64 `yaml:"total_realized_pnl"`
	TotalFees        float64 `yaml:"total_fees"`
	MeanPnL          float64 `yaml:"mean_pnl"`
	MedianPnL        float64 `yaml:"median_pnl"`
	PnLStdDev        float64 `yaml:"pnl_std_dev"`
	LargestWin       float64 `yaml:"largest_win"`
	LargestLoss      float64 `yaml:"largest_loss"`

	// AvgTradeDurationSeconds is the mean holding period
	AvgTradeDurationSeconds float64 `yaml:"avg_trade_duration_seconds"`

	FinalEquity    float64 `yaml:"final_equity"`
	PeakEquity     float64 `yaml:"peak_equity"`
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`

	ExitReasons map[string]int `yaml:"exit_reasons"`
}

// Compute builds a Summary over the closed trades and per-candle
// equity snapshots.
func Compute(trades []types.Trade, equity []types.AccountSnapshot) (Summary, error) {
	summary := Summary{
		TotalTrades: len(trades),
		ExitReasons: make(map[string]int),
	}

	if len(equity) > 0 {
		last := equity[len(equity)-1]
		summary.FinalEquity = last.Equity
		summary.PeakEquity = last.PeakEquity
		summary.MaxDrawdownPct = last.MaxDrawdownPct
	}

	if len(trades) == 0 {
		return summary, nil
	}

	pnls := make([]float64, 0, len(trades))
	durations := make([]float64, 0, len(trades))

	winStreak, lossStreak := 0, 0

	for _, trade := range trades {
		pnls = append(pnls, trade.RealizedPnL)
		durations = append(durations, trade.Duration().Seconds())
		summary.TotalRealizedPnL += trade.RealizedPnL
		summary.TotalFees += trade.Fee
		summary.ExitReasons[string(trade.ExitReason)]++

		if trade.RealizedPnL > 0 {
			summary.WinningTrades++
			winStreak++
			lossStreak = 0
		} else {
			summary.LosingTrades++
			lossStreak++
			winStreak = 0
		}

		if winStreak > summary.LongestWinStreak {
			summary.LongestWinStreak = winStreak
		}

		if lossStreak > summary.LongestLossStreak {
			summary.LongestLossStreak = lossStreak
		}
	}

	summary.WinRate = float64(summary.WinningTrades) / float64(summary.TotalTrades)

	mean, err := stats.Mean(pnls)
	if err != nil {
		return summary, errors.Wrap(errors.ErrCodeUnknown, "failed to compute mean pnl", err)
	}

	summary.MeanPnL = mean

	median, err := stats.Median(pnls)
	if err != nil {
		return summary, errors.Wrap(errors.ErrCodeUnknown, "failed to compute median pnl", err)
	}

	summary.MedianPnL = median

	stdDev, err := stats.StandardDeviation(pnls)
	if err != nil {
		return summary, errors.Wrap(errors.ErrCodeUnknown, "failed to compute pnl std dev", err)
	}

	summary.PnLStdDev = stdDev

	maxWin, err := stats.Max(pnls)
	if err == nil && maxWin > 0 {
		summary.LargestWin = maxWin
	}

	maxLoss, err := stats.Min(pnls)
	if err == nil && maxLoss < 0 {
		summary.LargestLoss = maxLoss
	}

	avgDuration, err := stats.Mean(durations)
	if err != nil {
		return summary, errors.Wrap(errors.ErrCodeUnknown, "failed to compute mean duration", err)
	}

	summary.AvgTradeDurationSeconds = avgDuration

	return summary, nil
}

// AvgTradeDuration returns the mean holding period as a Duration.
func (s Summary) AvgTradeDuration() time.Duration {
	return time.Duration(s.AvgTradeDurationSeconds * float64(time.Second))
}

// WriteYAML writes the summary to a YAML file.
func WriteYAML(path string, summary Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return errors.Wrap(errors.ErrCodeUnknown, "failed to marshal summary", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to write %s", path)
	}

	return nil
}
