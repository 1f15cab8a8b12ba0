package statistics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/tradekit-lab/tradekit/internal/types"
	"gopkg.in/yaml.v3"
)

type StatisticsTestSuite struct {
	suite.Suite
	start time.Time
}

func TestStatisticsSuite(t *testing.T) {
	suite.Run(t, new(StatisticsTestSuite))
}

func (suite *StatisticsTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
}

func (suite *StatisticsTestSuite) trade(pnl float64, holdHours int, reason types.ExitReason) types.Trade {
	return types.Trade{
		Symbol:      "EUR_USD",
		Direction:   types.DirectionLong,
		Size:        1000,
		RealizedPnL: pnl,
		Fee:         1,
		OpenedAt:    suite.start,
		ClosedAt:    suite.start.Add(time.Duration(holdHours) * time.Hour),
		ExitReason:  reason,
	}
}

func (suite *StatisticsTestSuite) TestComputeEmpty() {
	summary, err := Compute(nil, nil)
	suite.NoError(err)
	suite.Equal(0, summary.TotalTrades)
	suite.Equal(0.0, summary.WinRate)
}

func (suite *StatisticsTestSuite) TestComputeEquityOnly() {
	equity := []types.AccountSnapshot{
		{Equity: 10100, PeakEquity: 10200, MaxDrawdownPct: -2.5},
	}

	summary, err := Compute(nil, equity)
	suite.NoError(err)
	suite.Equal(10100.0, summary.FinalEquity)
	suite.Equal(10200.0, summary.PeakEquity)
	suite.Equal(-2.5, summary.MaxDrawdownPct)
}

func (suite *StatisticsTestSuite) TestCompute() {
	// W W L W L L L: longest win streak 2, longest loss streak 3
	trades := []types.Trade{
		suite.trade(10, 1, types.ExitReasonTakeProfit),
		suite.trade(20, 2, types.ExitReasonTakeProfit),
		suite.trade(-5, 3, types.ExitReasonStop),
		suite.trade(15, 2, types.ExitReasonSignal),
		suite.trade(-10, 1, types.ExitReasonStop),
		suite.trade(-5, 2, types.ExitReasonStop),
		suite.trade(-15, 5, types.ExitReasonEndOfData),
	}

	summary, err := Compute(trades, nil)
	suite.Require().NoError(err)

	suite.Equal(7, summary.TotalTrades)
	suite.Equal(3, summary.WinningTrades)
	suite.Equal(4, summary.LosingTrades)
	suite.InDelta(3.0/7.0, summary.WinRate, 1e-9)
	suite.Equal(2, summary.LongestWinStreak)
	suite.Equal(3, summary.LongestLossStreak)
	suite.InDelta(10.0, summary.TotalRealizedPnL, 1e-9)
	suite.InDelta(7.0, summary.TotalFees, 1e-9)
	suite.InDelta(20.0, summary.LargestWin, 1e-9)
	suite.InDelta(-15.0, summary.LargestLoss, 1e-9)
	// (1+2+3+2+1+2+5)/7 hours = 16/7 hours
	suite.InDelta(16.0/7.0*3600, summary.AvgTradeDurationSeconds, 1e-6)
	suite.Equal(3, summary.ExitReasons["stop"])
	suite.Equal(2, summary.ExitReasons["take_profit"])
	suite.Equal(1, summary.ExitReasons["signal"])
	suite.Equal(1, summary.ExitReasons["end_of_data"])
}

func (suite *StatisticsTestSuite) TestZeroPnLCountsAsLoss() {
	summary, err := Compute([]types.Trade{suite.trade(0, 1, types.ExitReasonSignal)}, nil)
	suite.NoError(err)
	suite.Equal(1, summary.LosingTrades)
	suite.Equal(0.0, summary.WinRate)
}

func (suite *StatisticsTestSuite) TestRecomputable() {
	trades := []types.Trade{
		suite.trade(10, 1, types.ExitReasonTakeProfit),
		suite.trade(-5, 2, types.ExitReasonStop),
	}

	first, err := Compute(trades, nil)
	suite.Require().NoError(err)

	second, err := Compute(trades, nil)
	suite.Require().NoError(err)

	suite.Equal(first, second)
}

func (suite *StatisticsTestSuite) TestWriteYAML() {
	summary, err := Compute([]types.Trade{suite.trade(10, 1, types.ExitReasonSignal)}, nil)
	suite.Require().NoError(err)

	path := filepath.Join(suite.T().TempDir(), "stats.yaml")
	suite.Require().NoError(WriteYAML(path, summary))

	data, err := os.ReadFile(path)
	suite.Require().NoError(err)

	var loaded Summary
	suite.Require().NoError(yaml.Unmarshal(data, &loaded))
	suite.Equal(summary.TotalTrades, loaded.TotalTrades)
	suite.InDelta(summary.TotalRealizedPnL, loaded.TotalRealizedPnL, 1e-9)
}
