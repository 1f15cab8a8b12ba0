package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type TradeTestSuite struct {
	suite.Suite
}

func TestTradeSuite(t *testing.T) {
	suite.Run(t, new(TradeTestSuite))
}

func (suite *TradeTestSuite) TestUnrealizedAt() {
	tests := []struct {
		name     string
		position Position
		price    float64
		want     float64
	}{
		{
			name:     "long in profit",
			position: Position{Direction: DirectionLong, Size: 1000, EntryPrice: 1.1000},
			price:    1.1050,
			want:     5.0,
		},
		{
			name:     "long in loss",
			position: Position{Direction: DirectionLong, Size: 1000, EntryPrice: 1.1000},
			price:    1.0950,
			want:     -5.0,
		},
		{
			name:     "short in profit",
			position: Position{Direction: DirectionShort, Size: 1000, EntryPrice: 1.1000},
			price:    1.0950,
			want:     5.0,
		},
		{
			name:     "short in loss",
			position: Position{Direction: DirectionShort, Size: 1000, EntryPrice: 1.1000},
			price:    1.1050,
			want:     -5.0,
		},
		{
			name:     "flat at entry",
			position: Position{Direction: DirectionLong, Size: 1000, EntryPrice: 1.1000},
			price:    1.1000,
			want:     0,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.InDelta(tc.want, tc.position.UnrealizedAt(tc.price), 1e-9)
		})
	}
}

func (suite *TradeTestSuite) TestTradeDuration() {
	opened := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	trade := Trade{
		OpenedAt: opened,
		ClosedAt: opened.Add(90 * time.Minute),
	}
	suite.Equal(90*time.Minute, trade.Duration())
}

func (suite *TradeTestSuite) TestGranularityDuration() {
	d, err := GranularityH1.Duration()
	suite.NoError(err)
	suite.Equal(time.Hour, d)

	_, err = Granularity("7m").Duration()
	suite.Error(err)
}

func (suite *TradeTestSuite) TestCandleContains() {
	candle := Candle{Low: 1.0940, High: 1.0960}
	suite.True(candle.Contains(1.0950))
	suite.True(candle.Contains(1.0940))
	suite.True(candle.Contains(1.0960))
	suite.False(candle.Contains(1.0939))
	suite.False(candle.Contains(1.0961))
}
