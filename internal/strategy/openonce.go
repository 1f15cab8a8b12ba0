package strategy

import (
	"github.com/moznion/go-optional"
	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/internal/types"
)

func init() {
	Register("open_once", NewOpenOnce)
}

// OpenOnce enters a single long on the first candle it sees and then
// stays quiet. Useful for wiring checks and as the smallest possible
// strategy example.
type OpenOnce struct {
	stopPips float64
	takePips float64
	entered  map[string]bool
}

func NewOpenOnce(params map[string]float64) (Strategy, error) {
	return &OpenOnce{
		stopPips: param(params, "stop_pips", 50),
		takePips: param(params, "take_pips", 100),
		entered:  make(map[string]bool),
	}, nil
}

func (s *OpenOnce) Name() string { return "open_once" }

func (s *OpenOnce) OnCandle(ctx Context, candle types.Candle) (types.Signal, error) {
	none := types.Signal{Time: candle.Time, Type: types.SignalTypeNone, Symbol: candle.Symbol}

	if s.entered[candle.Symbol] {
		return none, nil
	}

	inst, err := market.Lookup(candle.Symbol)
	if err != nil {
		return none, err
	}

	s.entered[candle.Symbol] = true
	pip := inst.PipSize()

	return types.Signal{
		Time:       candle.Time,
		Type:       types.SignalTypeEnterLong,
		Symbol:     candle.Symbol,
		Reason:     "open once",
		StopLoss:   optional.Some(candle.Close - s.stopPips*pip),
		TakeProfit: optional.Some(candle.Close + s.takePips*pip),
	}, nil
}
