package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/tradekit-lab/tradekit/internal/indicator"
	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/internal/types"
)

func init() {
	Register("ema_cross", NewEmaCross)
}

type emaPair struct {
	fast     *indicator.EMA
	slow     *indicator.EMA
	lastDiff float64
	primed   bool
}

// EmaCross goes long when the fast EMA crosses above the slow EMA and
// short on the opposite cross. Protective levels are placed a fixed
// number of pips from the close.
type EmaCross struct {
	fastPeriod int
	slowPeriod int
	stopPips   float64
	takePips   float64

	state map[string]*emaPair
}

func NewEmaCross(params map[string]float64) (Strategy, error) {
	return &EmaCross{
		fastPeriod: int(param(params, "fast", 12)),
		slowPeriod: int(param(params, "slow", 26)),
		stopPips:   param(params, "stop_pips", 50),
		takePips:   param(params, "take_pips", 100),
		state:      make(map[string]*emaPair),
	}, nil
}

func (s *EmaCross) Name() string { return "ema_cross" }

func (s *EmaCross) OnCandle(ctx Context, candle types.Candle) (types.Signal, error) {
	none := types.Signal{Time: candle.Time, Type: types.SignalTypeNone, Symbol: candle.Symbol}

	pair, ok := s.state[candle.Symbol]
	if !ok {
		pair = &emaPair{
			fast: indicator.NewEMA(s.fastPeriod),
			slow: indicator.NewEMA(s.slowPeriod),
		}
		s.state[candle.Symbol] = pair
	}

	pair.fast.Update(candle.Close)
	pair.slow.Update(candle.Close)

	if !pair.slow.Ready() {
		return none, nil
	}

	diff := pair.fast.Value() - pair.slow.Value()

	defer func() {
		pair.lastDiff = diff
		pair.primed = true
	}()

	if !pair.primed {
		return none, nil
	}

	crossedUp := pair.lastDiff <= 0 && diff > 0
	crossedDown := pair.lastDiff >= 0 && diff < 0

	if !crossedUp && !crossedDown {
		return none, nil
	}

	inst, err := market.Lookup(candle.Symbol)
	if err != nil {
		return none, err
	}

	pip := inst.PipSize()

	signal := types.Signal{
		Time:   candle.Time,
		Symbol: candle.Symbol,
	}

	if crossedUp {
		signal.Type = types.SignalTypeEnterLong
		signal.Reason = fmt.Sprintf("fast ema %d crossed above slow ema %d", s.fastPeriod, s.slowPeriod)
		signal.StopLoss = optional.Some(candle.Close - s.stopPips*pip)
		signal.TakeProfit = optional.Some(candle.Close + s.takePips*pip)
	} else {
		signal.Type = types.SignalTypeEnterShort
		signal.Reason = fmt.Sprintf("fast ema %d crossed below slow ema %d", s.fastPeriod, s.slowPeriod)
		signal.StopLoss = optional.Some(candle.Close + s.stopPips*pip)
		signal.TakeProfit = optional.Some(candle.Close - s.takePips*pip)
	}

	return signal, nil
}
