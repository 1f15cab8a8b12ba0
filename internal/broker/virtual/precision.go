package virtual

import (
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// PrecisionPolicy truncates prices to an instrument's decimal places and
// validates protective-level ordering around an entry price.
//
// Truncation always floors toward zero on the decimal representation.
// 1.23456 at 4 decimal places becomes 1.2345, never 1.2346.
type PrecisionPolicy struct {
	inst market.Instrument
}

func NewPrecisionPolicy(inst market.Instrument) PrecisionPolicy {
	return PrecisionPolicy{inst: inst}
}

// TruncatePrice floors the price to the instrument's decimal places.
func (p PrecisionPolicy) TruncatePrice(price float64) float64 {
	truncated, _ := decimal.NewFromFloat(price).Truncate(p.inst.PriceDecimalPlaces).Float64()

	return truncated
}

// TruncateSize floors the size to a whole number of size increments.
func (p PrecisionPolicy) TruncateSize(size float64) float64 {
	if p.inst.SizeIncrement <= 0 {
		return size
	}

	increment := decimal.NewFromFloat(p.inst.SizeIncrement)
	steps := decimal.NewFromFloat(size).Div(increment).Floor()
	floored, _ := steps.Mul(increment).Float64()

	return floored
}

// QualifyLevels truncates the optional stop-loss and take-profit and
// validates their ordering against the proposed entry price. For a long
// the stop must sit strictly below the entry and the take strictly
// above; for a short the relations invert. A level whose truncation
// crosses the entry is a PrecisionViolation.
func (p PrecisionPolicy) QualifyLevels(
	direction types.Direction,
	entry float64,
	stop optional.Option[float64],
	take optional.Option[float64],
) (optional.Option[float64], optional.Option[float64], error) {
	outStop := optional.None[float64]()
	outTake := optional.None[float64]()

	if stop.IsSome() {
		level := p.TruncatePrice(stop.Unwrap())

		valid := level < entry
		if direction == types.DirectionShort {
			valid = level > entry
		}

		if !valid {
			return outStop, outTake, errors.Newf(errors.ErrCodePrecisionViolation,
				"stop loss %.5f does not sit on the protective side of entry %.5f for %s",
				level, entry, direction)
		}

		outStop = optional.Some(level)
	}

	if take.IsSome() {
		level := p.TruncatePrice(take.Unwrap())

		valid := level > entry
		if direction == types.DirectionShort {
			valid = level < entry
		}

		if !valid {
			return optional.None[float64](), outTake, errors.Newf(errors.ErrCodePrecisionViolation,
				"take profit %.5f does not sit on the profit side of entry %.5f for %s",
				level, entry, direction)
		}

		outTake = optional.Some(level)
	}

	return outStop, outTake, nil
}
