package virtual

import (
	"github.com/shopspring/decimal"
	"github.com/tradekit-lab/tradekit/internal/market"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// PositionSizer converts an account risk budget and a stop distance into
// a tradeable size.
type PositionSizer struct {
	inst market.Instrument
}

func NewPositionSizer(inst market.Instrument) PositionSizer {
	return PositionSizer{inst: inst}
}

// Size computes
//
//	size = (balance * riskFraction) / (stopDistancePips * pipValue)
//
// and floors the result to the instrument's size increment. pipValue is
// the account-currency value of one pip on one base unit.
func (s PositionSizer) Size(balance, riskFraction, stopDistancePips, pipValue float64) (float64, error) {
	if stopDistancePips <= 0 {
		return 0, errors.Newf(errors.ErrCodeInsufficientRiskInput,
			"stop distance must be positive, got %.5f pips", stopDistancePips)
	}

	if riskFraction <= 0 || riskFraction > 1 {
		return 0, errors.Newf(errors.ErrCodeInsufficientRiskInput,
			"risk fraction must be in (0, 1], got %.5f", riskFraction)
	}

	if pipValue <= 0 {
		return 0, errors.Newf(errors.ErrCodeInsufficientRiskInput,
			"pip value must be positive, got %.5f", pipValue)
	}

	riskAmount := decimal.NewFromFloat(balance).Mul(decimal.NewFromFloat(riskFraction))
	perUnitRisk := decimal.NewFromFloat(stopDistancePips).Mul(decimal.NewFromFloat(pipValue))

	units := riskAmount.Div(perUnitRisk)

	increment := decimal.NewFromFloat(s.inst.SizeIncrement)
	if increment.IsPositive() {
		units = units.Div(increment).Floor().Mul(increment)
	}

	if units.IsZero() || units.IsNegative() {
		return 0, errors.Newf(errors.ErrCodeSizeTooSmall,
			"size floored to zero at increment %.5f", s.inst.SizeIncrement)
	}

	floored, _ := units.Float64()

	return floored, nil
}

// StopDistancePips converts an absolute stop distance in price units
// into pips for the instrument.
func (s PositionSizer) StopDistancePips(entry, stop float64) float64 {
	distance := decimal.NewFromFloat(entry).Sub(decimal.NewFromFloat(stop)).Abs()
	pips, _ := distance.Div(decimal.NewFromFloat(s.inst.PipSize())).Float64()

	return pips
}
