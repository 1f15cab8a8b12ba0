package market

import "github.com/tradekit-lab/tradekit/pkg/errors"

// RateSource supplies currency conversion rates for translating quote
// currency amounts into the account currency.
type RateSource interface {
	// Rate returns how many units of `to` one unit of `from` buys.
	Rate(from, to string) (float64, error)
}

// StaticRates is a fixed rate table keyed by "FROM/TO". The identity
// rate is implied and never needs an entry.
type StaticRates map[string]float64

func (r StaticRates) Rate(from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}

	if rate, ok := r[from+"/"+to]; ok {
		return rate, nil
	}

	// Fall back to the inverse pair when only one side is tabled.
	if rate, ok := r[to+"/"+from]; ok && rate != 0 {
		return 1 / rate, nil
	}

	return 0, errors.Newf(errors.ErrCodeMissingRate, "no conversion rate from %s to %s", from, to)
}

// QuoteToAccount returns the factor converting one unit of the
// instrument's quote currency into account currency.
func QuoteToAccount(inst Instrument, accountCurrency string, rates RateSource) (float64, error) {
	if inst.QuoteCurrency == accountCurrency {
		return 1, nil
	}

	if rates == nil {
		return 0, errors.Newf(errors.ErrCodeMissingRate,
			"no rate source configured, cannot convert %s to %s", inst.QuoteCurrency, accountCurrency)
	}

	return rates.Rate(inst.QuoteCurrency, accountCurrency)
}

// PipValue returns the account-currency value of a one pip move on one
// base unit of the instrument.
func PipValue(inst Instrument, accountCurrency string, rates RateSource) (float64, error) {
	factor, err := QuoteToAccount(inst, accountCurrency, rates)
	if err != nil {
		return 0, err
	}

	return inst.PipSize() * factor, nil
}
