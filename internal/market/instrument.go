// Package market holds static instrument reference data: pip locations,
// display precision, size increments and currency pairs.
package market

import (
	"math"
	"sort"
	"strings"

	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// Instrument describes a tradeable pair.
type Instrument struct {
	Symbol string
	// BaseCurrency and QuoteCurrency split the pair; prices are quoted
	// in QuoteCurrency per unit of BaseCurrency.
	BaseCurrency  string
	QuoteCurrency string
	// PipLocation is the exponent of one pip, e.g. -4 means one pip is
	// 0.0001.
	PipLocation int
	// PriceDecimalPlaces is the number of decimal places prices are
	// truncated to before reaching the matching engine.
	PriceDecimalPlaces int32
	// SizeIncrement is the smallest tradeable size step in base units.
	SizeIncrement float64
}

// PipSize returns the price move of one pip.
func (i Instrument) PipSize() float64 {
	return math.Pow(10, float64(i.PipLocation))
}

var instruments = map[string]Instrument{
	"EUR_USD":  {Symbol: "EUR_USD", BaseCurrency: "EUR", QuoteCurrency: "USD", PipLocation: -4, PriceDecimalPlaces: 5, SizeIncrement: 1},
	"GBP_USD":  {Symbol: "GBP_USD", BaseCurrency: "GBP", QuoteCurrency: "USD", PipLocation: -4, PriceDecimalPlaces: 5, SizeIncrement: 1},
	"AUD_USD":  {Symbol: "AUD_USD", BaseCurrency: "AUD", QuoteCurrency: "USD", PipLocation: -4, PriceDecimalPlaces: 5, SizeIncrement: 1},
	"NZD_USD":  {Symbol: "NZD_USD", BaseCurrency: "NZD", QuoteCurrency: "USD", PipLocation: -4, PriceDecimalPlaces: 5, SizeIncrement: 1},
	"USD_JPY":  {Symbol: "USD_JPY", BaseCurrency: "USD", QuoteCurrency: "JPY", PipLocation: -2, PriceDecimalPlaces: 3, SizeIncrement: 1},
	"EUR_JPY":  {Symbol: "EUR_JPY", BaseCurrency: "EUR", QuoteCurrency: "JPY", PipLocation: -2, PriceDecimalPlaces: 3, SizeIncrement: 1},
	"USD_CHF":  {Symbol: "USD_CHF", BaseCurrency: "USD", QuoteCurrency: "CHF", PipLocation: -4, PriceDecimalPlaces: 5, SizeIncrement: 1},
	"USD_CAD":  {Symbol: "USD_CAD", BaseCurrency: "USD", QuoteCurrency: "CAD", PipLocation: -4, PriceDecimalPlaces: 5, SizeIncrement: 1},
	"BTC_USDT": {Symbol: "BTC_USDT", BaseCurrency: "BTC", QuoteCurrency: "USDT", PipLocation: 0, PriceDecimalPlaces: 2, SizeIncrement: 0.001},
	"ETH_USDT": {Symbol: "ETH_USDT", BaseCurrency: "ETH", QuoteCurrency: "USDT", PipLocation: -1, PriceDecimalPlaces: 2, SizeIncrement: 0.01},
}

// Lookup returns the instrument definition for a symbol.
func Lookup(symbol string) (Instrument, error) {
	inst, ok := instruments[strings.ToUpper(symbol)]
	if !ok {
		return Instrument{}, errors.Newf(errors.ErrCodeUnknownInstrument, "unknown instrument %q", symbol)
	}

	return inst, nil
}

// Register adds or replaces an instrument definition. Intended for
// custom pairs and tests.
func Register(inst Instrument) {
	instruments[strings.ToUpper(inst.Symbol)] = inst
}

// Symbols returns all known symbols in sorted order.
func Symbols() []string {
	out := make([]string, 0, len(instruments))
	for s := range instruments {
		out = append(out, s)
	}

	sort.Strings(out)

	return out
}
