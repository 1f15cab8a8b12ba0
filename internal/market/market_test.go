package market

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func (suite *MarketTestSuite) TestLookup() {
	inst, err := Lookup("EUR_USD")
	suite.NoError(err)
	suite.Equal("EUR", inst.BaseCurrency)
	suite.Equal("USD", inst.QuoteCurrency)
	suite.Equal(-4, inst.PipLocation)
	suite.InDelta(0.0001, inst.PipSize(), 1e-12)
}

func (suite *MarketTestSuite) TestLookupIsCaseInsensitive() {
	inst, err := Lookup("usd_jpy")
	suite.NoError(err)
	suite.Equal("USD_JPY", inst.Symbol)
	suite.InDelta(0.01, inst.PipSize(), 1e-12)
}

func (suite *MarketTestSuite) TestLookupUnknown() {
	_, err := Lookup("XXX_YYY")
	suite.Error(err)
	suite.Equal(errors.ErrCodeUnknownInstrument, errors.GetCode(err))
}

func (suite *MarketTestSuite) TestRegister() {
	Register(Instrument{
		Symbol:             "TEST_USD",
		BaseCurrency:       "TEST",
		QuoteCurrency:      "USD",
		PipLocation:        -4,
		PriceDecimalPlaces: 5,
		SizeIncrement:      1,
	})

	inst, err := Lookup("TEST_USD")
	suite.NoError(err)
	suite.Equal("TEST", inst.BaseCurrency)
}

func (suite *MarketTestSuite) TestStaticRates() {
	rates := StaticRates{"JPY/USD": 0.0068}

	rate, err := rates.Rate("JPY", "USD")
	suite.NoError(err)
	suite.InDelta(0.0068, rate, 1e-12)

	// Inverse falls back to the tabled pair
	inverse, err := rates.Rate("USD", "JPY")
	suite.NoError(err)
	suite.InDelta(1/0.0068, inverse, 1e-9)

	identity, err := rates.Rate("USD", "USD")
	suite.NoError(err)
	suite.Equal(1.0, identity)

	_, err = rates.Rate("CHF", "USD")
	suite.Error(err)
	suite.Equal(errors.ErrCodeMissingRate, errors.GetCode(err))
}

func (suite *MarketTestSuite) TestPipValue() {
	eurusd, err := Lookup("EUR_USD")
	suite.Require().NoError(err)

	// Quote currency equals account currency: pip value is pip size
	value, err := PipValue(eurusd, "USD", nil)
	suite.NoError(err)
	suite.InDelta(0.0001, value, 1e-12)

	usdjpy, err := Lookup("USD_JPY")
	suite.Require().NoError(err)

	value, err = PipValue(usdjpy, "USD", StaticRates{"JPY/USD": 0.0068})
	suite.NoError(err)
	suite.InDelta(0.01*0.0068, value, 1e-12)

	// Conversion needed but no rate source configured
	_, err = PipValue(usdjpy, "USD", nil)
	suite.Error(err)
	suite.Equal(errors.ErrCodeMissingRate, errors.GetCode(err))
}
