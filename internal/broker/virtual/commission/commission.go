// Package commission prices the fee charged on each fill.
package commission

import "math"

// Model calculates the fee for a fill of the given size and price, in
// account currency.
type Model interface {
	Calculate(size float64, price float64) float64
	Name() string
}

// Zero charges nothing. The default for backtests that model spread
// cost only.
type Zero struct{}

func NewZero() Model { return Zero{} }

func (Zero) Calculate(size float64, price float64) float64 { return 0 }

func (Zero) Name() string { return "zero" }

// PerTrade charges a flat amount per fill.
type PerTrade struct {
	amount float64
}

func NewPerTrade(amount float64) Model {
	return PerTrade{amount: amount}
}

func (c PerTrade) Calculate(size float64, price float64) float64 {
	return c.amount
}

func (PerTrade) Name() string { return "per_trade" }

// PerUnit charges a rate per base unit with a minimum per fill, the way
// unit-priced brokers quote equity commissions.
type PerUnit struct {
	rate    float64
	minimum float64
}

func NewPerUnit(rate float64, minimum float64) Model {
	return PerUnit{rate: rate, minimum: minimum}
}

func (c PerUnit) Calculate(size float64, price float64) float64 {
	return math.Max(c.rate*size, c.minimum)
}

func (PerUnit) Name() string { return "per_unit" }
