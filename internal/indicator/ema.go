// Package indicator holds streaming indicators that update one candle
// at a time. No history is buffered; each indicator carries only the
// state its recurrence needs.
package indicator

// EMA is a streaming exponential moving average. The first observation
// seeds the average; Ready reports true once a full period has been
// observed.
type EMA struct {
	period int
	value  float64
	count  int
}

func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

// Update folds the next price into the average and returns the new value.
func (e *EMA) Update(price float64) float64 {
	e.count++

	if e.count == 1 {
		e.value = price

		return e.value
	}

	alpha := 2.0 / (float64(e.period) + 1)
	e.value = alpha*price + (1-alpha)*e.value

	return e.value
}

// Value returns the current average.
func (e *EMA) Value() float64 { return e.value }

// Ready reports whether at least one full period has been observed.
func (e *EMA) Ready() bool { return e.count >= e.period }
