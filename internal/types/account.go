package types

import "time"

// AccountSnapshot is a point-in-time view of the account state, taken
// after every mark to market. All amounts are in account currency.
type AccountSnapshot struct {
	Time time.Time `csv:"time" yaml:"time"`
	// Balance is the realized cash balance, excluding open profit
	Balance float64 `csv:"balance" yaml:"balance"`
	// Equity is balance plus the sum of unrealized PnL over open positions
	Equity float64 `csv:"equity" yaml:"equity"`
	// UnrealizedPnL is the open profit across all positions
	UnrealizedPnL float64 `csv:"unrealized_pnl" yaml:"unrealized_pnl"`
	// MarginUsed is the margin reserved by open positions
	MarginUsed float64 `csv:"margin_used" yaml:"margin_used"`
	// FreeMargin is equity minus margin used
	FreeMargin float64 `csv:"free_margin" yaml:"free_margin"`
	// PeakEquity is the running equity high-water mark, never decreasing
	PeakEquity float64 `csv:"peak_equity" yaml:"peak_equity"`
	// MaxDrawdownPct is the worst observed (equity-peak)/peak, always <= 0
	MaxDrawdownPct float64 `csv:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	// OpenPositions counts positions currently held
	OpenPositions int `csv:"open_positions" yaml:"open_positions"`
}
