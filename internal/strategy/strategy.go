// Package strategy defines the signal-generation interface and the
// built-in example strategies.
package strategy

import (
	"sort"
	"sync"

	"github.com/moznion/go-optional"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// Context is the read-only view a strategy gets alongside each candle.
type Context struct {
	// Account is the latest snapshot, taken after the previous candle's
	// mark to market.
	Account types.AccountSnapshot
	// Position is the open position on the candle's instrument, if any.
	Position optional.Option[types.Position]
}

// Strategy turns one candle into a directional signal. Implementations
// keep their own indicator state; OnCandle is called exactly once per
// closed candle in time order.
type Strategy interface {
	Name() string
	OnCandle(ctx Context, candle types.Candle) (types.Signal, error)
}

// Factory builds a strategy instance from its config parameters.
type Factory func(params map[string]float64) (Strategy, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a strategy available by name. Built-ins register from
// init; callers may add their own before the engine starts.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = factory
}

// New instantiates a registered strategy.
func New(name string, params map[string]float64) (Strategy, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "strategy %q is not registered", name)
	}

	return factory(params)
}

// Names lists the registered strategies in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func param(params map[string]float64, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}

	return fallback
}
