// Package strategy defines the contract between the simulation driver and
// pluggable trading strategies, plus a registry of built-ins.
package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quantlab/backtest/market"
	"github.com/quantlab/backtest/portfolio"
)

// Strategy produces trading signals bar by bar. The driver calls Init once
// before the loop, Execute once per bar, and End once after the loop.
// Implementations own whatever indicator state they need; they never touch
// the ledger directly.
type Strategy interface {
	Name() string
	Init(bars []market.Bar, symbol string) error
	Execute(bar market.Bar, index int, bars []market.Bar, symbol string) ([]portfolio.Signal, error)
	End(bars []market.Bar, symbol string) error

	// SetParams applies named numeric parameters, used by the optimizer.
	// Unknown keys are an error.
	SetParams(params map[string]float64) error
}

// Factory constructs a fresh strategy instance so that successive runs do
// not share indicator state.
type Factory func() Strategy

var (
	mu       sync.Mutex
	registry = make(map[string]Factory)
)

func Register(id string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[id] = f
}

// New constructs a registered strategy by id.
func New(id string) (Strategy, error) {
	mu.Lock()
	defer mu.Unlock()
	f, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", id)
	}
	return f(), nil
}

// IDs lists the registered strategy ids, sorted.
func IDs() []string {
	mu.Lock()
	defer mu.Unlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
