package strategies

import (
	"fmt"
	"strings"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/exits"
	"github.com/quantfx/fxbacktester/eventhandlers/portfolio"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/base"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/bbook"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/bch"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/internalisation"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// Handler defines all functions required to run strategies against input
// events
type Handler interface {
	Name() string
	SetDefaults()
	SetCustomSettings(map[string]any) error
	SetLmaxAccount(int64)
	LmaxAccount() int64
	SetExit(exits.Handler)
	Exit() exits.Handler
	SetTargetAccounts([]base.TargetAccount)
	TargetAccounts() []base.TargetAccount
	IsTargetAccount(int64, string) bool
	OnTrade(*event.Event, *portfolio.Portfolio) ([]order.Order, error)
	OnMarketData(*event.Event, *portfolio.Portfolio) ([]order.Order, error)
	OnAccountMigration(*event.Event, *portfolio.Portfolio) ([]order.Order, error)
}

// GetSupportedStrategies returns a new slice of all supported strategies
func GetSupportedStrategies() []Handler {
	return []Handler{
		new(internalisation.Strategy),
		new(bbook.Strategy),
		new(bch.Strategy),
	}
}

// LoadStrategyByName returns the strategy by its name with its parameters at
// their default values
func LoadStrategyByName(name string) (Handler, error) {
	for _, h := range GetSupportedStrategies() {
		if !strings.EqualFold(name, h.Name()) {
			continue
		}
		h.SetDefaults()
		return h, nil
	}
	return nil, fmt.Errorf("%w: strategy %q: %w", common.ErrConfig, name, base.ErrStrategyNotFound)
}
