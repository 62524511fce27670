package exits

import (
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// DefaultName is the config name of the do-nothing exit
const DefaultName = "exit_default"

// Default never emits. Configuring it and omitting the exit block entirely
// are the same case
type Default struct{}

// Name returns the exit name
func (d *Default) Name() string { return DefaultName }

// SetDefaults is a no-op
func (d *Default) SetDefaults() {}

// SetCustomSettings accepts no parameters
func (d *Default) SetCustomSettings(map[string]any) error { return nil }

// GenerateExitOrders implements Handler and never produces orders
func (d *Default) GenerateExitOrders(*event.Event, int64, int64, int64, *ledger.Position) []order.Order {
	return nil
}
