package exits

import (
	"errors"
	"fmt"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// Exit state keys. Exit strategies own the numeric bag on the position and
// nothing else reads it
const (
	stateTickPeak     = "tick_peak"
	stateTrailingStop = "trailing_stop"
	stateLastTick     = "last_tick"
	stateChaserPrice  = "chaser_price"
	stateChaserStart  = "chaser_start"
	stateLastPrice    = "lastprice"
	stateStartTime    = "start_time"
	stateHoldTime     = "hold_time"
	stateTPReference  = "tp_ref"
)

var (
	// ErrExitNotFound is returned when an unknown exit type is configured
	ErrExitNotFound = errors.New("exit strategy not found")
	// ErrInvalidCustomSettings is returned when exit parameters cannot be applied
	ErrInvalidCustomSettings = errors.New("invalid exit parameters")
)

// Handler reacts to each market data tick for one open position and may emit
// orders that close some or all of it. Handlers read and mutate the
// position's exit state bag
type Handler interface {
	Name() string
	GenerateExitOrders(ev *event.Event, account int64, avgPrice, tickPrice int64, pos *ledger.Position) []order.Order
}

// LoadExitByName constructs an exit strategy from its config name and
// parameter map. A nil params map applies the defaults. Unknown names are a
// config error raised at plan construction
func LoadExitByName(name string, params map[string]any) (Handler, error) {
	var h interface {
		Handler
		SetDefaults()
		SetCustomSettings(map[string]any) error
	}
	switch name {
	case "", DefaultName:
		h = &Default{}
	case AggressiveName:
		h = &Aggressive{}
	case ProfitRunningName:
		h = &ProfitRunning{}
	case TrailingStopLossName:
		h = &TrailingStopLoss{}
	case PassiveName:
		h = &Passive{}
	case ChaserName:
		h = &Chaser{}
	default:
		return nil, fmt.Errorf("%w: %w: %v", common.ErrConfig, ErrExitNotFound, name)
	}
	h.SetDefaults()
	if err := h.SetCustomSettings(params); err != nil {
		return nil, err
	}
	return h, nil
}

// floatSetting coerces a numeric custom setting
func floatSetting(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: %w: %v value %v could not be parsed", common.ErrConfig, ErrInvalidCustomSettings, key, v)
}

// closeOrder builds an order flattening qty of the position
func closeOrder(ev *event.Event, account, qty, price int64, typ common.OrderType, signal string) order.Order {
	return order.Order{
		Time:        ev.Time,
		Instrument:  ev.Instrument,
		Account:     account,
		Quantity:    qty,
		Price:       price,
		Type:        typ,
		TimeInForce: order.GoodUntilCancel,
		Signal:      signal,
		EventType:   common.HedgeEvent,
	}
}
