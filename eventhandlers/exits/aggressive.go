package exits

import (
	"fmt"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// AggressiveName is the config name of the take-profit/stop-loss exit
const AggressiveName = "aggressive"

// Aggressive closes the whole position the moment the tick crosses the take
// profit or stop loss distance from the average open price. When both hold on
// a single gap tick the take profit wins
type Aggressive struct {
	tpLimit int64
	slLimit int64
}

// Name returns the exit name
func (a *Aggressive) Name() string { return AggressiveName }

// SetDefaults sets the pip limits to their default values
func (a *Aggressive) SetDefaults() {
	a.tpLimit = 10
	a.slLimit = 10
}

// SetCustomSettings applies tp_limit and sl_limit in pips
func (a *Aggressive) SetCustomSettings(params map[string]any) error {
	for k, v := range params {
		n, err := floatSetting(k, v)
		if err != nil {
			return err
		}
		switch k {
		case "tp_limit":
			a.tpLimit = int64(n)
		case "sl_limit":
			a.slLimit = int64(n)
		default:
			return fmt.Errorf("%w: %w: unrecognised key %v", common.ErrConfig, ErrInvalidCustomSettings, k)
		}
	}
	return nil
}

// GenerateExitOrders implements Handler
func (a *Aggressive) GenerateExitOrders(ev *event.Event, account int64, avgPrice, tickPrice int64, pos *ledger.Position) []order.Order {
	net := pos.NetPosition()
	if net == 0 {
		return nil
	}
	side := common.Sign(net)
	tp := avgPrice + side*a.tpLimit*pos.PriceIncrement
	sl := avgPrice - side*a.slLimit*pos.PriceIncrement

	if (side > 0 && tickPrice >= tp) || (side < 0 && tickPrice <= tp) {
		return []order.Order{closeOrder(ev, account, -net, tickPrice, common.TakeProfitOrder, order.SignalTPClose)}
	}
	if (side > 0 && tickPrice <= sl) || (side < 0 && tickPrice >= sl) {
		return []order.Order{closeOrder(ev, account, -net, 0, common.StopOrder, order.SignalSLClose)}
	}
	return nil
}
