package exits

import (
	"fmt"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// TrailingStopLossName is the config name of the trailing stop exit
const TrailingStopLossName = "trailing_stop_loss"

// TrailingStopLoss ratchets a stop behind the best tick seen since the
// position opened and flattens when the market pulls back through it
type TrailingStopLoss struct {
	slLimit int64
}

// Name returns the exit name
func (t *TrailingStopLoss) Name() string { return TrailingStopLossName }

// SetDefaults sets the trailing distance to its default value
func (t *TrailingStopLoss) SetDefaults() {
	t.slLimit = 10
}

// SetCustomSettings applies sl_limit in pips
func (t *TrailingStopLoss) SetCustomSettings(params map[string]any) error {
	for k, v := range params {
		n, err := floatSetting(k, v)
		if err != nil {
			return err
		}
		switch k {
		case "sl_limit":
			t.slLimit = int64(n)
		default:
			return fmt.Errorf("%w: %w: unrecognised key %v", common.ErrConfig, ErrInvalidCustomSettings, k)
		}
	}
	return nil
}

// GenerateExitOrders implements Handler
func (t *TrailingStopLoss) GenerateExitOrders(ev *event.Event, account int64, avgPrice, tickPrice int64, pos *ledger.Position) []order.Order {
	net := pos.NetPosition()
	if net == 0 {
		return nil
	}
	side := common.Sign(net)
	distance := t.slLimit * pos.PriceIncrement

	peak, ok := pos.ExitState[stateTickPeak]
	if !ok {
		// first tick seeds the peak at the tick and the stop off the average
		pos.ExitState[stateTickPeak] = float64(tickPrice)
		pos.ExitState[stateTrailingStop] = float64(avgPrice - side*distance)
	} else {
		if (side > 0 && float64(tickPrice) > peak) || (side < 0 && float64(tickPrice) < peak) {
			pos.ExitState[stateTickPeak] = float64(tickPrice)
		}
		pos.ExitState[stateTrailingStop] = pos.ExitState[stateTickPeak] - float64(side*distance)
	}
	pos.ExitState[stateLastTick] = float64(tickPrice)

	stop := int64(pos.ExitState[stateTrailingStop])
	if (side > 0 && tickPrice <= stop) || (side < 0 && tickPrice >= stop) {
		delete(pos.ExitState, stateTickPeak)
		delete(pos.ExitState, stateTrailingStop)
		return []order.Order{closeOrder(ev, account, -net, 0, common.StopOrder, order.SignalSLClose)}
	}
	return nil
}
