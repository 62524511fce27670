package exits

import (
	"fmt"
	"math"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// ProfitRunningName is the config name of the partial take-profit exit
const ProfitRunningName = "profit_running"

// ProfitRunning takes profit in slices, letting the remainder run. Each slice
// re-anchors the take profit reference at the tick that fired, the stop loss
// still flattens everything
type ProfitRunning struct {
	cutRatio     float64
	minTradeSize int64
	tpLimit      int64
	slLimit      int64
}

// Name returns the exit name
func (p *ProfitRunning) Name() string { return ProfitRunningName }

// SetDefaults sets the slice and pip parameters to their default values
func (p *ProfitRunning) SetDefaults() {
	p.cutRatio = 0.5
	p.minTradeSize = 100
	p.tpLimit = 10
	p.slLimit = 10
}

// SetCustomSettings applies cut_ratio, min_trade_size, tp_limit and sl_limit
func (p *ProfitRunning) SetCustomSettings(params map[string]any) error {
	for k, v := range params {
		n, err := floatSetting(k, v)
		if err != nil {
			return err
		}
		switch k {
		case "cut_ratio":
			p.cutRatio = n
		case "min_trade_size":
			p.minTradeSize = int64(n)
		case "tp_limit":
			p.tpLimit = int64(n)
		case "sl_limit":
			p.slLimit = int64(n)
		default:
			return fmt.Errorf("%w: %w: unrecognised key %v", common.ErrConfig, ErrInvalidCustomSettings, k)
		}
	}
	return nil
}

// GenerateExitOrders implements Handler
func (p *ProfitRunning) GenerateExitOrders(ev *event.Event, account int64, avgPrice, tickPrice int64, pos *ledger.Position) []order.Order {
	net := pos.NetPosition()
	if net == 0 {
		return nil
	}
	side := common.Sign(net)

	ref, ok := pos.ExitState[stateTPReference]
	if !ok {
		ref = float64(avgPrice)
	}
	tp := int64(ref) + side*p.tpLimit*pos.PriceIncrement
	sl := avgPrice - side*p.slLimit*pos.PriceIncrement

	if (side > 0 && tickPrice >= tp) || (side < 0 && tickPrice <= tp) {
		slice := int64(math.Floor(float64(common.Abs(net)) * p.cutRatio))
		if slice < p.minTradeSize {
			slice = p.minTradeSize
		}
		slice = common.Min64(slice, common.Abs(net))
		pos.ExitState[stateTPReference] = float64(tickPrice)
		return []order.Order{closeOrder(ev, account, -slice*side, tickPrice, common.TakeProfitOrder, order.SignalTPClose)}
	}
	if (side > 0 && tickPrice <= sl) || (side < 0 && tickPrice >= sl) {
		return []order.Order{closeOrder(ev, account, -net, 0, common.StopOrder, order.SignalSLClose)}
	}
	return nil
}
