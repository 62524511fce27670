package exits

import (
	"fmt"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// PassiveName is the config name of the passive follow exit
const PassiveName = "passive"

// Passive rests a limit order one increment inside the top of book of the
// exit side and re-prices it every tick. After skew_at ticks the resting
// price skews further toward the market, after passive_limit ticks the
// position is taken out at market
type Passive struct {
	skewAt       int64
	skewBy       int64
	passiveLimit int64
}

// Name returns the exit name
func (p *Passive) Name() string { return PassiveName }

// SetDefaults sets the skew and hold parameters to their default values
func (p *Passive) SetDefaults() {
	p.skewAt = 30
	p.skewBy = 1
	p.passiveLimit = 0
}

// SetCustomSettings applies skew_at, skew_by and passive_limit
func (p *Passive) SetCustomSettings(params map[string]any) error {
	for k, v := range params {
		n, err := floatSetting(k, v)
		if err != nil {
			return err
		}
		switch k {
		case "skew_at":
			p.skewAt = int64(n)
		case "skew_by":
			p.skewBy = int64(n)
		case "passive_limit":
			p.passiveLimit = int64(n)
		default:
			return fmt.Errorf("%w: %w: unrecognised key %v", common.ErrConfig, ErrInvalidCustomSettings, k)
		}
	}
	return nil
}

// GenerateExitOrders implements Handler
func (p *Passive) GenerateExitOrders(ev *event.Event, account int64, _, _ int64, pos *ledger.Position) []order.Order {
	net := pos.NetPosition()
	if net == 0 || !ev.HasBook() {
		return nil
	}
	side := common.Sign(net)

	if _, ok := pos.ExitState[stateStartTime]; !ok {
		pos.ExitState[stateStartTime] = float64(ev.Time.Unix())
		pos.ExitState[stateHoldTime] = 0
	} else {
		pos.ExitState[stateHoldTime]++
	}
	held := int64(pos.ExitState[stateHoldTime])

	if p.passiveLimit > 0 && held >= p.passiveLimit {
		delete(pos.ExitState, stateStartTime)
		delete(pos.ExitState, stateHoldTime)
		delete(pos.ExitState, stateLastPrice)
		return []order.Order{closeOrder(ev, account, -net, 0, common.MarketOrder, order.SignalPassive)}
	}

	// rest one increment inside the exit side, skewing toward the market
	// once the hold has dragged on
	var rest int64
	if side > 0 {
		rest = ev.Ask - pos.PriceIncrement
		if held >= p.skewAt {
			rest -= p.skewBy * pos.PriceIncrement
		}
	} else {
		rest = ev.Bid + pos.PriceIncrement
		if held >= p.skewAt {
			rest += p.skewBy * pos.PriceIncrement
		}
	}
	pos.ExitState[stateLastPrice] = float64(rest)

	// emit the fill order only when the market trades through the rest price
	if (side > 0 && ev.Bid >= rest) || (side < 0 && ev.Ask <= rest) {
		delete(pos.ExitState, stateStartTime)
		delete(pos.ExitState, stateHoldTime)
		delete(pos.ExitState, stateLastPrice)
		return []order.Order{closeOrder(ev, account, -net, rest, common.PassiveOrder, order.SignalPassive)}
	}
	return nil
}
