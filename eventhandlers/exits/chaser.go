package exits

import (
	"fmt"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// ChaserName is the config name of the chasing limit exit
const ChaserName = "chaser"

// Chaser anchors a limit price near the average open price and walks it
// toward the exit side by uptick increments as the market moves favourably,
// away by downtick increments as it moves against, bounded either way. When
// the market reaches the chased price a passive order is emitted at it
type Chaser struct {
	startTick   int64
	upTick      int64
	downTick    int64
	maxUpTick   int64
	maxDownTick int64
}

// Name returns the exit name
func (c *Chaser) Name() string { return ChaserName }

// SetDefaults sets the tick parameters to their default values
func (c *Chaser) SetDefaults() {
	c.startTick = 0
	c.upTick = 1
	c.downTick = 1
	c.maxUpTick = 5
	c.maxDownTick = 5
}

// SetCustomSettings applies starttick, uptick, downtick, maxuptick and maxdowntick
func (c *Chaser) SetCustomSettings(params map[string]any) error {
	for k, v := range params {
		n, err := floatSetting(k, v)
		if err != nil {
			return err
		}
		switch k {
		case "starttick":
			c.startTick = int64(n)
		case "uptick":
			c.upTick = int64(n)
		case "downtick":
			c.downTick = int64(n)
		case "maxuptick":
			c.maxUpTick = int64(n)
		case "maxdowntick":
			c.maxDownTick = int64(n)
		default:
			return fmt.Errorf("%w: %w: unrecognised key %v", common.ErrConfig, ErrInvalidCustomSettings, k)
		}
	}
	return nil
}

// GenerateExitOrders implements Handler
func (c *Chaser) GenerateExitOrders(ev *event.Event, account int64, avgPrice, tickPrice int64, pos *ledger.Position) []order.Order {
	net := pos.NetPosition()
	if net == 0 {
		return nil
	}
	// exit direction: buying back a short chases from below, selling out a
	// long chases from above
	d := int64(-1)
	if net < 0 {
		d = 1
	}
	incr := pos.PriceIncrement

	start, ok := pos.ExitState[stateChaserStart]
	if !ok {
		start = float64(avgPrice + d*c.startTick*incr)
		pos.ExitState[stateChaserStart] = start
		pos.ExitState[stateChaserPrice] = start
		pos.ExitState[stateLastTick] = float64(avgPrice)
	}

	chaser := int64(pos.ExitState[stateChaserPrice])
	last := int64(pos.ExitState[stateLastTick])

	switch {
	case d > 0 && tickPrice > last, d < 0 && tickPrice < last:
		// market moved against the exit, back the chaser away
		chaser -= d * c.downTick * incr
	case d > 0 && tickPrice < last, d < 0 && tickPrice > last:
		// market moved toward the exit, chase it
		chaser += d * c.upTick * incr
	}

	lo := int64(start) - d*c.maxDownTick*incr
	hi := int64(start) + d*c.maxUpTick*incr
	if lo > hi {
		lo, hi = hi, lo
	}
	if chaser < lo {
		chaser = lo
	}
	if chaser > hi {
		chaser = hi
	}

	pos.ExitState[stateChaserPrice] = float64(chaser)
	pos.ExitState[stateLastTick] = float64(tickPrice)

	if (d > 0 && tickPrice <= chaser) || (d < 0 && tickPrice >= chaser) {
		delete(pos.ExitState, stateChaserStart)
		delete(pos.ExitState, stateChaserPrice)
		return []order.Order{closeOrder(ev, account, -net, chaser, common.PassiveOrder, order.SignalChaserMeet)}
	}
	return nil
}
