package matching

import (
	"fmt"
	"math"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// DepthDistribution walks a static depth model outward from the top of book,
// filling layer by layer until the order is consumed
type DepthDistribution struct {
	tables DepthTables
}

// NewDepthDistribution validates the model tables and returns the engine
func NewDepthDistribution(tables DepthTables) (*DepthDistribution, error) {
	if len(tables.RelativeVolume) == 0 || len(tables.PipDepth) == 0 || len(tables.SpreadContracts) == 0 {
		return nil, fmt.Errorf("%w: %w", common.ErrConfig, errNoDepthTables)
	}
	return &DepthDistribution{tables: tables}, nil
}

// Match implements Engine. One fill event is emitted per layer touched, with
// each layer's capacity scaled off the top of book side quantity. Fractional
// capacities round to the nearest hundredth of a contract and the final layer
// absorbs the rounding remainder
func (d *DepthDistribution) Match(ev *event.Event, o *order.Order) ([]event.Event, error) {
	if ev == nil || o == nil {
		return nil, common.ErrNilArguments
	}
	if o.Quantity == 0 {
		return nil, fmt.Errorf("%w: %w", common.ErrRuntime, errZeroQuantity)
	}
	if ev.Bid <= 0 || ev.Ask <= 0 || ev.PriceIncrement <= 0 {
		return nil, fmt.Errorf("%w: %w", common.ErrRuntime, errInconsistentBook)
	}

	spread := ev.SpreadIncrements()
	scale, ok := d.nearestSpreadScale(spread)
	if !ok {
		return nil, fmt.Errorf("%w: %w for spread %v", common.ErrConfig, errNoSpreadEntry, spread)
	}

	buy := o.IsBuy()
	tobPrice, sideQty := ev.Ask, ev.AskQty
	if !buy {
		tobPrice, sideQty = ev.Bid, ev.BidQty
	}
	if spread < 0 {
		// inverted book, walk out from the crossed side
		if buy {
			tobPrice = ev.Bid
		} else {
			tobPrice = ev.Ask
		}
	}

	dirSign := int64(1)
	if !buy {
		dirSign = -1
	}
	qtySign := common.Sign(o.Quantity)
	remaining := common.Abs(o.Quantity)

	var fills []event.Event
	for i := 0; i < len(d.tables.PipDepth) && remaining > 0; i++ {
		pips := d.tables.PipDepth[i]
		price := tobPrice + pips*ev.PriceIncrement*dirSign
		if !priceReachable(o, price, buy) {
			break
		}
		capacity := int64(math.Round(d.tables.RelativeVolume[pips] * scale * float64(sideQty)))
		if capacity <= 0 {
			continue
		}
		size := common.Min64(remaining, capacity)
		if i == len(d.tables.PipDepth)-1 {
			// last layer absorbs whatever rounding left behind
			size = remaining
		}
		fills = append(fills, fillFrom(ev, o, price, size*qtySign))
		remaining -= size
	}
	return fills, nil
}

// priceReachable reports whether a limit order may trade at a layer price,
// marketable orders reach every layer
func priceReachable(o *order.Order, price int64, buy bool) bool {
	if o.IsMarketable() || o.Price == 0 {
		return true
	}
	if buy {
		return price <= o.Price
	}
	return price >= o.Price
}

// nearestSpreadScale looks the spread up in the spread to contracts table,
// falling back to the closest configured spread
func (d *DepthDistribution) nearestSpreadScale(spread int64) (float64, bool) {
	if s, ok := d.tables.SpreadContracts[spread]; ok {
		return s, true
	}
	var (
		bestDist  int64 = math.MaxInt64
		bestScale float64
		found     bool
	)
	for k, v := range d.tables.SpreadContracts {
		dist := common.Abs(k - spread)
		if dist < bestDist || (dist == bestDist && k < spread) {
			bestDist = dist
			bestScale = v
			found = true
		}
	}
	return bestScale, found
}
