package matching

import (
	"fmt"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// TopOfBook fills marketable orders in full at the relevant top of book side
// and limit orders at their limit price when the book is at or through it
type TopOfBook struct{}

// NewTopOfBook returns the default matching engine
func NewTopOfBook() *TopOfBook {
	return &TopOfBook{}
}

// Match implements Engine
func (t *TopOfBook) Match(ev *event.Event, o *order.Order) ([]event.Event, error) {
	if ev == nil || o == nil {
		return nil, common.ErrNilArguments
	}
	if o.Quantity == 0 {
		return nil, fmt.Errorf("%w: %w", common.ErrRuntime, errZeroQuantity)
	}
	if !ev.HasBook() {
		return nil, fmt.Errorf("%w: %w", common.ErrRuntime, errInconsistentBook)
	}

	var price int64
	switch {
	case o.Type == common.MigrationOrder:
		// migrations rest at the near side rather than crossing the spread
		if o.IsBuy() {
			price = ev.Bid
		} else {
			price = ev.Ask
		}
	case o.IsMarketable():
		if o.IsBuy() {
			price = ev.Ask
		} else {
			price = ev.Bid
		}
	case o.IsBuy():
		// buy limit fills only at or through the ask
		if o.Price < ev.Ask {
			return nil, nil
		}
		price = o.Price
	default:
		if o.Price > ev.Bid {
			return nil, nil
		}
		price = o.Price
	}

	return []event.Event{fillFrom(ev, o, price, o.Quantity)}, nil
}

// fillFrom builds one fill event carrying the triggering event's book and
// reference data
func fillFrom(ev *event.Event, o *order.Order, price, qty int64) event.Event {
	return event.Event{
		Type:           o.EventType,
		Time:           ev.Time,
		Instrument:     o.Instrument,
		Account:        o.Account,
		Venue:          ev.Venue,
		Price:          price,
		Quantity:       qty,
		Bid:            ev.Bid,
		Ask:            ev.Ask,
		BidQty:         ev.BidQty,
		AskQty:         ev.AskQty,
		UnitPrice:      ev.UnitPrice,
		Currency:       ev.Currency,
		RateToUSD:      ev.RateToUSD,
		PriceIncrement: ev.PriceIncrement,
		Untrusted:      ev.Untrusted,
		GFD:            ev.GFD,
		GFW:            ev.GFW,
		TradingSession: ev.TradingSession,
		Signal:         o.Signal,
	}
}
