package order

import (
	"time"

	"github.com/quantfx/fxbacktester/common"
)

// Signal values carried on exit orders for diagnostic aggregation
const (
	SignalTPClose     = "TP_close_position"
	SignalSLClose     = "SL_close_position"
	SignalPassive     = "passive"
	SignalChaserMeet  = "chaser_price_meet"
	SignalLifespan    = "lifespan_close_position"
	SignalInternalise = "internalise"
	SignalBBook       = "b_book"
	SignalBCHOpen     = "bch_open"
	SignalBCHClose    = "bch_close"
	SignalMigration   = "account_migration"
)

// GoodUntilCancel keeps an order alive within the processing of one tick
const GoodUntilCancel = "K"

// Order is emitted by a strategy and consumed by the matching engine which
// yields one or more fill events. Orders are transient and never stored
type Order struct {
	Time        time.Time
	Instrument  string
	Account     int64
	Quantity    int64
	Price       int64 // zero for market orders
	Type        common.OrderType
	TimeInForce string
	Signal      string
	EventType   common.EventType // HedgeEvent or InternalEvent
}

// IsBuy reports whether the order adds long exposure
func (o *Order) IsBuy() bool {
	return o.Quantity > 0
}

// IsMarketable reports whether the order executes against the book
// immediately rather than resting at a limit price
func (o *Order) IsMarketable() bool {
	return o.Type == common.MarketOrder || o.Type == common.StopOrder || o.Type == common.MigrationOrder
}
