package event

import (
	"time"

	"github.com/quantfx/fxbacktester/common"
)

// Event is the uniform record flowing through the backtest loop. All prices
// are scaled integers (see common.PriceScale), all quantities are signed
// hundredths of a contract. Events are immutable once emitted; nothing
// downstream mutates one
type Event struct {
	Type           common.EventType
	Time           time.Time
	Instrument     string
	Account        int64
	Counterparty   int64
	Venue          string
	Price          int64
	Quantity       int64
	Bid            int64
	Ask            int64
	BidQty         int64
	AskQty         int64
	UnitPrice      int64
	Currency       string
	RateToUSD      float64
	PriceIncrement int64
	Untrusted      bool
	GFD            bool
	GFW            bool
	TradingSession time.Time
	BookingRisk    float64
	Signal         string

	// Seq preserves arrival order for events sharing a timestamp
	Seq int64
}

// IsFill reports whether the event is the product of the matching engine
func (e *Event) IsFill() bool {
	return e.Type == common.HedgeEvent || e.Type == common.InternalEvent
}

// MidPrice returns the midpoint of the carried book, zero without a book
func (e *Event) MidPrice() int64 {
	if e.Bid == 0 || e.Ask == 0 {
		return 0
	}
	return (e.Bid + e.Ask) / 2
}

// HasBook reports whether both sides of the book are present
func (e *Event) HasBook() bool {
	return e.Bid > 0 && e.Ask > 0
}

// SpreadIncrements returns the bid/ask spread in price increments,
// negative when the book is inverted
func (e *Event) SpreadIncrements() int64 {
	if !e.HasBook() || e.PriceIncrement == 0 {
		return 0
	}
	return (e.Ask - e.Bid) / e.PriceIncrement
}
