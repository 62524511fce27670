package ledger

import (
	"errors"
	"time"

	"github.com/quantfx/fxbacktester/common"
)

var (
	errNegativePrice     = errors.New("trade price must be positive")
	errZeroUnitPrice     = errors.New("contract multiplier must be positive")
	errNonPositiveRate   = errors.New("rate to usd must be positive")
	errEmptyAverageLot   = errors.New("average lot has cost but no quantity")
	errUnknownNetting    = errors.New("unknown netting engine")
	errMixedSignOpenLots = errors.New("open lots do not share a sign")
)

// Lot is a single open fragment of a position
type Lot struct {
	ID       int64
	Quantity int64
	Price    int64
	Time     time.Time
}

// ClosedLot is the append-only record of a consumed lot fragment
type ClosedLot struct {
	Quantity    int64
	OpenPrice   int64
	ClosePrice  int64
	OpenTime    time.Time
	CloseTime   time.Time
	Realised    float64 // instrument currency
	RealisedUSD float64
	RateToUSD   float64
}

// PositionKey identifies a position. An empty Venue aggregates across venues
// for the same instrument and account
type PositionKey struct {
	Venue      string
	Instrument string
	Account    int64
}

// Position holds the open and closed lots of one (instrument, account) pair
// under a single netting discipline
type Position struct {
	Key            PositionKey
	UnitPrice      int64
	PriceIncrement int64
	Currency       string
	Netting        common.NettingType

	// OpenLots is insertion ordered. FIFO consumes from the head, LIFO from
	// the tail, AVG holds at most one aggregated lot
	OpenLots   []*Lot
	ClosedLots []ClosedLot

	// RealisedPNL accumulates in USD
	RealisedPNL float64

	// ExitState is an open bag of numeric attributes owned by whichever exit
	// strategy is attached to the position
	ExitState map[string]float64

	netPosition int64
	nextLotID   int64
}

// TradeResult reports what a single trade did to the position
type TradeResult struct {
	Opened      int64 // signed quantity added as new open lots
	Closed      int64 // unsigned quantity matched against existing lots
	Realised    float64
	RealisedUSD float64
}
