package statistics

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Output levels controlling which events produce records
const (
	// MarkToMarket records every event, market data included
	MarkToMarket = "mark_to_market"
	// TradesOnly records trades and fills only
	TradesOnly = "trades_only"
)

// Resample rules beyond plain duration strings
const (
	// ResampleNone emits per-event records untouched
	ResampleNone = "none"
	// ResampleSummary collapses the run to a single aggregate row
	ResampleSummary = "summary"
)

var (
	// ErrInvalidLevel is returned when the output level is not recognised
	ErrInvalidLevel = errors.New("unrecognised output level")
	// ErrInvalidResampleRule is returned when the resample rule cannot be parsed
	ErrInvalidResampleRule = errors.New("unrecognised resample rule")
)

// Record is one output row. The hot path appends these to a slice, columnar
// treatment only happens at aggregation time
type Record struct {
	Time           time.Time
	Instrument     string
	Account        int64
	EventType      string
	Signal         string
	TradeQty       int64
	Price          int64
	RPNL           float64
	RPNLCum        float64
	RPNLCumDay     float64
	NetRPNL        float64
	NotionalTraded float64
	TradingSession time.Time
}

// Summary aggregates a whole run
type Summary struct {
	TradeCount  int
	RealisedPNL decimal.Decimal
	MaxDrawdown decimal.Decimal
	WinRatio    decimal.Decimal
}
