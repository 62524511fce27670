package common

import (
	"errors"
	"time"
)

const (
	// PriceScale is the scaling factor applied to all stored prices.
	// A real price of 1.10001 is stored as 1100010.
	PriceScale int64 = 1_000_000
	// QuantityScale is the scaling factor applied to all stored quantities,
	// one contract is stored as 100
	QuantityScale int64 = 100
)

// EventType describes what a stream event represents
type EventType uint8

const (
	// TradeEvent is a client trade
	TradeEvent EventType = iota
	// MarketDataEvent is a top of book refresh
	MarketDataEvent
	// AccountMigrationEvent is a synthetic event marking a booking risk change
	AccountMigrationEvent
	// HedgeEvent is a fill resulting from an order routed out of the book
	HedgeEvent
	// InternalEvent is a fill resulting from an internalised order
	InternalEvent
)

var eventTypeNames = map[EventType]string{
	TradeEvent:            "trade",
	MarketDataEvent:       "market_data",
	AccountMigrationEvent: "account_migration",
	HedgeEvent:            "hedge",
	InternalEvent:         "internal",
}

// String implements the stringer interface
func (e EventType) String() string {
	return eventTypeNames[e]
}

// Priority is used as the timestamp tie break when sorting a stream,
// trades < market_data < account_migration < hedge < internal
func (e EventType) Priority() int {
	return int(e)
}

// OrderType describes how the matching engine should treat an order
type OrderType byte

const (
	// MarketOrder fills against the relevant top of book side
	MarketOrder OrderType = 'N'
	// StopOrder is a stop triggered market order
	StopOrder OrderType = 'S'
	// TakeProfitOrder is a take profit limit order
	TakeProfitOrder OrderType = 'R'
	// PassiveOrder is a resting limit order
	PassiveOrder OrderType = 'P'
	// MigrationOrder rebalances exposure after a booking risk change
	MigrationOrder OrderType = 'M'
)

// NettingType selects the lot consumption discipline of a position
type NettingType uint8

const (
	// FIFONetting consumes the oldest lot first
	FIFONetting NettingType = iota
	// LIFONetting consumes the newest lot first
	LIFONetting
	// AVGNetting holds a single weighted average lot
	AVGNetting
)

// NettingFromString converts a config value into a NettingType
func NettingFromString(s string) (NettingType, error) {
	switch s {
	case "fifo":
		return FIFONetting, nil
	case "lifo":
		return LIFONetting, nil
	case "avg_price":
		return AVGNetting, nil
	default:
		return 0, ErrInvalidNettingEngine
	}
}

// MatchingMethod selects which book price unrealised PnL marks against
type MatchingMethod uint8

const (
	// SideOfBook marks longs against the bid and shorts against the ask
	SideOfBook MatchingMethod = iota
	// Mid marks everything against the mid price
	Mid
)

// MatchingMethodFromString converts a config value into a MatchingMethod
func MatchingMethodFromString(s string) (MatchingMethod, error) {
	switch s {
	case "side_of_book":
		return SideOfBook, nil
	case "mid":
		return Mid, nil
	default:
		return 0, ErrInvalidMatchingMethod
	}
}

// Error kinds. Every error raised by the backtester wraps one of these so
// callers can sort failures without string matching
var (
	// ErrConfig covers malformed or contradictory configuration
	ErrConfig = errors.New("config error")
	// ErrData covers missing historical data for a requested session
	ErrData = errors.New("data error")
	// ErrValidation covers plans that cannot be constructed from their inputs
	ErrValidation = errors.New("validation error")
	// ErrRuntime covers faults raised inside the event loop
	ErrRuntime = errors.New("runtime error")
	// ErrCancelled is surfaced when a plan is cooperatively cancelled
	ErrCancelled = errors.New("plan cancelled")
)

var (
	// ErrNilEvent is a common error for whenever a nil event occurs when it shouldn't have
	ErrNilEvent = errors.New("nil event received")
	// ErrNilArguments is a common error response to highlight that nils were passed in
	// when they should not have been
	ErrNilArguments = errors.New("received nil argument(s)")
	// ErrInvalidNettingEngine occurs when an unknown netting engine is set in config
	ErrInvalidNettingEngine = errors.New("invalid netting engine")
	// ErrInvalidMatchingMethod occurs when an unknown matching method is set in config
	ErrInvalidMatchingMethod = errors.New("invalid matching method")
)

// Clock provides the current time. The backtester stamps output rows with
// creation times, injecting the clock keeps runs reproducible under test
type Clock interface {
	Now() time.Time
}

// RealClock is the wall clock
type RealClock struct{}

// Now returns the current wall time
func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same time
type FixedClock struct {
	Time time.Time
}

// Now returns the fixed time
func (c FixedClock) Now() time.Time { return c.Time }
