package data

import (
	"errors"
	"time"
)

// Stream types supported by the builder
const (
	// StreamSnapshot densifies the book at a strict cadence
	StreamSnapshot = "event_stream_snapshot"
	// StreamSample densifies the book by stratified probabilistic sampling
	StreamSample = "event_stream_sample"
)

var (
	// ErrInvalidStreamType is returned when the stream type is not recognised
	ErrInvalidStreamType = errors.New("unrecognised event stream type")
	// ErrInvalidTimezone is returned when the exchange timezone cannot be loaded
	ErrInvalidTimezone = errors.New("unknown exchange timezone")
	// ErrInvalidClockTime is returned when a HH:MM field cannot be parsed
	ErrInvalidClockTime = errors.New("invalid HH:MM time")
	// ErrNoTicks is returned when a session holds no raw book ticks to densify
	ErrNoTicks = errors.New("no top of book ticks for session")
	// ErrInvalidSampleRate is returned when the sample rate is outside (0, 1]
	ErrInvalidSampleRate = errors.New("sample rate must be in (0, 1]")
)

// TOBTick is one raw top of book refresh as loaded from historical data
type TOBTick struct {
	Time   time.Time
	Bid    int64
	Ask    int64
	BidQty int64
	AskQty int64
}

// InstrumentRef is the reference data stamped onto every densified market
// data event
type InstrumentRef struct {
	Instrument     string
	UnitPrice      int64
	Currency       string
	RateToUSD      float64
	PriceIncrement int64
}

// StreamConfig drives densification and lifecycle flagging of a session's
// event stream
type StreamConfig struct {
	// Type selects strict or probabilistic densification
	Type string
	// Cadence between synthetic book snapshots, one second when zero
	Cadence time.Duration
	// SampleRate is the per-slot emission probability for StreamSample
	SampleRate float64
	// Seed fixes the sampling RNG so runs reproduce byte for byte
	Seed int64
	// Timezone is the exchange's IANA timezone, e.g. America/New_York
	Timezone string
	// CloseTime is the exchange close anchoring the 24h session, HH:MM
	CloseTime string
	// ExclusionStart/ExclusionEnd bound the untrusted window, HH:MM local
	ExclusionStart string
	ExclusionEnd   string
	// GFDWindow is how long before close events are flagged good-for-day,
	// five minutes when zero
	GFDWindow time.Duration
}
