package portfolio

import (
	"errors"
	"time"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
)

var (
	errNotATrade        = errors.New("event is not a trade, hedge or internal fill")
	errNotMarketData    = errors.New("event is not market data")
	errInconsistentBook = errors.New("market data carries an empty or one sided book")
)

// Inventory aggregates holdings per unit-of-measure currency
type Inventory struct {
	Contracts int64
	Notional  float64
}

// TradeSnapshot is one entry of the append-only trade log
type TradeSnapshot struct {
	Time        time.Time
	Key         ledger.PositionKey
	Quantity    int64
	Price       int64
	RealisedUSD float64
	Net         int64
}

// Portfolio owns every position of a single simulation plan and aggregates
// realised and unrealised PnL across them
type Portfolio struct {
	netting        common.NettingType
	matchingMethod common.MatchingMethod

	positions       map[ledger.PositionKey]*ledger.Position
	closedPositions map[ledger.PositionKey][]*ledger.Position
	unrealised      map[ledger.PositionKey]float64

	inventory   map[string]*Inventory
	cashBalance float64
	realisedPNL float64
	snapshots   []TradeSnapshot
}
