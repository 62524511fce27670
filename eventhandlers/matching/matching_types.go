package matching

import (
	"errors"

	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

var (
	errInconsistentBook = errors.New("matching engine called with inconsistent bid/ask")
	errZeroQuantity     = errors.New("order has no quantity")
	errNoDepthTables    = errors.New("depth tables are empty")
	errNoSpreadEntry    = errors.New("no spread to contracts entry")
)

// Engine converts a strategy order into zero or more fill events against the
// book carried on the triggering event. Zero fills means the order was
// rejected
type Engine interface {
	Match(ev *event.Event, o *order.Order) ([]event.Event, error)
}

// DepthTables hold the static per-instrument depth distribution model:
// a normalised depth curve keyed by pip offset, the absolute pip distance of
// each layer, and a spread to contracts scaling
type DepthTables struct {
	RelativeVolume  map[int64]float64
	PipDepth        []int64
	SpreadContracts map[int64]float64
}
