package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/quantfx/fxbacktester/common"
)

var (
	// ErrZipLengthMismatch is returned when zip expansion sees unequal lists
	ErrZipLengthMismatch = errors.New("zip constructor requires equal list lengths")
	// ErrUnknownConstructor is returned for constructors other than zip/product
	ErrUnknownConstructor = errors.New("unknown parameter constructor")
	// ErrNoInstruments is returned when a simulation names no instruments and
	// does not load them from snapshot
	ErrNoInstruments = errors.New("simulation has no instruments")
	// ErrNoTargetAccounts is returned when a simulation has no target accounts
	// and does not load them from snapshot
	ErrNoTargetAccounts = errors.New("simulation has no target accounts")
	// ErrUnknownSimulation is returned when --sims names an absent label
	ErrUnknownSimulation = errors.New("unknown simulation label")
	// ErrOrderOutsideUniverse is returned when a strategy emits an order for
	// an instrument the plan does not trade
	ErrOrderOutsideUniverse = errors.New("order instrument outside plan universe")
	// ErrInvalidFilter is returned when an event filter string does not compile
	ErrInvalidFilter = errors.New("invalid event filter expression")
)

// CancelledError marks a plan stopped between two input events. Partial
// results of a cancelled plan are discarded
type CancelledError struct {
	PlanHash uint64
	At       time.Time
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("plan %016x cancelled at event time %v", e.PlanHash, e.At.UTC())
}

// Unwrap ties the error into the cancelled kind
func (e *CancelledError) Unwrap() error {
	return common.ErrCancelled
}
