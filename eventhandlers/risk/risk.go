package risk

import (
	"errors"
	"fmt"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/portfolio"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// ErrExceedsPositionLimit is returned when an order would push the hedge
// book past the configured cap. The offending order is dropped, the plan
// carries on
var ErrExceedsPositionLimit = errors.New("order exceeds position limit")

// Handler assesses strategy orders before they reach the matching engine
type Handler interface {
	EvaluateOrder(o *order.Order, p *portfolio.Portfolio) error
}

// Risk enforces the per-plan position cap in hundredths of a contract.
// A zero cap disables the check
type Risk struct {
	MaxPositionSize int64
}

// EvaluateOrder implements Handler
func (r *Risk) EvaluateOrder(o *order.Order, p *portfolio.Portfolio) error {
	if o == nil || p == nil {
		return common.ErrNilArguments
	}
	if r.MaxPositionSize <= 0 {
		return nil
	}
	projected := p.NetOfAccount(o.Instrument, o.Account) + o.Quantity
	if common.Abs(projected) > r.MaxPositionSize {
		return fmt.Errorf("%w: projected %v over cap %v on %v",
			ErrExceedsPositionLimit, projected, r.MaxPositionSize, o.Instrument)
	}
	return nil
}
