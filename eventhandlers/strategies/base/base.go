package base

import (
	"errors"

	"github.com/quantfx/fxbacktester/eventhandlers/exits"
	"github.com/quantfx/fxbacktester/eventhandlers/portfolio"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

var (
	// ErrStrategyNotFound is returned when an unknown strategy name is configured
	ErrStrategyNotFound = errors.New("strategy not found")
	// ErrInvalidCustomSettings is returned when strategy parameters cannot be applied
	ErrInvalidCustomSettings = errors.New("invalid strategy parameters")
)

// TargetAccount is one row of the target accounts table. Risk overrides are
// optional and may be scoped to a single instrument
type TargetAccount struct {
	AccountID           int64
	InstrumentID        string
	BookingRisk         *float64
	InternalisationRisk *float64
}

// Strategy is the base implementation shared by every trading strategy. It
// owns the hedge account identity and the attached exit strategy, and runs
// the exit over the hedge book on every market data tick
type Strategy struct {
	lmaxAccount int64
	exit        exits.Handler
	targets     []TargetAccount
}

// SetLmaxAccount assigns the hedge account orders are booked against
func (s *Strategy) SetLmaxAccount(id int64) {
	s.lmaxAccount = id
}

// LmaxAccount returns the hedge account id
func (s *Strategy) LmaxAccount() int64 {
	return s.lmaxAccount
}

// SetExit attaches the exit strategy invoked on market data
func (s *Strategy) SetExit(e exits.Handler) {
	s.exit = e
}

// Exit returns the attached exit strategy
func (s *Strategy) Exit() exits.Handler {
	return s.exit
}

// SetTargetAccounts assigns the client accounts this strategy observes
func (s *Strategy) SetTargetAccounts(t []TargetAccount) {
	s.targets = t
}

// TargetAccounts returns the observed client accounts
func (s *Strategy) TargetAccounts() []TargetAccount {
	return s.targets
}

// IsTargetAccount reports whether an account/instrument pair is in scope
func (s *Strategy) IsTargetAccount(account int64, instrument string) bool {
	for i := range s.targets {
		if s.targets[i].AccountID != account {
			continue
		}
		if s.targets[i].InstrumentID == "" || s.targets[i].InstrumentID == instrument {
			return true
		}
	}
	return false
}

// OnAccountMigration is a no-op for strategies that do not book risk
func (s *Strategy) OnAccountMigration(*event.Event, *portfolio.Portfolio) ([]order.Order, error) {
	return nil, nil
}

// ExitOrders runs the attached exit strategy over every hedge position on the
// event's instrument. Longs are judged against the bid, shorts against the
// ask
func (s *Strategy) ExitOrders(ev *event.Event, pf *portfolio.Portfolio) []order.Order {
	if s.exit == nil || ev == nil || !ev.HasBook() {
		return nil
	}
	var out []order.Order
	for _, pos := range pf.PositionsFor(ev.Instrument, s.lmaxAccount) {
		tickPrice := ev.Bid
		if pos.NetPosition() < 0 {
			tickPrice = ev.Ask
		}
		out = append(out, s.exit.GenerateExitOrders(ev, s.lmaxAccount, pos.AverageOpenPrice(), tickPrice, pos)...)
	}
	return out
}
