package bbook

import (
	"fmt"
	"math"
	"sort"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/portfolio"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/base"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// Name is the strategy name
const Name = "bbook"

// Strategy retains a booking_risk fraction of every client trade on the
// hedge book. Account migration events re-target the retained exposure when
// an account's booking risk changes
type Strategy struct {
	base.Strategy
	bookingRisk float64

	// mirrored tracks the hedge quantity attributed to each client account
	// per instrument, it is what migrations rebalance against
	mirrored map[string]map[int64]int64
}

// Name returns the name of the strategy
func (s *Strategy) Name() string {
	return Name
}

// SetDefaults sets the custom settings to their default values
func (s *Strategy) SetDefaults() {
	s.bookingRisk = 1
	s.mirrored = make(map[string]map[int64]int64)
}

// SetCustomSettings applies booking_risk
func (s *Strategy) SetCustomSettings(params map[string]any) error {
	for k, v := range params {
		switch k {
		case "booking_risk":
			n, ok := v.(float64)
			if !ok || n < 0 {
				return fmt.Errorf("%w: %w: booking_risk %v", common.ErrConfig, base.ErrInvalidCustomSettings, v)
			}
			s.bookingRisk = n
		default:
			return fmt.Errorf("%w: %w: unrecognised key %v", common.ErrConfig, base.ErrInvalidCustomSettings, k)
		}
	}
	return nil
}

// riskFor resolves the booking risk of an account, preferring a target
// accounts override scoped to the instrument
func (s *Strategy) riskFor(account int64, instrument string) float64 {
	var fallback *float64
	for _, t := range s.TargetAccounts() {
		if t.AccountID != account || t.BookingRisk == nil {
			continue
		}
		if t.InstrumentID == instrument {
			return *t.BookingRisk
		}
		if t.InstrumentID == "" {
			fallback = t.BookingRisk
		}
	}
	if fallback != nil {
		return *fallback
	}
	return s.bookingRisk
}

// OnTrade mirrors booking_risk of the client quantity into the hedge book
func (s *Strategy) OnTrade(ev *event.Event, pf *portfolio.Portfolio) ([]order.Order, error) {
	if ev == nil {
		return nil, common.ErrNilEvent
	}
	if ev.Quantity == 0 || !s.IsTargetAccount(ev.Account, ev.Instrument) {
		return nil, nil
	}
	qty := int64(math.Round(s.riskFor(ev.Account, ev.Instrument) * float64(ev.Quantity)))
	if qty == 0 {
		return nil, nil
	}
	s.addMirrored(ev.Instrument, ev.Account, qty)

	o := order.Order{
		Time:        ev.Time,
		Instrument:  ev.Instrument,
		Account:     s.LmaxAccount(),
		Quantity:    qty,
		Type:        common.MarketOrder,
		TimeInForce: order.GoodUntilCancel,
		Signal:      order.SignalBBook,
		EventType:   common.InternalEvent,
	}
	return []order.Order{o}, nil
}

// OnMarketData defers to the attached exit strategy
func (s *Strategy) OnMarketData(ev *event.Event, pf *portfolio.Portfolio) ([]order.Order, error) {
	return s.ExitOrders(ev, pf), nil
}

// OnAccountMigration closes the gap between the exposure retained for the
// account and what its new booking risk implies, at the resting side of the
// book
func (s *Strategy) OnAccountMigration(ev *event.Event, pf *portfolio.Portfolio) ([]order.Order, error) {
	if ev == nil {
		return nil, common.ErrNilEvent
	}
	instruments := []string{ev.Instrument}
	if ev.Instrument == "" {
		instruments = instruments[:0]
		for instr := range s.mirrored {
			instruments = append(instruments, instr)
		}
		// map order varies between runs, orders must not
		sort.Strings(instruments)
	}

	var out []order.Order
	for _, instr := range instruments {
		clientNet := pf.NetOfAccount(instr, ev.Account)
		desired := int64(math.Round(ev.BookingRisk * float64(clientNet)))
		delta := desired - s.mirroredFor(instr, ev.Account)
		if delta == 0 {
			continue
		}
		s.addMirrored(instr, ev.Account, delta)
		out = append(out, order.Order{
			Time:        ev.Time,
			Instrument:  instr,
			Account:     s.LmaxAccount(),
			Quantity:    delta,
			Type:        common.MigrationOrder,
			TimeInForce: order.GoodUntilCancel,
			Signal:      order.SignalMigration,
			EventType:   common.InternalEvent,
		})
	}
	return out, nil
}

func (s *Strategy) addMirrored(instrument string, account, qty int64) {
	m := s.mirrored[instrument]
	if m == nil {
		m = make(map[int64]int64)
		s.mirrored[instrument] = m
	}
	m[account] += qty
	if m[account] == 0 {
		delete(m, account)
	}
}

func (s *Strategy) mirroredFor(instrument string, account int64) int64 {
	return s.mirrored[instrument][account]
}
