package internalisation

import (
	"fmt"
	"math"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/portfolio"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/base"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

// Name is the strategy name
const Name = "internalisation"

// Lifespan values bounding how long internalised positions may be held
const (
	LifespanNone = ""
	LifespanGFD  = "gfd"
	LifespanGFW  = "gfw"
)

// Strategy takes the other side of client flow up to a position cap rather
// than hedging it out. At the configured lifespan boundary the book is
// flattened
type Strategy struct {
	base.Strategy
	positionCap  int64
	capBuffer    float64
	allowPartial bool
	lifespan     string
}

// Name returns the name of the strategy
func (s *Strategy) Name() string {
	return Name
}

// SetDefaults sets the custom settings to their default values
func (s *Strategy) SetDefaults() {
	s.positionCap = 100 * common.QuantityScale
	s.capBuffer = 1
	s.allowPartial = true
	s.lifespan = LifespanNone
}

// SetCustomSettings applies position_cap (contracts), cap_buffer_ratio,
// allow_partial_fills and position_lifespan
func (s *Strategy) SetCustomSettings(params map[string]any) error {
	for k, v := range params {
		switch k {
		case "position_cap":
			n, ok := v.(float64)
			if !ok || n <= 0 {
				return fmt.Errorf("%w: %w: position_cap %v", common.ErrConfig, base.ErrInvalidCustomSettings, v)
			}
			s.positionCap = int64(n * float64(common.QuantityScale))
		case "cap_buffer_ratio":
			n, ok := v.(float64)
			if !ok || n <= 0 {
				return fmt.Errorf("%w: %w: cap_buffer_ratio %v", common.ErrConfig, base.ErrInvalidCustomSettings, v)
			}
			s.capBuffer = n
		case "allow_partial_fills":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("%w: %w: allow_partial_fills %v", common.ErrConfig, base.ErrInvalidCustomSettings, v)
			}
			s.allowPartial = b
		case "position_lifespan":
			l, ok := v.(string)
			if !ok || (l != LifespanNone && l != LifespanGFD && l != LifespanGFW) {
				return fmt.Errorf("%w: %w: position_lifespan %v", common.ErrConfig, base.ErrInvalidCustomSettings, v)
			}
			s.lifespan = l
		default:
			return fmt.Errorf("%w: %w: unrecognised key %v", common.ErrConfig, base.ErrInvalidCustomSettings, k)
		}
	}
	return nil
}

// riskFor resolves how much of an account's flow is internalised, preferring
// a target accounts override scoped to the instrument
func (s *Strategy) riskFor(account int64, instrument string) float64 {
	var fallback *float64
	for _, t := range s.TargetAccounts() {
		if t.AccountID != account || t.InternalisationRisk == nil {
			continue
		}
		if t.InstrumentID == instrument {
			return *t.InternalisationRisk
		}
		if t.InstrumentID == "" {
			fallback = t.InternalisationRisk
		}
	}
	if fallback != nil {
		return *fallback
	}
	return 1
}

// OnTrade internalises client flow while the hedge book stays inside the
// buffered cap, clipping to the remaining capacity when partial fills are
// allowed
func (s *Strategy) OnTrade(ev *event.Event, pf *portfolio.Portfolio) ([]order.Order, error) {
	if ev == nil {
		return nil, common.ErrNilEvent
	}
	if ev.Quantity == 0 || !s.IsTargetAccount(ev.Account, ev.Instrument) {
		return nil, nil
	}

	qty := -int64(math.Round(s.riskFor(ev.Account, ev.Instrument) * float64(ev.Quantity)))
	if qty == 0 {
		return nil, nil
	}
	lmaxNet := pf.NetOfAccount(ev.Instrument, s.LmaxAccount())
	cap := int64(float64(s.positionCap) * s.capBuffer)

	if common.Abs(lmaxNet+qty) > cap {
		if !s.allowPartial {
			return nil, nil
		}
		// clip to the capacity left on the order's side of the cap
		room := cap - common.Sign(qty)*lmaxNet
		if room <= 0 {
			return nil, nil
		}
		qty = common.Sign(qty) * common.Min64(common.Abs(qty), room)
	}

	o := order.Order{
		Time:        ev.Time,
		Instrument:  ev.Instrument,
		Account:     s.LmaxAccount(),
		Quantity:    qty,
		Type:        common.MarketOrder,
		TimeInForce: order.GoodUntilCancel,
		Signal:      order.SignalInternalise,
		EventType:   common.InternalEvent,
	}
	return []order.Order{o}, nil
}

// OnMarketData flattens at a lifespan boundary, otherwise defers to the
// attached exit strategy
func (s *Strategy) OnMarketData(ev *event.Event, pf *portfolio.Portfolio) ([]order.Order, error) {
	if ev == nil {
		return nil, common.ErrNilEvent
	}
	if (s.lifespan == LifespanGFD && ev.GFD) || (s.lifespan == LifespanGFW && ev.GFW) {
		net := pf.NetOfAccount(ev.Instrument, s.LmaxAccount())
		if net == 0 {
			return nil, nil
		}
		o := order.Order{
			Time:        ev.Time,
			Instrument:  ev.Instrument,
			Account:     s.LmaxAccount(),
			Quantity:    -net,
			Type:        common.MarketOrder,
			TimeInForce: order.GoodUntilCancel,
			Signal:      order.SignalLifespan,
			EventType:   common.HedgeEvent,
		}
		return []order.Order{o}, nil
	}
	return s.ExitOrders(ev, pf), nil
}
