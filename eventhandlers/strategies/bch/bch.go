package bch

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
const Name = "bch"

// Strategy hedges when the target account book reaches a directional
// consensus. Three predicates gate an open: the aggregate client net clears
// the trigger size, the majority side holds the consensus fraction of client
// quantity, and no single account dominates its side. Any buffered predicate
// failing releases an open hedge
type Strategy struct {
	base.Strategy
	minConsensus    float64
	consensusBuffer float64
	maxRatio        float64
	ratioBuffer     float64
	trigger         int64
	positionBuffer  float64
	// followClient is read from config but not acted on
	followClient bool
}

type bookState struct {
	total    int64 // signed aggregate client net
	absTotal int64
	majority int64 // sign of the majority side
	longAbs  int64
	shortAbs int64
	longMax  int64
	shortMax int64
}

// sideAbs returns the absolute client quantity held on a side
func (b bookState) sideAbs(side int64) int64 {
	if side > 0 {
		return b.longAbs
	}
	return b.shortAbs
}

// sideMaxShare returns the largest single account fraction of a side
func (b bookState) sideMaxShare(side int64) float64 {
	abs, max := b.longAbs, b.longMax
	if side < 0 {
		abs, max = b.shortAbs, b.shortMax
	}
	if abs == 0 {
		return 0
	}
	return float64(max) / float64(abs)
}

// Name returns the name of the strategy
func (s *Strategy) Name() string {
	return Name
}

// SetDefaults sets the custom settings to their default values
func (s *Strategy) SetDefaults() {
	s.minConsensus = 0.6
	s.consensusBuffer = 0.8
	s.maxRatio = 0.5
	s.ratioBuffer = 1.2
	s.trigger = 3 * common.QuantityScale
	s.positionBuffer = 0.2
	s.followClient = false
}

// SetCustomSettings applies the consensus, ratio and trigger parameters
func (s *Strategy) SetCustomSettings(params map[string]any) error {
	for k, v := range params {
		if k == "follow_client" {
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("%w: %w: follow_client %v", common.ErrConfig, base.ErrInvalidCustomSettings, v)
			}
			s.followClient = b
			continue
		}
		n, ok := v.(float64)
		if !ok {
			return fmt.Errorf("%w: %w: %v value %v", common.ErrConfig, base.ErrInvalidCustomSettings, k, v)
		}
		switch k {
		case "min_consensus":
			s.minConsensus = n
		case "consensus_buffer":
			s.consensusBuffer = n
		case "max_ratio":
			s.maxRatio = n
		case "ratio_buffer":
			s.ratioBuffer = n
		case "position_trigger":
			s.trigger = int64(n * float64(common.QuantityScale))
		case "position_buffer":
			s.positionBuffer = n
		default:
			return fmt.Errorf("%w: %w: unrecognised key %v", common.ErrConfig, base.ErrInvalidCustomSettings, k)
		}
	}
	return nil
}

// OnTrade recomputes the consensus predicates over the target account book
// and opens or releases the hedge accordingly
func (s *Strategy) OnTrade(ev *event.Event, pf *portfolio.Portfolio) ([]order.Order, error) {
	if ev == nil {
		return nil, common.ErrNilEvent
	}
	if !s.IsTargetAccount(ev.Account, ev.Instrument) {
		return nil, nil
	}

	book := s.observe(ev.Instrument, pf)
	lmaxNet := pf.NetOfAccount(ev.Instrument, s.LmaxAccount())
	size := int64(math.Round(float64(s.trigger) * s.positionBuffer))
	if size == 0 {
		return nil, nil
	}

	if lmaxNet != 0 {
		// the hedge opposes the client side that justified it, release when
		// the buffered predicates no longer hold for that side
		supported := -common.Sign(lmaxNet)
		if !s.holdsFor(book, supported, s.consensusBuffer, s.ratioBuffer) {
			qty := -common.Sign(lmaxNet) * common.Min64(common.Abs(lmaxNet), size)
			return []order.Order{s.marketOrder(ev, qty, order.SignalBCHClose)}, nil
		}
	}

	if !s.holdsFor(book, book.majority, 1, 1) {
		return nil, nil
	}
	signalSide := -book.majority
	if lmaxNet != 0 && common.Sign(lmaxNet) != signalSide {
		return nil, nil
	}
	return []order.Order{s.marketOrder(ev, signalSide * size, order.SignalBCHOpen)}, nil
}

// OnMarketData defers to the attached exit strategy
func (s *Strategy) OnMarketData(ev *event.Event, pf *portfolio.Portfolio) ([]order.Order, error) {
	return s.ExitOrders(ev, pf), nil
}

// observe collects the per-account client nets on the instrument
func (s *Strategy) observe(instrument string, pf *portfolio.Portfolio) bookState {
	var st bookState
	for _, t := range s.TargetAccounts() {
		if t.InstrumentID != "" && t.InstrumentID != instrument {
			continue
		}
		net := pf.NetOfAccount(instrument, t.AccountID)
		st.total += net
		st.absTotal += common.Abs(net)
		if net > 0 {
			st.longAbs += net
			if net > st.longMax {
				st.longMax = net
			}
		} else if net < 0 {
			st.shortAbs += -net
			if -net > st.shortMax {
				st.shortMax = -net
			}
		}
	}
	st.majority = 1
	if st.shortAbs > st.longAbs {
		st.majority = -1
	}
	return st
}

// holdsFor evaluates the three predicates for one side of the client book,
// scaled by the given buffer factors
func (s *Strategy) holdsFor(book bookState, side int64, consensusBuffer, ratioBuffer float64) bool {
	if book.absTotal == 0 || side == 0 {
		return false
	}
	netOK := common.Sign(book.total) == side && common.Abs(book.total) >= s.trigger
	consensusOK := float64(book.sideAbs(side))/float64(book.absTotal) >= s.minConsensus*consensusBuffer
	ratioOK := book.sideMaxShare(side) < s.maxRatio*ratioBuffer
	return netOK && consensusOK && ratioOK
}

func (s *Strategy) marketOrder(ev *event.Event, qty int64, signal string) order.Order {
	return order.Order{
		Time:        ev.Time,
		Instrument:  ev.Instrument,
		Account:     s.LmaxAccount(),
		Quantity:    qty,
		Type:        common.MarketOrder,
		TimeInForce: order.GoodUntilCancel,
		Signal:      signal,
		EventType:   common.HedgeEvent,
	}
}
