package portfolio

import (
	"fmt"
	"sort"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
)

// Setup creates an empty portfolio using the given netting discipline for
// every position it opens
func Setup(netting common.NettingType, matchingMethod common.MatchingMethod) *Portfolio {
	return &Portfolio{
		netting:         netting,
		matchingMethod:  matchingMethod,
		positions:       make(map[ledger.PositionKey]*ledger.Position),
		closedPositions: make(map[ledger.PositionKey][]*ledger.Position),
		unrealised:      make(map[ledger.PositionKey]float64),
		inventory:       make(map[string]*Inventory),
	}
}

// Reset returns the portfolio to its default state
func (p *Portfolio) Reset() {
	*p = *Setup(p.netting, p.matchingMethod)
}

// OnTrade routes a trade, hedge or internal fill into the right position,
// realises PnL under the position's netting engine and refreshes the
// portfolio level aggregates
func (p *Portfolio) OnTrade(ev *event.Event) (ledger.TradeResult, error) {
	if ev == nil {
		return ledger.TradeResult{}, common.ErrNilEvent
	}
	if ev.Type != common.TradeEvent && !ev.IsFill() {
		return ledger.TradeResult{}, fmt.Errorf("%w: %w: %v", common.ErrRuntime, errNotATrade, ev.Type)
	}

	key := ledger.PositionKey{Venue: ev.Venue, Instrument: ev.Instrument, Account: ev.Account}
	pos, err := p.position(key, ev)
	if err != nil {
		return ledger.TradeResult{}, err
	}

	res, err := pos.OnTrade(ev.Quantity, ev.Price, ev.RateToUSD, ev.Time)
	if err != nil {
		return res, err
	}

	p.realisedPNL += res.RealisedUSD
	p.cashBalance += res.RealisedUSD

	inv := p.inventory[pos.Currency]
	if inv == nil {
		inv = &Inventory{}
		p.inventory[pos.Currency] = inv
	}
	inv.Contracts += ev.Quantity
	inv.Notional += float64(ev.Quantity) / float64(common.QuantityScale) * float64(pos.UnitPrice)

	p.snapshots = append(p.snapshots, TradeSnapshot{
		Time:        ev.Time,
		Key:         key,
		Quantity:    ev.Quantity,
		Price:       ev.Price,
		RealisedUSD: res.RealisedUSD,
		Net:         pos.NetPosition(),
	})

	if pos.NetPosition() == 0 {
		delete(p.positions, key)
		delete(p.unrealised, key)
		p.closedPositions[key] = append(p.closedPositions[key], pos)
	}
	return res, nil
}

// UpdateMarks recomputes the unrealised PnL of every open position on the
// event's instrument. Longs mark against the bid, shorts against the ask,
// unless the portfolio is configured for mid marking
func (p *Portfolio) UpdateMarks(ev *event.Event) error {
	if ev == nil {
		return common.ErrNilEvent
	}
	if ev.Type != common.MarketDataEvent {
		return fmt.Errorf("%w: %w: %v", common.ErrRuntime, errNotMarketData, ev.Type)
	}
	if !ev.HasBook() {
		return fmt.Errorf("%w: %w", common.ErrRuntime, errInconsistentBook)
	}
	for key, pos := range p.positions {
		if key.Instrument != ev.Instrument {
			continue
		}
		var mark int64
		switch {
		case p.matchingMethod == common.Mid:
			mark = ev.MidPrice()
		case pos.NetPosition() > 0:
			mark = ev.Bid
		default:
			mark = ev.Ask
		}
		p.unrealised[key] = pos.UnrealisedUSD(mark, ev.RateToUSD)
	}
	return nil
}

// NetOfAccount returns the net signed quantity held for an account on an
// instrument, summed across venues
func (p *Portfolio) NetOfAccount(instrument string, account int64) int64 {
	var net int64
	for key, pos := range p.positions {
		if key.Instrument == instrument && key.Account == account {
			net += pos.NetPosition()
		}
	}
	return net
}

// PositionsFor returns the open positions held by an account on an
// instrument, across venues
func (p *Portfolio) PositionsFor(instrument string, account int64) []*ledger.Position {
	var out []*ledger.Position
	for _, key := range p.sortedKeys() {
		if key.Instrument == instrument && key.Account == account {
			out = append(out, p.positions[key])
		}
	}
	return out
}

// OpenPositions returns every open position
func (p *Portfolio) OpenPositions() []*ledger.Position {
	out := make([]*ledger.Position, 0, len(p.positions))
	for _, key := range p.sortedKeys() {
		out = append(out, p.positions[key])
	}
	return out
}

// ClosedPositions returns the retired position history for a key
func (p *Portfolio) ClosedPositions(key ledger.PositionKey) []*ledger.Position {
	return p.closedPositions[key]
}

// RealisedPNL returns the aggregate realised PnL in USD
func (p *Portfolio) RealisedPNL() float64 {
	return p.realisedPNL
}

// UnrealisedPNL returns the aggregate unrealised PnL in USD as of the last
// market data refresh
func (p *Portfolio) UnrealisedPNL() float64 {
	// float addition is order sensitive, sum in key order so identical
	// runs produce identical bytes
	var total float64
	for _, key := range p.sortedKeys() {
		total += p.unrealised[key]
	}
	return total
}

// CashBalance returns realised PnL settled into cash
func (p *Portfolio) CashBalance() float64 {
	return p.cashBalance
}

// Inventory returns the aggregate inventory for a unit-of-measure currency
func (p *Portfolio) Inventory(currency string) Inventory {
	if inv := p.inventory[currency]; inv != nil {
		return *inv
	}
	return Inventory{}
}

// Snapshots returns the append-only trade log
func (p *Portfolio) Snapshots() []TradeSnapshot {
	return p.snapshots
}

// sortedKeys returns the open position keys in a stable order
func (p *Portfolio) sortedKeys() []ledger.PositionKey {
	keys := make([]ledger.PositionKey, 0, len(p.positions))
	for key := range p.positions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Venue != keys[j].Venue {
			return keys[i].Venue < keys[j].Venue
		}
		if keys[i].Instrument != keys[j].Instrument {
			return keys[i].Instrument < keys[j].Instrument
		}
		return keys[i].Account < keys[j].Account
	})
	return keys
}

func (p *Portfolio) position(key ledger.PositionKey, ev *event.Event) (*ledger.Position, error) {
	if pos, ok := p.positions[key]; ok {
		return pos, nil
	}
	pos, err := ledger.NewPosition(key, ev.UnitPrice, ev.PriceIncrement, ev.Currency, p.netting)
	if err != nil {
		return nil, err
	}
	p.positions[key] = pos
	return pos, nil
}
