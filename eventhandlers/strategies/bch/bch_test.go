package bch

import (
	"testing"
	"time"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/portfolio"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/base"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lmaxAccount = int64(9000)
	instrument  = "eur-usd"
)

var clientAccounts = []int64{1001, 1002, 1003}

func newStrategy(t *testing.T, params map[string]any) *Strategy {
	t.Helper()
	s := &Strategy{}
	s.SetDefaults()
	if params != nil {
		require.NoError(t, s.SetCustomSettings(params))
	}
	s.SetLmaxAccount(lmaxAccount)
	targets := make([]base.TargetAccount, 0, len(clientAccounts))
	for _, id := range clientAccounts {
		targets = append(targets, base.TargetAccount{AccountID: id})
	}
	s.SetTargetAccounts(targets)
	return s
}

func clientTrade(account, qty int64) *event.Event {
	return &event.Event{
		Type:       common.TradeEvent,
		Time:       time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC),
		Instrument: instrument,
		Account:    account,
		Quantity:   qty,
		Price:      1_100_000,
		UnitPrice:  10_000,
		Currency:   "EUR",
		RateToUSD:  1,
	}
}

func lmaxFill(qty int64) *event.Event {
	ev := clientTrade(lmaxAccount, qty)
	ev.Type = common.HedgeEvent
	return ev
}

// feed applies the trade to the portfolio and then shows it to the strategy,
// the order the driver does it in
func feed(t *testing.T, s *Strategy, pf *portfolio.Portfolio, ev *event.Event) []order.Order {
	t.Helper()
	_, err := pf.OnTrade(ev)
	require.NoError(t, err)
	orders, err := s.OnTrade(ev, pf)
	require.NoError(t, err)
	return orders
}

func TestSetCustomSettings(t *testing.T) {
	t.Parallel()
	s := &Strategy{}
	s.SetDefaults()
	err := s.SetCustomSettings(map[string]any{
		"min_consensus":    0.7,
		"consensus_buffer": 0.9,
		"max_ratio":        0.4,
		"ratio_buffer":     1.1,
		"position_trigger": 5.0,
		"position_buffer":  0.25,
		"follow_client":    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.7, s.minConsensus)
	assert.Equal(t, int64(5*common.QuantityScale), s.trigger)
	assert.True(t, s.followClient)

	err = s.SetCustomSettings(map[string]any{"follow_client": "yes"})
	assert.ErrorIs(t, err, base.ErrInvalidCustomSettings)
	err = s.SetCustomSettings(map[string]any{"momentum": 1.0})
	assert.ErrorIs(t, err, base.ErrInvalidCustomSettings)
}

func TestOnTradeOpensAgainstConsensus(t *testing.T) {
	t.Parallel()
	s := newStrategy(t, nil)
	pf := portfolio.Setup(common.FIFONetting, common.SideOfBook)

	// one buyer alone clears neither net nor ratio
	orders := feed(t, s, pf, clientTrade(clientAccounts[0], 11_000))
	assert.Empty(t, orders)
	orders = feed(t, s, pf, clientTrade(clientAccounts[1], 11_000))
	assert.Empty(t, orders)

	// the third buyer completes the consensus, hedge opposes the book
	orders = feed(t, s, pf, clientTrade(clientAccounts[2], 11_000))
	require.Len(t, orders, 1)
	assert.Equal(t, int64(-60), orders[0].Quantity)
	assert.Equal(t, lmaxAccount, orders[0].Account)
	assert.Equal(t, common.MarketOrder, orders[0].Type)
	assert.Equal(t, order.SignalBCHOpen, orders[0].Signal)
	assert.Equal(t, common.HedgeEvent, orders[0].EventType)
}

func TestOnTradeReleasesHedgeLeftAgainstFlippedBook(t *testing.T) {
	t.Parallel()
	s := newStrategy(t, nil)
	pf := portfolio.Setup(common.FIFONetting, common.SideOfBook)

	// a long hedge supported a short client consensus, the book flipping
	// long invalidates it immediately
	_, err := pf.OnTrade(lmaxFill(60))
	require.NoError(t, err)

	orders := feed(t, s, pf, clientTrade(clientAccounts[0], 11_000))
	require.Len(t, orders, 1)
	assert.Equal(t, int64(-60), orders[0].Quantity)
	assert.Equal(t, order.SignalBCHClose, orders[0].Signal)
}

func TestOnTradeRatioPredicateBlocksDominatedBook(t *testing.T) {
	t.Parallel()
	s := newStrategy(t, map[string]any{"ratio_buffer": 1.0})
	pf := portfolio.Setup(common.FIFONetting, common.SideOfBook)

	// a single account holding the whole long side fails max_ratio
	orders := feed(t, s, pf, clientTrade(clientAccounts[0], 33_000))
	assert.Empty(t, orders)
}

func TestOnTradeReleasesWhenBufferedConsensusFails(t *testing.T) {
	t.Parallel()
	s := newStrategy(t, nil)
	pf := portfolio.Setup(common.FIFONetting, common.SideOfBook)

	for _, id := range clientAccounts {
		feed(t, s, pf, clientTrade(id, 11_000))
	}
	_, err := pf.OnTrade(lmaxFill(-60))
	require.NoError(t, err)

	// two accounts flip short, long consensus drops under the buffered floor
	feed(t, s, pf, clientTrade(clientAccounts[0], -22_000))
	orders := feed(t, s, pf, clientTrade(clientAccounts[1], -22_000))
	require.Len(t, orders, 1)
	assert.Equal(t, int64(60), orders[0].Quantity)
	assert.Equal(t, order.SignalBCHClose, orders[0].Signal)
}

func TestOnTradeHoldsInsideBufferBand(t *testing.T) {
	t.Parallel()
	s := newStrategy(t, nil)
	pf := portfolio.Setup(common.FIFONetting, common.SideOfBook)

	for _, id := range clientAccounts {
		feed(t, s, pf, clientTrade(id, 11_000))
	}
	_, err := pf.OnTrade(lmaxFill(-60))
	require.NoError(t, err)

	// one account trims, consensus stays above 0.6*0.8 so the hedge holds
	// and no fresh open fires against the reduced book either
	orders := feed(t, s, pf, clientTrade(clientAccounts[0], -5_000))
	for _, o := range orders {
		assert.NotEqual(t, order.SignalBCHClose, o.Signal)
	}
}
