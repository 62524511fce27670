package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventtypes/event"
)

func tradeEvent(account, qty, price int64) *event.Event {
	return &event.Event{
		Type:           common.TradeEvent,
		Time:           time.Date(2018, 9, 7, 14, 0, 0, 0, time.UTC),
		Instrument:     "EURUSD",
		Account:        account,
		Quantity:       qty,
		Price:          price,
		UnitPrice:      10000,
		PriceIncrement: 10,
		Currency:       "USD",
		RateToUSD:      1,
	}
}

func marketEvent(bid, ask int64) *event.Event {
	return &event.Event{
		Type:           common.MarketDataEvent,
		Time:           time.Date(2018, 9, 7, 14, 0, 1, 0, time.UTC),
		Instrument:     "EURUSD",
		Bid:            bid,
		Ask:            ask,
		BidQty:         10000,
		AskQty:         10000,
		UnitPrice:      10000,
		PriceIncrement: 10,
		Currency:       "USD",
		RateToUSD:      1,
	}
}

func TestOnTrade(t *testing.T) {
	t.Parallel()
	p := Setup(common.FIFONetting, common.SideOfBook)

	_, err := p.OnTrade(nil)
	assert.ErrorIs(t, err, common.ErrNilEvent)

	_, err = p.OnTrade(marketEvent(1100000, 1100020))
	assert.ErrorIs(t, err, common.ErrRuntime)

	_, err = p.OnTrade(tradeEvent(1, 100, 1100000))
	require.NoError(t, err)
	assert.EqualValues(t, 100, p.NetOfAccount("EURUSD", 1))
	assert.EqualValues(t, 100, p.Inventory("USD").Contracts)
	assert.Len(t, p.Snapshots(), 1)
}

func TestClosedPositionMovesOut(t *testing.T) {
	t.Parallel()
	p := Setup(common.FIFONetting, common.SideOfBook)

	_, err := p.OnTrade(tradeEvent(1, 100, 1100000))
	require.NoError(t, err)
	require.Len(t, p.OpenPositions(), 1)
	key := p.OpenPositions()[0].Key

	_, err = p.OnTrade(tradeEvent(1, -100, 1100000))
	require.NoError(t, err)
	assert.Empty(t, p.OpenPositions())
	assert.Len(t, p.ClosedPositions(key), 1)
	assert.Zero(t, p.NetOfAccount("EURUSD", 1))
}

func TestUpdateMarksSideOfBook(t *testing.T) {
	t.Parallel()
	p := Setup(common.FIFONetting, common.SideOfBook)

	_, err := p.OnTrade(tradeEvent(1, 100, 1100000))
	require.NoError(t, err)
	_, err = p.OnTrade(tradeEvent(2, -100, 1100000))
	require.NoError(t, err)

	err = p.UpdateMarks(marketEvent(1100100, 1100120))
	require.NoError(t, err)

	// long marks at bid: (1100100-1100000)*100/(10000*1e6) = 1e-06
	// short marks at ask: (1100120-1100000)*-100/(10000*1e6) = -1.2e-06
	assert.InDelta(t, 1e-06-1.2e-06, p.UnrealisedPNL(), 1e-15)
}

func TestUpdateMarksMid(t *testing.T) {
	t.Parallel()
	p := Setup(common.FIFONetting, common.Mid)

	_, err := p.OnTrade(tradeEvent(1, 100, 1100000))
	require.NoError(t, err)

	err = p.UpdateMarks(marketEvent(1100100, 1100120))
	require.NoError(t, err)
	assert.InDelta(t, 1.1e-06, p.UnrealisedPNL(), 1e-15)

	ev := marketEvent(0, 1100120)
	assert.ErrorIs(t, p.UpdateMarks(ev), common.ErrRuntime)
}

func TestAccessorsStableAcrossRuns(t *testing.T) {
	t.Parallel()
	venues := []string{"chi", "ldn", "nyc", "sgp", "tok"}

	build := func() *Portfolio {
		p := Setup(common.FIFONetting, common.SideOfBook)
		for i, v := range venues {
			ev := tradeEvent(1, 100, 1100000+int64(i)*10)
			ev.Venue = v
			_, err := p.OnTrade(ev)
			require.NoError(t, err)
		}
		require.NoError(t, p.UpdateMarks(marketEvent(1100100, 1100120)))
		return p
	}

	// positions live in maps but must come back in key order so identical
	// runs emit identical orders and identical pnl bytes
	first := build()
	wantPNL := first.UnrealisedPNL()
	for run := 0; run < 50; run++ {
		p := build()
		open := p.OpenPositions()
		require.Len(t, open, len(venues))
		for i, pos := range open {
			assert.Equal(t, venues[i], pos.Key.Venue)
		}
		held := p.PositionsFor("EURUSD", 1)
		require.Len(t, held, len(venues))
		for i, pos := range held {
			assert.Equal(t, venues[i], pos.Key.Venue)
		}
		assert.Equal(t, wantPNL, p.UnrealisedPNL())
	}
}

func TestRealisedAggregates(t *testing.T) {
	t.Parallel()
	p := Setup(common.FIFONetting, common.SideOfBook)

	_, err := p.OnTrade(tradeEvent(1, 200, 1100000))
	require.NoError(t, err)
	res, err := p.OnTrade(tradeEvent(1, -200, 1100200))
	require.NoError(t, err)
	assert.InDelta(t, res.RealisedUSD, p.RealisedPNL(), 1e-12)
	assert.InDelta(t, res.RealisedUSD, p.CashBalance(), 1e-12)
}
