package statistics

import (
	"testing"
	"time"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var session = time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC)

func tradeEvent(at time.Time, qty int64) *event.Event {
	return &event.Event{
		Type:           common.TradeEvent,
		Time:           at,
		Instrument:     "eur-usd",
		Account:        1001,
		Quantity:       qty,
		Price:          1_100_000,
		UnitPrice:      10_000,
		TradingSession: session,
	}
}

func marketEvent(at time.Time) *event.Event {
	return &event.Event{
		Type:           common.MarketDataEvent,
		Time:           at,
		Instrument:     "eur-usd",
		Bid:            1_099_990,
		Ask:            1_100_010,
		TradingSession: session,
	}
}

func TestSetup(t *testing.T) {
	t.Parallel()
	_, err := Setup("per_tick", false)
	assert.ErrorIs(t, err, ErrInvalidLevel)
	assert.ErrorIs(t, err, common.ErrConfig)

	s, err := Setup(MarkToMarket, false)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestOnEventLevels(t *testing.T) {
	t.Parallel()
	at := time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC)

	s, err := Setup(TradesOnly, false)
	require.NoError(t, err)
	require.NoError(t, s.OnEvent(marketEvent(at), ledger.TradeResult{}, 0))
	require.NoError(t, s.OnEvent(tradeEvent(at, 100), ledger.TradeResult{RealisedUSD: 2}, 0))
	require.Len(t, s.Records(), 1)
	assert.Equal(t, "trade", s.Records()[0].EventType)
	assert.Equal(t, 10_000.0, s.Records()[0].NotionalTraded)

	m, err := Setup(MarkToMarket, false)
	require.NoError(t, err)
	require.NoError(t, m.OnEvent(marketEvent(at), ledger.TradeResult{}, -1.5))
	require.NoError(t, m.OnEvent(tradeEvent(at, 100), ledger.TradeResult{RealisedUSD: 2}, -1.5))
	require.Len(t, m.Records(), 2)
	assert.Equal(t, 0.0, m.Records()[0].NotionalTraded)
	assert.Equal(t, -1.5, m.Records()[0].NetRPNL)
	assert.Equal(t, 0.5, m.Records()[1].NetRPNL)

	assert.ErrorIs(t, m.OnEvent(nil, ledger.TradeResult{}, 0), common.ErrNilEvent)
}

func TestOnEventCumulativeDaily(t *testing.T) {
	t.Parallel()
	s, err := Setup(TradesOnly, true)
	require.NoError(t, err)
	at := time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.OnEvent(tradeEvent(at, 100), ledger.TradeResult{RealisedUSD: 2}, 0))
	next := tradeEvent(at.Add(24*time.Hour), 100)
	next.TradingSession = session.Add(24 * time.Hour)
	require.NoError(t, s.OnEvent(next, ledger.TradeResult{RealisedUSD: 3}, 0))

	recs := s.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, 2.0, recs[0].RPNLCumDay)
	// the day bucket resets while the run cumulative keeps going
	assert.Equal(t, 3.0, recs[1].RPNLCumDay)
	assert.Equal(t, 5.0, recs[1].RPNLCum)
}

func TestApplyBaseline(t *testing.T) {
	t.Parallel()
	s, err := Setup(TradesOnly, false)
	require.NoError(t, err)
	at := time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.OnEvent(tradeEvent(at, 100), ledger.TradeResult{RealisedUSD: 5}, 0))
	require.NoError(t, s.OnEvent(tradeEvent(at.Add(time.Hour), 100), ledger.TradeResult{RealisedUSD: 5}, 0))

	baseline := []Record{
		{Time: at.Add(-time.Minute), RPNLCum: 1, NetRPNL: 1},
		{Time: at.Add(30 * time.Minute), RPNLCum: 3, NetRPNL: 3},
	}
	s.ApplyBaseline(baseline)
	recs := s.Records()
	assert.Equal(t, 4.0, recs[0].RPNLCum)
	assert.Equal(t, 7.0, recs[1].RPNLCum)
}

func TestResample(t *testing.T) {
	t.Parallel()
	base := time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC)
	records := []Record{
		{Time: base, RPNL: 1, RPNLCum: 1, NotionalTraded: 10, TradeQty: 100},
		{Time: base.Add(20 * time.Minute), RPNL: 2, RPNLCum: 3, NotionalTraded: 10, TradeQty: -50},
		{Time: base.Add(90 * time.Minute), RPNL: -1, RPNLCum: 2, NotionalTraded: 10, TradeQty: 25},
	}

	out, err := Resample(records, ResampleNone)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	out, err = Resample(records, "1H")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 3.0, out[0].RPNL)
	assert.Equal(t, 3.0, out[0].RPNLCum)
	assert.Equal(t, int64(50), out[0].TradeQty)
	assert.Equal(t, -1.0, out[1].RPNL)
	assert.True(t, out[0].Time.Equal(base))

	out, err = Resample(records, ResampleSummary)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2.0, out[0].RPNL)
	assert.Equal(t, 30.0, out[0].NotionalTraded)
	assert.Equal(t, 2.0, out[0].RPNLCum)

	_, err = Resample(records, "fortnightly")
	assert.ErrorIs(t, err, ErrInvalidResampleRule)
}

func TestSummarise(t *testing.T) {
	t.Parallel()
	records := []Record{
		{EventType: "trade", RPNL: 5},
		{EventType: "internal", RPNL: -2},
		{EventType: "market_data"},
		{EventType: "hedge", RPNL: 1},
	}
	sum := Summarise(records)
	assert.Equal(t, 3, sum.TradeCount)
	assert.Equal(t, "4", sum.RealisedPNL.String())
	assert.Equal(t, "2", sum.MaxDrawdown.String())
	expected := "0.6666666666666667"
	assert.Equal(t, expected, sum.WinRatio.String())
}
