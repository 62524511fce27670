package exits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/quantfx/fxbacktester/eventtypes/order"
)

const lmaxAccount = int64(1984)

func openPosition(t *testing.T, qty, price int64) *ledger.Position {
	t.Helper()
	p, err := ledger.NewPosition(
		ledger.PositionKey{Instrument: "EURUSD", Account: lmaxAccount},
		10000, 10, "USD", common.FIFONetting)
	require.NoError(t, err)
	_, err = p.OnTrade(qty, price, 1, time.Date(2018, 9, 7, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return p
}

func tick(bid, ask int64) *event.Event {
	return &event.Event{
		Type:           common.MarketDataEvent,
		Time:           time.Date(2018, 9, 7, 12, 1, 0, 0, time.UTC),
		Instrument:     "EURUSD",
		Bid:            bid,
		Ask:            ask,
		BidQty:         10000,
		AskQty:         10000,
		UnitPrice:      10000,
		PriceIncrement: 10,
		RateToUSD:      1,
	}
}

func TestLoadExitByName(t *testing.T) {
	t.Parallel()
	_, err := LoadExitByName("no-such-exit", nil)
	assert.ErrorIs(t, err, ErrExitNotFound)
	assert.ErrorIs(t, err, common.ErrConfig)

	h, err := LoadExitByName("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultName, h.Name(), "an absent exit block is the default exit")

	for _, name := range []string{DefaultName, AggressiveName, ProfitRunningName, TrailingStopLossName, PassiveName, ChaserName} {
		h, err = LoadExitByName(name, nil)
		require.NoError(t, err)
		assert.Equal(t, name, h.Name())
	}

	_, err = LoadExitByName(AggressiveName, map[string]any{"bad_key": 1.0})
	assert.ErrorIs(t, err, ErrInvalidCustomSettings)
}

func TestDefaultNeverEmits(t *testing.T) {
	t.Parallel()
	pos := openPosition(t, 100, 1100010)
	d := &Default{}
	assert.Nil(t, d.GenerateExitOrders(tick(1100000, 1100020), lmaxAccount, 1100010, 1100000, pos))
}

func TestAggressiveTakeProfitLong(t *testing.T) {
	t.Parallel()
	pos := openPosition(t, 100, 1100010)
	a, err := LoadExitByName(AggressiveName, map[string]any{"tp_limit": 3.0, "sl_limit": 2.0})
	require.NoError(t, err)

	// one increment short of the take profit
	orders := a.GenerateExitOrders(tick(1100030, 1100050), lmaxAccount, 1100010, 1100030, pos)
	assert.Empty(t, orders)

	orders = a.GenerateExitOrders(tick(1100040, 1100060), lmaxAccount, 1100010, 1100040, pos)
	require.Len(t, orders, 1)
	assert.EqualValues(t, -100, orders[0].Quantity)
	assert.Equal(t, common.TakeProfitOrder, orders[0].Type)
	assert.Equal(t, order.SignalTPClose, orders[0].Signal)
}

func TestAggressiveStopLossShort(t *testing.T) {
	t.Parallel()
	pos := openPosition(t, -100, 1100010)
	a, err := LoadExitByName(AggressiveName, map[string]any{"tp_limit": 3.0, "sl_limit": 2.0})
	require.NoError(t, err)

	orders := a.GenerateExitOrders(tick(1100020, 1100030), lmaxAccount, 1100010, 1100030, pos)
	require.Len(t, orders, 1)
	assert.EqualValues(t, 100, orders[0].Quantity)
	assert.Equal(t, common.StopOrder, orders[0].Type)
	assert.Equal(t, order.SignalSLClose, orders[0].Signal)
}

func TestAggressiveGapTickTakeProfitWins(t *testing.T) {
	t.Parallel()
	pos := openPosition(t, -100, 1100010)
	a, err := LoadExitByName(AggressiveName, map[string]any{"tp_limit": 0.0, "sl_limit": 0.0})
	require.NoError(t, err)

	orders := a.GenerateExitOrders(tick(1100000, 1100010), lmaxAccount, 1100010, 1100010, pos)
	require.Len(t, orders, 1)
	assert.Equal(t, order.SignalTPClose, orders[0].Signal)
}

func TestProfitRunningSlices(t *testing.T) {
	t.Parallel()
	pos := openPosition(t, 1000, 1100000)
	p, err := LoadExitByName(ProfitRunningName, map[string]any{
		"cut_ratio": 0.5, "min_trade_size": 100.0, "tp_limit": 3.0, "sl_limit": 5.0,
	})
	require.NoError(t, err)

	orders := p.GenerateExitOrders(tick(1100030, 1100050), lmaxAccount, 1100000, 1100030, pos)
	require.Len(t, orders, 1)
	assert.EqualValues(t, -500, orders[0].Quantity)
	assert.Equal(t, order.SignalTPClose, orders[0].Signal)

	// the next slice is measured from the tick that fired, not the average
	_, err = pos.OnTrade(-500, 1100030, 1, time.Now())
	require.NoError(t, err)
	orders = p.GenerateExitOrders(tick(1100040, 1100060), lmaxAccount, 1100000, 1100040, pos)
	assert.Empty(t, orders)

	orders = p.GenerateExitOrders(tick(1100060, 1100080), lmaxAccount, 1100000, 1100060, pos)
	require.Len(t, orders, 1)
	assert.EqualValues(t, -250, orders[0].Quantity)
}

func TestProfitRunningMinSizeBoundedByNet(t *testing.T) {
	t.Parallel()
	pos := openPosition(t, 150, 1100000)
	p, err := LoadExitByName(ProfitRunningName, map[string]any{
		"cut_ratio": 0.1, "min_trade_size": 400.0, "tp_limit": 1.0, "sl_limit": 5.0,
	})
	require.NoError(t, err)

	orders := p.GenerateExitOrders(tick(1100010, 1100030), lmaxAccount, 1100000, 1100010, pos)
	require.Len(t, orders, 1)
	assert.EqualValues(t, -150, orders[0].Quantity, "slice cannot exceed the open position")
}

func TestTrailingStopLong(t *testing.T) {
	t.Parallel()
	pos := openPosition(t, 100, 1100000)
	tr, err := LoadExitByName(TrailingStopLossName, map[string]any{"sl_limit": 2.0})
	require.NoError(t, err)

	// first tick seeds peak=tick, stop=avg-sl
	orders := tr.GenerateExitOrders(tick(1100030, 1100050), lmaxAccount, 1100000, 1100030, pos)
	assert.Empty(t, orders)
	assert.EqualValues(t, 1100030, pos.ExitState["tick_peak"])
	assert.EqualValues(t, 1099980, pos.ExitState["trailing_stop"])

	// the peak ratchets and drags the stop with it
	orders = tr.GenerateExitOrders(tick(1100070, 1100090), lmaxAccount, 1100000, 1100070, pos)
	assert.Empty(t, orders)
	assert.EqualValues(t, 1100050, pos.ExitState["trailing_stop"])

	// pull back through the stop flattens
	orders = tr.GenerateExitOrders(tick(1100050, 1100070), lmaxAccount, 1100000, 1100050, pos)
	require.Len(t, orders, 1)
	assert.EqualValues(t, -100, orders[0].Quantity)
	assert.Equal(t, order.SignalSLClose, orders[0].Signal)
}

func TestPassiveRepricesAndFills(t *testing.T) {
	t.Parallel()
	pos := openPosition(t, 100, 1100000)
	p, err := LoadExitByName(PassiveName, map[string]any{"skew_at": 100.0, "skew_by": 1.0})
	require.NoError(t, err)

	// rest at ask - 1 increment, bid has not reached it
	orders := p.GenerateExitOrders(tick(1100020, 1100050), lmaxAccount, 1100000, 1100020, pos)
	assert.Empty(t, orders)
	assert.EqualValues(t, 1100040, pos.ExitState["lastprice"])

	// market trades through the resting price
	orders = p.GenerateExitOrders(tick(1100060, 1100070), lmaxAccount, 1100000, 1100060, pos)
	require.Len(t, orders, 1)
	assert.Equal(t, common.PassiveOrder, orders[0].Type)
	assert.EqualValues(t, 1100060, orders[0].Price)
	assert.Equal(t, order.SignalPassive, orders[0].Signal)
}

func TestPassiveLimitTakesOutAtMarket(t *testing.T) {
	t.Parallel()
	pos := openPosition(t, 100, 1100000)
	p, err := LoadExitByName(PassiveName, map[string]any{"skew_at": 100.0, "skew_by": 1.0, "passive_limit": 2.0})
	require.NoError(t, err)

	assert.Empty(t, p.GenerateExitOrders(tick(1100000, 1100050), lmaxAccount, 1100000, 1100000, pos))
	assert.Empty(t, p.GenerateExitOrders(tick(1100000, 1100050), lmaxAccount, 1100000, 1100000, pos))

	orders := p.GenerateExitOrders(tick(1100000, 1100050), lmaxAccount, 1100000, 1100000, pos)
	require.Len(t, orders, 1)
	assert.Equal(t, common.MarketOrder, orders[0].Type)
	assert.EqualValues(t, -100, orders[0].Quantity)
}

func TestChaserShortUptick(t *testing.T) {
	t.Parallel()
	pos := openPosition(t, -100, 1000010)
	c, err := LoadExitByName(ChaserName, map[string]any{
		"starttick": 0.0, "uptick": 1.0, "downtick": 2.0, "maxuptick": 2.0, "maxdowntick": 5.0,
	})
	require.NoError(t, err)

	orders := c.GenerateExitOrders(tick(1000020, 1000040), lmaxAccount, 1000010, 1000040, pos)
	assert.Empty(t, orders)
	assert.EqualValues(t, 999990, pos.ExitState["chaser_price"])

	orders = c.GenerateExitOrders(tick(1000010, 1000030), lmaxAccount, 1000010, 1000030, pos)
	assert.Empty(t, orders)
	assert.EqualValues(t, 1000000, pos.ExitState["chaser_price"])

	orders = c.GenerateExitOrders(tick(999990, 1000010), lmaxAccount, 1000010, 1000010, pos)
	require.Len(t, orders, 1)
	assert.EqualValues(t, 100, orders[0].Quantity)
	assert.Equal(t, common.PassiveOrder, orders[0].Type)
	assert.EqualValues(t, 1000010, orders[0].Price)
	assert.Equal(t, order.SignalChaserMeet, orders[0].Signal)
}
