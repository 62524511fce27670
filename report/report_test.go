package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/statistics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frozen = time.Date(2023, 5, 2, 12, 0, 0, 0, time.UTC)

func sampleRecords() []statistics.Record {
	return []statistics.Record{{
		Time:           time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC),
		Instrument:     "eur-usd",
		Account:        1001,
		EventType:      "trade",
		Signal:         "passive",
		TradeQty:       150,
		Price:          1_100_010,
		RPNL:           1.5,
		RPNLCum:        1.5,
		NetRPNL:        0.5,
		NotionalTraded: 10_000,
		TradingSession: time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC),
	}}
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteFreshFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewWriter(common.FixedClock{Time: frozen}, nil)
	require.NoError(t, w.Write(path, sampleRecords(), false))

	rows := readAll(t, path)
	require.Len(t, rows, 2)
	header, row := rows[0], rows[1]
	require.Equal(t, w.Columns(), header)

	byName := map[string]string{}
	for i, name := range header {
		byName[name] = row[i]
	}
	assert.Equal(t, "2023-05-02T10:00:00Z", byName["timestamp"])
	assert.Equal(t, "eur-usd", byName["instrument_id"])
	assert.Equal(t, "1001", byName["account_id"])
	assert.Equal(t, "trade", byName["event_type"])
	assert.Equal(t, "1.5", byName["trade_qty"])
	assert.Equal(t, "1.10001", byName["price"])
	assert.Equal(t, "1.5", byName["rpnl"])
	assert.Equal(t, "0.5", byName["net_rpnl"])
	assert.Equal(t, "2023-05-02", byName["trading_session"])
	assert.Equal(t, "2023-05-02T12:00:00Z", byName["creation_timestamp"])
}

func TestWriteFeatureColumns(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewWriter(common.FixedClock{Time: frozen}, []string{"rpnl_cum_day"})

	recs := sampleRecords()
	recs[0].RPNLCumDay = 1.5
	require.NoError(t, w.Write(path, recs, false))

	rows := readAll(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "rpnl_cum_day", rows[0][len(rows[0])-1])
	assert.Equal(t, "1.5", rows[1][len(rows[1])-1])
}

func TestWriteAppendKeepsExistingHeader(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.csv")
	first := NewWriter(common.FixedClock{Time: frozen}, nil)
	require.NoError(t, first.Write(path, sampleRecords(), false))

	// a writer with an extra feature appends aligned to the old header
	second := NewWriter(common.FixedClock{Time: frozen.Add(time.Hour)}, []string{"rpnl_cum_day"})
	require.NoError(t, second.Write(path, sampleRecords(), true))

	rows := readAll(t, path)
	require.Len(t, rows, 3)
	require.Len(t, rows[2], len(rows[0]))
	assert.Equal(t, "2023-05-02T13:00:00Z", rows[2][len(rows[2])-1])
}

func TestWriteAppendToMissingFileWritesHeader(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewWriter(common.FixedClock{Time: frozen}, nil)
	require.NoError(t, w.Write(path, sampleRecords(), true))

	rows := readAll(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, w.Columns(), rows[0])
}
