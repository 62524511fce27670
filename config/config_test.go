package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quantfx/fxbacktester/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadPipeline(t *testing.T) {
	t.Parallel()
	body := `
shard: eu-1
lmax_account: 9000
matching_method: side_of_book
netting_engine: fifo
level: trades_only
calculate_cumulative_daily_pnl: true
event_stream:
  type: event_stream_snapshot
  timezone: America/New_York
  close_time: "17:00"
  exclusion_start: "16:30"
  exclusion_end: "18:30"
matching_engine:
  method: top_of_book
  relative_volume:
    "0": 1.0
    "1": 1.2
  pip_depth: [0, 1]
  spread_contracts:
    "2": 1.0
`
	p, err := ReadPipeline(writeFile(t, "pipeline.yaml", body))
	require.NoError(t, err)
	assert.Equal(t, int64(9000), p.LmaxAccount)
	assert.Equal(t, "fifo", p.NettingEngine)
	assert.Equal(t, "trades_only", p.Level)
	assert.True(t, p.CumulativeDailyPNL)
	assert.Equal(t, "event_stream_snapshot", p.EventStream.Type)
	assert.Equal(t, "17:00", p.EventStream.CloseTime)
	assert.Equal(t, 1.2, p.MatchingEngine.RelativeVolume["1"])
	assert.Equal(t, []int64{0, 1}, p.MatchingEngine.PipDepth)

	_, err = ReadPipeline(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrMissingConfigFile)
	assert.ErrorIs(t, err, common.ErrConfig)
}

func TestReadPipelineDefaultsLevel(t *testing.T) {
	t.Parallel()
	p, err := ReadPipeline(writeFile(t, "pipeline.yaml", "lmax_account: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, "mark_to_market", p.Level)
}

func TestReadSimulations(t *testing.T) {
	t.Parallel()
	body := `
sim_low_cap:
  instruments: [eur-usd]
  constructor: zip
  strategy_parameters:
    strategy_type: internalisation
    position_cap: [10, 20]
  exit_parameters:
    exit_type: chaser
  relative_simulation: true
  event_filter_string: account_id == 1001
sim_bbook:
  instruments: [eur-usd, gbp-usd]
  split_by_instrument: true
  strategy_parameters:
    strategy_type: bbook
`
	sims, err := ReadSimulations(writeFile(t, "sims.yaml", body))
	require.NoError(t, err)
	require.Len(t, sims, 2)

	low := sims["sim_low_cap"]
	assert.Equal(t, []string{"eur-usd"}, low.Instruments)
	assert.Equal(t, "zip", low.Constructor)
	assert.Equal(t, "internalisation", low.StrategyParameters["strategy_type"])
	assert.True(t, low.RelativeSimulation)
	assert.Equal(t, "account_id == 1001", low.EventFilterString)
	assert.True(t, sims["sim_bbook"].SplitByInstrument)

	_, err = ReadSimulations(writeFile(t, "empty.yaml", ""))
	assert.ErrorIs(t, err, ErrNoSimulations)
}

func TestReadOutput(t *testing.T) {
	t.Parallel()
	body := `
resample_rule: 1H
event_features: [rpnl_cum_day]
file_prefix: run
destination: /tmp/out
append: true
`
	o, err := ReadOutput(writeFile(t, "output.yaml", body))
	require.NoError(t, err)
	assert.Equal(t, "1H", o.ResampleRule)
	assert.Equal(t, []string{"rpnl_cum_day"}, o.EventFeatures)
	assert.True(t, o.Append)

	o, err = ReadOutput(writeFile(t, "bare.yaml", "file_prefix: run\n"))
	require.NoError(t, err)
	assert.Equal(t, "none", o.ResampleRule)
}

func TestReadTargetAccounts(t *testing.T) {
	t.Parallel()
	body := "account_id,instrument_id,booking_risk,internalisation_risk\n" +
		"1001,eur-usd,0.5,\n" +
		"1002,,,0.8\n"
	accounts, err := ReadTargetAccounts(writeFile(t, "accounts.csv", body))
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	assert.Equal(t, int64(1001), accounts[0].AccountID)
	assert.Equal(t, "eur-usd", accounts[0].InstrumentID)
	require.NotNil(t, accounts[0].BookingRisk)
	assert.Equal(t, 0.5, *accounts[0].BookingRisk)
	assert.Nil(t, accounts[0].InternalisationRisk)

	assert.Equal(t, int64(1002), accounts[1].AccountID)
	assert.Empty(t, accounts[1].InstrumentID)
	require.NotNil(t, accounts[1].InternalisationRisk)
	assert.Equal(t, 0.8, *accounts[1].InternalisationRisk)

	_, err = ReadTargetAccounts(writeFile(t, "bad.csv", "instrument_id\neur-usd\n"))
	assert.ErrorIs(t, err, ErrMissingAccountID)
}
