package config

import (
	"errors"
)

var (
	// ErrMissingConfigFile is returned when a document path cannot be read
	ErrMissingConfigFile = errors.New("cannot read config file")
	// ErrMalformedConfig is returned when a document does not unmarshal
	ErrMalformedConfig = errors.New("malformed config document")
	// ErrMissingAccountID is returned when a target accounts row lacks account_id
	ErrMissingAccountID = errors.New("target accounts row missing account_id")
	// ErrNoSimulations is returned when the simulations document is empty
	ErrNoSimulations = errors.New("simulations document defines no simulations")
)

// EventStream configures the session densifier
type EventStream struct {
	Type           string  `mapstructure:"type"`
	SampleRate     float64 `mapstructure:"sample_rate"`
	CadenceSeconds int     `mapstructure:"cadence_seconds"`
	Seed           int64   `mapstructure:"seed"`
	Timezone       string  `mapstructure:"timezone"`
	CloseTime      string  `mapstructure:"close_time"`
	ExclusionStart string  `mapstructure:"exclusion_start"`
	ExclusionEnd   string  `mapstructure:"exclusion_end"`
	GFDMinutes     int     `mapstructure:"gfd_minutes"`
}

// MatchingEngine configures fill simulation
type MatchingEngine struct {
	Method string `mapstructure:"method"`
	// RelativeVolume maps pip layers to the fraction of the touch quantity
	// available at that layer. Keys stay strings here, YAML map keys do not
	// decode into integers, the planner converts them
	RelativeVolume map[string]float64 `mapstructure:"relative_volume"`
	// PipDepth lists the layers walked, in increments from the touch
	PipDepth []int64 `mapstructure:"pip_depth"`
	// SpreadContracts scales layer capacity by the observed spread
	SpreadContracts map[string]float64 `mapstructure:"spread_contracts"`
}

// Pipeline is the first scenario document, fixed across every simulation in
// the scenario
type Pipeline struct {
	Shard                 string         `mapstructure:"shard"`
	LmaxAccount           int64          `mapstructure:"lmax_account"`
	MatchingMethod        string         `mapstructure:"matching_method"`
	NettingEngine         string         `mapstructure:"netting_engine"`
	Level                 string         `mapstructure:"level"`
	CumulativeDailyPNL    bool           `mapstructure:"calculate_cumulative_daily_pnl"`
	EventStream           EventStream    `mapstructure:"event_stream"`
	MatchingEngine        MatchingEngine `mapstructure:"matching_engine"`
	Instrument            string         `mapstructure:"instrument"`
	InstrumentUnitPrice   int64          `mapstructure:"instrument_unit_price"`
	InstrumentCurrency    string         `mapstructure:"instrument_currency"`
	InstrumentIncrement   float64        `mapstructure:"instrument_price_increment"`
	InstrumentRateToUSD   float64        `mapstructure:"instrument_rate_to_usd"`
	TradesPath            string         `mapstructure:"trades_path"`
	TicksPath             string         `mapstructure:"ticks_path"`
	AccountMigrationsPath string         `mapstructure:"account_migrations_path"`
}

// Simulation is one labelled entry of the simulations document. List valued
// parameters expand into multiple plans under the configured constructor
type Simulation struct {
	Instruments            []string       `mapstructure:"instruments"`
	StrategyParameters     map[string]any `mapstructure:"strategy_parameters"`
	ExitParameters         map[string]any `mapstructure:"exit_parameters"`
	RiskParameters         map[string]any `mapstructure:"risk_parameters"`
	Constructor            string         `mapstructure:"constructor"`
	LoadTargetFromSnapshot bool           `mapstructure:"load_target_accounts_from_snapshot"`
	LoadInstrumentsFromSS  bool           `mapstructure:"load_instruments_from_snapshot"`
	FilterSnapshotAccounts bool           `mapstructure:"filter_snapshot_for_accounts"`
	FilterSnapshotInstr    bool           `mapstructure:"filter_snapshot_for_instruments"`
	RelativeSimulation     bool           `mapstructure:"relative_simulation"`
	SplitByInstrument      bool           `mapstructure:"split_by_instrument"`
	EventFilterString      string         `mapstructure:"event_filter_string"`
}

// Output is the third scenario document
type Output struct {
	ResampleRule  string   `mapstructure:"resample_rule"`
	Metrics       []string `mapstructure:"metrics"`
	EventFeatures []string `mapstructure:"event_features"`
	FilePrefix    string   `mapstructure:"file_prefix"`
	Destination   string   `mapstructure:"destination"`
	Append        bool     `mapstructure:"append"`
}

// Scenario bundles the three documents of one run
type Scenario struct {
	Pipeline    Pipeline
	Simulations map[string]Simulation
	Output      Output
}
