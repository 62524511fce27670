// Package config loads the scenario documents driving a backtest run
package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/base"
	"github.com/spf13/viper"
)

// ReadPipeline loads the pipeline document
func ReadPipeline(path string) (*Pipeline, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	out := &Pipeline{}
	if err := v.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %v", common.ErrConfig, ErrMalformedConfig, path, err)
	}
	if out.Level == "" {
		out.Level = "mark_to_market"
	}
	return out, nil
}

// ReadSimulations loads the simulations document, a map of simulation label
// to its parameters
func ReadSimulations(path string) (map[string]Simulation, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	out := map[string]Simulation{}
	if err := v.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %v", common.ErrConfig, ErrMalformedConfig, path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %w: %s", common.ErrConfig, ErrNoSimulations, path)
	}
	return out, nil
}

// ReadOutput loads the output document
func ReadOutput(path string) (*Output, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	out := &Output{}
	if err := v.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %v", common.ErrConfig, ErrMalformedConfig, path, err)
	}
	if out.ResampleRule == "" {
		out.ResampleRule = "none"
	}
	return out, nil
}

func read(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %v", common.ErrConfig, ErrMissingConfigFile, path, err)
	}
	return v, nil
}

// ReadTargetAccounts parses the target accounts CSV. account_id is required,
// instrument_id and the risk overrides are optional per row
func ReadTargetAccounts(path string) ([]base.TargetAccount, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %v", common.ErrConfig, ErrMissingConfigFile, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %v", common.ErrConfig, ErrMalformedConfig, path, err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	accountCol, ok := col["account_id"]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", common.ErrConfig, ErrMissingAccountID, path)
	}

	var out []base.TargetAccount
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w: %s line %d: %v", common.ErrConfig, ErrMalformedConfig, path, line, err)
		}
		t := base.TargetAccount{}
		if row[accountCol] == "" {
			return nil, fmt.Errorf("%w: %w: %s line %d", common.ErrConfig, ErrMissingAccountID, path, line)
		}
		if t.AccountID, err = strconv.ParseInt(row[accountCol], 10, 64); err != nil {
			return nil, fmt.Errorf("%w: %w: %s line %d: %v", common.ErrConfig, ErrMalformedConfig, path, line, err)
		}
		if i, ok := col["instrument_id"]; ok {
			t.InstrumentID = row[i]
		}
		if t.BookingRisk, err = optionalFloat(col, row, "booking_risk"); err != nil {
			return nil, fmt.Errorf("%w: %w: %s line %d: %v", common.ErrConfig, ErrMalformedConfig, path, line, err)
		}
		if t.InternalisationRisk, err = optionalFloat(col, row, "internalisation_risk"); err != nil {
			return nil, fmt.Errorf("%w: %w: %s line %d: %v", common.ErrConfig, ErrMalformedConfig, path, line, err)
		}
		out = append(out, t)
	}
}

func optionalFloat(col map[string]int, row []string, name string) (*float64, error) {
	i, ok := col[name]
	if !ok || row[i] == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(row[i], 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
