package engine

import (
	"fmt"
	"sort"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/config"
	"github.com/quantfx/fxbacktester/eventhandlers/exits"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/base"
)

// Parameter constructors
const (
	ConstructorZip     = "zip"
	ConstructorProduct = "product"
)

// Reserved parameter keys naming the strategy and exit rather than tuning them
const (
	strategyTypeKey = "strategy_type"
	exitTypeKey     = "exit_type"
)

// BuildPlans expands the scenario's simulations into frozen plans. List
// valued parameters multiply under the simulation's constructor, zip varying
// them together and product taking the Cartesian product of unique values.
// Plans come back sorted by name so runs are reproducible
func BuildPlans(scn *config.Scenario, targets []base.TargetAccount, only []string) ([]*SimulationPlan, error) {
	if scn == nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfig, common.ErrNilArguments)
	}
	wanted, err := labelFilter(scn.Simulations, only)
	if err != nil {
		return nil, err
	}

	netting, err := common.NettingFromString(scn.Pipeline.NettingEngine)
	if err != nil {
		return nil, err
	}
	matchingMethod, err := common.MatchingMethodFromString(scn.Pipeline.MatchingMethod)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(scn.Simulations))
	for label := range scn.Simulations {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var plans []*SimulationPlan
	for _, label := range labels {
		if !wanted[label] {
			continue
		}
		sim := scn.Simulations[label]
		if err := validate(label, &sim, targets); err != nil {
			return nil, err
		}

		strategyName, strategyParams, err := popType(sim.StrategyParameters, strategyTypeKey)
		if err != nil {
			return nil, fmt.Errorf("%w in simulation %q", err, label)
		}
		if _, err := strategies.LoadStrategyByName(strategyName); err != nil {
			return nil, fmt.Errorf("%w in simulation %q", err, label)
		}
		exitName, exitParams, err := popType(sim.ExitParameters, exitTypeKey)
		if err != nil {
			return nil, fmt.Errorf("%w in simulation %q", err, label)
		}
		if _, err := exits.LoadExitByName(exitName, nil); err != nil {
			return nil, fmt.Errorf("%w in simulation %q", err, label)
		}

		filter, err := CompileFilter(sim.EventFilterString)
		if err != nil {
			return nil, fmt.Errorf("%w in simulation %q", err, label)
		}

		variants, err := expand(sim.Constructor, strategyParams, exitParams, sim.RiskParameters)
		if err != nil {
			return nil, fmt.Errorf("%w in simulation %q", err, label)
		}

		universes := [][]string{sim.Instruments}
		if sim.SplitByInstrument {
			universes = universes[:0]
			for _, instr := range sim.Instruments {
				universes = append(universes, []string{instr})
			}
		}

		for _, universe := range universes {
			for i, v := range variants {
				plans = append(plans, &SimulationPlan{
					Label:           label,
					Variant:         i,
					Instruments:     universe,
					Strategy:        strategyName,
					StrategyParams:  v.strategy,
					ExitName:        exitName,
					ExitParams:      v.exit,
					RiskParams:      v.risk,
					Netting:         netting,
					MatchingMethod:  matchingMethod,
					LmaxAccount:     scn.Pipeline.LmaxAccount,
					Level:           scn.Pipeline.Level,
					CumulativeDaily: scn.Pipeline.CumulativeDailyPNL,
					Relative:        sim.RelativeSimulation,
					FilterString:    sim.EventFilterString,
					Filter:          filter,
				})
			}
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Name() < plans[j].Name() })
	return plans, nil
}

func labelFilter(sims map[string]config.Simulation, only []string) (map[string]bool, error) {
	wanted := make(map[string]bool, len(sims))
	if len(only) == 0 {
		for label := range sims {
			wanted[label] = true
		}
		return wanted, nil
	}
	for _, label := range only {
		if _, ok := sims[label]; !ok {
			return nil, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrUnknownSimulation, label)
		}
		wanted[label] = true
	}
	return wanted, nil
}

func validate(label string, sim *config.Simulation, targets []base.TargetAccount) error {
	if len(sim.Instruments) == 0 && !sim.LoadInstrumentsFromSS {
		return fmt.Errorf("%w: %w: %q", common.ErrValidation, ErrNoInstruments, label)
	}
	if len(targets) == 0 && !sim.LoadTargetFromSnapshot {
		return fmt.Errorf("%w: %w: %q", common.ErrValidation, ErrNoTargetAccounts, label)
	}
	return nil
}

// popType extracts the strategy/exit type key, leaving the tuning parameters
func popType(params map[string]any, key string) (string, map[string]any, error) {
	rest := make(map[string]any, len(params))
	name := ""
	for k, v := range params {
		if k == key {
			s, ok := v.(string)
			if !ok {
				return "", nil, fmt.Errorf("%w: %s must be a string, got %v", common.ErrConfig, key, v)
			}
			name = s
			continue
		}
		rest[k] = v
	}
	return name, rest, nil
}

// variant is one expanded parameter assignment
type variant struct {
	strategy map[string]any
	exit     map[string]any
	risk     map[string]any
}

// expand multiplies the three parameter maps under the constructor. A
// single element list behaves exactly like its scalar value
func expand(constructor string, strategy, exit, risk map[string]any) ([]variant, error) {
	groups := []map[string]any{strategy, exit, risk}
	switch constructor {
	case ConstructorZip, "":
		return expandZip(groups)
	case ConstructorProduct:
		return expandProduct(groups)
	default:
		return nil, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrUnknownConstructor, constructor)
	}
}

func expandZip(groups []map[string]any) ([]variant, error) {
	width := 1
	for _, params := range groups {
		for _, v := range params {
			l, ok := listValue(v)
			if !ok || len(l) == 1 {
				continue
			}
			if width != 1 && len(l) != width {
				return nil, fmt.Errorf("%w: %w: saw lengths %d and %d", common.ErrConfig, ErrZipLengthMismatch, width, len(l))
			}
			width = len(l)
		}
	}
	out := make([]variant, width)
	for i := range out {
		out[i] = variant{
			strategy: pickZip(groups[0], i),
			exit:     pickZip(groups[1], i),
			risk:     pickZip(groups[2], i),
		}
	}
	return out, nil
}

func pickZip(params map[string]any, i int) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if l, ok := listValue(v); ok {
			if len(l) == 1 {
				out[k] = normalise(l[0])
			} else {
				out[k] = normalise(l[i])
			}
			continue
		}
		out[k] = normalise(v)
	}
	return out
}

func expandProduct(groups []map[string]any) ([]variant, error) {
	// axes are walked in (group, sorted key) order so expansion order is
	// stable across runs
	type axis struct {
		group  int
		key    string
		values []any
	}
	var axes []axis
	for gi, params := range groups {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if l, ok := listValue(params[k]); ok && len(l) > 1 {
				axes = append(axes, axis{group: gi, key: k, values: unique(l)})
			}
		}
	}

	out := []variant{{
		strategy: pickZip(groups[0], 0),
		exit:     pickZip(groups[1], 0),
		risk:     pickZip(groups[2], 0),
	}}
	for _, ax := range axes {
		next := make([]variant, 0, len(out)*len(ax.values))
		for _, base := range out {
			for _, val := range ax.values {
				v := variant{
					strategy: cloneParams(base.strategy),
					exit:     cloneParams(base.exit),
					risk:     cloneParams(base.risk),
				}
				switch ax.group {
				case 0:
					v.strategy[ax.key] = normalise(val)
				case 1:
					v.exit[ax.key] = normalise(val)
				default:
					v.risk[ax.key] = normalise(val)
				}
				next = append(next, v)
			}
		}
		out = next
	}
	return out, nil
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func unique(values []any) []any {
	seen := make(map[string]bool, len(values))
	var out []any
	for _, v := range values {
		key := fmt.Sprintf("%v", v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func listValue(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

// normalise widens YAML integers so parameter consumers only see float64,
// bool and string values
func normalise(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
