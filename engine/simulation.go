package engine

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/quantfx/fxbacktester/common"
)

// SimulationPlan is one fully resolved unit of work. Plans are frozen at
// construction, nothing mutates one after the planner returns it
type SimulationPlan struct {
	// Label is the simulations document key this plan expanded from
	Label string
	// Variant distinguishes plans expanded from the same label
	Variant int
	// Instruments is the plan's trading universe
	Instruments []string

	Strategy       string
	StrategyParams map[string]any
	ExitName       string
	ExitParams     map[string]any
	RiskParams     map[string]any

	Netting         common.NettingType
	MatchingMethod  common.MatchingMethod
	LmaxAccount     int64
	Level           string
	CumulativeDaily bool

	Relative     bool
	FilterString string
	Filter       *Filter
}

// Name returns the unique human readable identity of the plan
func (p *SimulationPlan) Name() string {
	if len(p.Instruments) == 1 {
		return fmt.Sprintf("%s-%d-%s", p.Label, p.Variant, p.Instruments[0])
	}
	return fmt.Sprintf("%s-%d", p.Label, p.Variant)
}

// Hash fingerprints the plan's inputs. Identical plans hash identically
// across runs, the hash names the plan in logs and error reports
func (p *SimulationPlan) Hash() uint64 {
	h := fnv.New64a()
	write := func(s string) { _, _ = h.Write([]byte(s)) }
	write(p.Label)
	write(fmt.Sprintf("|%d|", p.Variant))
	for _, instr := range p.Instruments {
		write(instr)
		write(",")
	}
	write("|" + p.Strategy + "|" + p.ExitName + "|")
	writeParams(write, p.StrategyParams)
	writeParams(write, p.ExitParams)
	writeParams(write, p.RiskParams)
	write(fmt.Sprintf("|%d|%d|%d|%s|%v|%v|%s",
		p.Netting, p.MatchingMethod, p.LmaxAccount, p.Level, p.CumulativeDaily, p.Relative, p.FilterString))
	return h.Sum64()
}

func writeParams(write func(string), params map[string]any) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(fmt.Sprintf("%s=%v;", k, params[k]))
	}
}

// InUniverse reports whether the instrument belongs to the plan
func (p *SimulationPlan) InUniverse(instrument string) bool {
	for _, instr := range p.Instruments {
		if instr == instrument {
			return true
		}
	}
	return false
}
