package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventtypes/event"
)

// Filter is a compiled event filter expression. The grammar is a flat
// boolean expression, comparisons joined by "and"/"or" with "and" binding
// tighter, no parentheses
type Filter struct {
	expr string
	or   [][]comparison
}

type comparison struct {
	field string
	op    string
	value string
	num   float64
	isNum bool
}

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// CompileFilter parses an event filter string. An empty string compiles to a
// nil filter matching everything
func CompileFilter(expr string) (*Filter, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, nil
	}
	f := &Filter{expr: trimmed}
	for _, orTerm := range splitKeyword(trimmed, "or") {
		var ands []comparison
		for _, andTerm := range splitKeyword(orTerm, "and") {
			cmp, err := parseComparison(andTerm)
			if err != nil {
				return nil, err
			}
			ands = append(ands, cmp)
		}
		f.or = append(f.or, ands)
	}
	return f, nil
}

// splitKeyword splits on a whitespace delimited keyword
func splitKeyword(expr, keyword string) []string {
	tokens := strings.Fields(expr)
	var out []string
	var current []string
	for _, tok := range tokens {
		if tok == keyword {
			out = append(out, strings.Join(current, " "))
			current = current[:0]
			continue
		}
		current = append(current, tok)
	}
	return append(out, strings.Join(current, " "))
}

func parseComparison(term string) (comparison, error) {
	tokens := strings.Fields(term)
	if len(tokens) != 3 || !comparisonOps[tokens[1]] {
		return comparison{}, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrInvalidFilter, term)
	}
	cmp := comparison{field: tokens[0], op: tokens[1], value: strings.Trim(tokens[2], `"'`)}
	if n, err := strconv.ParseFloat(cmp.value, 64); err == nil {
		cmp.num = n
		cmp.isNum = true
	}
	if _, _, ok := fieldValue(&event.Event{}, cmp.field); !ok {
		return comparison{}, fmt.Errorf("%w: %w: unknown field %q", common.ErrConfig, ErrInvalidFilter, cmp.field)
	}
	return cmp, nil
}

// Match evaluates the expression against one event. A nil filter matches
// everything
func (f *Filter) Match(ev *event.Event) bool {
	if f == nil {
		return true
	}
	for _, ands := range f.or {
		all := true
		for _, cmp := range ands {
			if !cmp.match(ev) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (c *comparison) match(ev *event.Event) bool {
	num, str, _ := fieldValue(ev, c.field)
	if c.isNum {
		switch c.op {
		case "==":
			return num == c.num
		case "!=":
			return num != c.num
		case "<":
			return num < c.num
		case "<=":
			return num <= c.num
		case ">":
			return num > c.num
		case ">=":
			return num >= c.num
		}
		return false
	}
	switch c.op {
	case "==":
		return str == c.value
	case "!=":
		return str != c.value
	}
	return false
}

// fieldValue resolves an event field to its numeric and string forms
func fieldValue(ev *event.Event, field string) (num float64, str string, ok bool) {
	switch field {
	case "account_id":
		return float64(ev.Account), strconv.FormatInt(ev.Account, 10), true
	case "counterparty_id":
		return float64(ev.Counterparty), strconv.FormatInt(ev.Counterparty, 10), true
	case "instrument_id":
		return 0, ev.Instrument, true
	case "venue":
		return 0, ev.Venue, true
	case "event_type":
		return 0, ev.Type.String(), true
	case "signal":
		return 0, ev.Signal, true
	case "quantity":
		return float64(ev.Quantity) / float64(common.QuantityScale), "", true
	case "price":
		return float64(ev.Price) / float64(common.PriceScale), "", true
	case "untrusted":
		return boolNum(ev.Untrusted), "", true
	case "gfd":
		return boolNum(ev.GFD), "", true
	case "gfw":
		return boolNum(ev.GFW), "", true
	default:
		return 0, "", false
	}
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
