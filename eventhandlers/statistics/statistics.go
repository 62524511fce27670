package statistics

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/ledger"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/shopspring/decimal"
)

// Statistic accumulates per-event output records for one plan
type Statistic struct {
	level      string
	trackDaily bool
	records    []Record
	rpnlCum    float64
	dayCum     map[int64]float64
}

// Setup returns a statistic recording at the given output level
func Setup(level string, trackDaily bool) (*Statistic, error) {
	if level != MarkToMarket && level != TradesOnly {
		return nil, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrInvalidLevel, level)
	}
	return &Statistic{
		level:      level,
		trackDaily: trackDaily,
		dayCum:     make(map[int64]float64),
	}, nil
}

// Reset clears accumulated state so the statistic can be reused
func (s *Statistic) Reset() {
	s.records = nil
	s.rpnlCum = 0
	s.dayCum = make(map[int64]float64)
}

// OnEvent appends the output record for one processed event. The unrealised
// argument is the portfolio's open PnL after the event
func (s *Statistic) OnEvent(ev *event.Event, res ledger.TradeResult, unrealised float64) error {
	if ev == nil {
		return common.ErrNilEvent
	}
	isTrade := ev.Type == common.TradeEvent || ev.IsFill()
	if s.level == TradesOnly && !isTrade {
		return nil
	}

	s.rpnlCum += res.RealisedUSD
	rec := Record{
		Time:           ev.Time,
		Instrument:     ev.Instrument,
		Account:        ev.Account,
		EventType:      ev.Type.String(),
		Signal:         ev.Signal,
		TradeQty:       ev.Quantity,
		Price:          ev.Price,
		RPNL:           res.RealisedUSD,
		RPNLCum:        s.rpnlCum,
		NetRPNL:        s.rpnlCum + unrealised,
		TradingSession: ev.TradingSession,
	}
	if isTrade {
		rec.NotionalTraded = float64(common.Abs(ev.Quantity)) / float64(common.QuantityScale) * float64(ev.UnitPrice)
	}
	if s.trackDaily {
		day := ev.TradingSession.Unix()
		s.dayCum[day] += res.RealisedUSD
		rec.RPNLCumDay = s.dayCum[day]
	}
	s.records = append(s.records, rec)
	return nil
}

// Records returns the accumulated rows
func (s *Statistic) Records() []Record {
	return s.records
}

// ApplyBaseline subtracts a baseline run's cumulative PnL from every record,
// leaving the strategy's incremental contribution. Baseline records must be
// time sorted, as produced by a run
func (s *Statistic) ApplyBaseline(baseline []Record) {
	idx := -1
	for i := range s.records {
		for idx+1 < len(baseline) && !baseline[idx+1].Time.After(s.records[i].Time) {
			idx++
		}
		if idx < 0 {
			continue
		}
		s.records[i].RPNLCum -= baseline[idx].RPNLCum
		s.records[i].NetRPNL -= baseline[idx].NetRPNL
	}
}

// Resample reduces per-event records under the configured rule. Duration
// rules such as "1H" bucket records by truncated timestamp, keeping the last
// cumulative values and summing the per-bucket flows
func Resample(records []Record, rule string) ([]Record, error) {
	switch rule {
	case ResampleNone, "":
		return records, nil
	case ResampleSummary:
		if len(records) == 0 {
			return nil, nil
		}
		out := records[len(records)-1]
		out.RPNL, out.NotionalTraded = 0, 0
		for _, r := range records {
			out.RPNL += r.RPNL
			out.NotionalTraded += r.NotionalTraded
		}
		return []Record{out}, nil
	}

	d, err := time.ParseDuration(normaliseDuration(rule))
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrInvalidResampleRule, rule)
	}

	buckets := make(map[int64]*Record)
	var order []int64
	for _, r := range records {
		key := r.Time.Truncate(d).Unix()
		b, ok := buckets[key]
		if !ok {
			rb := r
			rb.Time = r.Time.Truncate(d)
			buckets[key] = &rb
			order = append(order, key)
			continue
		}
		b.RPNL += r.RPNL
		b.NotionalTraded += r.NotionalTraded
		b.RPNLCum = r.RPNLCum
		b.RPNLCumDay = r.RPNLCumDay
		b.NetRPNL = r.NetRPNL
		b.TradeQty += r.TradeQty
		b.Price = r.Price
		b.Signal = r.Signal
		b.EventType = r.EventType
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]Record, 0, len(order))
	for _, key := range order {
		out = append(out, *buckets[key])
	}
	return out, nil
}

// normaliseDuration maps pandas style offsets onto Go duration syntax
func normaliseDuration(rule string) string {
	if len(rule) == 0 {
		return rule
	}
	switch rule[len(rule)-1] {
	case 'H':
		return rule[:len(rule)-1] + "h"
	case 'T':
		return rule[:len(rule)-1] + "m"
	case 'S':
		return rule[:len(rule)-1] + "s"
	}
	return rule
}

// Summarise aggregates a run's records into its closing summary
func Summarise(records []Record) Summary {
	var sum Summary
	var wins, losses int
	peak := decimal.Zero
	drawdown := decimal.Zero
	cum := decimal.Zero
	for _, r := range records {
		if r.EventType == common.TradeEvent.String() ||
			r.EventType == common.HedgeEvent.String() ||
			r.EventType == common.InternalEvent.String() {
			sum.TradeCount++
		}
		if r.RPNL != 0 {
			if r.RPNL > 0 {
				wins++
			} else {
				losses++
			}
		}
		cum = cum.Add(decimal.NewFromFloat(r.RPNL))
		if cum.GreaterThan(peak) {
			peak = cum
		}
		if dd := peak.Sub(cum); dd.GreaterThan(drawdown) {
			drawdown = dd
		}
	}
	sum.RealisedPNL = cum
	sum.MaxDrawdown = drawdown
	if wins+losses > 0 {
		sum.WinRatio = decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(wins + losses)))
	}
	return sum
}
