package data

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventtypes/event"
)

const (
	defaultCadence   = time.Second
	defaultGFDWindow = 5 * time.Minute
)

// weekEndDay is evaluated in New York time regardless of the exchange
// timezone, the FX week ends on Friday afternoon US Eastern
const weekEndTimezone = "America/New_York"

// Builder assembles the chronologically sorted event stream of one trading
// session from raw trades, raw top of book ticks and migration events
type Builder struct {
	cfg        StreamConfig
	cadence    time.Duration
	gfdWindow  time.Duration
	loc        *time.Location
	eastern    *time.Location
	closeHH    int
	closeMM    int
	exclFromMn int // minutes of local day, inclusive
	exclToMn   int // exclusive
	hasExcl    bool
}

// NewBuilder validates the stream configuration and resolves its timezone
// and clock fields
func NewBuilder(cfg StreamConfig) (*Builder, error) {
	b := &Builder{cfg: cfg, cadence: cfg.Cadence, gfdWindow: cfg.GFDWindow}
	switch cfg.Type {
	case StreamSnapshot:
	case StreamSample:
		if cfg.SampleRate <= 0 || cfg.SampleRate > 1 {
			return nil, fmt.Errorf("%w: %w: %v", common.ErrConfig, ErrInvalidSampleRate, cfg.SampleRate)
		}
	default:
		return nil, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrInvalidStreamType, cfg.Type)
	}
	if b.cadence <= 0 {
		b.cadence = defaultCadence
	}
	if b.gfdWindow <= 0 {
		b.gfdWindow = defaultGFDWindow
	}

	var err error
	if b.loc, err = time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrInvalidTimezone, cfg.Timezone)
	}
	if b.eastern, err = time.LoadLocation(weekEndTimezone); err != nil {
		return nil, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrInvalidTimezone, weekEndTimezone)
	}
	if b.closeHH, b.closeMM, err = parseClock(cfg.CloseTime); err != nil {
		return nil, err
	}
	if cfg.ExclusionStart != "" || cfg.ExclusionEnd != "" {
		fh, fm, err := parseClock(cfg.ExclusionStart)
		if err != nil {
			return nil, err
		}
		th, tm, err := parseClock(cfg.ExclusionEnd)
		if err != nil {
			return nil, err
		}
		b.exclFromMn = fh*60 + fm
		b.exclToMn = th*60 + tm
		b.hasExcl = true
	}
	return b, nil
}

func parseClock(s string) (hh, mm int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrInvalidClockTime, s)
	}
	if hh, err = strconv.Atoi(parts[0]); err != nil || hh < 0 || hh > 23 {
		return 0, 0, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrInvalidClockTime, s)
	}
	if mm, err = strconv.Atoi(parts[1]); err != nil || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("%w: %w: %q", common.ErrConfig, ErrInvalidClockTime, s)
	}
	return hh, mm, nil
}

// SessionBounds returns the [start, end) window of the 24h session closing
// on the given calendar day at the exchange close time
func (b *Builder) SessionBounds(sessionDate time.Time) (start, end time.Time) {
	y, m, d := sessionDate.Date()
	end = time.Date(y, m, d, b.closeHH, b.closeMM, 0, 0, b.loc)
	return end.Add(-24 * time.Hour), end
}

// Build produces the sorted event stream of one session. Raw trades and
// migrations outside the session window are dropped, every kept event is
// stamped with the trading session and its lifecycle flags
func (b *Builder) Build(sessionDate time.Time, ref InstrumentRef, trades []event.Event, ticks []TOBTick, migrations []event.Event) ([]event.Event, error) {
	start, end := b.SessionBounds(sessionDate)
	session := time.Date(sessionDate.Year(), sessionDate.Month(), sessionDate.Day(), 0, 0, 0, 0, time.UTC)

	md, err := b.densify(start, end, ref, ticks)
	if err != nil {
		return nil, err
	}

	out := make([]event.Event, 0, len(md)+len(trades)+len(migrations))
	for _, ev := range trades {
		if ev.Time.Before(start) || !ev.Time.Before(end) {
			continue
		}
		out = append(out, ev)
	}
	out = append(out, md...)
	for _, ev := range migrations {
		if ev.Time.Before(start) || !ev.Time.Before(end) {
			continue
		}
		out = append(out, ev)
	}

	gfw := b.weekEnd(end)
	for i := range out {
		out[i].Seq = int64(i)
		out[i].TradingSession = session
		out[i].Untrusted = b.untrusted(out[i].Time)
		out[i].GFD = !out[i].Time.Before(end.Add(-b.gfdWindow))
		out[i].GFW = out[i].GFD && gfw
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.Before(out[j].Time)
		}
		if out[i].Type != out[j].Type {
			return out[i].Type.Priority() < out[j].Type.Priority()
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// densify emits one synthetic book snapshot per cadence slot, forward
// filling from the most recent raw tick. Slots before the first tick are
// backfilled from it
func (b *Builder) densify(start, end time.Time, ref InstrumentRef, ticks []TOBTick) ([]event.Event, error) {
	if len(ticks) == 0 {
		return nil, fmt.Errorf("%w: %w: session starting %v", common.ErrData, ErrNoTicks, start)
	}
	sorted := make([]TOBTick, len(ticks))
	copy(sorted, ticks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var rng *rand.Rand
	if b.cfg.Type == StreamSample {
		rng = rand.New(rand.NewSource(b.cfg.Seed))
	}

	out := make([]event.Event, 0, end.Sub(start)/b.cadence)
	idx := 0
	for t := start; t.Before(end); t = t.Add(b.cadence) {
		for idx+1 < len(sorted) && !sorted[idx+1].Time.After(t) {
			idx++
		}
		if rng != nil && rng.Float64() >= b.cfg.SampleRate {
			continue
		}
		tick := sorted[idx]
		out = append(out, event.Event{
			Type:           common.MarketDataEvent,
			Time:           t,
			Instrument:     ref.Instrument,
			Bid:            tick.Bid,
			Ask:            tick.Ask,
			BidQty:         tick.BidQty,
			AskQty:         tick.AskQty,
			UnitPrice:      ref.UnitPrice,
			Currency:       ref.Currency,
			RateToUSD:      ref.RateToUSD,
			PriceIncrement: ref.PriceIncrement,
		})
	}
	return out, nil
}

// untrusted reports whether the local time of day falls in the exclusion
// window, which may wrap midnight
func (b *Builder) untrusted(t time.Time) bool {
	if !b.hasExcl {
		return false
	}
	local := t.In(b.loc)
	mn := local.Hour()*60 + local.Minute()
	if b.exclFromMn <= b.exclToMn {
		return mn >= b.exclFromMn && mn < b.exclToMn
	}
	return mn >= b.exclFromMn || mn < b.exclToMn
}

// weekEnd reports whether the session closing at end is the last of the
// trading week
func (b *Builder) weekEnd(end time.Time) bool {
	return end.In(b.eastern).Weekday() == time.Friday
}
