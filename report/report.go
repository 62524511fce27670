// Package report writes per-event statistic records to CSV output files
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventhandlers/statistics"
)

// ErrNoHeader is returned when an existing output file has no readable header
var ErrNoHeader = errors.New("existing output file has no header")

// baseColumns is the canonical column order for a fresh output file
var baseColumns = []string{
	"timestamp",
	"instrument_id",
	"account_id",
	"event_type",
	"signal",
	"trade_qty",
	"price",
	"rpnl",
	"rpnl_cum",
	"net_rpnl",
	"notional_traded",
	"trading_session",
	"creation_timestamp",
}

// Writer renders statistic records as CSV rows. The clock stamps
// creation_timestamp so output is reproducible under test
type Writer struct {
	clock    common.Clock
	features []string
}

// NewWriter returns a writer stamping rows with the given clock. The
// features are extra per-record columns appended after the canonical set
func NewWriter(clock common.Clock, features []string) *Writer {
	if clock == nil {
		clock = common.RealClock{}
	}
	return &Writer{clock: clock, features: features}
}

// Columns returns the header this writer produces on a fresh file
func (w *Writer) Columns() []string {
	out := make([]string, 0, len(baseColumns)+len(w.features))
	out = append(out, baseColumns...)
	for _, f := range w.features {
		if !contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// Write renders the records to path. Appending to an existing file keeps
// that file's header, rows are aligned to it and columns the header does not
// know are dropped, missing ones are left empty
func (w *Writer) Write(path string, records []statistics.Record, appendMode bool) error {
	columns := w.Columns()
	writeHeader := true
	if appendMode {
		existing, err := readHeader(path)
		switch {
		case err == nil:
			columns = existing
			writeHeader = false
		case errors.Is(err, os.ErrNotExist):
		default:
			return err
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening output %s: %w", common.ErrRuntime, path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(columns); err != nil {
			return fmt.Errorf("%w: writing header: %w", common.ErrRuntime, err)
		}
	}
	now := w.clock.Now().UTC().Format(time.RFC3339)
	row := make([]string, len(columns))
	for i := range records {
		fields := w.fields(&records[i], now)
		for c, name := range columns {
			row[c] = fields[name]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("%w: writing row: %w", common.ErrRuntime, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: flushing output %s: %w", common.ErrRuntime, path, err)
	}
	return nil
}

// fields renders one record as a column name to value map
func (w *Writer) fields(r *statistics.Record, created string) map[string]string {
	out := map[string]string{
		"timestamp":          r.Time.UTC().Format(time.RFC3339Nano),
		"instrument_id":      r.Instrument,
		"account_id":         strconv.FormatInt(r.Account, 10),
		"event_type":         r.EventType,
		"signal":             r.Signal,
		"trade_qty":          formatQuantity(r.TradeQty),
		"price":              formatPrice(r.Price),
		"rpnl":               formatFloat(r.RPNL),
		"rpnl_cum":           formatFloat(r.RPNLCum),
		"net_rpnl":           formatFloat(r.NetRPNL),
		"notional_traded":    formatFloat(r.NotionalTraded),
		"trading_session":    r.TradingSession.Format("2006-01-02"),
		"creation_timestamp": created,
	}
	for _, f := range w.features {
		if _, ok := out[f]; !ok {
			out[f] = featureValue(r, f)
		}
	}
	return out
}

// featureValue resolves configured event_features that are not canonical
// columns
func featureValue(r *statistics.Record, name string) string {
	switch name {
	case "rpnl_cum_day":
		return formatFloat(r.RPNLCumDay)
	default:
		return ""
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPrice(p int64) string {
	if p == 0 {
		return ""
	}
	return strconv.FormatFloat(float64(p)/float64(common.PriceScale), 'f', -1, 64)
}

func formatQuantity(q int64) string {
	if q == 0 {
		return ""
	}
	return strconv.FormatFloat(float64(q)/float64(common.QuantityScale), 'f', -1, 64)
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s", common.ErrRuntime, ErrNoHeader, path)
	}
	return header, nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
