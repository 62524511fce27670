package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantfx/fxbacktester/common"
	"github.com/quantfx/fxbacktester/eventtypes/event"
	"github.com/shopspring/decimal"
)

var (
	// ErrMissingDataFile is returned when a session's historical file is absent
	ErrMissingDataFile = errors.New("missing historical data file")
	// ErrMalformedRow is returned when a historical row cannot be parsed
	ErrMalformedRow = errors.New("malformed historical data row")
)

var (
	priceScale    = decimal.NewFromInt(common.PriceScale)
	quantityScale = decimal.NewFromInt(common.QuantityScale)
)

// parsePrice converts a decimal price string to scaled integer micro-units
func parsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Mul(priceScale).Round(0).IntPart(), nil
}

// parseQuantity converts a decimal contract quantity to scaled hundredths
func parseQuantity(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Mul(quantityScale).Round(0).IntPart(), nil
}

// LoadTicks reads a session's raw top of book refreshes from a CSV file
// with columns timestamp,bid,ask,bid_qty,ask_qty
func LoadTicks(path string) ([]TOBTick, error) {
	rows, err := readCSV(path, 5)
	if err != nil {
		return nil, err
	}
	out := make([]TOBTick, 0, len(rows))
	for i, row := range rows {
		var tick TOBTick
		if tick.Time, err = time.Parse(time.RFC3339Nano, row[0]); err != nil {
			return nil, rowErr(path, i, err)
		}
		if tick.Bid, err = parsePrice(row[1]); err != nil {
			return nil, rowErr(path, i, err)
		}
		if tick.Ask, err = parsePrice(row[2]); err != nil {
			return nil, rowErr(path, i, err)
		}
		if tick.BidQty, err = parseQuantity(row[3]); err != nil {
			return nil, rowErr(path, i, err)
		}
		if tick.AskQty, err = parseQuantity(row[4]); err != nil {
			return nil, rowErr(path, i, err)
		}
		out = append(out, tick)
	}
	return out, nil
}

// LoadTrades reads a session's raw client trades from a CSV file with
// columns timestamp,instrument_id,account_id,counterparty_id,venue,price,
// quantity,unit_price,currency,rate_to_usd,price_increment
func LoadTrades(path string) ([]event.Event, error) {
	rows, err := readCSV(path, 11)
	if err != nil {
		return nil, err
	}
	out := make([]event.Event, 0, len(rows))
	for i, row := range rows {
		ev := event.Event{Type: common.TradeEvent, Instrument: row[1], Venue: row[4], Currency: row[8]}
		if ev.Time, err = time.Parse(time.RFC3339Nano, row[0]); err != nil {
			return nil, rowErr(path, i, err)
		}
		if ev.Account, err = strconv.ParseInt(row[2], 10, 64); err != nil {
			return nil, rowErr(path, i, err)
		}
		if ev.Counterparty, err = strconv.ParseInt(row[3], 10, 64); err != nil {
			return nil, rowErr(path, i, err)
		}
		if ev.Price, err = parsePrice(row[5]); err != nil {
			return nil, rowErr(path, i, err)
		}
		if ev.Quantity, err = parseQuantity(row[6]); err != nil {
			return nil, rowErr(path, i, err)
		}
		if ev.UnitPrice, err = strconv.ParseInt(row[7], 10, 64); err != nil {
			return nil, rowErr(path, i, err)
		}
		if ev.RateToUSD, err = strconv.ParseFloat(row[9], 64); err != nil {
			return nil, rowErr(path, i, err)
		}
		if ev.PriceIncrement, err = parsePrice(row[10]); err != nil {
			return nil, rowErr(path, i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// LoadMigrations reads snapshot derived account migration events from a CSV
// file with columns timestamp,instrument_id,account_id,booking_risk. An
// empty instrument_id rebalances every instrument the account trades
func LoadMigrations(path string) ([]event.Event, error) {
	rows, err := readCSV(path, 4)
	if err != nil {
		return nil, err
	}
	out := make([]event.Event, 0, len(rows))
	for i, row := range rows {
		ev := event.Event{Type: common.AccountMigrationEvent, Instrument: row[1]}
		if ev.Time, err = time.Parse(time.RFC3339Nano, row[0]); err != nil {
			return nil, rowErr(path, i, err)
		}
		if ev.Account, err = strconv.ParseInt(row[2], 10, 64); err != nil {
			return nil, rowErr(path, i, err)
		}
		if ev.BookingRisk, err = strconv.ParseFloat(row[3], 64); err != nil {
			return nil, rowErr(path, i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func readCSV(path string, columns int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", common.ErrData, ErrMissingDataFile, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = columns
	var rows [][]string
	header := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w: %s: %v", common.ErrData, ErrMalformedRow, path, err)
		}
		// tolerate a header row
		if header {
			header = false
			if _, convErr := time.Parse(time.RFC3339Nano, row[0]); convErr != nil {
				continue
			}
		}
		rows = append(rows, row)
	}
}

func rowErr(path string, i int, err error) error {
	return fmt.Errorf("%w: %w: %s row %d: %v", common.ErrData, ErrMalformedRow, path, i+1, err)
}
