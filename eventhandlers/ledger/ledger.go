package ledger

import (
	"fmt"
	"time"

	"github.com/quantfx/fxbacktester/common"
)

// NewPosition creates an empty position for the given key
func NewPosition(key PositionKey, unitPrice, priceIncrement int64, currency string, netting common.NettingType) (*Position, error) {
	if unitPrice <= 0 {
		return nil, fmt.Errorf("%w: %w: %v", common.ErrValidation, errZeroUnitPrice, unitPrice)
	}
	if netting != common.FIFONetting && netting != common.LIFONetting && netting != common.AVGNetting {
		return nil, fmt.Errorf("%w: %w", common.ErrConfig, errUnknownNetting)
	}
	return &Position{
		Key:            key,
		UnitPrice:      unitPrice,
		PriceIncrement: priceIncrement,
		Currency:       currency,
		Netting:        netting,
		ExitState:      make(map[string]float64),
	}, nil
}

// NetPosition returns the cached sum of open lot quantities
func (p *Position) NetPosition() int64 {
	return p.netPosition
}

// AverageOpenPrice returns the quantity weighted average price of the open
// lots, zero when flat
func (p *Position) AverageOpenPrice() int64 {
	var qty, cost int64
	for _, l := range p.OpenLots {
		qty += common.Abs(l.Quantity)
		cost += common.Abs(l.Quantity) * l.Price
	}
	if qty == 0 {
		return 0
	}
	return (cost + qty/2) / qty
}

// OnTrade applies a signed trade to the position. Incoming quantity shares
// the open direction extends, an opposing quantity consumes open lots head
// first (FIFO), tail first (LIFO) or against the single average lot, any
// residual re-opens in the opposite direction. The caller is expected to have
// validated the trade already, zero quantities are no-ops
func (p *Position) OnTrade(qty, price int64, rate float64, ts time.Time) (TradeResult, error) {
	var res TradeResult
	if qty == 0 {
		return res, nil
	}
	if price <= 0 {
		return res, fmt.Errorf("%w: %w: %v", common.ErrRuntime, errNegativePrice, price)
	}
	if rate <= 0 {
		return res, fmt.Errorf("%w: %w: %v", common.ErrRuntime, errNonPositiveRate, rate)
	}

	if p.netPosition == 0 || common.Sign(p.netPosition) == common.Sign(qty) {
		p.extend(qty, price, ts)
		res.Opened = qty
		return res, nil
	}

	remaining := common.Abs(qty)
	closeSign := common.Sign(qty)
	for remaining > 0 && len(p.OpenLots) > 0 {
		lot := p.nextLotToConsume()
		if common.Sign(lot.Quantity) == closeSign {
			return res, fmt.Errorf("%w: %w", common.ErrRuntime, errMixedSignOpenLots)
		}
		matched := common.Min64(remaining, common.Abs(lot.Quantity))
		realised, realisedUSD := p.realise(lot, matched, price, rate)
		res.Realised += realised
		res.RealisedUSD += realisedUSD
		res.Closed += matched

		p.ClosedLots = append(p.ClosedLots, ClosedLot{
			Quantity:    matched * common.Sign(lot.Quantity),
			OpenPrice:   lot.Price,
			ClosePrice:  price,
			OpenTime:    lot.Time,
			CloseTime:   ts,
			Realised:    realised,
			RealisedUSD: realisedUSD,
			RateToUSD:   rate,
		})

		lot.Quantity -= matched * common.Sign(lot.Quantity)
		p.netPosition -= matched * common.Sign(p.netPosition)
		remaining -= matched
		if lot.Quantity == 0 {
			p.removeLot(lot)
		}
	}

	p.RealisedPNL += res.RealisedUSD

	if remaining > 0 {
		// crossing trade, the residual opens in the new direction at the
		// trade price regardless of netting engine
		p.extend(remaining*closeSign, price, ts)
		res.Opened = remaining * closeSign
	}
	return res, nil
}

// UnrealisedUSD marks the open lots against the given price
func (p *Position) UnrealisedUSD(mark int64, rate float64) float64 {
	var total float64
	for _, l := range p.OpenLots {
		diff := float64(mark-l.Price) * float64(common.Abs(l.Quantity)) * float64(common.Sign(l.Quantity))
		total += diff * rate / (float64(p.UnitPrice) * float64(common.PriceScale))
	}
	return total
}

func (p *Position) extend(qty, price int64, ts time.Time) {
	if p.Netting == common.AVGNetting && len(p.OpenLots) == 1 {
		lot := p.OpenLots[0]
		oldAbs := common.Abs(lot.Quantity)
		addAbs := common.Abs(qty)
		lot.Price = (oldAbs*lot.Price + addAbs*price + (oldAbs+addAbs)/2) / (oldAbs + addAbs)
		lot.Quantity += qty
		lot.Time = ts
		p.netPosition += qty
		return
	}
	p.nextLotID++
	p.OpenLots = append(p.OpenLots, &Lot{
		ID:       p.nextLotID,
		Quantity: qty,
		Price:    price,
		Time:     ts,
	})
	p.netPosition += qty
}

func (p *Position) nextLotToConsume() *Lot {
	switch p.Netting {
	case common.LIFONetting:
		return p.OpenLots[len(p.OpenLots)-1]
	default:
		// FIFO and AVG both consume the head, AVG only ever holds one lot
		return p.OpenLots[0]
	}
}

func (p *Position) removeLot(lot *Lot) {
	for i := range p.OpenLots {
		if p.OpenLots[i] == lot {
			p.OpenLots = append(p.OpenLots[:i], p.OpenLots[i+1:]...)
			return
		}
	}
}

// realise computes the PnL of closing matched units of lot at price.
// Formula: (close - open) * matched * sign(open) * rate / (unit price * price scale)
func (p *Position) realise(lot *Lot, matched, price int64, rate float64) (realised, realisedUSD float64) {
	diff := float64(price-lot.Price) * float64(matched) * float64(common.Sign(lot.Quantity))
	realised = diff / (float64(p.UnitPrice) * float64(common.PriceScale))
	return realised, realised * rate
}

// Validate checks internal invariants, used by tests and the driver's
// paranoid mode
func (p *Position) Validate() error {
	var sum int64
	var sign int64
	for _, l := range p.OpenLots {
		if l.Quantity == 0 {
			return fmt.Errorf("%w: zero quantity open lot %v", common.ErrRuntime, l.ID)
		}
		if sign == 0 {
			sign = common.Sign(l.Quantity)
		} else if common.Sign(l.Quantity) != sign {
			return fmt.Errorf("%w: %w", common.ErrRuntime, errMixedSignOpenLots)
		}
		sum += l.Quantity
	}
	if sum != p.netPosition {
		return fmt.Errorf("%w: open lots sum %v does not match net position %v", common.ErrRuntime, sum, p.netPosition)
	}
	if p.Netting == common.AVGNetting && len(p.OpenLots) > 1 {
		return fmt.Errorf("%w: average netting holds %v open lots", common.ErrRuntime, len(p.OpenLots))
	}
	if p.Netting == common.AVGNetting && len(p.OpenLots) == 1 && p.OpenLots[0].Quantity == 0 {
		return fmt.Errorf("%w: %w", common.ErrRuntime, errEmptyAverageLot)
	}
	return nil
}
