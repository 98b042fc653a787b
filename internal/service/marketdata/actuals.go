package marketdata

import (
	"context"
	"time"

	drepo "StockCast/internal/domain/repository"
)

// PriceActuals derives realized returns from the stored daily closes.
type PriceActuals struct {
	prices drepo.PriceStore
}

func NewPriceActuals(prices drepo.PriceStore) *PriceActuals {
	return &PriceActuals{prices: prices}
}

// RealizedReturn is close(to)/close(from) - 1. The second return value is
// false when either close is not yet available, which callers treat as
// "not matured", not an error.
func (a *PriceActuals) RealizedReturn(ctx context.Context, stockID string, from, to time.Time) (float64, bool, error) {
	points, err := a.prices.History(ctx, stockID, from, to)
	if err != nil {
		return 0, false, err
	}
	var fromClose, toClose float64
	for _, p := range points {
		if p.TradeDate.Equal(from) {
			fromClose = p.Close
		}
		if p.TradeDate.Equal(to) {
			toClose = p.Close
		}
	}
	if fromClose <= 0 || toClose <= 0 {
		return 0, false, nil
	}
	return toClose/fromClose - 1, true, nil
}
