package models

import "time"

// PricePoint is one daily OHLCV observation for a stock. Immutable once
// written for a given (StockID, TradeDate); series are append-only and
// ordered by TradeDate ascending.
type PricePoint struct {
	StockID   string
	Region    string
	TradeDate time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Trade is a single tick from the live market stream. Timestamp is unix
// seconds.
type Trade struct {
	Symbol    string
	Timestamp int64
	Price     float64
	Volume    float64
}

// Bar is a daily OHLCV message as delivered on the ingestion topic.
// Producers disagree on the close field name; ClosingPrice folds close and
// close_price into one value at the boundary.
type Bar struct {
	StockID    string  `json:"stock_id"`
	Region     string  `json:"region"`
	Date       string  `json:"date"` // YYYY-MM-DD
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	ClosePrice float64 `json:"close_price"`
	Volume     float64 `json:"volume"`
}

func (b Bar) ClosingPrice() float64 {
	if b.Close != 0 {
		return b.Close
	}
	return b.ClosePrice
}
