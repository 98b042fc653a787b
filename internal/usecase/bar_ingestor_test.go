package usecase

import (
	"context"
	"testing"
	"time"

	"StockCast/internal/domain/models"
)

type capturePriceStore struct {
	stored []*models.PricePoint
}

func (s *capturePriceStore) Init(ctx context.Context) error { return nil }

func (s *capturePriceStore) StoreBatch(ctx context.Context, points []*models.PricePoint) error {
	s.stored = append(s.stored, points...)
	return nil
}

func (s *capturePriceStore) History(ctx context.Context, stockID string, from, to time.Time) ([]*models.PricePoint, error) {
	return nil, nil
}

func (s *capturePriceStore) RegionStocks(ctx context.Context, region string) ([]string, error) {
	return nil, nil
}

func (s *capturePriceStore) IndexReturns(ctx context.Context, region string, n int) ([]float64, error) {
	return nil, nil
}

func (s *capturePriceStore) Health(ctx context.Context) error { return nil }
func (s *capturePriceStore) Close() error                     { return nil }

func TestBarIngestorStoresBar(t *testing.T) {
	store := &capturePriceStore{}
	ing := NewBarIngestor("bars", store, noopMetrics{})

	msg := []byte(`{"stock_id":"AAPL","region":"US","date":"2025-03-14","open":100,"high":102,"low":99,"close":101.5,"volume":1000}`)
	if err := ing.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.stored) != 1 {
		t.Fatalf("expected one stored point, got %d", len(store.stored))
	}
	p := store.stored[0]
	if p.StockID != "AAPL" || p.Close != 101.5 {
		t.Fatalf("unexpected point %+v", p)
	}
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	if !p.TradeDate.Equal(want) {
		t.Fatalf("got trade date %v want %v", p.TradeDate, want)
	}
}

func TestBarIngestorClosePriceAlias(t *testing.T) {
	store := &capturePriceStore{}
	ing := NewBarIngestor("bars", store, noopMetrics{})

	msg := []byte(`{"stock_id":"MSFT","region":"US","date":"2025-03-14","close_price":222.25,"volume":10}`)
	if err := ing.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.stored) != 1 || store.stored[0].Close != 222.25 {
		t.Fatalf("close_price alias not normalized: %+v", store.stored)
	}
}

func TestBarIngestorRejectsInvalid(t *testing.T) {
	store := &capturePriceStore{}
	ing := NewBarIngestor("bars", store, noopMetrics{})

	cases := []string{
		`{"region":"US","date":"2025-03-14","close":1}`,      // missing stock_id
		`{"stock_id":"A","date":"14/03/2025","close":1}`,     // bad date format
		`{"stock_id":"A","date":"2025-03-14"}`,               // no close at all
		`not json`,
	}
	for _, c := range cases {
		if err := ing.Handle(context.Background(), []byte(c)); err == nil {
			t.Fatalf("expected error for %s", c)
		}
	}
	if len(store.stored) != 0 {
		t.Fatalf("invalid bars must not be stored")
	}
}
