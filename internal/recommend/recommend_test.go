package recommend

import (
	"context"
	"testing"

	"github.com/hypeauction/market-engine/internal/store"
	"github.com/hypeauction/market-engine/pkg/models"
)

type fakeStore struct {
	sales []store.SaleRow
	live  []store.LiveAuctionRow
}

func (f *fakeStore) QueryRecentSalesByItem(ctx context.Context, itemKey string, sinceTS int64, limit int) ([]store.SaleRow, error) {
	return f.sales, nil
}

func (f *fakeStore) QueryLiveBINByItem(ctx context.Context, itemKey string, sinceTS int64, limit int) ([]store.LiveAuctionRow, error) {
	return f.live, nil
}

func TestRecommendPartitionsPerfectAndPartial(t *testing.T) {
	st := &fakeStore{
		sales: []store.SaleRow{
			{UUID: "a", ItemName: "Test Sword", Price: 1_000_000, EndedTS: 2000, Signature: "stars10:10|sharpness:7"},
			{UUID: "b", ItemName: "Test Sword", Price: 800_000, EndedTS: 1000, Signature: "stars10:9|sharpness:7"},
		},
	}
	q := Query{
		ItemKey:          "test sword",
		RequestedStars10: 10,
		RequestedEnchants: []models.EnchantRequest{
			{Name: "sharpness", Level: 7},
		},
	}

	got, err := Recommend(context.Background(), st, q, 1_000_000_000)
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if got.Recommended == nil || *got.Recommended != 1_000_000 {
		t.Errorf("Recommended = %v, want 1000000", got.Recommended)
	}
	if len(got.Top3) != 2 {
		t.Fatalf("Top3 len = %d, want 2", len(got.Top3))
	}
	if got.Top3[0].Price != 1_000_000 {
		t.Errorf("Top3[0].Price = %d, want the perfect match ranked first", got.Top3[0].Price)
	}
}

func TestRecommendNoComparableSales(t *testing.T) {
	st := &fakeStore{}
	q := Query{ItemKey: "nonexistent item"}
	got, err := Recommend(context.Background(), st, q, 1_000_000_000)
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if got.Recommended != nil {
		t.Errorf("expected nil Recommended, got %v", *got.Recommended)
	}
	if got.Note == "" {
		t.Errorf("expected a note explaining the empty result")
	}
}

func TestMedianPriceOddAndEven(t *testing.T) {
	if got := medianPrice([]int64{1, 2, 3}); got != 2 {
		t.Errorf("median odd = %d, want 2", got)
	}
	got := medianPrice([]int64{10, 20})
	if got != 15 {
		t.Errorf("median even = %d, want 15", got)
	}
}
