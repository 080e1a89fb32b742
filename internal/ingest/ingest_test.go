package ingest

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hypeauction/market-engine/internal/store"
	"github.com/hypeauction/market-engine/internal/upstream"
	"github.com/hypeauction/market-engine/pkg/models"
)

type fakeUpstream struct {
	pages map[int]*upstream.PageResponse
	calls int
}

func (f *fakeUpstream) FetchPage(ctx context.Context, page int) (*upstream.PageResponse, error) {
	f.calls++
	p, ok := f.pages[page]
	if !ok {
		return &upstream.PageResponse{Success: true, TotalPages: 1, Auctions: nil}, nil
	}
	return p, nil
}

type fakeStore struct {
	upserted      []models.Auction
	markedCutoff  int64
	finalizeCalls int
	backfillCalls int
}

func (f *fakeStore) BulkUpsertAuctions(ctx context.Context, rows []models.Auction) error {
	f.upserted = append(f.upserted, rows...)
	return nil
}
func (f *fakeStore) MarkUnseenEnded(ctx context.Context, cutoffTS int64) (int64, error) {
	f.markedCutoff = cutoffTS
	return 0, nil
}
func (f *fakeStore) SelectEndedToFinalize(ctx context.Context, cutoffTS int64, limit int) ([]store.EndedCandidate, error) {
	f.finalizeCalls++
	return nil, nil
}
func (f *fakeStore) FinalizeEnded(ctx context.Context, candidates []store.EndedCandidate, deriveSignature store.DeriveSignatureFn) error {
	return nil
}
func (f *fakeStore) SelectSalesMissingItemKey(ctx context.Context, limit int) (map[string]string, error) {
	f.backfillCalls++
	return nil, nil
}
func (f *fakeStore) UpdateSaleItemKey(ctx context.Context, uuid, key string) error {
	return nil
}

func newTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestRunOnceUpsertsFetchedAuctions(t *testing.T) {
	up := &fakeUpstream{pages: map[int]*upstream.PageResponse{
		0: {Success: true, TotalPages: 2, Auctions: []upstream.AuctionPayload{
			{UUID: "a1", ItemName: "Test Sword", BIN: true, StartingBid: 100},
		}},
		1: {Success: true, TotalPages: 2, Auctions: []upstream.AuctionPayload{
			{UUID: "a2", ItemName: "Other Sword", BIN: false, StartingBid: 50},
		}},
	}}
	st := &fakeStore{}
	loop := New(st, up, newTestLogger(), 200, time.Minute)

	if err := loop.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if len(st.upserted) != 2 {
		t.Fatalf("upserted %d rows, want 2", len(st.upserted))
	}
	if st.finalizeCalls != 1 {
		t.Errorf("finalize called %d times, want 1 (no candidates returned)", st.finalizeCalls)
	}
	if st.backfillCalls != 1 {
		t.Errorf("backfill called %d times, want 1", st.backfillCalls)
	}
}

func TestRunOnceSkipsWhenAlreadyRunning(t *testing.T) {
	st := &fakeStore{}
	up := &fakeUpstream{pages: map[int]*upstream.PageResponse{}}
	loop := New(st, up, newTestLogger(), 200, time.Minute)
	loop.running.Store(true)

	if err := loop.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if len(st.upserted) != 0 {
		t.Errorf("expected no upserts while a cycle is already marked running")
	}
}
