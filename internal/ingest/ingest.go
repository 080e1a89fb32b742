// Package ingest runs the full-snapshot polling cycle: paginated fetch,
// bulk upsert, unseen-mark, finalize-ended promotion, and item-key
// backfill maintenance. The loop never overlaps itself: a ticker drives
// cycles, and an atomic re-entrancy guard skips a tick if the previous
// cycle is still running.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hypeauction/market-engine/internal/signature"
	"github.com/hypeauction/market-engine/internal/store"
	"github.com/hypeauction/market-engine/internal/textnorm"
	"github.com/hypeauction/market-engine/internal/upstream"
	"github.com/hypeauction/market-engine/pkg/models"
)

const (
	interPageDelay        = 90 * time.Millisecond
	unseenGraceDefault    = 60 * time.Second
	finalizeLimit         = 5000
	finalizeMaxIterations = 60
	backfillLimit         = 20_000
)

// UpstreamClient is the subset of *upstream.Client the loop depends on.
type UpstreamClient interface {
	FetchPage(ctx context.Context, page int) (*upstream.PageResponse, error)
}

// Store is the subset of *store.Store the loop depends on.
type Store interface {
	BulkUpsertAuctions(ctx context.Context, rows []models.Auction) error
	MarkUnseenEnded(ctx context.Context, cutoffTS int64) (int64, error)
	SelectEndedToFinalize(ctx context.Context, cutoffTS int64, limit int) ([]store.EndedCandidate, error)
	FinalizeEnded(ctx context.Context, candidates []store.EndedCandidate, deriveSignature store.DeriveSignatureFn) error
	SelectSalesMissingItemKey(ctx context.Context, limit int) (map[string]string, error)
	UpdateSaleItemKey(ctx context.Context, uuid, key string) error
}

// Loop runs ingest cycles, either on a fixed interval or one-shot.
type Loop struct {
	st       Store
	upstream UpstreamClient
	log      *zap.SugaredLogger

	maxPages    int
	unseenGrace time.Duration

	running atomic.Bool
	stats   atomic.Value // models.IngestCycleStats
}

// New builds an ingest loop.
func New(st Store, client UpstreamClient, log *zap.SugaredLogger, maxPages int, unseenGrace time.Duration) *Loop {
	if unseenGrace <= 0 {
		unseenGrace = unseenGraceDefault
	}
	l := &Loop{st: st, upstream: client, log: log, maxPages: maxPages, unseenGrace: unseenGrace}
	l.stats.Store(models.IngestCycleStats{})
	return l
}

// Stats returns a snapshot of the most recently completed (or in-flight)
// cycle's progress counters.
func (l *Loop) Stats() models.IngestCycleStats {
	return l.stats.Load().(models.IngestCycleStats)
}

// Run drives cycles on the given interval until ctx is cancelled. It never
// overlaps itself: if a cycle is still running when the ticker fires, the
// tick is skipped.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.runCycle(ctx)
		}
	}
}

// RunOnce executes exactly one cycle and returns its outcome, for the
// one-shot CLI job form and the manual maintenance trigger endpoint.
func (l *Loop) RunOnce(ctx context.Context) error {
	return l.runCycle(ctx)
}

func (l *Loop) runCycle(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		l.log.Warn("ingest: cycle already running, skipping tick")
		return nil
	}
	defer l.running.Store(false)

	start := time.Now()
	cycleID := uuid.New().String()
	stats := models.IngestCycleStats{CycleID: cycleID, Running: true, LastCycleStartedAt: start.UnixMilli()}
	l.stats.Store(stats)

	err := l.doCycle(ctx, &stats)
	stats.Running = false
	stats.LastCycleOK = err == nil
	if err != nil {
		stats.LastError = err.Error()
		l.log.Errorw("ingest: cycle failed", "cycle", cycleID, "error", err)
	} else {
		l.log.Infow("ingest: cycle complete",
			"cycle", cycleID, "pages", stats.PagesFetched, "upserted", stats.RowsUpserted,
			"finalized", stats.RowsFinalized, "backfilled", stats.RowsBackfilled,
			"duration", time.Since(start))
	}
	l.stats.Store(stats)
	return err
}

func (l *Loop) doCycle(ctx context.Context, stats *models.IngestCycleStats) error {
	page0, err := l.upstream.FetchPage(ctx, 0)
	if err != nil {
		return fmt.Errorf("ingest: fetch page 0: %w", err)
	}
	totalPages := page0.TotalPages
	if totalPages > l.maxPages {
		totalPages = l.maxPages
	}
	if totalPages < 1 {
		totalPages = 1
	}

	pages := []*upstream.PageResponse{page0}
	for p := 1; p < totalPages; p++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interPageDelay):
		}
		page, err := l.upstream.FetchPage(ctx, p)
		if err != nil {
			return fmt.Errorf("ingest: fetch page %d: %w", p, err)
		}
		pages = append(pages, page)
	}
	stats.PagesFetched = len(pages)

	now := time.Now().UnixMilli()
	var rows []models.Auction
	for _, page := range pages {
		for _, a := range page.Auctions {
			rows = append(rows, toAuctionRow(a, now))
		}
	}

	if err := l.st.BulkUpsertAuctions(ctx, rows); err != nil {
		return fmt.Errorf("ingest: bulk upsert: %w", err)
	}
	stats.RowsUpserted = len(rows)

	cutoff := now - l.unseenGrace.Milliseconds()
	endedCount, err := l.st.MarkUnseenEnded(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("ingest: mark unseen ended: %w", err)
	}
	stats.RowsEnded = int(endedCount)

	finalized, err := l.finalizeEnded(ctx, now)
	if err != nil {
		return fmt.Errorf("ingest: finalize ended: %w", err)
	}
	stats.RowsFinalized = finalized

	backfilled, err := l.backfillItemKeys(ctx)
	if err != nil {
		return fmt.Errorf("ingest: backfill item keys: %w", err)
	}
	stats.RowsBackfilled = backfilled

	return nil
}

// shouldBuildSignature decides whether an incoming row warrants a fresh
// signature build: BIN, has lore/bytes, or the name contains star-like
// glyphs or weird digits.
func shouldBuildSignature(a upstream.AuctionPayload) bool {
	if a.BIN || a.ItemLore != "" || a.ItemBytes != "" {
		return true
	}
	for _, r := range a.ItemName {
		if textnorm.StarGlyphs[r] {
			return true
		}
	}
	return a.ItemName != textnorm.NormalizeWeirdDigits(a.ItemName)
}

func toAuctionRow(a upstream.AuctionPayload, now int64) models.Auction {
	row := models.Auction{
		UUID:        a.UUID,
		ItemName:    a.ItemName,
		ItemKey:     textnorm.CanonicalItemKey(a.ItemName),
		BIN:         a.BIN,
		StartTS:     a.Start,
		EndTS:       a.End,
		StartingBid: a.StartingBid,
		HighestBid:  a.HighestBid,
		Tier:        a.Tier,
		ItemLore:    a.ItemLore,
		ItemBytes:   a.ItemBytes,
		LastSeenTS:  now,
	}
	if shouldBuildSignature(a) {
		row.Signature = signature.Build(signature.Input{
			ItemName: a.ItemName, Lore: a.ItemLore, Tier: a.Tier, ItemBytes: a.ItemBytes,
		}, nil)
	}
	return row
}

func (l *Loop) finalizeEnded(ctx context.Context, now int64) (int, error) {
	total := 0
	for i := 0; i < finalizeMaxIterations; i++ {
		candidates, err := l.st.SelectEndedToFinalize(ctx, now, finalizeLimit)
		if err != nil {
			return total, err
		}
		if len(candidates) == 0 {
			break
		}
		if err := l.st.FinalizeEnded(ctx, candidates, deriveSaleSignature); err != nil {
			return total, err
		}
		total += len(candidates)
		if len(candidates) < finalizeLimit {
			break
		}
	}
	return total, nil
}

func deriveSaleSignature(c store.EndedCandidate) string {
	return signature.Build(signature.Input{
		ItemName: c.ItemName, Lore: c.ItemLore, Tier: c.Tier, ItemBytes: c.ItemBytes,
	}, nil)
}

func (l *Loop) backfillItemKeys(ctx context.Context) (int, error) {
	missing, err := l.st.SelectSalesMissingItemKey(ctx, backfillLimit)
	if err != nil {
		return 0, err
	}
	count := 0
	for uuid, name := range missing {
		key := textnorm.CanonicalItemKey(name)
		if err := l.st.UpdateSaleItemKey(ctx, uuid, key); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
