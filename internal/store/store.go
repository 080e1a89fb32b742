// Package store is the typed adapter over the auctions/sales tables. All
// operations share a single pgxpool.Pool; the two multi-row operations
// (bulk upsert, finalize-ended) each run inside their own transaction.
package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hypeauction/market-engine/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a pgx connection pool with the engine's domain operations.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// Connect opens the pool and verifies connectivity.
func Connect(ctx context.Context, connStr string, log *zap.SugaredLogger) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	log.Info("store: connected to postgres")
	return &Store{pool: pool, log: log}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema applies the embedded DDL. Idempotent (IF NOT EXISTS throughout).
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	s.log.Info("store: schema initialized")
	return nil
}

// mergeSignature implements the shared signature merge rule: keep the
// existing signature unless it is empty, the incoming
// signature introduces a pet_item token the existing lacks, or the two
// disagree on stars10 — in which case prefer incoming.
func mergeSignature(existing, incoming string) string {
	if existing == "" {
		return incoming
	}
	if incoming == "" {
		return existing
	}
	existingTokens := tokenSet(existing)
	incomingTokens := tokenSet(incoming)

	if _, ok := existingTokens["pet_item"]; !ok {
		if _, ok := incomingTokens["pet_item"]; ok {
			return incoming
		}
	}
	if existingTokens["stars10"] != incomingTokens["stars10"] && incomingTokens["stars10"] != "" {
		return incoming
	}
	return existing
}

func tokenSet(sig string) map[string]string {
	out := map[string]string{}
	start := 0
	for i := 0; i <= len(sig); i++ {
		if i == len(sig) || sig[i] == '|' {
			tok := sig[start:i]
			start = i + 1
			for j := 0; j < len(tok); j++ {
				if tok[j] == ':' {
					out[tok[:j]] = tok[j+1:]
					break
				}
			}
		}
	}
	return out
}

// BulkUpsertAuctions writes rows within a single transaction, applying the
// auction merge rule: mutable fields are replaced; item_lore/item_bytes are
// preserved when the incoming value is empty; is_ended resets to false (a
// refreshed sighting resurrects); uuid is the conflict key.
func (s *Store) BulkUpsertAuctions(ctx context.Context, rows []models.Auction) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin bulk upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsertSQL = `
		INSERT INTO auctions
			(uuid, item_name, item_key, bin, start_ts, end_ts, starting_bid, highest_bid,
			 tier, item_lore, item_bytes, last_seen_ts, signature, is_ended)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,false)
		ON CONFLICT (uuid) DO UPDATE SET
			item_name    = EXCLUDED.item_name,
			item_key     = EXCLUDED.item_key,
			bin          = EXCLUDED.bin,
			start_ts     = EXCLUDED.start_ts,
			end_ts       = EXCLUDED.end_ts,
			starting_bid = EXCLUDED.starting_bid,
			highest_bid  = EXCLUDED.highest_bid,
			tier         = EXCLUDED.tier,
			item_lore    = CASE WHEN EXCLUDED.item_lore = '' THEN auctions.item_lore ELSE EXCLUDED.item_lore END,
			item_bytes   = CASE WHEN EXCLUDED.item_bytes = '' THEN auctions.item_bytes ELSE EXCLUDED.item_bytes END,
			last_seen_ts = EXCLUDED.last_seen_ts,
			signature    = CASE
				WHEN auctions.signature IS NULL OR auctions.signature = '' THEN EXCLUDED.signature
				WHEN EXCLUDED.signature ~ '(^|\|)pet_item:' AND auctions.signature !~ '(^|\|)pet_item:' THEN EXCLUDED.signature
				WHEN substring(EXCLUDED.signature from '(?:^|\|)stars10:([0-9]+)') IS NOT NULL
				 AND substring(EXCLUDED.signature from '(?:^|\|)stars10:([0-9]+)')
				     IS DISTINCT FROM substring(auctions.signature from '(?:^|\|)stars10:([0-9]+)') THEN EXCLUDED.signature
				ELSE auctions.signature
			END,
			is_ended     = false
	`
	for _, row := range rows {
		_, err := tx.Exec(ctx, upsertSQL,
			row.UUID, row.ItemName, row.ItemKey, row.BIN, row.StartTS, row.EndTS,
			row.StartingBid, row.HighestBid, row.Tier, row.ItemLore, row.ItemBytes,
			row.LastSeenTS, row.Signature)
		if err != nil {
			return fmt.Errorf("store: upsert auction %s: %w", row.UUID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit bulk upsert: %w", err)
	}
	return nil
}

// MarkUnseenEnded sets is_ended=true for every auction whose last_seen_ts
// falls before the cutoff. This is the dead-by-absence rule.
func (s *Store) MarkUnseenEnded(ctx context.Context, cutoffTS int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE auctions SET is_ended = true WHERE last_seen_ts < $1 AND is_ended = false`, cutoffTS)
	if err != nil {
		return 0, fmt.Errorf("store: mark unseen ended: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EndedCandidate is an auction row eligible for finalize-ended promotion.
type EndedCandidate struct {
	UUID      string
	ItemName  string
	ItemKey   string
	BIN       bool
	Price     int64
	EndedTS   int64
	Tier      string
	Signature string
	ItemLore  string
	ItemBytes string
}

// SelectEndedToFinalize returns up to limit rows with end_ts <= cutoff that
// are not yet ended or are ended but have no corresponding sale row.
func (s *Store) SelectEndedToFinalize(ctx context.Context, cutoffTS int64, limit int) ([]EndedCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.uuid, a.item_name, a.item_key, a.bin, a.highest_bid, a.starting_bid,
		       a.end_ts, a.tier, a.signature, a.item_lore, a.item_bytes
		FROM auctions a
		LEFT JOIN sales s ON s.uuid = a.uuid
		WHERE a.end_ts <= $1 AND (a.is_ended = false OR s.uuid IS NULL)
		LIMIT $2
	`, cutoffTS, limit)
	if err != nil {
		return nil, fmt.Errorf("store: select ended to finalize: %w", err)
	}
	defer rows.Close()

	var out []EndedCandidate
	for rows.Next() {
		var c EndedCandidate
		var highestBid, startingBid int64
		if err := rows.Scan(&c.UUID, &c.ItemName, &c.ItemKey, &c.BIN, &highestBid, &startingBid,
			&c.EndedTS, &c.Tier, &c.Signature, &c.ItemLore, &c.ItemBytes); err != nil {
			return nil, fmt.Errorf("store: scan finalize candidate: %w", err)
		}
		if c.BIN {
			c.Price = startingBid
		} else {
			c.Price = highestBid
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FinalizeEnded upserts a sale row for each candidate (merging signature per
// the shared rule) and marks the auction row ended, inside one transaction.
// DeriveSignatureFn re-derives a signature for a candidate missing one.
type DeriveSignatureFn func(EndedCandidate) string

func (s *Store) FinalizeEnded(ctx context.Context, candidates []EndedCandidate, deriveSignature DeriveSignatureFn) error {
	if len(candidates) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin finalize: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range candidates {
		sig := c.Signature
		if sig == "" && deriveSignature != nil {
			sig = deriveSignature(c)
		}

		var existing string
		err := tx.QueryRow(ctx, `SELECT COALESCE(signature, '') FROM sales WHERE uuid = $1`, c.UUID).Scan(&existing)
		if err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("store: read existing sale signature: %w", err)
		}
		if existing != "" {
			sig = mergeSignature(existing, sig)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO sales (uuid, item_name, item_key, bin, price, ended_ts, tier, signature, item_lore, item_bytes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (uuid) DO UPDATE SET signature = EXCLUDED.signature
		`, c.UUID, c.ItemName, c.ItemKey, c.BIN, c.Price, c.EndedTS, c.Tier, sig, c.ItemLore, c.ItemBytes)
		if err != nil {
			return fmt.Errorf("store: upsert sale %s: %w", c.UUID, err)
		}

		if _, err := tx.Exec(ctx, `UPDATE auctions SET is_ended = true WHERE uuid = $1`, c.UUID); err != nil {
			return fmt.Errorf("store: mark auction ended %s: %w", c.UUID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit finalize: %w", err)
	}
	return nil
}

// SelectSalesMissingItemKey returns up to limit sale uuids/item_names whose
// item_key is null or empty.
func (s *Store) SelectSalesMissingItemKey(ctx context.Context, limit int) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT uuid, item_name FROM sales WHERE item_key IS NULL OR item_key = '' LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: select sales missing item key: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var uuid, name string
		if err := rows.Scan(&uuid, &name); err != nil {
			return nil, fmt.Errorf("store: scan missing item key row: %w", err)
		}
		out[uuid] = name
	}
	return out, rows.Err()
}

// UpdateSaleItemKey backfills a single sale's item_key.
func (s *Store) UpdateSaleItemKey(ctx context.Context, uuid, key string) error {
	_, err := s.pool.Exec(ctx, `UPDATE sales SET item_key = $1 WHERE uuid = $2`, key, uuid)
	if err != nil {
		return fmt.Errorf("store: update sale item key %s: %w", uuid, err)
	}
	return nil
}

// SaleRow is a historical sale returned from a recommendation query.
type SaleRow struct {
	UUID      string
	ItemName  string
	Price     int64
	EndedTS   int64
	Tier      string
	Signature string
	ItemLore  string
	ItemBytes string
}

// QueryRecentSalesByItem returns up to limit sales for item key with
// ended_ts >= sinceTS, newest first.
func (s *Store) QueryRecentSalesByItem(ctx context.Context, itemKey string, sinceTS int64, limit int) ([]SaleRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT uuid, item_name, price, ended_ts, COALESCE(tier,''), COALESCE(signature,''),
		       COALESCE(item_lore,''), COALESCE(item_bytes,'')
		FROM sales
		WHERE item_key = $1 AND ended_ts >= $2 AND price > 0
		ORDER BY ended_ts DESC
		LIMIT $3
	`, itemKey, sinceTS, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query recent sales: %w", err)
	}
	defer rows.Close()

	var out []SaleRow
	for rows.Next() {
		var r SaleRow
		if err := rows.Scan(&r.UUID, &r.ItemName, &r.Price, &r.EndedTS, &r.Tier, &r.Signature, &r.ItemLore, &r.ItemBytes); err != nil {
			return nil, fmt.Errorf("store: scan sale row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LiveAuctionRow is a candidate live listing returned from a live-BIN scan.
type LiveAuctionRow struct {
	UUID        string
	ItemName    string
	StartingBid int64
	Tier        string
	Signature   string
	ItemLore    string
	ItemBytes   string
}

// QueryLiveBINByItem returns up to limit live (non-ended) BIN auctions for
// item key whose last_seen_ts >= sinceTS, ordered by ascending starting bid.
func (s *Store) QueryLiveBINByItem(ctx context.Context, itemKey string, sinceTS int64, limit int) ([]LiveAuctionRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT uuid, item_name, starting_bid, COALESCE(tier,''), COALESCE(signature,''),
		       COALESCE(item_lore,''), COALESCE(item_bytes,'')
		FROM auctions
		WHERE item_key = $1 AND is_ended = false AND bin = true AND last_seen_ts >= $2
		ORDER BY starting_bid ASC
		LIMIT $3
	`, itemKey, sinceTS, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query live bin: %w", err)
	}
	defer rows.Close()

	var out []LiveAuctionRow
	for rows.Next() {
		var r LiveAuctionRow
		if err := rows.Scan(&r.UUID, &r.ItemName, &r.StartingBid, &r.Tier, &r.Signature, &r.ItemLore, &r.ItemBytes); err != nil {
			return nil, fmt.Errorf("store: scan live auction row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
