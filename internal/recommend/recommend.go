// Package recommend implements the recommendation query: sales lookup,
// match partitioning, price-pool statistics, scoring, top-3 ranking, and
// a live lowest-BIN scan.
package recommend

import (
	"context"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hypeauction/market-engine/internal/match"
	"github.com/hypeauction/market-engine/internal/signature"
	"github.com/hypeauction/market-engine/internal/store"
	"github.com/hypeauction/market-engine/pkg/models"
)

const (
	maxSalesFetch = 50_000
	salesWindowMS = int64(120 * 24 * 60 * 60 * 1000) // 120-day window
	liveWindowMS  = int64(8 * 60 * 1000)             // 8-minute alive window
	maxLiveFetch  = 6_000
)

// Store is the subset of *store.Store the recommender depends on.
type Store interface {
	QueryRecentSalesByItem(ctx context.Context, itemKey string, sinceTS int64, limit int) ([]store.SaleRow, error)
	QueryLiveBINByItem(ctx context.Context, itemKey string, sinceTS int64, limit int) ([]store.LiveAuctionRow, error)
}

// Query is one recommendation request.
type Query struct {
	ItemKey           string
	RequestedStars10  int
	RequestedEnchants []models.EnchantRequest
	Filters           models.FilterBundle
}

type scoredCandidate struct {
	row     store.SaleRow
	details match.Details
	score   float64
}

// Recommend runs the full algorithm and returns the structured result.
func Recommend(ctx context.Context, st Store, q Query, nowMS int64) (*models.RecommendResult, error) {
	sales, err := st.QueryRecentSalesByItem(ctx, q.ItemKey, nowMS-salesWindowMS, maxSalesFetch)
	if err != nil {
		return nil, err
	}

	var perfect, partial []scoredCandidate
	for _, sale := range sales {
		sig := sale.Signature
		if sig == "" {
			sig = signature.Build(signature.Input{
				ItemName:  sale.ItemName,
				Lore:      sale.ItemLore,
				Tier:      sale.Tier,
				ItemBytes: sale.ItemBytes,
			}, nil)
		}
		details := match.EvaluateDetailed(q.RequestedStars10, q.RequestedEnchants, q.Filters, sig, nil)
		sc := scoredCandidate{row: sale, details: details, score: score(details)}
		switch details.Quality {
		case models.MatchPerfect:
			perfect = append(perfect, sc)
		case models.MatchPartial:
			partial = append(partial, sc)
		}
	}

	pool := perfect
	if len(pool) == 0 {
		pool = partial
	}

	result := &models.RecommendResult{}
	if len(pool) > 0 {
		prices := make([]int64, len(pool))
		for i, c := range pool {
			prices[i] = c.row.Price
		}
		med := medianPrice(prices)
		lo := percentilePrice(prices, 15)
		hi := percentilePrice(prices, 85)
		result.Recommended = &med
		result.RangeLow = &lo
		result.RangeHigh = &hi
		result.RangeCount = len(pool)
	} else {
		result.Note = "no comparable sales found; pick a narrower filter or a different item"
	}

	ranked := append(append([]scoredCandidate{}, perfect...), partial...)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.row.EndedTS != b.row.EndedTS {
			return a.row.EndedTS > b.row.EndedTS
		}
		return a.row.Price < b.row.Price
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	for _, c := range ranked {
		result.Top3 = append(result.Top3, toRecommendItem(c, q.RequestedEnchants))
	}

	live, err := liveBest(ctx, st, q, nowMS)
	if err != nil {
		return nil, err
	}
	result.Live = live

	return result, nil
}

// score computes penalty = 2*stars_diff + enchant_diff,
// score = max(0, 10 - penalty).
func score(d match.Details) float64 {
	penalty := 2*float64(d.StarsDiff) + float64(d.EnchantDiffSum)
	s := 10 - penalty
	if s < 0 {
		s = 0
	}
	return s
}

func toRecommendItem(c scoredCandidate, requested []models.EnchantRequest) models.RecommendItem {
	item := models.RecommendItem{
		UUID:     c.row.UUID,
		ItemName: c.row.ItemName,
		Price:    c.row.Price,
		EndedTS:  c.row.EndedTS,
		Tier:     c.row.Tier,
		Stars10:  c.details.Stars10,
		Score:    c.score,
	}
	for _, req := range requested {
		if lvl, ok := c.details.Enchants[req.Name]; ok {
			item.Matched = append(item.Matched, models.EnchantRequest{Name: req.Name, Level: lvl})
		}
	}
	for name, lvl := range c.details.Enchants {
		item.AllEnchants = append(item.AllEnchants, models.EnchantRequest{Name: name, Level: lvl})
	}
	sort.Slice(item.AllEnchants, func(i, j int) bool {
		bi := match.DefaultTierLookup.Bucket(item.AllEnchants[i].Name, item.AllEnchants[i].Level)
		bj := match.DefaultTierLookup.Bucket(item.AllEnchants[j].Name, item.AllEnchants[j].Level)
		if bi != bj {
			return bi > bj
		}
		return item.AllEnchants[i].Name < item.AllEnchants[j].Name
	})
	return item
}

func liveBest(ctx context.Context, st Store, q Query, nowMS int64) (*models.RecommendItem, error) {
	rows, err := st.QueryLiveBINByItem(ctx, q.ItemKey, nowMS-liveWindowMS, maxLiveFetch)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		sig := row.Signature
		if sig == "" {
			sig = signature.Build(signature.Input{
				ItemName:  row.ItemName,
				Lore:      row.ItemLore,
				Tier:      row.Tier,
				ItemBytes: row.ItemBytes,
			}, nil)
		}
		details := match.EvaluateDetailed(q.RequestedStars10, q.RequestedEnchants, q.Filters, sig, nil)
		if details.Quality == models.MatchNone {
			continue
		}
		item := toRecommendItem(scoredCandidate{
			row: store.SaleRow{
				UUID:     row.UUID,
				ItemName: row.ItemName,
				Price:    row.StartingBid,
				Tier:     row.Tier,
			},
			details: details,
			score:   score(details),
		}, q.RequestedEnchants)
		return &item, nil
	}
	return nil, nil
}

// medianPrice and percentilePrice use shopspring/decimal so the pooled
// price arithmetic never passes through lossy float64 intermediates.
func medianPrice(prices []int64) int64 {
	sorted := sortedCopy(prices)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	sum := decimal.NewFromInt(sorted[n/2-1]).Add(decimal.NewFromInt(sorted[n/2]))
	return sum.Div(decimal.NewFromInt(2)).Round(0).IntPart()
}

func percentilePrice(prices []int64, pct float64) int64 {
	sorted := sortedCopy(prices)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := decimal.NewFromFloat(pct / 100).Mul(decimal.NewFromInt(int64(n - 1)))
	lowIdx := int(math.Floor(rank.InexactFloat64()))
	highIdx := int(math.Ceil(rank.InexactFloat64()))
	if lowIdx == highIdx {
		return sorted[lowIdx]
	}
	frac := rank.Sub(decimal.NewFromInt(int64(lowIdx)))
	low := decimal.NewFromInt(sorted[lowIdx])
	high := decimal.NewFromInt(sorted[highIdx])
	interp := low.Add(high.Sub(low).Mul(frac))
	return interp.Round(0).IntPart()
}

func sortedCopy(prices []int64) []int64 {
	out := append([]int64{}, prices...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
