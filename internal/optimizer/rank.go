package optimizer

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// BuildCandidate evaluates one store against the basket. Each available line
// gets subtotal = round2(price * qty); the total is round2 of the sum of the
// already rounded subtotals. Missing lines emit no breakdown entry.
func BuildCandidate(agg *StoreAggregate, items []BasketItem) *StoreCandidate {
	c := &StoreCandidate{
		StoreID:    agg.StoreID,
		StoreName:  agg.StoreName,
		ChainName:  agg.ChainName,
		City:       agg.City,
		DistanceKm: agg.DistanceKm,
		Breakdown:  make([]BreakdownLine, 0, len(items)),
	}

	total := decimal.Zero
	for _, item := range items {
		price, ok := agg.Prices[item.ProductID]
		if !ok {
			c.MissingCount++
			continue
		}

		subtotal := Round2(price.Mul(decimal.NewFromInt(int64(item.Qty))))
		c.Breakdown = append(c.Breakdown, BreakdownLine{
			ProductID: item.ProductID,
			Price:     price,
			Qty:       item.Qty,
			Subtotal:  subtotal,
		})
		total = total.Add(subtotal)
		c.AvailableCount++
	}
	c.Total = Round2(total)

	return c
}

// BuildCandidates evaluates every aggregated store. Output order is not
// meaningful until SortCandidates runs.
func BuildCandidates(stores map[int64]*StoreAggregate, items []BasketItem) []*StoreCandidate {
	candidates := make([]*StoreCandidate, 0, len(stores))
	for _, agg := range stores {
		candidates = append(candidates, BuildCandidate(agg, items))
	}
	return candidates
}

// SortCandidates orders candidates by missing count (ascending), then total
// (ascending), then store ID (ascending) so ties are deterministic.
func SortCandidates(candidates []*StoreCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		// 1. Fewer missing items
		if a.MissingCount != b.MissingCount {
			return a.MissingCount < b.MissingCount
		}

		// 2. Lower total
		if cmp := a.Total.Cmp(b.Total); cmp != 0 {
			return cmp < 0
		}

		// 3. Tie-breaker
		return a.StoreID < b.StoreID
	})
}

// RankCandidates builds, sorts and truncates candidates to topN.
// The returned count is the number of stores evaluated before truncation.
func RankCandidates(stores map[int64]*StoreAggregate, items []BasketItem, topN int) ([]*StoreCandidate, int) {
	candidates := BuildCandidates(stores, items)
	SortCandidates(candidates)

	searched := len(candidates)
	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates, searched
}
