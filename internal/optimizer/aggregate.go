package optimizer

import (
	"github.com/shopspring/decimal"
)

// AggregateStats reports what the aggregator did with its input.
type AggregateStats struct {
	Observations int // Rows consumed
	Skipped      int // Malformed or out-of-scope rows dropped
}

// rowFilter returns false for observations outside the request's scope.
type rowFilter func(obs *PriceObservation) bool

// AggregateStores builds one StoreAggregate per store from raw observations.
// Store metadata comes from the first valid row seen for the store; prices
// keep the minimum across all rows for the same (store, product) pair.
// Malformed rows are skipped silently.
func AggregateStores(observations []PriceObservation) (map[int64]*StoreAggregate, AggregateStats) {
	return aggregateStores(observations, nil)
}

func aggregateStores(observations []PriceObservation, allow rowFilter) (map[int64]*StoreAggregate, AggregateStats) {
	stores := make(map[int64]*StoreAggregate)
	stats := AggregateStats{Observations: len(observations)}

	for i := range observations {
		obs := &observations[i]
		if !isWellFormed(obs) {
			stats.Skipped++
			continue
		}
		if allow != nil && !allow(obs) {
			stats.Skipped++
			continue
		}

		agg, ok := stores[obs.StoreID]
		if !ok {
			agg = &StoreAggregate{
				StoreID:   obs.StoreID,
				StoreName: obs.StoreName,
				ChainName: obs.ChainName,
				City:      obs.City,
				Lat:       obs.Lat,
				Lng:       obs.Lng,
				Prices:    make(map[int64]decimal.Decimal),
			}
			stores[obs.StoreID] = agg
		}

		price := obs.Price.Decimal
		if current, seen := agg.Prices[obs.ProductID]; !seen || price.LessThan(current) {
			agg.Prices[obs.ProductID] = price
		}
	}

	return stores, stats
}

// isWellFormed rejects rows with a NULL or negative price or without store identity.
func isWellFormed(obs *PriceObservation) bool {
	if obs.StoreID <= 0 || obs.ProductID <= 0 {
		return false
	}
	if obs.StoreName == "" {
		return false
	}
	if !obs.Price.Valid || obs.Price.Decimal.IsNegative() {
		return false
	}
	return true
}
