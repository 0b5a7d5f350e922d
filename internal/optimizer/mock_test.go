package optimizer

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// mockPriceSource is a mock implementation of PriceSource for testing.
// It applies the query the way a database would, unless raw is set.
type mockPriceSource struct {
	mu      sync.Mutex
	rows    []PriceObservation
	raw     bool // return every row, ignoring the query
	err     error
	calls   int
	queries []PriceQuery
}

func newMockPriceSource(rows ...PriceObservation) *mockPriceSource {
	return &mockPriceSource{rows: rows}
}

func (m *mockPriceSource) FetchPrices(ctx context.Context, q PriceQuery) ([]PriceObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.queries = append(m.queries, q)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.raw {
		return append([]PriceObservation(nil), m.rows...), nil
	}

	products := toSet(q.ProductIDs)
	stores := toSet(q.StoreIDs)

	var out []PriceObservation
	for _, r := range m.rows {
		if len(products) > 0 && !products[r.ProductID] {
			continue
		}
		if len(stores) > 0 && !stores[r.StoreID] {
			continue
		}
		if q.Box != nil && (r.Lat == nil || r.Lng == nil || !q.Box.Contains(*r.Lat, *r.Lng)) {
			continue
		}
		if q.PromoOnly && !r.IsPromo {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// obs builds a well-formed observation for a store without coordinates.
func obs(storeID, productID int64, price string) PriceObservation {
	return PriceObservation{
		StoreID:   storeID,
		ProductID: productID,
		Price:     decimal.NewNullDecimal(decimal.RequireFromString(price)),
		StoreName: storeName(storeID),
		ChainName: "Test Chain",
		City:      "Tel Aviv",
	}
}

// obsAt builds a well-formed observation for a store at the given position.
func obsAt(storeID, productID int64, price string, lat, lng float64) PriceObservation {
	o := obs(storeID, productID, price)
	o.Lat = &lat
	o.Lng = &lng
	return o
}

func promo(o PriceObservation) PriceObservation {
	o.IsPromo = true
	return o
}

func storeName(id int64) string {
	return "Store " + string(rune('A'+id-1))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
