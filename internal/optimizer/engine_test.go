package optimizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(ps PriceSource, mutate func(*Config)) *Engine {
	cfg := Defaults()
	if mutate != nil {
		mutate(cfg)
	}
	return NewEngine(ps, cfg, NewMetricsRecorder())
}

func TestBestStores_EndToEnd(t *testing.T) {
	ps := newMockPriceSource(
		obs(1, 1, "10.00"),
		obs(1, 2, "5.00"),
		obs(2, 1, "9.00"),
		obs(3, 99, "1.00"), // not in the basket
	)
	engine := newTestEngine(ps, nil)

	result, err := engine.BestStores(context.Background(), &OptimizeRequest{
		Items: []BasketItem{{ProductID: 1, Qty: 2}, {ProductID: 2, Qty: 1}},
	})

	require.NoError(t, err)
	require.True(t, result.Searched)
	assert.Equal(t, 2, result.TotalStoresSearched)
	require.Len(t, result.Candidates, 2)

	a, b := result.Candidates[0], result.Candidates[1]
	assert.Equal(t, int64(1), a.StoreID)
	assert.True(t, dec("25.00").Equal(a.Total))
	assert.Equal(t, 2, a.AvailableCount)
	assert.Equal(t, 0, a.MissingCount)

	assert.Equal(t, int64(2), b.StoreID)
	assert.True(t, dec("18.00").Equal(b.Total))
	assert.Equal(t, 1, b.AvailableCount)
	assert.Equal(t, 1, b.MissingCount)

	require.Len(t, ps.queries, 1)
	assert.ElementsMatch(t, []int64{1, 2}, ps.queries[0].ProductIDs)
	assert.Nil(t, ps.queries[0].Box)
	assert.Nil(t, a.DistanceKm)
}

func TestBestStores_EmptyBasketSkipsSource(t *testing.T) {
	ps := newMockPriceSource(obs(1, 1, "1.00"))
	engine := newTestEngine(ps, nil)

	result, err := engine.BestStores(context.Background(), &OptimizeRequest{})

	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.NotNil(t, result.Candidates)
	assert.False(t, result.Searched)
	assert.Equal(t, 0, ps.calls)

	result, err = engine.BestOnlineStores(context.Background(), &OptimizeRequest{Items: []BasketItem{}})
	require.NoError(t, err)
	assert.False(t, result.Searched)
	assert.Equal(t, 0, ps.calls)
}

func TestBestStores_EmptyBasketIgnoresOtherFields(t *testing.T) {
	ps := newMockPriceSource(obs(1, 1, "1.00"))
	engine := newTestEngine(ps, nil)

	requests := map[string]*OptimizeRequest{
		"negative topN":   {TopN: -1},
		"topN over max":   {TopN: 1000},
		"bad latitude":    {Location: &Location{Latitude: 95}},
		"negative radius": {RadiusKm: -3},
	}

	for name, req := range requests {
		t.Run(name, func(t *testing.T) {
			result, err := engine.BestStores(context.Background(), req)
			require.NoError(t, err)
			assert.Empty(t, result.Candidates)
			assert.False(t, result.Searched)

			result, err = engine.BestOnlineStores(context.Background(), req)
			require.NoError(t, err)
			assert.False(t, result.Searched)
		})
	}
	assert.Equal(t, 0, ps.calls)
}

func TestBestStores_NoMatches(t *testing.T) {
	ps := newMockPriceSource(obs(1, 5, "1.00"))
	engine := newTestEngine(ps, nil)

	result, err := engine.BestStores(context.Background(), &OptimizeRequest{
		Items: []BasketItem{{ProductID: 1, Qty: 1}},
	})

	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.True(t, result.Searched)
	assert.Equal(t, 0, result.TotalStoresSearched)
	assert.Equal(t, 1, ps.calls)
}

func TestBestStores_TruncatesToDefaultTopN(t *testing.T) {
	ps := newMockPriceSource()
	for id := int64(1); id <= 7; id++ {
		ps.rows = append(ps.rows, obs(id, 1, "1.00"))
	}
	engine := newTestEngine(ps, nil)

	result, err := engine.BestStores(context.Background(), &OptimizeRequest{
		Items: []BasketItem{{ProductID: 1, Qty: 1}},
	})

	require.NoError(t, err)
	assert.Len(t, result.Candidates, 5)
	assert.Equal(t, 7, result.TotalStoresSearched)
}

func TestBestStores_TopN(t *testing.T) {
	ps := newMockPriceSource()
	for id := int64(1); id <= 12; id++ {
		ps.rows = append(ps.rows, obs(id, 1, "1.00"))
	}
	engine := newTestEngine(ps, func(c *Config) { c.MaxTopN = 10 })
	items := []BasketItem{{ProductID: 1, Qty: 1}}

	tests := []struct {
		name string
		topN int
		want int
	}{
		{"default", 0, 5},
		{"explicit", 3, 3},
		{"at max", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.BestStores(context.Background(), &OptimizeRequest{Items: items, TopN: tt.topN})
			require.NoError(t, err)
			assert.Len(t, result.Candidates, tt.want)
			assert.Equal(t, 12, result.TotalStoresSearched)
		})
	}
}

func TestBestStores_GeoFilter(t *testing.T) {
	ps := newMockPriceSource(
		obsAt(1, 1, "5.00", 45.80, 15.97),
		obsAt(2, 1, "1.00", 46.50, 16.50), // far away
		obs(3, 1, "0.50"),                 // no coordinates
	)
	engine := newTestEngine(ps, nil)
	loc := &Location{Latitude: 45.81, Longitude: 15.98}

	result, err := engine.BestStores(context.Background(), &OptimizeRequest{
		Items:    []BasketItem{{ProductID: 1, Qty: 1}},
		Location: loc,
	})

	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, int64(1), result.Candidates[0].StoreID)
	assert.Equal(t, 1, result.TotalStoresSearched)
	require.NotNil(t, result.Candidates[0].DistanceKm)
	assert.InDelta(t, 1.37, *result.Candidates[0].DistanceKm, 0.05)

	require.Len(t, ps.queries, 1)
	box := ps.queries[0].Box
	require.NotNil(t, box)
	assert.InDelta(t, 45.81-10.0/111, box.MinLat, 1e-9)
	assert.InDelta(t, 15.98+10.0/111, box.MaxLng, 1e-9)
}

func TestBestStores_ExplicitRadius(t *testing.T) {
	ps := newMockPriceSource(
		obsAt(1, 1, "5.00", 45.80, 15.97),
		obsAt(2, 1, "1.00", 46.50, 16.50),
	)
	engine := newTestEngine(ps, nil)

	result, err := engine.BestStores(context.Background(), &OptimizeRequest{
		Items:    []BasketItem{{ProductID: 1, Qty: 1}},
		Location: &Location{Latitude: 45.81, Longitude: 15.98},
		RadiusKm: 111,
	})

	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, int64(2), result.Candidates[0].StoreID)
	assert.InDelta(t, 1.0, ps.queries[0].Box.MaxLat-45.81, 1e-9)
}

func TestBestStores_GeoFilterAppliesToRows(t *testing.T) {
	ps := newMockPriceSource(
		obsAt(1, 1, "5.00", 45.80, 15.97),
		obsAt(2, 1, "0.10", 10.00, 10.00), // thousands of km away
		obs(3, 1, "0.05"),                 // no coordinates
	)
	ps.raw = true // the source ignores Box
	engine := newTestEngine(ps, nil)

	result, err := engine.BestStores(context.Background(), &OptimizeRequest{
		Items:    []BasketItem{{ProductID: 1, Qty: 1}},
		Location: &Location{Latitude: 45.81, Longitude: 15.98},
	})

	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, int64(1), result.Candidates[0].StoreID)
	assert.Equal(t, 1, result.TotalStoresSearched)
}

func TestBestOnlineStores_AllowList(t *testing.T) {
	ps := newMockPriceSource(
		obs(1, 1, "1.00"),
		obs(10, 1, "3.00"),
		obs(11, 1, "2.00"),
	)
	ps.raw = true // the source ignores StoreIDs
	engine := newTestEngine(ps, func(c *Config) { c.OnlineStoreIDs = []int64{10, 11, 10} })

	result, err := engine.BestOnlineStores(context.Background(), &OptimizeRequest{
		Items:    []BasketItem{{ProductID: 1, Qty: 1}},
		Location: &Location{Latitude: 45.81, Longitude: 15.98},
		RadiusKm: 1,
	})

	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, int64(11), result.Candidates[0].StoreID)
	assert.Equal(t, int64(10), result.Candidates[1].StoreID)
	assert.Equal(t, 2, result.TotalStoresSearched)
	assert.Nil(t, result.Candidates[0].DistanceKm)

	require.Len(t, ps.queries, 1)
	assert.Equal(t, []int64{10, 11}, ps.queries[0].StoreIDs)
	assert.Nil(t, ps.queries[0].Box, "location is ignored for online stores")
}

func TestBestOnlineStores_IgnoresInvalidGeoFields(t *testing.T) {
	ps := newMockPriceSource(obs(7, 1, "1.00"))
	engine := newTestEngine(ps, func(c *Config) { c.OnlineStoreIDs = []int64{7} })

	req := &OptimizeRequest{
		Items:    []BasketItem{{ProductID: 1, Qty: 1}},
		Location: &Location{Latitude: 95, Longitude: 200},
		RadiusKm: -1,
	}
	result, err := engine.BestOnlineStores(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, int64(7), result.Candidates[0].StoreID)
	assert.Equal(t, 1, ps.calls)
	assert.Nil(t, ps.queries[0].Box)
	assert.NotNil(t, req.Location, "caller's request is left untouched")

	_, err = engine.BestStores(context.Background(), req)
	var invalid ErrInvalidRequest
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "radiusKm", invalid.Field)
}

func TestBestStores_IgnoresRowsOutsideBasket(t *testing.T) {
	ps := newMockPriceSource(
		obs(1, 1, "1.00"),
		obs(2, 99, "0.10"), // store 2 carries nothing from the basket
	)
	ps.raw = true
	engine := newTestEngine(ps, nil)

	result, err := engine.BestStores(context.Background(), &OptimizeRequest{
		Items: []BasketItem{{ProductID: 1, Qty: 1}},
	})

	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, int64(1), result.Candidates[0].StoreID)
	assert.Equal(t, 1, result.TotalStoresSearched)
}

func TestBestOnlineStores_DefaultTopN(t *testing.T) {
	ps := newMockPriceSource()
	var ids []int64
	for id := int64(1); id <= 12; id++ {
		ps.rows = append(ps.rows, obs(id, 1, "1.00"))
		ids = append(ids, id)
	}
	engine := newTestEngine(ps, func(c *Config) { c.OnlineStoreIDs = ids })

	result, err := engine.BestOnlineStores(context.Background(), &OptimizeRequest{
		Items: []BasketItem{{ProductID: 1, Qty: 1}},
	})

	require.NoError(t, err)
	assert.Len(t, result.Candidates, 10)
	assert.Equal(t, 12, result.TotalStoresSearched)
}

func TestBestOnlineStores_NoneConfigured(t *testing.T) {
	ps := newMockPriceSource(obs(1, 1, "1.00"))
	engine := newTestEngine(ps, nil)

	result, err := engine.BestOnlineStores(context.Background(), &OptimizeRequest{
		Items: []BasketItem{{ProductID: 1, Qty: 1}},
	})

	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.True(t, result.Searched)
	assert.Equal(t, 0, ps.calls)
}

func TestBestStores_DataSourceError(t *testing.T) {
	ps := newMockPriceSource(obs(1, 1, "1.00"))
	ps.err = errors.New("connection refused")
	engine := newTestEngine(ps, nil)

	result, err := engine.BestStores(context.Background(), &OptimizeRequest{
		Items: []BasketItem{{ProductID: 1, Qty: 1}},
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsDataSourceError(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBestStores_ContextCanceled(t *testing.T) {
	ps := newMockPriceSource(obs(1, 1, "1.00"))
	engine := newTestEngine(ps, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.BestStores(ctx, &OptimizeRequest{
		Items: []BasketItem{{ProductID: 1, Qty: 1}},
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsDataSourceError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

type slowPriceSource struct{}

func (slowPriceSource) FetchPrices(ctx context.Context, _ PriceQuery) ([]PriceObservation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBestStores_FetchTimeout(t *testing.T) {
	engine := newTestEngine(slowPriceSource{}, func(c *Config) { c.FetchTimeout = 20 * time.Millisecond })

	_, err := engine.BestStores(context.Background(), &OptimizeRequest{
		Items: []BasketItem{{ProductID: 1, Qty: 1}},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBestStores_Validation(t *testing.T) {
	engine := newTestEngine(newMockPriceSource(), func(c *Config) { c.MaxBasketItems = 2 })

	tests := []struct {
		name  string
		req   *OptimizeRequest
		field string
		index int
	}{
		{"zero product", &OptimizeRequest{Items: []BasketItem{{ProductID: 0, Qty: 1}}}, "items", 0},
		{"zero qty", &OptimizeRequest{Items: []BasketItem{{ProductID: 1, Qty: 1}, {ProductID: 2, Qty: 0}}}, "items", 1},
		{"too many items", &OptimizeRequest{Items: make([]BasketItem, 3)}, "items", -1},
		{"negative topN", &OptimizeRequest{Items: []BasketItem{{ProductID: 1, Qty: 1}}, TopN: -1}, "topN", -1},
		{"topN over max", &OptimizeRequest{Items: []BasketItem{{ProductID: 1, Qty: 1}}, TopN: 51}, "topN", -1},
		{"negative radius", &OptimizeRequest{Items: []BasketItem{{ProductID: 1, Qty: 1}}, RadiusKm: -5}, "radiusKm", -1},
		{"bad latitude", &OptimizeRequest{Items: []BasketItem{{ProductID: 1, Qty: 1}}, Location: &Location{Latitude: 91}}, "lat", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.BestStores(context.Background(), tt.req)

			var invalid ErrInvalidRequest
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
			assert.Equal(t, tt.index, invalid.Index)
		})
	}
}

func TestNearbyDeals(t *testing.T) {
	ps := newMockPriceSource(
		promo(obsAt(1, 1, "2.00", 45.81, 15.98)), // at the caller
		promo(obsAt(2, 2, "1.00", 45.83, 15.99)), // 0.0005
		promo(obsAt(3, 3, "1.00", 45.85, 16.01)), // 0.0025, inside the box only
		obsAt(1, 4, "0.10", 45.81, 15.98),        // not a promotion
		promo(obsAt(4, 5, "0.50", 46.81, 15.98)), // far away
		promo(obsAt(1, 6, "1.50", 45.81, 15.98)), // cheaper at the same store
	)
	engine := newTestEngine(ps, nil)

	deals, err := engine.NearbyDeals(context.Background(), &NearbyDealsRequest{
		Location: Location{Latitude: 45.81, Longitude: 15.98},
	})

	require.NoError(t, err)
	require.Len(t, deals, 3)
	assert.Equal(t, int64(6), deals[0].ProductID)
	assert.Equal(t, int64(1), deals[1].ProductID)
	assert.Equal(t, int64(2), deals[2].StoreID)
	for _, d := range deals {
		assert.Less(t, d.DistanceSq, NearbyThresholdSq)
	}

	require.Len(t, ps.queries, 1)
	assert.True(t, ps.queries[0].PromoOnly)
	assert.Empty(t, ps.queries[0].ProductIDs)
	assert.NotNil(t, ps.queries[0].Box)
}

func TestNearbyDeals_Limit(t *testing.T) {
	ps := newMockPriceSource()
	for p := int64(1); p <= 5; p++ {
		ps.rows = append(ps.rows, promo(obsAt(1, p, "1.00", 10, 10)))
	}
	engine := newTestEngine(ps, func(c *Config) { c.NearbyLimit = 4 })

	deals, err := engine.NearbyDeals(context.Background(), &NearbyDealsRequest{Location: Location{Latitude: 10, Longitude: 10}})
	require.NoError(t, err)
	assert.Len(t, deals, 4)

	deals, err = engine.NearbyDeals(context.Background(), &NearbyDealsRequest{Location: Location{Latitude: 10, Longitude: 10}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, deals, 2)
	assert.Equal(t, int64(1), deals[0].ProductID)
}

func TestNearbyDeals_Errors(t *testing.T) {
	ps := newMockPriceSource()
	ps.err = errors.New("boom")
	engine := newTestEngine(ps, nil)

	_, err := engine.NearbyDeals(context.Background(), &NearbyDealsRequest{Location: Location{Latitude: 200}})
	var invalid ErrInvalidRequest
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 0, ps.calls)

	deals, err := engine.NearbyDeals(context.Background(), &NearbyDealsRequest{})
	assert.Nil(t, deals)
	assert.True(t, IsDataSourceError(err))
}

func TestEngineIsStateless(t *testing.T) {
	ps := newMockPriceSource(obs(1, 1, "1.00"))
	engine := newTestEngine(ps, nil)
	req := &OptimizeRequest{Items: []BasketItem{{ProductID: 1, Qty: 1}}}

	first, err := engine.BestStores(context.Background(), req)
	require.NoError(t, err)

	ps.rows = []PriceObservation{obs(1, 1, "2.00")}
	second, err := engine.BestStores(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, dec("1.00").Equal(first.Candidates[0].Total))
	assert.True(t, dec("2.00").Equal(second.Candidates[0].Total))
	assert.Equal(t, 2, ps.calls)
}
