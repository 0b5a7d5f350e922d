package database

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kosarica/basket-service/internal/optimizer"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuildPriceQuery(t *testing.T) {
	t.Run("products only", func(t *testing.T) {
		query, args := buildPriceQuery(optimizer.PriceQuery{ProductIDs: []int64{1, 2}})

		assert.Contains(t, query, "p.product_id = ANY($1)")
		assert.NotContains(t, query, "s.id = ANY")
		assert.NotContains(t, query, "BETWEEN")
		assert.NotContains(t, query, "p.is_promo\n")
		require.Len(t, args, 1)
		assert.Equal(t, []int64{1, 2}, args[0])
	})

	t.Run("all filters", func(t *testing.T) {
		box := optimizer.BoundingBox{MinLat: 1, MaxLat: 2, MinLng: 3, MaxLng: 4}
		query, args := buildPriceQuery(optimizer.PriceQuery{
			ProductIDs: []int64{7},
			StoreIDs:   []int64{10, 11},
			Box:        &box,
			PromoOnly:  true,
		})

		assert.Contains(t, query, "p.product_id = ANY($1)")
		assert.Contains(t, query, "s.id = ANY($2)")
		assert.Contains(t, query, "s.lat BETWEEN $3 AND $4")
		assert.Contains(t, query, "s.lng BETWEEN $5 AND $6")
		assert.Contains(t, query, "AND p.is_promo")
		assert.Equal(t, []any{[]int64{7}, []int64{10, 11}, 1.0, 2.0, 3.0, 4.0}, args)
	})

	t.Run("no filters", func(t *testing.T) {
		query, args := buildPriceQuery(optimizer.PriceQuery{})
		assert.NotContains(t, query, "WHERE")
		assert.Empty(t, args)
	})
}

func TestDecodeFixture(t *testing.T) {
	f, err := DecodeFixture(strings.NewReader(seedFixture))
	require.NoError(t, err)

	assert.Len(t, f.Chains, 2)
	require.Len(t, f.Stores, 3)
	assert.Nil(t, f.Stores[2].Lat)
	require.NotNil(t, f.Stores[0].City)
	assert.Equal(t, "Zagreb", *f.Stores[0].City)

	require.Len(t, f.Prices, 6)
	assert.True(t, dec("0.99").Equal(f.Prices[1].Price.Decimal))
	assert.True(t, f.Prices[1].IsPromo)
	assert.False(t, f.Prices[2].Price.Valid)

	_, err = DecodeFixture(strings.NewReader(`{"shops": []}`))
	assert.Error(t, err)
}

func TestSchemaEmbedded(t *testing.T) {
	schema := Schema()
	for _, table := range []string{"chains", "stores", "products", "prices"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func setupPriceSourceTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if testing.Short() {
		t.Skip("skipping database test in short mode (requires Docker)")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	sqlDB, err := OpenSQL(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, sqlDB), "Failed to run migrations")
	// Migrate is idempotent.
	require.NoError(t, Migrate(ctx, sqlDB))
	seedPrices(ctx, t, sqlDB)
	sqlDB.Close()

	pool, err := NewPool(ctx, connStr, PoolConfig{MaxConns: 4})
	require.NoError(t, err, "Failed to create connection pool")

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, cleanup
}

const seedFixture = `{
	"chains": [{"id": 1, "name": "Konzum"}, {"id": 2, "name": "Online Shop"}],
	"stores": [
		{"id": 1, "chain_id": 1, "name": "Konzum Ilica", "city": "Zagreb", "lat": 45.8130, "lng": 15.9700},
		{"id": 2, "chain_id": 1, "name": "Konzum Split", "city": "Split", "lat": 43.5081, "lng": 16.4402},
		{"id": 3, "chain_id": 2, "name": "Online Shop"}
	],
	"products": [{"id": 10, "name": "Milk"}, {"id": 11, "name": "Bread"}],
	"prices": [
		{"store_id": 1, "product_id": 10, "price": "1.2900"},
		{"store_id": 1, "product_id": 10, "price": "0.9900", "is_promo": true},
		{"store_id": 1, "product_id": 11, "price": null},
		{"store_id": 2, "product_id": 10, "price": "1.3500"},
		{"store_id": 3, "product_id": 10, "price": "1.1000"},
		{"store_id": 3, "product_id": 11, "price": "2.0050", "is_promo": true}
	]
}`

func seedPrices(ctx context.Context, t *testing.T, db *sql.DB) {
	fixture, err := DecodeFixture(strings.NewReader(seedFixture))
	require.NoError(t, err)
	require.NoError(t, LoadFixture(ctx, db, fixture))

	// Sequences continue after the fixture IDs.
	var id int64
	require.NoError(t, db.QueryRowContext(ctx, `INSERT INTO chains (name) VALUES ('Next') RETURNING id`).Scan(&id))
	assert.Equal(t, int64(3), id)
}

func TestPostgresPriceSource(t *testing.T) {
	pool, cleanup := setupPriceSourceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	source := NewPostgresPriceSource(pool)
	require.NoError(t, source.Ping(ctx))

	t.Run("denormalized rows", func(t *testing.T) {
		rows, err := source.FetchPrices(ctx, optimizer.PriceQuery{ProductIDs: []int64{10, 11}})
		require.NoError(t, err)
		assert.Len(t, rows, 6)

		var nullPrices int
		for _, r := range rows {
			assert.NotEmpty(t, r.StoreName)
			assert.NotEmpty(t, r.ChainName)
			if !r.Price.Valid {
				nullPrices++
			}
			if r.StoreID == 3 {
				assert.Nil(t, r.Lat)
				assert.Empty(t, r.City)
			}
			if r.StoreID == 3 && r.ProductID == 11 {
				assert.True(t, dec("2.005").Equal(r.Price.Decimal))
				assert.Equal(t, "Bread", r.ProductName)
			}
		}
		assert.Equal(t, 1, nullPrices)
	})

	t.Run("store filter", func(t *testing.T) {
		rows, err := source.FetchPrices(ctx, optimizer.PriceQuery{ProductIDs: []int64{10}, StoreIDs: []int64{3}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(3), rows[0].StoreID)
	})

	t.Run("bounding box", func(t *testing.T) {
		box := optimizer.BoxFromRadius(optimizer.Location{Latitude: 45.81, Longitude: 15.98}, 10)
		rows, err := source.FetchPrices(ctx, optimizer.PriceQuery{ProductIDs: []int64{10}, Box: &box})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		for _, r := range rows {
			assert.Equal(t, int64(1), r.StoreID)
		}
	})

	t.Run("promo only", func(t *testing.T) {
		rows, err := source.FetchPrices(ctx, optimizer.PriceQuery{PromoOnly: true})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
		for _, r := range rows {
			assert.True(t, r.IsPromo)
		}
	})

	t.Run("engine end to end", func(t *testing.T) {
		engine := optimizer.NewEngine(source, optimizer.Defaults(), nil)
		result, err := engine.BestStores(ctx, &optimizer.OptimizeRequest{
			Items: []optimizer.BasketItem{{ProductID: 10, Qty: 2}, {ProductID: 11, Qty: 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalStoresSearched)
		require.NotEmpty(t, result.Candidates)

		best := result.Candidates[0]
		assert.Equal(t, int64(3), best.StoreID)
		assert.Equal(t, 0, best.MissingCount)
		assert.True(t, dec("4.21").Equal(best.Total), "total was %s", best.Total)

		// Store 1 has a NULL bread price: only the promo milk price counts.
		second := result.Candidates[1]
		assert.Equal(t, int64(1), second.StoreID)
		assert.Equal(t, 1, second.MissingCount)
		assert.True(t, dec("1.98").Equal(second.Total))
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		rows, err := source.FetchPrices(canceled, optimizer.PriceQuery{ProductIDs: []int64{10}})
		assert.Error(t, err)
		assert.Nil(t, rows)
	})
}
