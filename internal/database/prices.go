package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kosarica/basket-service/internal/optimizer"
)

// Querier is the subset of pgxpool.Pool used by the price source.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// PostgresPriceSource reads price observations from PostgreSQL.
// Every call is a single query; a failure while querying or iterating
// discards everything read so far.
type PostgresPriceSource struct {
	db     Querier
	logger zerolog.Logger
}

// NewPostgresPriceSource creates a price source over the given pool.
func NewPostgresPriceSource(db Querier) *PostgresPriceSource {
	return &PostgresPriceSource{
		db:     db,
		logger: log.With().Str("component", "postgres_price_source").Logger(),
	}
}

const baseQuery = `
		SELECT s.id, p.product_id, COALESCE(pr.name, ''), p.price::text, p.is_promo,
		       s.name, COALESCE(s.city, ''), COALESCE(c.name, ''), s.lat, s.lng
		FROM prices p
		JOIN stores s ON s.id = p.store_id
		LEFT JOIN chains c ON c.id = s.chain_id
		LEFT JOIN products pr ON pr.id = p.product_id`

// buildPriceQuery renders the SQL and positional arguments for q.
func buildPriceQuery(q optimizer.PriceQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.ProductIDs) > 0 {
		where = append(where, "p.product_id = ANY("+next(q.ProductIDs)+")")
	}
	if len(q.StoreIDs) > 0 {
		where = append(where, "s.id = ANY("+next(q.StoreIDs)+")")
	}
	if q.Box != nil {
		where = append(where,
			"s.lat BETWEEN "+next(q.Box.MinLat)+" AND "+next(q.Box.MaxLat),
			"s.lng BETWEEN "+next(q.Box.MinLng)+" AND "+next(q.Box.MaxLng),
		)
	}
	if q.PromoOnly {
		where = append(where, "p.is_promo")
	}

	var sb strings.Builder
	sb.WriteString(baseQuery)
	if len(where) > 0 {
		sb.WriteString("\n\t\tWHERE ")
		sb.WriteString(strings.Join(where, "\n\t\t  AND "))
	}
	return sb.String(), args
}

// FetchPrices implements optimizer.PriceSource.
func (s *PostgresPriceSource) FetchPrices(ctx context.Context, q optimizer.PriceQuery) ([]optimizer.PriceObservation, error) {
	sql, args := buildPriceQuery(q)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying prices: %w", err)
	}
	defer rows.Close()

	var (
		observations []optimizer.PriceObservation
		badPrices    int
	)
	for rows.Next() {
		var (
			o        optimizer.PriceObservation
			priceStr *string
		)
		if err := rows.Scan(
			&o.StoreID, &o.ProductID, &o.ProductName, &priceStr, &o.IsPromo,
			&o.StoreName, &o.City, &o.ChainName, &o.Lat, &o.Lng,
		); err != nil {
			return nil, fmt.Errorf("error scanning price row: %w", err)
		}

		if priceStr != nil {
			if d, err := decimal.NewFromString(*priceStr); err == nil {
				o.Price = decimal.NewNullDecimal(d)
			} else {
				badPrices++
			}
		}
		observations = append(observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price rows: %w", err)
	}

	if badPrices > 0 {
		s.logger.Warn().Int("count", badPrices).Msg("Unparseable price values")
	}
	return observations, nil
}

// Ping verifies the underlying connection.
func (s *PostgresPriceSource) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
