package optimizer

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kosarica/basket-service/internal/requestid"
)

const (
	variantGeo    = "geo"
	variantOnline = "online"
	variantDeals  = "deals"
)

var tracer = otel.Tracer("github.com/kosarica/basket-service/internal/optimizer")

// Engine implements basket-to-store optimization on top of a PriceSource.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	priceSource PriceSource
	config      *Config
	onlineIDs   []int64
	onlineSet   map[int64]struct{}
	metrics     *MetricsRecorder
	logger      zerolog.Logger
}

// NewEngine creates a new optimization engine.
func NewEngine(priceSource PriceSource, config *Config, metrics *MetricsRecorder) *Engine {
	if config == nil {
		config = Defaults()
	}
	if metrics == nil {
		metrics = NewMetricsRecorder()
	}

	onlineSet := make(map[int64]struct{}, len(config.OnlineStoreIDs))
	onlineIDs := make([]int64, 0, len(config.OnlineStoreIDs))
	for _, id := range config.OnlineStoreIDs {
		if _, dup := onlineSet[id]; dup {
			continue
		}
		onlineSet[id] = struct{}{}
		onlineIDs = append(onlineIDs, id)
	}

	return &Engine{
		priceSource: priceSource,
		config:      config,
		onlineIDs:   onlineIDs,
		onlineSet:   onlineSet,
		metrics:     metrics,
		logger:      log.With().Str("component", "basket_optimizer").Logger(),
	}
}

// WithLogger replaces the engine's logger.
func (e *Engine) WithLogger(logger zerolog.Logger) *Engine {
	e.logger = logger.With().Str("component", "basket_optimizer").Logger()
	return e
}

// OnlineStoreIDs returns the configured online/delivery allow-list.
func (e *Engine) OnlineStoreIDs() []int64 {
	out := make([]int64, len(e.onlineIDs))
	copy(out, e.onlineIDs)
	return out
}

// BestStores ranks stores that carry the basket, optionally restricted to a
// bounding box around the caller's location.
func (e *Engine) BestStores(ctx context.Context, req *OptimizeRequest) (*OptimizeResult, error) {
	ctx, span := tracer.Start(ctx, "optimizer.BestStores")
	defer span.End()

	return e.optimize(ctx, span, variantGeo, req, func(q *PriceQuery) (rowFilter, func(*StoreAggregate)) {
		if req.Location == nil {
			return nil, nil
		}

		radius := req.RadiusKm
		if radius == 0 {
			radius = e.config.DefaultRadiusKm
		}
		box := BoxFromRadius(*req.Location, radius)
		q.Box = &box
		span.SetAttributes(attribute.Float64("optimizer.radius_km", radius))

		loc := *req.Location
		// Enforced again on the rows in case the source ignores Box.
		inBox := func(obs *PriceObservation) bool {
			return obs.Lat != nil && obs.Lng != nil && box.Contains(*obs.Lat, *obs.Lng)
		}
		return inBox, func(agg *StoreAggregate) {
			if agg.Lat != nil && agg.Lng != nil {
				d := HaversineKm(loc.Latitude, loc.Longitude, *agg.Lat, *agg.Lng)
				agg.DistanceKm = &d
			}
		}
	})
}

// BestOnlineStores ranks only the configured online/delivery stores.
// Location and radius are ignored.
func (e *Engine) BestOnlineStores(ctx context.Context, req *OptimizeRequest) (*OptimizeResult, error) {
	ctx, span := tracer.Start(ctx, "optimizer.BestOnlineStores")
	defer span.End()

	// Geo fields play no part here, so they are not validated either.
	online := *req
	online.Location = nil
	online.RadiusKm = 0

	return e.optimize(ctx, span, variantOnline, &online, func(q *PriceQuery) (rowFilter, func(*StoreAggregate)) {
		q.StoreIDs = e.OnlineStoreIDs()
		// Enforced again on the rows in case the source ignores StoreIDs.
		return func(obs *PriceObservation) bool {
			_, ok := e.onlineSet[obs.StoreID]
			return ok
		}, nil
	})
}

// scopeFunc narrows the query for a variant and optionally returns a row
// filter and a per-aggregate decoration step.
type scopeFunc func(q *PriceQuery) (rowFilter, func(*StoreAggregate))

func (e *Engine) optimize(ctx context.Context, span trace.Span, variant string, req *OptimizeRequest, scope scopeFunc) (*OptimizeResult, error) {
	startTime := time.Now()
	defer func() {
		e.metrics.RecordOptimizationDuration(variant, time.Since(startTime))
	}()

	logger := e.logger.With().
		Str("variant", variant).
		Str("request_id", requestid.FromContext(ctx)).
		Logger()

	span.SetAttributes(attribute.Int("optimizer.basket_size", len(req.Items)))

	// Empty basket: nothing to price and nothing else is checked.
	if len(req.Items) == 0 {
		e.metrics.RecordRequest(variant, "empty")
		return &OptimizeResult{Candidates: []*StoreCandidate{}}, nil
	}

	if err := req.Validate(e.config.MaxBasketItems, e.config.MaxTopN); err != nil {
		e.metrics.RecordRequest(variant, "invalid")
		return nil, err
	}

	e.metrics.RecordBasketSize(len(req.Items))

	if variant == variantOnline && len(e.onlineIDs) == 0 {
		logger.Warn().Msg("No online stores configured")
		e.metrics.RecordRequest(variant, "ok")
		e.metrics.RecordStoresSearched(variant, 0)
		return &OptimizeResult{Candidates: []*StoreCandidate{}, Searched: true}, nil
	}

	productIDs := distinctProductIDs(req.Items)
	query := PriceQuery{ProductIDs: productIDs}
	variantAllow, decorate := scope(&query)

	// Rows for products outside the basket must not create candidates.
	inBasket := make(map[int64]struct{}, len(productIDs))
	for _, id := range productIDs {
		inBasket[id] = struct{}{}
	}
	allow := func(obs *PriceObservation) bool {
		if _, ok := inBasket[obs.ProductID]; !ok {
			return false
		}
		return variantAllow == nil || variantAllow(obs)
	}

	observations, err := e.fetch(ctx, query)
	if err != nil {
		e.metrics.RecordRequest(variant, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "price source fetch failed")
		logger.Error().Err(err).Int("basket_size", len(req.Items)).Msg("Price source fetch failed")
		return nil, err
	}

	stores, stats := aggregateStores(observations, allow)
	e.metrics.RecordSkipped(variant, stats.Skipped)
	if stats.Skipped > 0 {
		logger.Debug().
			Int("observations", stats.Observations).
			Int("skipped", stats.Skipped).
			Msg("Skipped price observations")
	}

	if decorate != nil {
		for _, agg := range stores {
			decorate(agg)
		}
	}

	candidates, searched := RankCandidates(stores, req.Items, e.topN(variant, req.TopN))

	e.metrics.RecordStoresSearched(variant, searched)
	e.metrics.RecordRequest(variant, "ok")
	span.SetAttributes(
		attribute.Int("optimizer.observations", stats.Observations),
		attribute.Int("optimizer.stores_searched", searched),
	)

	logger.Debug().
		Int("basket_size", len(req.Items)).
		Int("observations", stats.Observations).
		Int("stores_searched", searched).
		Int("returned", len(candidates)).
		Dur("duration", time.Since(startTime)).
		Msg("Optimization complete")

	return &OptimizeResult{
		Candidates:          candidates,
		TotalStoresSearched: searched,
		Searched:            true,
	}, nil
}

// NearbyDeals returns promotional prices at stores strictly inside the
// squared-degree catchment around the caller.
func (e *Engine) NearbyDeals(ctx context.Context, req *NearbyDealsRequest) ([]*Deal, error) {
	ctx, span := tracer.Start(ctx, "optimizer.NearbyDeals")
	defer span.End()

	startTime := time.Now()
	defer func() {
		e.metrics.RecordOptimizationDuration(variantDeals, time.Since(startTime))
	}()

	if err := req.Validate(); err != nil {
		e.metrics.RecordRequest(variantDeals, "invalid")
		return nil, err
	}

	box := NearbyBox(req.Location)
	observations, err := e.fetch(ctx, PriceQuery{Box: &box, PromoOnly: true})
	if err != nil {
		e.metrics.RecordRequest(variantDeals, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "price source fetch failed")
		e.logger.Error().
			Err(err).
			Str("request_id", requestid.FromContext(ctx)).
			Msg("Price source fetch failed for nearby deals")
		return nil, err
	}

	deals := make([]*Deal, 0)
	skipped := 0
	for i := range observations {
		obs := &observations[i]
		if !isWellFormed(obs) || !obs.IsPromo || obs.Lat == nil || obs.Lng == nil {
			skipped++
			continue
		}
		if !InNearbyCatchment(req.Location, *obs.Lat, *obs.Lng) {
			continue
		}
		deals = append(deals, &Deal{
			StoreID:     obs.StoreID,
			StoreName:   obs.StoreName,
			ChainName:   obs.ChainName,
			City:        obs.City,
			ProductID:   obs.ProductID,
			ProductName: obs.ProductName,
			Price:       obs.Price.Decimal,
			DistanceSq:  SquaredDegreeDistance(req.Location, *obs.Lat, *obs.Lng),
		})
	}
	e.metrics.RecordSkipped(variantDeals, skipped)

	sortDeals(deals)

	limit := req.Limit
	if limit == 0 {
		limit = e.config.NearbyLimit
	}
	if len(deals) > limit {
		deals = deals[:limit]
	}

	e.metrics.RecordRequest(variantDeals, "ok")
	span.SetAttributes(attribute.Int("optimizer.deals", len(deals)))
	return deals, nil
}

// fetch performs the single bounded price source call for a request.
func (e *Engine) fetch(ctx context.Context, q PriceQuery) ([]PriceObservation, error) {
	ctx, span := tracer.Start(ctx, "optimizer.fetch")
	defer span.End()

	fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
	defer cancel()

	observations, err := e.priceSource.FetchPrices(fetchCtx, q)
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, err
		}
		return nil, &ErrDataSource{Err: err}
	}
	span.SetAttributes(attribute.Int("optimizer.rows", len(observations)))
	return observations, nil
}

func (e *Engine) topN(variant string, requested int) int {
	if requested > 0 {
		return requested
	}
	if variant == variantOnline {
		return e.config.OnlineTopN
	}
	return e.config.DefaultTopN
}

// distinctProductIDs returns the basket's product keys once each, in basket order.
func distinctProductIDs(items []BasketItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// sortDeals orders deals by distance, then price, then store and product.
func sortDeals(deals []*Deal) {
	sort.Slice(deals, func(i, j int) bool {
		a, b := deals[i], deals[j]
		if a.DistanceSq != b.DistanceSq {
			return a.DistanceSq < b.DistanceSq
		}
		if cmp := a.Price.Cmp(b.Price); cmp != 0 {
			return cmp < 0
		}
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		return a.ProductID < b.ProductID
	})
}
