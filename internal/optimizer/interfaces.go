package optimizer

import (
	"context"
)

// PriceQuery narrows a price source fetch.
type PriceQuery struct {
	// ProductIDs restricts rows to these products. Empty means any product
	// (used only by the nearby deals lookup).
	ProductIDs []int64

	// StoreIDs, when non-empty, restricts rows to these stores.
	StoreIDs []int64

	// Box, when set, restricts rows to stores whose coordinates fall inside it.
	Box *BoundingBox

	// PromoOnly restricts rows to promotional prices.
	PromoOnly bool
}

// PriceSource defines the interface for fetching raw price observations.
// Every returned row carries its store metadata. Implementations must return
// either the complete row set or an error, never a partial set.
type PriceSource interface {
	FetchPrices(ctx context.Context, q PriceQuery) ([]PriceObservation, error)
}

// Optimizer is the main interface for basket-to-store optimization.
type Optimizer interface {
	// BestStores ranks stores for a basket, optionally within a radius.
	BestStores(ctx context.Context, req *OptimizeRequest) (*OptimizeResult, error)

	// BestOnlineStores ranks the configured online/delivery stores for a basket.
	BestOnlineStores(ctx context.Context, req *OptimizeRequest) (*OptimizeResult, error)

	// NearbyDeals lists promotional prices at stores near the caller.
	NearbyDeals(ctx context.Context, req *NearbyDealsRequest) ([]*Deal, error)
}
