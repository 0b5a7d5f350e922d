package optimizer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BasketItem represents a single line of the shopper's basket.
// Duplicate ProductIDs are independent lines and are never merged.
type BasketItem struct {
	ProductID int64 // Exact product key
	Qty       int   // Quantity requested (must be >= 1)
}

// Location is a point in decimal degrees.
type Location struct {
	Latitude  float64
	Longitude float64
}

// OptimizeRequest contains the parameters for a best-stores search.
type OptimizeRequest struct {
	Items    []BasketItem // Basket lines
	TopN     int          // Number of candidates to return (0 = variant default)
	Location *Location    // Optional caller position; nil disables the geo filter
	RadiusKm float64      // Search radius in km (0 = configured default)
}

// PriceObservation is one raw price row as returned by a PriceSource.
// Store metadata is denormalized onto every row.
type PriceObservation struct {
	StoreID     int64
	ProductID   int64
	ProductName string
	Price       decimal.NullDecimal // Invalid (NULL) prices are skipped
	IsPromo     bool
	StoreName   string
	City        string
	ChainName   string
	Lat         *float64
	Lng         *float64
}

// StoreAggregate holds the best price per product for one store.
type StoreAggregate struct {
	StoreID    int64
	StoreName  string
	ChainName  string
	City       string
	Lat        *float64
	Lng        *float64
	DistanceKm *float64                  // Set only when the caller supplied a location
	Prices     map[int64]decimal.Decimal // productID -> minimum observed price
}

// BreakdownLine is the cost detail for one available basket line.
type BreakdownLine struct {
	ProductID int64
	Price     decimal.Decimal
	Qty       int
	Subtotal  decimal.Decimal // round2(Price * Qty)
}

// StoreCandidate is a store evaluated against the basket.
type StoreCandidate struct {
	StoreID        int64
	StoreName      string
	ChainName      string
	City           string
	DistanceKm     *float64
	Total          decimal.Decimal // round2(sum of subtotals), available lines only
	AvailableCount int
	MissingCount   int
	Breakdown      []BreakdownLine
}

// OptimizeResult is the ranked, truncated output of a search.
type OptimizeResult struct {
	Candidates []*StoreCandidate
	// TotalStoresSearched counts every store with at least one matching
	// observation, before truncation.
	TotalStoresSearched int
	// Searched is false when the basket was empty and the price source
	// was never queried.
	Searched bool
}

// NearbyDealsRequest contains the parameters for a nearby deals lookup.
type NearbyDealsRequest struct {
	Location Location
	Limit    int // 0 = configured default
}

// Deal is a promotional price at a store inside the caller's catchment.
type Deal struct {
	StoreID     int64
	StoreName   string
	ChainName   string
	City        string
	ProductID   int64
	ProductName string
	Price       decimal.Decimal
	DistanceSq  float64 // Squared degree distance from the caller
}

// Validate validates the optimization request and returns an error if invalid.
// An empty basket is valid: it short-circuits to an empty result.
func (r *OptimizeRequest) Validate(maxItems, maxTopN int) error {
	if len(r.Items) > maxItems {
		return ErrInvalidRequest{Field: "items", Reason: "exceeds maximum allowed", Index: -1}
	}
	for i, item := range r.Items {
		if item.ProductID <= 0 {
			return ErrInvalidRequest{Field: "items", Reason: fmt.Sprintf("item at index %d has invalid productId", i), Index: i}
		}
		if item.Qty < 1 {
			return ErrInvalidRequest{Field: "items", Reason: fmt.Sprintf("item at index %d has invalid qty", i), Index: i}
		}
	}
	if r.TopN < 0 {
		return ErrInvalidRequest{Field: "topN", Reason: "must not be negative", Index: -1}
	}
	if r.TopN > maxTopN {
		return ErrInvalidRequest{Field: "topN", Reason: fmt.Sprintf("must not exceed %d", maxTopN), Index: -1}
	}
	if r.RadiusKm < 0 {
		return ErrInvalidRequest{Field: "radiusKm", Reason: "must not be negative", Index: -1}
	}
	if r.Location != nil {
		if err := r.Location.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (l Location) validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return ErrInvalidRequest{Field: "lat", Reason: "must be between -90 and 90", Index: -1}
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidRequest{Field: "lng", Reason: "must be between -180 and 180", Index: -1}
	}
	return nil
}

// Validate validates the nearby deals request.
func (r *NearbyDealsRequest) Validate() error {
	if r.Limit < 0 {
		return ErrInvalidRequest{Field: "limit", Reason: "must not be negative", Index: -1}
	}
	return r.Location.validate()
}
