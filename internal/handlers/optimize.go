package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kosarica/basket-service/internal/optimizer"
	"github.com/kosarica/basket-service/internal/requestid"
)

// ============================================================================
// Basket Optimization Endpoints
// ============================================================================

// BasketItem represents one line of the basket
type BasketItem struct {
	ProductID int64 `json:"productId" jsonschema:"required"`
	Qty       int   `json:"qty" jsonschema:"required,minimum=1"`
}

// OptimizeRequest represents a best-stores request. lat, lng and radiusKm
// are accepted but ignored by the online variant.
type OptimizeRequest struct {
	Items    []BasketItem `json:"items"`
	TopN     *int         `json:"topN,omitempty" jsonschema:"minimum=0"`
	Lat      *float64     `json:"lat,omitempty" jsonschema:"minimum=-90,maximum=90"`
	Lng      *float64     `json:"lng,omitempty" jsonschema:"minimum=-180,maximum=180"`
	RadiusKm *float64     `json:"radiusKm,omitempty" jsonschema:"minimum=0"`
}

// BreakdownLine is the cost of one available basket line
type BreakdownLine struct {
	ProductID int64   `json:"productId"`
	Price     float64 `json:"price"`
	Qty       int     `json:"qty"`
	Subtotal  float64 `json:"subtotal"`
}

// StoreCandidate represents a ranked store
type StoreCandidate struct {
	StoreID        int64           `json:"storeId"`
	StoreName      string          `json:"storeName"`
	ChainName      string          `json:"chainName"`
	City           string          `json:"city"`
	DistanceKm     *float64        `json:"distanceKm,omitempty"`
	Total          float64         `json:"total"`
	AvailableCount int             `json:"availableCount"`
	MissingCount   int             `json:"missingCount"`
	Breakdown      []BreakdownLine `json:"breakdown"`
}

// OptimizeResponse represents a ranked result. totalStoresSearched is
// omitted when the basket was empty.
type OptimizeResponse struct {
	BestStoreCandidates []StoreCandidate `json:"bestStoreCandidates"`
	TotalStoresSearched *int             `json:"totalStoresSearched,omitempty"`
}

// Deal represents a promotional price near the caller
type Deal struct {
	StoreID     int64   `json:"storeId"`
	StoreName   string  `json:"storeName"`
	ChainName   string  `json:"chainName"`
	City        string  `json:"city"`
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
}

// NearbyDealsResponse represents the nearby deals result
type NearbyDealsResponse struct {
	Deals []Deal `json:"deals"`
	Total int    `json:"total"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// Global optimizer instance (initialized by the application)
var basketOptimizer optimizer.Optimizer

// InitOptimizer sets the optimizer used by the basket handlers.
// This should be called during application startup
func InitOptimizer(o optimizer.Optimizer) {
	basketOptimizer = o
}

// BestStores handles the geo variant
// @Summary Rank stores for a basket
// @Description Ranks stores by missing items then total cost, optionally within radiusKm of lat/lng
// @Tags basket
// @Accept json
// @Produce json
// @Param request body OptimizeRequest true "Basket"
// @Success 200 {object} OptimizeResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 502 {object} ErrorResponse "Price source failure"
// @Failure 503 {object} ErrorResponse "Optimizer unavailable"
// @Failure 504 {object} ErrorResponse "Price source timeout"
// @Router /internal/basket/best-stores [post]
func BestStores(c *gin.Context) {
	optimize(c, true, func(ctx context.Context, o optimizer.Optimizer, req *optimizer.OptimizeRequest) (*optimizer.OptimizeResult, error) {
		return o.BestStores(ctx, req)
	})
}

// BestOnlineStores handles the online/delivery variant
// @Summary Rank online stores for a basket
// @Description Same as best-stores restricted to the configured online store allow-list; location is ignored
// @Tags basket
// @Accept json
// @Produce json
// @Param request body OptimizeRequest true "Basket"
// @Success 200 {object} OptimizeResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 502 {object} ErrorResponse "Price source failure"
// @Failure 503 {object} ErrorResponse "Optimizer unavailable"
// @Failure 504 {object} ErrorResponse "Price source timeout"
// @Router /internal/basket/best-online-stores [post]
func BestOnlineStores(c *gin.Context) {
	optimize(c, false, func(ctx context.Context, o optimizer.Optimizer, req *optimizer.OptimizeRequest) (*optimizer.OptimizeResult, error) {
		return o.BestOnlineStores(ctx, req)
	})
}

type optimizeFunc func(context.Context, optimizer.Optimizer, *optimizer.OptimizeRequest) (*optimizer.OptimizeResult, error)

// optimize runs one basket variant. With geo unset the location fields are
// dropped before they are checked.
func optimize(c *gin.Context, geo bool, run optimizeFunc) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	optimizeReq, err := req.toOptimizer(geo)
	if err != nil {
		writeError(c, err)
		return
	}

	if basketOptimizer == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Optimizer not initialized"})
		return
	}

	result, err := run(c.Request.Context(), basketOptimizer, optimizeReq)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewOptimizeResponse(result))
}

// toOptimizer converts the request to the engine's format.
func (r *OptimizeRequest) toOptimizer(geo bool) (*optimizer.OptimizeRequest, error) {
	out := &optimizer.OptimizeRequest{
		Items: make([]optimizer.BasketItem, len(r.Items)),
	}
	for i, item := range r.Items {
		out.Items[i] = optimizer.BasketItem{ProductID: item.ProductID, Qty: item.Qty}
	}
	if r.TopN != nil {
		out.TopN = *r.TopN
	}
	if !geo || len(r.Items) == 0 {
		return out, nil
	}
	if r.RadiusKm != nil {
		out.RadiusKm = *r.RadiusKm
	}

	switch {
	case r.Lat != nil && r.Lng != nil:
		out.Location = &optimizer.Location{Latitude: *r.Lat, Longitude: *r.Lng}
	case r.Lat != nil || r.Lng != nil:
		return nil, optimizer.ErrInvalidRequest{Field: "lat", Reason: "lat and lng must be supplied together", Index: -1}
	}
	return out, nil
}

// NewOptimizeResponse converts an engine result to the response format.
func NewOptimizeResponse(result *optimizer.OptimizeResult) *OptimizeResponse {
	resp := &OptimizeResponse{
		BestStoreCandidates: make([]StoreCandidate, len(result.Candidates)),
	}
	if result.Searched {
		searched := result.TotalStoresSearched
		resp.TotalStoresSearched = &searched
	}

	for i, cand := range result.Candidates {
		breakdown := make([]BreakdownLine, len(cand.Breakdown))
		for j, line := range cand.Breakdown {
			breakdown[j] = BreakdownLine{
				ProductID: line.ProductID,
				Price:     line.Price.InexactFloat64(),
				Qty:       line.Qty,
				Subtotal:  line.Subtotal.InexactFloat64(),
			}
		}

		resp.BestStoreCandidates[i] = StoreCandidate{
			StoreID:        cand.StoreID,
			StoreName:      cand.StoreName,
			ChainName:      cand.ChainName,
			City:           cand.City,
			DistanceKm:     cand.DistanceKm,
			Total:          cand.Total.InexactFloat64(),
			AvailableCount: cand.AvailableCount,
			MissingCount:   cand.MissingCount,
			Breakdown:      breakdown,
		}
	}
	return resp
}

// NearbyDeals lists promotional prices near the caller
// @Summary Nearby deals
// @Description Promotional prices at stores within about 0.045 degrees of the caller
// @Tags deals
// @Produce json
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param limit query int false "Maximum number of deals" minimum(1)
// @Success 200 {object} NearbyDealsResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 502 {object} ErrorResponse "Price source failure"
// @Failure 503 {object} ErrorResponse "Optimizer unavailable"
// @Router /internal/deals/nearby [get]
func NearbyDeals(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		writeError(c, optimizer.ErrInvalidRequest{Field: "lat", Reason: "must be a number", Index: -1})
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		writeError(c, optimizer.ErrInvalidRequest{Field: "lng", Reason: "must be a number", Index: -1})
		return
	}

	req := &optimizer.NearbyDealsRequest{Location: optimizer.Location{Latitude: lat, Longitude: lng}}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, optimizer.ErrInvalidRequest{Field: "limit", Reason: "must be an integer", Index: -1})
			return
		}
		req.Limit = limit
	}

	if basketOptimizer == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Optimizer not initialized"})
		return
	}

	deals, err := basketOptimizer.NearbyDeals(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := NearbyDealsResponse{Deals: make([]Deal, len(deals)), Total: len(deals)}
	for i, d := range deals {
		resp.Deals[i] = Deal{
			StoreID:     d.StoreID,
			StoreName:   d.StoreName,
			ChainName:   d.ChainName,
			City:        d.City,
			ProductID:   d.ProductID,
			ProductName: d.ProductName,
			Price:       d.Price.InexactFloat64(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps optimizer errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	var invalid optimizer.ErrInvalidRequest
	switch {
	case errors.As(err, &invalid):
		resp := ErrorResponse{Error: invalid.Error(), Field: invalid.Field}
		if invalid.Index >= 0 {
			idx := invalid.Index
			resp.Index = &idx
		}
		c.JSON(http.StatusBadRequest, resp)

	case errors.Is(err, optimizer.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Price source temporarily unavailable"})

	case optimizer.IsDataSourceError(err) && errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "Price source timed out"})

	case optimizer.IsDataSourceError(err):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Price source unavailable"})

	default:
		log.Error().
			Err(err).
			Str("request_id", requestid.FromContext(c.Request.Context())).
			Msg("Unhandled optimizer error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}
