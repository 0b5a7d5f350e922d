package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// Chain represents a retail chain.
type Chain struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store represents a physical store or an online/delivery storefront.
// Online storefronts usually have no coordinates.
type Store struct {
	ID        int64     `json:"id"`
	ChainID   int64     `json:"chain_id"` // FK to chains.id
	Name      string    `json:"name"`
	City      *string   `json:"city"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a catalogue entry; basket lines reference products by ID.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Price is one price row for a product at a store. A store may carry
// several rows for the same product (regular and promotional).
type Price struct {
	ID        int64               `json:"id"`
	StoreID   int64               `json:"store_id"`   // FK to stores.id
	ProductID int64               `json:"product_id"` // FK to products.id
	Price     decimal.NullDecimal `json:"price"`      // NULL when the feed had no usable value
	IsPromo   bool                `json:"is_promo"`
	UpdatedAt time.Time           `json:"updated_at"`
}
