package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
)

// Fixture is a set of rows loaded together, typically from a JSON file.
// Chains, stores and products keep their IDs so prices can reference them.
type Fixture struct {
	Chains   []Chain   `json:"chains"`
	Stores   []Store   `json:"stores"`
	Products []Product `json:"products"`
	Prices   []Price   `json:"prices"`
}

// DecodeFixture reads a JSON fixture.
func DecodeFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("error decoding fixture: %w", err)
	}
	return &f, nil
}

// LoadFixture inserts the fixture in one transaction. Existing chains,
// stores and products with the same ID are left untouched; prices are
// always appended.
func LoadFixture(ctx context.Context, db *sql.DB, f *Fixture) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting fixture load: %w", err)
	}
	defer tx.Rollback()

	for _, c := range f.Chains {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chains (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			c.ID, c.Name); err != nil {
			return fmt.Errorf("error inserting chain %d: %w", c.ID, err)
		}
	}

	for _, s := range f.Stores {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stores (id, chain_id, name, city, lat, lng) VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			s.ID, s.ChainID, s.Name, s.City, s.Lat, s.Lng); err != nil {
			return fmt.Errorf("error inserting store %d: %w", s.ID, err)
		}
	}

	for _, p := range f.Products {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Name); err != nil {
			return fmt.Errorf("error inserting product %d: %w", p.ID, err)
		}
	}

	for i, p := range f.Prices {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prices (store_id, product_id, price, is_promo) VALUES ($1, $2, $3, $4)`,
			p.StoreID, p.ProductID, p.Price, p.IsPromo); err != nil {
			return fmt.Errorf("error inserting price %d (store %d, product %d): %w", i, p.StoreID, p.ProductID, err)
		}
	}

	// Explicit IDs bypass the sequences; move them past the loaded rows.
	for _, table := range []string{"chains", "stores", "products"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT MAX(id) FROM %[1]s), 1))`,
			table)); err != nil {
			return fmt.Errorf("error advancing %s sequence: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing fixture: %w", err)
	}
	return nil
}
