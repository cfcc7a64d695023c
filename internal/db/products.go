package db

import (
	"context"
	"fmt"

	"github.com/buildtall-systems/gifticon/internal/catalog"
)

// LoadProducts returns the catalog feed in display order. An empty table
// yields an empty slice.
func (db *DB) LoadProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, merchant, occasion, price, image
		FROM products
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	products := []catalog.Product{}
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Merchant, &p.Occasion, &p.Price, &p.Image); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

// SeedProducts replaces the feed with products, keeping their order.
func (db *DB) SeedProducts(ctx context.Context, products []catalog.Product) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("clearing products: %w", err)
	}
	for i, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, position, name, merchant, occasion, price, image)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, i, p.Name, p.Merchant, p.Occasion, p.Price, p.Image)
		if err != nil {
			return fmt.Errorf("inserting product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing products: %w", err)
	}
	return nil
}

// CountProducts returns the number of products in the feed.
func (db *DB) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}
