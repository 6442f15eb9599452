package store

import (
	"context"
	"fmt"

	"github.com/Simplici0/dealplanner/internal/catalog"
)

// Products lists the catalog rows.
func (s *Store) Products(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT program, ram, rom FROM catalog_products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query catalog products: %w", err)
	}
	defer rows.Close()

	products := make([]catalog.Product, 0)
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.Program, &p.RAM, &p.ROM); err != nil {
			return nil, fmt.Errorf("scan catalog product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog products: %w", err)
	}
	return products, nil
}

// Customers lists the customer rows.
func (s *Store) Customers(ctx context.Context) ([]catalog.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, crm_number FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	customers := make([]catalog.Customer, 0)
	for rows.Next() {
		var c catalog.Customer
		if err := rows.Scan(&c.Name, &c.CRMNumber); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return customers, nil
}

// CatalogIndex builds a lookup index from the catalog tables.
func (s *Store) CatalogIndex(ctx context.Context) (*catalog.Index, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := s.Customers(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.NewIndex(products, customers), nil
}
