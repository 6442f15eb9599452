package seed

import (
	"database/sql"
	"fmt"

	"github.com/Simplici0/dealplanner/internal/catalog"
)

// Config names the dataset files imported at startup. Empty paths are skipped.
type Config struct {
	CatalogPath   string
	CustomersPath string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run imports the datasets in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	var products []catalog.Product
	if cfg.CatalogPath != "" {
		rows, err := catalog.LoadRows(cfg.CatalogPath)
		if err != nil {
			return Stats{}, err
		}
		products = catalog.NormalizeProducts(rows)
	}
	var customers []catalog.Customer
	if cfg.CustomersPath != "" {
		rows, err := catalog.LoadRows(cfg.CustomersPath)
		if err != nil {
			return Stats{}, err
		}
		customers = catalog.NormalizeCustomers(rows)
	}

	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	for _, p := range products {
		if err := ensureProduct(tx, p, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}
	for _, c := range customers {
		if err := ensureCustomer(tx, c, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureProduct(tx *sql.Tx, p catalog.Product, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1
			FROM catalog_products
			WHERE program = ? AND ram = ? AND rom = ?
			LIMIT 1
		)
	`, p.Program, p.RAM, p.ROM).Scan(&exists); err != nil {
		return fmt.Errorf("check catalog product existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO catalog_products (program, ram, rom)
		VALUES (?, ?, ?)
	`, p.Program, p.RAM, p.ROM); err != nil {
		return fmt.Errorf("insert catalog product: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureCustomer(tx *sql.Tx, c catalog.Customer, stats *Stats) error {
	var crm string
	err := tx.QueryRow(`SELECT crm_number FROM customers WHERE name = ?`, c.Name).Scan(&crm)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.Exec(`
			INSERT INTO customers (name, crm_number)
			VALUES (?, ?)
		`, c.Name, c.CRMNumber); err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}
		stats.Inserts++
		return nil
	case err != nil:
		return fmt.Errorf("check customer existence: %w", err)
	}

	if crm == c.CRMNumber {
		return nil
	}
	if _, err := tx.Exec(`UPDATE customers SET crm_number = ? WHERE name = ?`, c.CRMNumber, c.Name); err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	stats.Updates++
	return nil
}
