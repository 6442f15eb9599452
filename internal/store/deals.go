// Package store persists saved deals and the catalog tables in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/dealplanner/internal/planner"
)

// ErrDealNotFound is returned when no saved deal has the requested id.
var ErrDealNotFound = errors.New("deal not found")

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite database: %w", err)
	}
	return nil
}

// NewDeal is the input of SaveDeal.
type NewDeal struct {
	Title    string
	Notes    string
	Snapshot planner.Snapshot
	Totals   planner.Summary
}

// Deal is a saved deal with its full state.
type Deal struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	CustomerName string           `json:"customerName"`
	Notes        string           `json:"notes"`
	BundleCount  int              `json:"bundleCount"`
	Snapshot     planner.Snapshot `json:"snapshot"`
	Totals       planner.Summary  `json:"totals"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// DealListItem is one row of the saved deals list.
type DealListItem struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	CustomerName   string    `json:"customerName"`
	BundleCount    int       `json:"bundleCount"`
	NetRevenueUSD  float64   `json:"netRevenueUsd"`
	CostBasisGPPct float64   `json:"costBasisGpPct"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SaveDeal stores a new saved deal.
func (s *Store) SaveDeal(ctx context.Context, in NewDeal) (Deal, error) {
	snapJSON, err := json.Marshal(in.Snapshot)
	if err != nil {
		return Deal{}, fmt.Errorf("encode deal snapshot: %w", err)
	}
	totalsJSON, err := json.Marshal(in.Totals)
	if err != nil {
		return Deal{}, fmt.Errorf("encode deal totals: %w", err)
	}

	now := s.now().UTC()
	d := Deal{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(in.Title),
		CustomerName: strings.TrimSpace(in.Snapshot.Customer.Name),
		Notes:        strings.TrimSpace(in.Notes),
		BundleCount:  len(in.Snapshot.Products.AllIDs),
		Snapshot:     in.Snapshot,
		Totals:       in.Totals,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO deals (id, title, customer_name, notes, bundle_count, snapshot_json, totals_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Title, d.CustomerName, d.Notes, d.BundleCount, string(snapJSON), string(totalsJSON),
		now.Format(timeLayout), now.Format(timeLayout)); err != nil {
		return Deal{}, fmt.Errorf("insert deal: %w", err)
	}
	return d, nil
}

// ListDeals returns saved deals newest first. A non-empty query matches the
// title, notes or customer name.
func (s *Store) ListDeals(ctx context.Context, query string) ([]DealListItem, error) {
	query = strings.TrimSpace(query)
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, customer_name, bundle_count, totals_json, created_at
		FROM deals
		WHERE (? = '' OR title LIKE ? OR notes LIKE ? OR customer_name LIKE ?)
		ORDER BY created_at DESC, rowid DESC
	`, query, search, search, search)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}
	defer rows.Close()

	deals := make([]DealListItem, 0)
	for rows.Next() {
		var item DealListItem
		var totalsJSON, createdAt string
		if err := rows.Scan(&item.ID, &item.Title, &item.CustomerName, &item.BundleCount, &totalsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		totals := decodeTotals(totalsJSON)
		item.NetRevenueUSD = totals.NetRevenue.USD
		item.CostBasisGPPct = totals.CostBasisGPPct
		item.CreatedAt = parseTime(createdAt)
		deals = append(deals, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deals: %w", err)
	}
	return deals, nil
}

// GetDeal loads one saved deal.
func (s *Store) GetDeal(ctx context.Context, id string) (Deal, error) {
	var d Deal
	var snapJSON, totalsJSON, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, customer_name, notes, bundle_count, snapshot_json, totals_json, created_at, updated_at
		FROM deals
		WHERE id = ?
	`, id).Scan(&d.ID, &d.Title, &d.CustomerName, &d.Notes, &d.BundleCount, &snapJSON, &totalsJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Deal{}, ErrDealNotFound
	}
	if err != nil {
		return Deal{}, fmt.Errorf("query deal: %w", err)
	}

	d.Snapshot, err = planner.DecodeSnapshot([]byte(snapJSON))
	if err != nil {
		return Deal{}, fmt.Errorf("deal %s: %w", id, err)
	}
	d.Totals = decodeTotals(totalsJSON)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return d, nil
}

// DeleteDeal removes a saved deal.
func (s *Store) DeleteDeal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete deal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete deal: %w", err)
	}
	if n == 0 {
		return ErrDealNotFound
	}
	return nil
}

// decodeTotals tolerates rows written with older totals layouts.
func decodeTotals(totalsJSON string) planner.Summary {
	var totals planner.Summary
	if err := json.Unmarshal([]byte(totalsJSON), &totals); err != nil {
		return planner.Summary{}
	}
	return totals
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
