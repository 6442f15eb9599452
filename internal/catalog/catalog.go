// Package catalog normalises the product and customer datasets and answers
// the cascading program, RAM and ROM lookups.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Product is one catalog row.
type Product struct {
	Program string `json:"program"`
	RAM     string `json:"ram"`
	ROM     string `json:"rom"`
}

// Customer is one customer dataset row.
type Customer struct {
	Name      string `json:"name"`
	CRMNumber string `json:"crmNumber"`
}

var (
	programKeys  = []string{"Program"}
	ramKeys      = []string{"RAM", "RAM in GB", "ram_gb"}
	romKeys      = []string{"ROM", "ROM in GB", "Storage", "STORAGE IN GB", "storage_gb"}
	customerKeys = []string{"customerName", "Customer Name", "name"}
	crmKeys      = []string{"crmNumber", "CRM Number", "crm"}
)

// LoadRows reads a JSON array of objects from path.
func LoadRows(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return rows, nil
}

// NormalizeProducts maps raw rows onto products. Rows without a program are skipped.
func NormalizeProducts(rows []map[string]any) []Product {
	out := make([]Product, 0, len(rows))
	for _, r := range rows {
		p := Product{
			Program: text(pick(r, programKeys)),
			RAM:     text(pick(r, ramKeys)),
			ROM:     text(pick(r, romKeys)),
		}
		if p.Program == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// NormalizeCustomers maps raw rows onto customers. Rows without a name are skipped.
func NormalizeCustomers(rows []map[string]any) []Customer {
	out := make([]Customer, 0, len(rows))
	for _, r := range rows {
		c := Customer{
			Name:      text(pick(r, customerKeys)),
			CRMNumber: text(pick(r, crmKeys)),
		}
		if c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// pick returns the value of the first candidate key present in row, trying
// exact matches before case-insensitive ones.
func pick(row map[string]any, candidates []string) any {
	for _, c := range candidates {
		if v, ok := row[c]; ok {
			return v
		}
	}
	for _, c := range candidates {
		for k, v := range row {
			if strings.EqualFold(k, c) {
				return v
			}
		}
	}
	return nil
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
