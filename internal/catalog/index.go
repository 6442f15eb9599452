package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Index answers catalog lookups. It is immutable once built.
type Index struct {
	products  []Product
	customers []Customer
}

func NewIndex(products []Product, customers []Customer) *Index {
	return &Index{
		products:  append([]Product(nil), products...),
		customers: append([]Customer(nil), customers...),
	}
}

// Programs lists every program.
func (ix *Index) Programs() []string {
	values := make([]string, 0, len(ix.products))
	for _, p := range ix.products {
		values = append(values, p.Program)
	}
	return UniqueSorted(values)
}

// RAMs lists the RAM options of program.
func (ix *Index) RAMs(program string) []string {
	var values []string
	for _, p := range ix.products {
		if p.Program == program {
			values = append(values, p.RAM)
		}
	}
	return UniqueSorted(values)
}

// ROMs lists the ROM options of program, restricted to ram unless ram is empty.
func (ix *Index) ROMs(program, ram string) []string {
	var values []string
	for _, p := range ix.products {
		if p.Program == program && (ram == "" || p.RAM == ram) {
			values = append(values, p.ROM)
		}
	}
	return UniqueSorted(values)
}

// CustomerNames lists every customer name.
func (ix *Index) CustomerNames() []string {
	values := make([]string, 0, len(ix.customers))
	for _, c := range ix.customers {
		values = append(values, c.Name)
	}
	return UniqueSorted(values)
}

// UniqueSorted drops blanks and duplicates and sorts the rest naturally:
// digit runs compare by value, and case and accents are ignored.
func UniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	// Collators keep scratch buffers, so each call gets its own.
	c := collate.New(language.Und, collate.Numeric, collate.Loose)
	sort.SliceStable(out, func(i, j int) bool {
		if r := c.CompareString(out[i], out[j]); r != 0 {
			return r < 0
		}
		return out[i] < out[j]
	})
	return out
}
