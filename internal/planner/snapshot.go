package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Simplici0/dealplanner/internal/events"
	"github.com/Simplici0/dealplanner/internal/numeric"
	"github.com/Simplici0/dealplanner/internal/pricing"
)

// Snapshot is the serialisable state of a planner.
type Snapshot struct {
	Customer CustomerSnapshot `json:"customer"`
	Products ProductsSnapshot `json:"products"`
}

type CustomerSnapshot struct {
	Name           string  `json:"name"`
	FrontEnd       float64 `json:"frontEnd"`
	BackEnd        float64 `json:"backEnd"`
	DistributorFee float64 `json:"distributorFee"`
}

type ProductsSnapshot struct {
	ByID   map[string]BundleSnapshot `json:"byId"`
	AllIDs []string                  `json:"allIds"`
}

// BundleSnapshot is the wire form of a bundle. The technical group travels
// under "product".
type BundleSnapshot struct {
	Product    TechnicalSnapshot  `json:"product"`
	Pricing    PricingSnapshot    `json:"pricing"`
	Promotions PromotionsSnapshot `json:"promotions"`
}

type TechnicalSnapshot struct {
	Program  string  `json:"program"`
	RAM      string  `json:"ram"`
	ROM      string  `json:"rom"`
	Type     string  `json:"type"`
	TmcUSD   float64 `json:"tmcUsd"`
	XRate    float64 `json:"xRate"`
	TmcEUR   float64 `json:"tmcEur"`
	CopyLevy float64 `json:"copyLevy"`
	DEEE     float64 `json:"deee"`
}

type PricingSnapshot struct {
	RRP                float64 `json:"rrp"`
	VATPct             float64 `json:"vatPct"`
	RRPNoVAT           float64 `json:"rrpNoVat"`
	CustomerInvoice    float64 `json:"customerInvoice"`
	DistributorInvoice float64 `json:"distributorInvoice"`
	TripleNet          float64 `json:"tripleNet"`
	AURUSD             float64 `json:"aurUsd"`
	GPPct              float64 `json:"gpPct"`
}

type PromotionsSnapshot struct {
	Mode            string  `json:"mode"`
	Promo1Rrp       float64 `json:"promo1Rrp"`
	Promo1Discount  float64 `json:"promo1Discount"`
	Promo1Soa       float64 `json:"promo1Soa"`
	Promo1SoaManual bool    `json:"promo1SoaManual"`
	Promo1Units     float64 `json:"promo1Units"`
	Promo1TotalSoa  float64 `json:"promo1TotalSoa"`
	Promo2Rrp       float64 `json:"promo2Rrp"`
	Promo2Discount  float64 `json:"promo2Discount"`
	Promo2Soa       float64 `json:"promo2Soa"`
	Promo2SoaManual bool    `json:"promo2SoaManual"`
	Promo2Units     float64 `json:"promo2Units"`
	Promo2TotalSoa  float64 `json:"promo2TotalSoa"`
	TotalUnits      float64 `json:"totalUnits"`
	TotalSoa        float64 `json:"totalSoa"`
	SoaPerBox       float64 `json:"soaPerBox"`
}

// EncodeBundle converts a bundle to its wire form.
func EncodeBundle(b pricing.Bundle) BundleSnapshot {
	s1, s2 := b.Promotions.Slots[0], b.Promotions.Slots[1]
	return BundleSnapshot{
		Product: TechnicalSnapshot{
			Program:  b.Technical.Program,
			RAM:      b.Technical.RAM,
			ROM:      b.Technical.ROM,
			Type:     b.Technical.Type,
			TmcUSD:   b.Technical.TmcUSD,
			XRate:    b.Technical.XRate,
			TmcEUR:   b.Technical.TmcEUR,
			CopyLevy: b.Technical.CopyLevy,
			DEEE:     b.Technical.DEEE,
		},
		Pricing: PricingSnapshot{
			RRP:                b.Pricing.RRP,
			VATPct:             b.Pricing.VATPct,
			RRPNoVAT:           b.Pricing.RRPNoVAT,
			CustomerInvoice:    b.Pricing.CustomerInvoice,
			DistributorInvoice: b.Pricing.DistributorInvoice,
			TripleNet:          b.Pricing.TripleNet,
			AURUSD:             b.Pricing.AURUSD,
			GPPct:              b.Pricing.GPPct,
		},
		Promotions: PromotionsSnapshot{
			Mode:            string(b.Promotions.Mode),
			Promo1Rrp:       s1.RRP,
			Promo1Discount:  s1.Discount,
			Promo1Soa:       s1.SOA,
			Promo1SoaManual: s1.SOAManual,
			Promo1Units:     float64(s1.Units),
			Promo1TotalSoa:  s1.TotalSOA,
			Promo2Rrp:       s2.RRP,
			Promo2Discount:  s2.Discount,
			Promo2Soa:       s2.SOA,
			Promo2SoaManual: s2.SOAManual,
			Promo2Units:     float64(s2.Units),
			Promo2TotalSoa:  s2.TotalSOA,
			TotalUnits:      float64(b.Promotions.TotalUnits),
			TotalSoa:        b.Promotions.TotalSOA,
			SoaPerBox:       b.Promotions.SOAPerBox,
		},
	}
}

// decodeBundle normalises the inputs of a wire bundle. Derived values are
// left for the stages to recompute.
func decodeBundle(s BundleSnapshot) pricing.Bundle {
	mode := pricing.Mode(s.Promotions.Mode)
	if !mode.Valid() {
		mode = pricing.ModeOnVAT
	}
	b := pricing.Bundle{
		Technical: pricing.Technical{
			Program:  strings.TrimSpace(s.Product.Program),
			RAM:      strings.TrimSpace(s.Product.RAM),
			ROM:      strings.TrimSpace(s.Product.ROM),
			Type:     strings.TrimSpace(s.Product.Type),
			TmcUSD:   numeric.Round2(s.Product.TmcUSD),
			XRate:    numeric.Round2(s.Product.XRate),
			CopyLevy: numeric.Round2(s.Product.CopyLevy),
			DEEE:     numeric.Round2(s.Product.DEEE),
		},
		Pricing: pricing.Pricing{
			RRP:    numeric.Round2(s.Pricing.RRP),
			VATPct: numeric.ClampPercent2(s.Pricing.VATPct),
		},
		Promotions: pricing.Promotions{Mode: mode},
	}
	p := s.Promotions
	b.Promotions.Slots[0] = pricing.Slot{
		RRP:       numeric.Round2(p.Promo1Rrp),
		SOA:       numeric.Round2(p.Promo1Soa),
		SOAManual: p.Promo1SoaManual,
		Units:     numeric.FloorNonNegativeInt(p.Promo1Units),
	}
	b.Promotions.Slots[1] = pricing.Slot{
		RRP:       numeric.Round2(p.Promo2Rrp),
		SOA:       numeric.Round2(p.Promo2Soa),
		SOAManual: p.Promo2SoaManual,
		Units:     numeric.FloorNonNegativeInt(p.Promo2Units),
	}
	return b
}

// DecodeSnapshot parses a snapshot, tolerating missing fields and the legacy
// layout where products is a plain array of technical records.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var raw struct {
		Customer *struct {
			CustomerSnapshot
			FrontEndPct       *float64 `json:"frontEndPct"`
			BackEndPct        *float64 `json:"backEndPct"`
			DistributorFeePct *float64 `json:"distributorFeePct"`
		} `json:"customer"`
		Products json.RawMessage `json:"products"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	snap := Snapshot{Products: ProductsSnapshot{ByID: map[string]BundleSnapshot{}, AllIDs: []string{}}}
	if c := raw.Customer; c != nil {
		snap.Customer = c.CustomerSnapshot
		if c.FrontEndPct != nil {
			snap.Customer.FrontEnd = *c.FrontEndPct
		}
		if c.BackEndPct != nil {
			snap.Customer.BackEnd = *c.BackEndPct
		}
		if c.DistributorFeePct != nil {
			snap.Customer.DistributorFee = *c.DistributorFeePct
		}
	}

	products := bytes.TrimSpace(raw.Products)
	switch {
	case len(products) == 0 || bytes.Equal(products, []byte("null")):
	case products[0] == '[':
		var legacy []TechnicalSnapshot
		if err := json.Unmarshal(products, &legacy); err != nil {
			return Snapshot{}, fmt.Errorf("decode legacy products: %w", err)
		}
		for _, t := range legacy {
			id := uuid.NewString()
			snap.Products.ByID[id] = BundleSnapshot{Product: t}
			snap.Products.AllIDs = append(snap.Products.AllIDs, id)
		}
	default:
		var ps ProductsSnapshot
		if err := json.Unmarshal(products, &ps); err != nil {
			return Snapshot{}, fmt.Errorf("decode products: %w", err)
		}
		if ps.ByID != nil {
			snap.Products.ByID = ps.ByID
		}
		if ps.AllIDs != nil {
			snap.Products.AllIDs = ps.AllIDs
		}
	}
	return snap, nil
}

// restoreOrder lists the ids to restore: allIds entries that have a body, in
// order and without duplicates, followed by unlisted bodies sorted by id.
func restoreOrder(ps ProductsSnapshot) []string {
	seen := make(map[string]bool, len(ps.ByID))
	ids := make([]string, 0, len(ps.ByID))
	for _, id := range ps.AllIDs {
		if _, ok := ps.ByID[id]; !ok || seen[id] || id == "" {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	var rest []string
	for id := range ps.ByID {
		if !seen[id] && id != "" {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(ids, rest...)
}

// Snapshot returns the current state in wire form.
func (p *Planner) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.buildSnapshotLocked()
}

func (p *Planner) buildSnapshotLocked() Snapshot {
	snap := Snapshot{
		Customer: CustomerSnapshot{
			Name:           p.terms.Name,
			FrontEnd:       p.terms.FrontEndPct,
			BackEnd:        p.terms.BackEndPct,
			DistributorFee: p.terms.DistributorFeePct,
		},
		Products: ProductsSnapshot{
			ByID:   make(map[string]BundleSnapshot, len(p.order)),
			AllIDs: append(make([]string, 0, len(p.order)), p.order...),
		},
	}
	for _, id := range p.order {
		snap.Products.ByID[id] = EncodeBundle(*p.bundles[id])
	}
	return snap
}

// Restore replaces the whole state with snap. Inputs are normalised and every
// stage is re-run; pinned SOA values are kept.
func (p *Planner) Restore(snap Snapshot) {
	terms := pricing.CustomerTerms{
		Name:              strings.TrimSpace(snap.Customer.Name),
		FrontEndPct:       numeric.ClampPercent2(snap.Customer.FrontEnd),
		BackEndPct:        numeric.ClampPercent2(snap.Customer.BackEnd),
		DistributorFeePct: numeric.ClampPercent2(snap.Customer.DistributorFee),
	}
	ids := restoreOrder(snap.Products)
	bundles := make(map[string]*pricing.Bundle, len(ids))
	var stages []pricing.Stage
	for _, id := range ids {
		b := decodeBundle(snap.Products.ByID[id])
		stages = append(stages, pricing.Recompute(&b, terms, pricing.StagePricing)...)
		bundles[id] = &b
	}

	p.mu.Lock()
	p.terms = terms
	p.bundles = bundles
	p.order = ids
	out := p.snapshotLocked()
	p.mu.Unlock()

	p.log.Info().Int("bundles", len(ids)).Msg("planner restored")
	p.rec.ObserveStages(stages)
	p.settle("restore", len(ids), out, events.Event{Kind: events.KindRestored})
}
