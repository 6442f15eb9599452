package planner

import (
	"github.com/Simplici0/dealplanner/internal/numeric"
	"github.com/Simplici0/dealplanner/internal/pricing"
)

// CurrencyTotals is an amount in both deal currencies.
type CurrencyTotals struct {
	USD float64 `json:"usd"`
	EUR float64 `json:"eur"`
}

// LineTotals are the revenue figures of a single bundle.
type LineTotals struct {
	Units       int            `json:"units"`
	NetRevenue  CurrencyTotals `json:"netRevenue"`
	GrossProfit CurrencyTotals `json:"grossProfit"`
}

// Summary gathers the deal-wide aggregates from one consistent read.
type Summary struct {
	Bundles            int            `json:"bundles"`
	TotalPromotedUnits int            `json:"totalPromotedUnits"`
	NetRevenue         CurrencyTotals `json:"netRevenue"`
	GrossProfit        CurrencyTotals `json:"grossProfit"`
	CostBasisGPPct     float64        `json:"costBasisGpPct"`
}

func lineTotals(b *pricing.Bundle) LineTotals {
	units := 0
	for _, s := range b.Promotions.Slots {
		units += s.Units
	}
	u := float64(units)
	return LineTotals{
		Units: units,
		NetRevenue: CurrencyTotals{
			USD: u * b.Pricing.AURUSD,
			EUR: u * b.Pricing.AURUSD * b.Technical.XRate,
		},
		GrossProfit: CurrencyTotals{
			USD: u * (b.Pricing.AURUSD - b.Technical.TmcUSD),
			EUR: u * (b.Pricing.AURUSD*b.Technical.XRate - b.Technical.TmcEUR),
		},
	}
}

func (p *Planner) summaryLocked() Summary {
	s := Summary{Bundles: len(p.order)}
	var numer, denom float64
	for _, id := range p.order {
		b := p.bundles[id]
		lt := lineTotals(b)
		s.TotalPromotedUnits += lt.Units
		s.NetRevenue.USD += lt.NetRevenue.USD
		s.NetRevenue.EUR += lt.NetRevenue.EUR
		s.GrossProfit.USD += lt.GrossProfit.USD
		s.GrossProfit.EUR += lt.GrossProfit.EUR

		u := float64(lt.Units)
		denom += u * b.Technical.TmcUSD
		if b.Technical.XRate > 0 {
			numer += u * b.Pricing.TripleNet / b.Technical.XRate
		}
	}
	if denom > 0 {
		s.CostBasisGPPct = numeric.Round2((numer/denom - 1) * 100)
	}
	return s
}

// Summary returns every aggregate at once.
func (p *Planner) Summary() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.summaryLocked()
}

// SnapshotAndSummary returns the state and its aggregates from one consistent read.
func (p *Planner) SnapshotAndSummary() (Snapshot, Summary) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.buildSnapshotLocked(), p.summaryLocked()
}

// TotalPromotedUnits sums the promoted units of every bundle.
func (p *Planner) TotalPromotedUnits() int {
	return p.Summary().TotalPromotedUnits
}

// NetRevenueTotals sums units times AUR over all bundles.
func (p *Planner) NetRevenueTotals() CurrencyTotals {
	return p.Summary().NetRevenue
}

// GrossProfitTotals sums units times (AUR minus cost) over all bundles.
func (p *Planner) GrossProfitTotals() CurrencyTotals {
	return p.Summary().GrossProfit
}

// CostBasisGPPct is the unit-weighted gross profit percentage of the deal.
// Bundles without an exchange rate contribute cost but no revenue.
func (p *Planner) CostBasisGPPct() float64 {
	return p.Summary().CostBasisGPPct
}

// LineTotals returns the revenue figures of one bundle.
func (p *Planner) LineTotals(id string) (LineTotals, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.bundles[id]
	if !ok {
		return LineTotals{}, false
	}
	return lineTotals(b), true
}
