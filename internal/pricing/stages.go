package pricing

import (
	"math"

	"github.com/Simplici0/dealplanner/internal/numeric"
)

// Stage identifies one step of the recomputation chain.
type Stage int

const (
	StagePricing Stage = iota
	StagePromotions
	StageProfitability
)

var stageNames = [...]string{"pricing", "promotions", "profitability"}

func (s Stage) String() string {
	if s < StagePricing || s > StageProfitability {
		return "unknown"
	}
	return stageNames[s]
}

// Recompute runs the stage chain starting at from, in dependency order, and
// returns the stages that ran.
func Recompute(b *Bundle, terms CustomerTerms, from Stage) []Stage {
	ran := make([]Stage, 0, 3)
	if from <= StagePricing {
		ApplyPricing(b, terms)
		ran = append(ran, StagePricing)
	}
	if from <= StagePromotions {
		ApplyPromotions(b, terms)
		ran = append(ran, StagePromotions)
	}
	ApplyProfitability(b)
	ran = append(ran, StageProfitability)
	return ran
}

// ApplyPricing derives TMC in euros and the invoice chain from RRP, VAT and the customer terms.
func ApplyPricing(b *Bundle, terms CustomerTerms) {
	t := &b.Technical
	p := &b.Pricing

	t.TmcEUR = numeric.Round2(t.TmcUSD * t.XRate)
	p.RRPNoVAT = numeric.Round2(p.RRP / vatDivisor(p.VATPct))
	p.CustomerInvoice = numeric.Round2(math.Max(0, (p.RRPNoVAT-t.CopyLevy-t.DEEE)*(1-terms.FrontEndPct/100)))
	p.DistributorInvoice = numeric.Round2(math.Max(0, p.CustomerInvoice*(1-terms.DistributorFeePct/100)))
}

// AutoSOA is the allowance paid per unit for a shelf discount when the slot is not pinned.
func AutoSOA(discount float64, mode Mode, vatPct, frontEndPct float64) float64 {
	base := discount / vatDivisor(vatPct)
	if mode == ModeOnVATFE {
		return numeric.Round2(base * (1 - frontEndPct/100))
	}
	return numeric.Round2(base)
}

// ApplyPromotions derives discounts, allowances and the triple net price.
// A pinned slot keeps its SOA; everything downstream of it is still recomputed.
func ApplyPromotions(b *Bundle, terms CustomerTerms) {
	p := &b.Pricing
	pr := &b.Promotions

	var totalSOA float64
	pr.TotalUnits = 0
	for i := range pr.Slots {
		s := &pr.Slots[i]
		s.Discount = numeric.Round2(math.Max(0, p.RRP-s.RRP))
		if s.SOAManual {
			s.SOA = numeric.Round2(s.SOA)
		} else {
			s.SOA = AutoSOA(s.Discount, pr.Mode, p.VATPct, terms.FrontEndPct)
		}
		s.Units = numeric.FloorNonNegativeInt(float64(s.Units))
		s.TotalSOA = numeric.Round2(float64(s.Units) * s.SOA)

		pr.TotalUnits += s.Units
		totalSOA += s.TotalSOA
	}
	pr.TotalSOA = numeric.Round2(totalSOA)

	pr.SOAPerBox = 0
	if pr.TotalUnits > 0 {
		pr.SOAPerBox = numeric.Round2(pr.TotalSOA / float64(pr.TotalUnits))
	}
	p.TripleNet = numeric.Round2(p.DistributorInvoice - pr.SOAPerBox)
}

// ApplyProfitability converts the triple net price back to dollars and compares it with cost.
func ApplyProfitability(b *Bundle) {
	t := b.Technical
	p := &b.Pricing

	p.AURUSD = 0
	tripleNetUSD := 0.0
	if t.XRate > 0 {
		p.AURUSD = numeric.Round2((p.TripleNet + t.CopyLevy + t.DEEE) / t.XRate)
		tripleNetUSD = p.TripleNet / t.XRate
	}

	p.GPPct = 0
	if t.TmcUSD > 0 {
		p.GPPct = numeric.Round2((tripleNetUSD/t.TmcUSD - 1) * 100)
	}
}

func vatDivisor(vatPct float64) float64 {
	return 1 + numeric.ClampPercent2(vatPct)/100
}
