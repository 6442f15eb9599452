package pricing

import (
	"math"
	"testing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func scenarioBundle() (Bundle, CustomerTerms) {
	terms := CustomerTerms{FrontEndPct: 10, DistributorFeePct: 5}
	b := Bundle{
		Technical: Technical{TmcUSD: 200, XRate: 0.92, CopyLevy: 1, DEEE: 0.5},
		Pricing:   Pricing{RRP: 120, VATPct: 21},
		Promotions: Promotions{
			Mode: ModeOnVAT,
			Slots: [SlotCount]Slot{
				{RRP: 100, Units: 50},
				{Units: 0},
			},
		},
	}
	return b, terms
}

func TestRecompute_EndToEndScenario(t *testing.T) {
	b, terms := scenarioBundle()

	ran := Recompute(&b, terms, StagePricing)
	if len(ran) != 3 || ran[0] != StagePricing || ran[1] != StagePromotions || ran[2] != StageProfitability {
		t.Fatalf("unexpected stage order %v", ran)
	}

	nearlyEqual(t, "tmcEur", b.Technical.TmcEUR, 184)
	nearlyEqual(t, "rrpNoVat", b.Pricing.RRPNoVAT, 99.17)
	nearlyEqual(t, "customerInvoice", b.Pricing.CustomerInvoice, 87.90)
	nearlyEqual(t, "distributorInvoice", b.Pricing.DistributorInvoice, 83.51)
	nearlyEqual(t, "discount1", b.Promotions.Slots[0].Discount, 20)
	nearlyEqual(t, "soa1", b.Promotions.Slots[0].SOA, 16.53)
	nearlyEqual(t, "totalSoa1", b.Promotions.Slots[0].TotalSOA, 826.50)
	nearlyEqual(t, "totalSoa", b.Promotions.TotalSOA, 826.50)
	nearlyEqual(t, "soaPerBox", b.Promotions.SOAPerBox, 16.53)
	nearlyEqual(t, "tripleNet", b.Pricing.TripleNet, 66.98)
	nearlyEqual(t, "aurUsd", b.Pricing.AURUSD, 74.43)
	nearlyEqual(t, "gpPct", b.Pricing.GPPct, -63.60)
	if b.Promotions.TotalUnits != 50 {
		t.Fatalf("totalUnits = %d, want 50", b.Promotions.TotalUnits)
	}
}

func TestApplyPricing_NeverNegativeInvoices(t *testing.T) {
	b := Bundle{
		Technical: Technical{CopyLevy: 30, DEEE: 5},
		Pricing:   Pricing{RRP: 20, VATPct: 0},
	}
	ApplyPricing(&b, CustomerTerms{FrontEndPct: 10})

	nearlyEqual(t, "customerInvoice", b.Pricing.CustomerInvoice, 0)
	nearlyEqual(t, "distributorInvoice", b.Pricing.DistributorInvoice, 0)
}

func TestApplyPricing_ClampsVATBeforeDividing(t *testing.T) {
	b := Bundle{Pricing: Pricing{RRP: 100, VATPct: -50}}
	ApplyPricing(&b, CustomerTerms{})
	nearlyEqual(t, "rrpNoVat with negative vat", b.Pricing.RRPNoVAT, 100)

	b.Pricing.VATPct = 400
	ApplyPricing(&b, CustomerTerms{})
	nearlyEqual(t, "rrpNoVat with vat above 100", b.Pricing.RRPNoVAT, 50)
}

func TestAutoSOA_Modes(t *testing.T) {
	nearlyEqual(t, "on_vat", AutoSOA(20, ModeOnVAT, 21, 10), 16.53)
	nearlyEqual(t, "on_vat_fe", AutoSOA(20, ModeOnVATFE, 21, 10), 14.88)
	nearlyEqual(t, "no vat", AutoSOA(10, ModeOnVAT, 0, 10), 10)
}

func TestApplyPromotions_PromoAboveRRPGivesZeroDiscount(t *testing.T) {
	b := Bundle{
		Pricing: Pricing{RRP: 100},
		Promotions: Promotions{
			Mode:  ModeOnVAT,
			Slots: [SlotCount]Slot{{RRP: 130, Units: 10}},
		},
	}
	ApplyPromotions(&b, CustomerTerms{})

	nearlyEqual(t, "discount", b.Promotions.Slots[0].Discount, 0)
	nearlyEqual(t, "soa", b.Promotions.Slots[0].SOA, 0)
	nearlyEqual(t, "soaPerBox", b.Promotions.SOAPerBox, 0)
}

func TestApplyPromotions_ManualSlotKeepsValueButFeedsTotals(t *testing.T) {
	b := Bundle{
		Pricing: Pricing{RRP: 100, DistributorInvoice: 80},
		Promotions: Promotions{
			Mode: ModeOnVAT,
			Slots: [SlotCount]Slot{
				{RRP: 90, SOA: 5, SOAManual: true, Units: 10},
				{RRP: 80, Units: 30},
			},
		},
	}
	ApplyPromotions(&b, CustomerTerms{})

	nearlyEqual(t, "pinned soa", b.Promotions.Slots[0].SOA, 5)
	nearlyEqual(t, "pinned total", b.Promotions.Slots[0].TotalSOA, 50)
	nearlyEqual(t, "auto soa", b.Promotions.Slots[1].SOA, 20)
	nearlyEqual(t, "totalSoa", b.Promotions.TotalSOA, 650)
	nearlyEqual(t, "soaPerBox", b.Promotions.SOAPerBox, 16.25)
	nearlyEqual(t, "tripleNet", b.Pricing.TripleNet, 63.75)
	if b.Promotions.TotalUnits != 40 {
		t.Fatalf("totalUnits = %d, want 40", b.Promotions.TotalUnits)
	}
}

func TestApplyPromotions_NoUnitsMeansNoSOAPerBox(t *testing.T) {
	b := Bundle{
		Pricing:    Pricing{RRP: 100, DistributorInvoice: 70},
		Promotions: Promotions{Mode: ModeOnVAT, Slots: [SlotCount]Slot{{RRP: 50}}},
	}
	ApplyPromotions(&b, CustomerTerms{})

	nearlyEqual(t, "soaPerBox", b.Promotions.SOAPerBox, 0)
	nearlyEqual(t, "tripleNet", b.Pricing.TripleNet, 70)
}

func TestApplyProfitability_ZeroDenominators(t *testing.T) {
	b := Bundle{
		Technical: Technical{TmcUSD: 0, XRate: 0},
		Pricing:   Pricing{TripleNet: 50},
	}
	ApplyProfitability(&b)
	nearlyEqual(t, "aurUsd with no rate", b.Pricing.AURUSD, 0)
	nearlyEqual(t, "gpPct with no cost", b.Pricing.GPPct, 0)

	b.Technical.TmcUSD = 100
	ApplyProfitability(&b)
	nearlyEqual(t, "gpPct with cost but no rate", b.Pricing.GPPct, -100)

	for _, v := range []float64{b.Pricing.AURUSD, b.Pricing.GPPct} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite profitability value %v", v)
		}
	}
}

func TestRecompute_FromPromotionsSkipsPricing(t *testing.T) {
	b, terms := scenarioBundle()
	Recompute(&b, terms, StagePricing)

	// stale pricing input must not be picked up when starting at promotions
	b.Pricing.RRP = 500
	ran := Recompute(&b, terms, StagePromotions)

	if len(ran) != 2 || ran[0] != StagePromotions {
		t.Fatalf("unexpected stages %v", ran)
	}
	nearlyEqual(t, "rrpNoVat unchanged", b.Pricing.RRPNoVAT, 99.17)
	nearlyEqual(t, "discount uses current rrp", b.Promotions.Slots[0].Discount, 400)
}

func TestNewBundleDefaults(t *testing.T) {
	b := NewBundle(CustomerTerms{FrontEndPct: 10})
	if b.Promotions.Mode != ModeOnVAT {
		t.Fatalf("mode = %q, want %q", b.Promotions.Mode, ModeOnVAT)
	}
	nearlyEqual(t, "tripleNet", b.Pricing.TripleNet, 0)
	nearlyEqual(t, "gpPct", b.Pricing.GPPct, 0)
}
