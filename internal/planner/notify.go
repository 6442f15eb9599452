package planner

import (
	"github.com/Simplici0/dealplanner/internal/events"
	"github.com/Simplici0/dealplanner/internal/pricing"
)

// stageEvent reports the outputs of one recomputation stage.
func stageEvent(id string, st pricing.Stage, b *pricing.Bundle) events.Event {
	ev := events.Event{Kind: events.KindBundleChanged, BundleID: id, Stage: st.String()}
	switch st {
	case pricing.StagePricing:
		ev.Group = string(GroupPricing)
		ev.Fields = map[string]any{
			"tmcEur":             b.Technical.TmcEUR,
			"rrpNoVat":           b.Pricing.RRPNoVAT,
			"customerInvoice":    b.Pricing.CustomerInvoice,
			"distributorInvoice": b.Pricing.DistributorInvoice,
		}
	case pricing.StagePromotions:
		ev.Group = string(GroupPromotions)
		ev.Fields = map[string]any{
			"totalUnits": b.Promotions.TotalUnits,
			"totalSoa":   b.Promotions.TotalSOA,
			"soaPerBox":  b.Promotions.SOAPerBox,
			"tripleNet":  b.Pricing.TripleNet,
		}
		for i, s := range b.Promotions.Slots {
			ev.Fields[slotKey(i, "Discount")] = s.Discount
			ev.Fields[slotKey(i, "Soa")] = s.SOA
			ev.Fields[slotKey(i, "Units")] = s.Units
			ev.Fields[slotKey(i, "TotalSoa")] = s.TotalSOA
		}
	case pricing.StageProfitability:
		ev.Group = string(GroupPricing)
		ev.Fields = map[string]any{
			"aurUsd": b.Pricing.AURUSD,
			"gpPct":  b.Pricing.GPPct,
		}
	}
	return ev
}
