package planner

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Simplici0/dealplanner/internal/numeric"
	"github.com/Simplici0/dealplanner/internal/pricing"
)

// Patch is a partial update keyed by wire field name.
type Patch map[string]any

// Group names a bundle field group.
type Group string

const (
	GroupTechnical  Group = "technical"
	GroupPricing    Group = "pricing"
	GroupPromotions Group = "promotions"
)

// ParseGroup accepts a group name, including the legacy "product" alias for technical.
func ParseGroup(s string) (Group, bool) {
	switch g := Group(strings.ToLower(strings.TrimSpace(s))); g {
	case GroupTechnical, GroupPricing, GroupPromotions:
		return g, true
	case "product":
		return GroupTechnical, true
	}
	return "", false
}

var startStage = map[Group]pricing.Stage{
	GroupTechnical:  pricing.StagePricing,
	GroupPricing:    pricing.StagePricing,
	GroupPromotions: pricing.StagePromotions,
}

type kind int

const (
	kindText kind = iota
	kindMoney
	kindRate
	kindPercent
	kindUnits
	kindMode
	kindFlag
)

type field struct {
	kind     kind
	set      func(b *pricing.Bundle, v any)
	setTerms func(t *pricing.CustomerTerms, v any)
}

var technicalFields = map[string]field{
	"program":  {kind: kindText, set: func(b *pricing.Bundle, v any) { b.Technical.Program = v.(string) }},
	"ram":      {kind: kindText, set: func(b *pricing.Bundle, v any) { b.Technical.RAM = v.(string) }},
	"rom":      {kind: kindText, set: func(b *pricing.Bundle, v any) { b.Technical.ROM = v.(string) }},
	"type":     {kind: kindText, set: func(b *pricing.Bundle, v any) { b.Technical.Type = v.(string) }},
	"tmcUsd":   {kind: kindMoney, set: func(b *pricing.Bundle, v any) { b.Technical.TmcUSD = v.(float64) }},
	"xRate":    {kind: kindRate, set: func(b *pricing.Bundle, v any) { b.Technical.XRate = v.(float64) }},
	"copyLevy": {kind: kindMoney, set: func(b *pricing.Bundle, v any) { b.Technical.CopyLevy = v.(float64) }},
	"deee":     {kind: kindMoney, set: func(b *pricing.Bundle, v any) { b.Technical.DEEE = v.(float64) }},
}

var pricingFields = map[string]field{
	"rrp":    {kind: kindMoney, set: func(b *pricing.Bundle, v any) { b.Pricing.RRP = v.(float64) }},
	"vatPct": {kind: kindPercent, set: func(b *pricing.Bundle, v any) { b.Pricing.VATPct = v.(float64) }},
}

var promotionFields = map[string]field{
	"mode": {kind: kindMode, set: func(b *pricing.Bundle, v any) { b.Promotions.Mode = v.(pricing.Mode) }},
}

func init() {
	for i := 0; i < pricing.SlotCount; i++ {
		i := i // per-iteration copy; go.mod targets go1.21 (pre-1.22 loop semantics)
		promotionFields[slotKey(i, "Rrp")] = field{kind: kindMoney, set: func(b *pricing.Bundle, v any) { b.Promotions.Slots[i].RRP = v.(float64) }}
		promotionFields[slotKey(i, "Soa")] = field{kind: kindMoney, set: func(b *pricing.Bundle, v any) { b.Promotions.Slots[i].SOA = v.(float64) }}
		promotionFields[slotKey(i, "SoaManual")] = field{kind: kindFlag, set: func(b *pricing.Bundle, v any) { b.Promotions.Slots[i].SOAManual = v.(bool) }}
		promotionFields[slotKey(i, "Units")] = field{kind: kindUnits, set: func(b *pricing.Bundle, v any) { b.Promotions.Slots[i].Units = v.(int) }}
	}
}

var groupFields = map[Group]map[string]field{
	GroupTechnical:  technicalFields,
	GroupPricing:    pricingFields,
	GroupPromotions: promotionFields,
}

// customerFields also accepts the short names used by saved snapshots.
var customerFields = map[string]field{
	"name":              {kind: kindText, setTerms: func(t *pricing.CustomerTerms, v any) { t.Name = v.(string) }},
	"frontEndPct":       {kind: kindPercent, setTerms: func(t *pricing.CustomerTerms, v any) { t.FrontEndPct = v.(float64) }},
	"backEndPct":        {kind: kindPercent, setTerms: func(t *pricing.CustomerTerms, v any) { t.BackEndPct = v.(float64) }},
	"distributorFeePct": {kind: kindPercent, setTerms: func(t *pricing.CustomerTerms, v any) { t.DistributorFeePct = v.(float64) }},
	"frontEnd":          {kind: kindPercent, setTerms: func(t *pricing.CustomerTerms, v any) { t.FrontEndPct = v.(float64) }},
	"backEnd":           {kind: kindPercent, setTerms: func(t *pricing.CustomerTerms, v any) { t.BackEndPct = v.(float64) }},
	"distributorFee":    {kind: kindPercent, setTerms: func(t *pricing.CustomerTerms, v any) { t.DistributorFeePct = v.(float64) }},
}

func slotKey(i int, suffix string) string {
	return fmt.Sprintf("promo%d%s", i+1, suffix)
}

// normalize converts every recognised key of patch to its field's canonical
// value. Keys that are unknown, read-only or of the wrong type are returned
// in dropped, sorted.
func normalize(fields map[string]field, patch Patch) (applied map[string]any, dropped []string) {
	applied = make(map[string]any, len(patch))
	for key, raw := range patch {
		f, ok := fields[key]
		if !ok {
			dropped = append(dropped, key)
			continue
		}
		v, ok := coerce(f.kind, raw)
		if !ok {
			dropped = append(dropped, key)
			continue
		}
		applied[key] = v
	}
	sort.Strings(dropped)
	return applied, dropped
}

func coerce(k kind, raw any) (any, bool) {
	switch k {
	case kindText:
		s, ok := raw.(string)
		if !ok {
			return nil, false
		}
		return strings.TrimSpace(s), true
	case kindFlag:
		b, ok := raw.(bool)
		return b, ok
	case kindMode:
		s, ok := raw.(string)
		if !ok {
			return nil, false
		}
		m := pricing.Mode(strings.TrimSpace(s))
		if !m.Valid() {
			return nil, false
		}
		return m, true
	}

	x, ok := toFloat(raw)
	if !ok {
		return nil, false
	}
	switch k {
	case kindPercent:
		return numeric.ClampPercent2(x), true
	case kindUnits:
		return numeric.FloorNonNegativeInt(x), true
	default:
		return numeric.Round2(x), true
	}
}

// toFloat accepts any Go or JSON number. Non-finite values pass through and
// are zeroed by the numeric helpers.
func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil && !math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// applyPromotionSideEffects adjusts applied before assignment: a mode change
// clears both pins, and an SOA value without an explicit flag pins its slot.
func applyPromotionSideEffects(b *pricing.Bundle, applied map[string]any) {
	if _, ok := applied["mode"]; ok {
		for i := range b.Promotions.Slots {
			b.Promotions.Slots[i].SOAManual = false
		}
	}
	for i := 0; i < pricing.SlotCount; i++ {
		if _, ok := applied[slotKey(i, "Soa")]; !ok {
			continue
		}
		if _, ok := applied[slotKey(i, "SoaManual")]; !ok {
			applied[slotKey(i, "SoaManual")] = true
		}
	}
}
