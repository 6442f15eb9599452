package pricing

// Mode selects how the sell-out allowance (SOA) of a promotion is derived from its discount.
type Mode string

const (
	// ModeOnVAT removes VAT from the shelf discount.
	ModeOnVAT Mode = "on_vat"
	// ModeOnVATFE removes VAT and then the customer's front-end margin.
	ModeOnVATFE Mode = "on_vat_fe"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeOnVAT || m == ModeOnVATFE
}

// SlotCount is the number of promotional price points per bundle.
const SlotCount = 2

// CustomerTerms are the commercial terms shared by every bundle of a deal.
type CustomerTerms struct {
	Name              string
	FrontEndPct       float64
	BackEndPct        float64
	DistributorFeePct float64
}

// Technical holds product identity and cost inputs.
type Technical struct {
	Program  string
	RAM      string
	ROM      string
	Type     string
	TmcUSD   float64
	XRate    float64
	TmcEUR   float64
	CopyLevy float64
	DEEE     float64
}

// Pricing holds the list price inputs and every price derived from them.
type Pricing struct {
	RRP                float64
	VATPct             float64
	RRPNoVAT           float64
	CustomerInvoice    float64
	DistributorInvoice float64
	TripleNet          float64
	AURUSD             float64
	GPPct              float64
}

// Slot is one promotional price point.
type Slot struct {
	RRP       float64
	Discount  float64
	SOA       float64
	SOAManual bool
	Units     int
	TotalSOA  float64
}

// Promotions holds the promotional inputs and their roll-ups.
type Promotions struct {
	Mode       Mode
	Slots      [SlotCount]Slot
	TotalUnits int
	TotalSOA   float64
	SOAPerBox  float64
}

// Bundle is a single deal line item.
type Bundle struct {
	Technical  Technical
	Pricing    Pricing
	Promotions Promotions
}

// NewBundle returns a zero bundle with the default SOA mode and all derived fields settled.
func NewBundle(terms CustomerTerms) Bundle {
	b := Bundle{Promotions: Promotions{Mode: ModeOnVAT}}
	Recompute(&b, terms, StagePricing)
	return b
}
