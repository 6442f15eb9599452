// Package export renders a deal as an .xlsx workbook with live formulas.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/dealplanner/internal/planner"
)

// SheetName is the name of the only worksheet.
const SheetName = "DealPlanner"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const colWidth = 18

// Column indexes, 1-based.
const (
	colCustomerName = iota + 1
	colFrontEnd
	colBackEnd
	colDistributorFee
	colProgram
	colRAM
	colROM
	colType
	colRRP
	colVAT
	colRRPNoVAT
	colCopyLevy
	colDEEE
	colTmcUSD
	colXRate
	colTmcEUR
	colCustomerInvoice
	colDistributorInvoice
	colSOAPerBox
	colTripleNet
	colAURUSD
	colGPPct
	colSOAMode
	colPromo1RRP
	colPromo1Units
	colPromo1SOA
	colPromo1TotalSOA
	colPromo2RRP
	colPromo2Units
	colPromo2SOA
	colPromo2TotalSOA
	colTotalUnits
	colTotalSOA
	colNetRevenueUSD
	colNetRevenueEUR
	colGrossProfitUSD
	colGrossProfitEUR
)

// Headers lists the column titles in order.
var Headers = []string{
	"Customer Name", "Front End %", "Back End %", "Distributor Fee %",
	"Program", "RAM", "ROM", "Type",
	"RRP (€)", "VAT (%)", "RRP w/o VAT (€)",
	"Copy Levy (€)", "DEEE (€)",
	"TMC ($)", "X-Rate", "TMC (€)",
	"Customer Invoice (€)", "Distributor Invoice (€)", "SOA per Box (€)", "Triple Net (€)",
	"AUR ($)", "GP (%)",
	"SOA Mode",
	"Promo RRP 1 (€)", "Units Promo 1", "SOA Promo 1 (€)", "Total SOA Promo 1 (€)",
	"Promo RRP 2 (€)", "Units Promo 2", "SOA Promo 2 (€)", "Total SOA Promo 2 (€)",
	"Total Units", "Total SOA (€)",
	"Total Net Revenue ($)", "Total Net Revenue (€)",
	"Total GP ($)", "Total GP (€)",
}

// Workbook renders snap and returns the encoded file.
func Workbook(snap planner.Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}
	last := cellCol(len(Headers))
	if err := f.SetColWidth(SheetName, "A", last, colWidth); err != nil {
		return nil, fmt.Errorf("set col width: %w", err)
	}

	for i, h := range Headers {
		if err := f.SetCellValue(SheetName, cell(i+1, 1), h); err != nil {
			return nil, fmt.Errorf("write header %q: %w", h, err)
		}
	}

	ids := rowIDs(snap.Products)
	for i, id := range ids {
		if err := writeRow(f, i+2, snap.Customer, snap.Products.ByID[id]); err != nil {
			return nil, fmt.Errorf("write bundle %s: %w", id, err)
		}
	}
	if err := writeTotals(f, len(ids)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// rowIDs keeps allIds order and skips ids without a body.
func rowIDs(ps planner.ProductsSnapshot) []string {
	ids := make([]string, 0, len(ps.AllIDs))
	for _, id := range ps.AllIDs {
		if _, ok := ps.ByID[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func writeRow(f *excelize.File, row int, c planner.CustomerSnapshot, b planner.BundleSnapshot) error {
	mode := b.Promotions.Mode
	if mode == "" {
		mode = "on_vat"
	}
	values := map[int]any{
		colCustomerName:   c.Name,
		colFrontEnd:       c.FrontEnd,
		colBackEnd:        c.BackEnd,
		colDistributorFee: c.DistributorFee,
		colProgram:        b.Product.Program,
		colRAM:            b.Product.RAM,
		colROM:            b.Product.ROM,
		colType:           b.Product.Type,
		colRRP:            b.Pricing.RRP,
		colVAT:            b.Pricing.VATPct,
		colCopyLevy:       b.Product.CopyLevy,
		colDEEE:           b.Product.DEEE,
		colTmcUSD:         b.Product.TmcUSD,
		colXRate:          b.Product.XRate,
		colSOAMode:        mode,
		colPromo1RRP:      b.Promotions.Promo1Rrp,
		colPromo1Units:    int(b.Promotions.Promo1Units),
		colPromo2RRP:      b.Promotions.Promo2Rrp,
		colPromo2Units:    int(b.Promotions.Promo2Units),
	}
	for col, v := range values {
		if err := f.SetCellValue(SheetName, cell(col, row), v); err != nil {
			return err
		}
	}

	r := func(col int) string { return cell(col, row) }
	formulas := map[int]string{
		colRRPNoVAT: fmt.Sprintf("ROUND(%s/(1+%s/100),2)", r(colRRP), r(colVAT)),
		colTmcEUR:   fmt.Sprintf("ROUND(%s*%s,2)", r(colTmcUSD), r(colXRate)),
		colCustomerInvoice: fmt.Sprintf("ROUND(MAX(0,(%s-%s-%s)*(1-%s/100)),2)",
			r(colRRPNoVAT), r(colCopyLevy), r(colDEEE), r(colFrontEnd)),
		colDistributorInvoice: fmt.Sprintf("ROUND(MAX(0,%s*(1-%s/100)),2)", r(colCustomerInvoice), r(colDistributorFee)),
		colPromo1TotalSOA:     fmt.Sprintf("ROUND(%s*%s,2)", r(colPromo1Units), r(colPromo1SOA)),
		colPromo2TotalSOA:     fmt.Sprintf("ROUND(%s*%s,2)", r(colPromo2Units), r(colPromo2SOA)),
		colTotalUnits:         fmt.Sprintf("%s+%s", r(colPromo1Units), r(colPromo2Units)),
		colTotalSOA:           fmt.Sprintf("ROUND(%s+%s,2)", r(colPromo1TotalSOA), r(colPromo2TotalSOA)),
		colSOAPerBox:          fmt.Sprintf("IF(%s>0,ROUND(%s/%s,2),0)", r(colTotalUnits), r(colTotalSOA), r(colTotalUnits)),
		colTripleNet:          fmt.Sprintf("ROUND(%s-%s,2)", r(colDistributorInvoice), r(colSOAPerBox)),
		colAURUSD: fmt.Sprintf("IF(%s>0,ROUND((%s+%s+%s)/%s,2),0)",
			r(colXRate), r(colTripleNet), r(colCopyLevy), r(colDEEE), r(colXRate)),
		colGPPct: fmt.Sprintf("IF(AND(%s>0,%s>0),ROUND(((%s/%s)/%s-1)*100,2),0)",
			r(colXRate), r(colTmcUSD), r(colTripleNet), r(colXRate), r(colTmcUSD)),
		colNetRevenueUSD:  fmt.Sprintf("%s*%s", r(colTotalUnits), r(colAURUSD)),
		colNetRevenueEUR:  fmt.Sprintf("%s*%s", r(colNetRevenueUSD), r(colXRate)),
		colGrossProfitUSD: fmt.Sprintf("%s*(%s-%s)", r(colTotalUnits), r(colAURUSD), r(colTmcUSD)),
		colGrossProfitEUR: fmt.Sprintf("%s*((%s*%s)-%s)", r(colTotalUnits), r(colAURUSD), r(colXRate), r(colTmcEUR)),
	}

	// Pinned SOA values are exported as values; the others follow the mode.
	slots := []struct {
		col, rrpCol int
		soa         float64
		manual      bool
	}{
		{colPromo1SOA, colPromo1RRP, b.Promotions.Promo1Soa, b.Promotions.Promo1SoaManual},
		{colPromo2SOA, colPromo2RRP, b.Promotions.Promo2Soa, b.Promotions.Promo2SoaManual},
	}
	for _, s := range slots {
		if s.manual {
			if err := f.SetCellValue(SheetName, r(s.col), s.soa); err != nil {
				return err
			}
			continue
		}
		base := fmt.Sprintf("MAX(0,%s-%s)/(1+%s/100)", r(colRRP), r(s.rrpCol), r(colVAT))
		formulas[s.col] = fmt.Sprintf(`IF(%s="on_vat_fe",ROUND(%s*(1-%s/100),2),ROUND(%s,2))`,
			r(colSOAMode), base, r(colFrontEnd), base)
	}

	for col, formula := range formulas {
		if err := f.SetCellFormula(SheetName, r(col), formula); err != nil {
			return err
		}
	}
	return nil
}

func writeTotals(f *excelize.File, bundles int) error {
	first, last := 2, bundles+1
	row := last + 1

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create totals style: %w", err)
	}
	if err := f.SetCellValue(SheetName, cell(colCustomerName, row), "TOTALS"); err != nil {
		return fmt.Errorf("write totals label: %w", err)
	}

	if bundles > 0 {
		span := func(col int) string { return cell(col, first) + ":" + cell(col, last) }
		for _, col := range []int{
			colPromo1Units, colPromo1TotalSOA, colPromo2Units, colPromo2TotalSOA,
			colTotalUnits, colTotalSOA,
			colNetRevenueUSD, colNetRevenueEUR, colGrossProfitUSD, colGrossProfitEUR,
		} {
			if err := f.SetCellFormula(SheetName, cell(col, row), fmt.Sprintf("SUM(%s)", span(col))); err != nil {
				return fmt.Errorf("write totals: %w", err)
			}
		}

		numer := fmt.Sprintf("SUMPRODUCT(%s,IFERROR(%s/%s,0))", span(colTotalUnits), span(colTripleNet), span(colXRate))
		denom := fmt.Sprintf("SUMPRODUCT(%s,%s)", span(colTotalUnits), span(colTmcUSD))
		gp := fmt.Sprintf("IF(%s>0,ROUND((%s/%s-1)*100,2),0)", denom, numer, denom)
		if err := f.SetCellFormula(SheetName, cell(colGPPct, row), gp); err != nil {
			return fmt.Errorf("write cost basis gp: %w", err)
		}
	}

	if err := f.SetCellStyle(SheetName, cell(1, row), cell(len(Headers), row), bold); err != nil {
		return fmt.Errorf("style totals row: %w", err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func cellCol(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}
