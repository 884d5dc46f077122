package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"grants-cloud/internal/budget/application"
	budget "grants-cloud/internal/budget/domain"
	"grants-cloud/internal/money"
)

const (
	pageMargin = 10.0
	lineHeight = 5.0
)

type column struct {
	title string
	width float64
	align string
	wrap  bool
}

var lineColumns = []column{
	{title: "Code", width: 22, align: "L"},
	{title: "Ligne budgetaire", width: 63, align: "L", wrap: true},
	{title: "Prevu", width: 30, align: "R"},
	{title: "Notifie", width: 30, align: "R"},
	{title: "Engage", width: 30, align: "R"},
	{title: "Disponible", width: 30, align: "R"},
	{title: "Decaisse", width: 28, align: "R"},
	{title: "Taux eng.", width: 22, align: "R"},
	{title: "Taux dec.", width: 22, align: "R"},
}

var engagementColumns = []column{
	{title: "Numero", width: 40, align: "L"},
	{title: "Date", width: 22, align: "C"},
	{title: "Ligne", width: 20, align: "L"},
	{title: "Sous-ligne", width: 20, align: "L"},
	{title: "Fournisseur", width: 40, align: "L", wrap: true},
	{title: "Description", width: 70, align: "L", wrap: true},
	{title: "Montant", width: 30, align: "R"},
	{title: "Statut", width: 20, align: "C"},
	{title: "Visas", width: 15, align: "C"},
}

// table draws rows with wrapped cells and repeats its header after every page break.
type table struct {
	pdf     *gofpdf.Fpdf
	tr      func(string) string
	columns []column
}

func (t *table) header() {
	t.pdf.SetFont("Arial", "B", 8)
	t.pdf.SetFillColor(220, 226, 235)
	for _, col := range t.columns {
		t.pdf.CellFormat(col.width, 7, t.tr(col.title), "1", 0, "C", true, 0, "")
	}
	t.pdf.Ln(-1)
	t.pdf.SetFont("Arial", "", 8)
}

func (t *table) row(values []string, bold, highlight bool) {
	height := lineHeight
	wrapped := make([][][]byte, len(values))
	for i, col := range t.columns {
		text := t.tr(values[i])
		if col.wrap {
			wrapped[i] = t.pdf.SplitLines([]byte(text), col.width-2)
		} else {
			wrapped[i] = [][]byte{[]byte(text)}
		}
		if h := float64(len(wrapped[i])) * lineHeight; h > height {
			height = h
		}
	}

	_, pageHeight := t.pdf.GetPageSize()
	if t.pdf.GetY()+height > pageHeight-2*pageMargin {
		t.pdf.AddPage()
		t.header()
	}

	style := ""
	if bold {
		style = "B"
	}
	t.pdf.SetFont("Arial", style, 8)
	if highlight {
		t.pdf.SetFillColor(250, 215, 210)
	}
	x, y := t.pdf.GetXY()
	for i, col := range t.columns {
		rectStyle := "D"
		if highlight {
			rectStyle = "FD"
		}
		t.pdf.Rect(x, y, col.width, height, rectStyle)
		for j, line := range wrapped[i] {
			t.pdf.SetXY(x, y+float64(j)*lineHeight)
			t.pdf.CellFormat(col.width, lineHeight, string(line), "", 0, col.align, false, 0, "")
		}
		x += col.width
	}
	t.pdf.SetXY(pageMargin, y+height)
	t.pdf.SetFont("Arial", "", 8)
}

func newDocument(orientation, organization, title string, generatedAt time.Time) (*gofpdf.Fpdf, func(string) string) {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.AliasNbPages("")
	pdf.SetHeaderFunc(func() {
		if organization != "" {
			pdf.SetFont("Arial", "", 8)
			pdf.CellFormat(0, 4, tr(organization), "", 1, "R", false, 0, "")
		}
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, tr(title), "B", 1, "L", false, 0, "")
		pdf.Ln(2)
	})
	pdf.SetFooterFunc(func() {
		_, pageHeight := pdf.GetPageSize()
		pdf.SetXY(pageMargin, pageHeight-pageMargin-4)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 4, tr("Genere le "+generatedAt.UTC().Format("2006-01-02 15:04")+" UTC"), "", 0, "L", false, 0, "")
		pdf.SetX(pageMargin)
		pdf.CellFormat(0, 4, fmt.Sprintf("Page %d / {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	return pdf, tr
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildGrantReportPDF renders the execution report of a grant on A4 landscape pages.
func BuildGrantReportPDF(report *application.GrantReport, organization string) ([]byte, error) {
	currency := string(report.Currency)
	pdf, tr := newDocument("L", organization, fmt.Sprintf("Rapport d'execution budgetaire - %s %s", report.GrantCode, report.GrantName), report.GeneratedAt)
	pdf.AddPage()

	pdf.SetFont("Arial", "", 9)
	summary := []string{
		"Bailleur: " + report.Donor,
		"Statut: " + string(report.Status),
		"Montant total: " + money.Format(report.TotalAmount, currency),
		"Taux d'engagement global: " + money.Percent(report.Totals.EngagementRate),
	}
	if report.GeneratedBy != "" {
		summary = append(summary, "Edite par: "+report.GeneratedBy)
	}
	for _, line := range summary {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	lines := &table{pdf: pdf, tr: tr, columns: lineColumns}
	lines.header()
	places := money.Places(currency)
	for _, r := range report.Rows {
		name := r.Name
		if r.Level > 0 {
			name = "   " + name
		}
		lines.row(amountRow(r.Code, name, r, places), r.Level == 0, r.OverEngaged)
	}
	lines.row(amountRow(report.Totals.Code, report.Totals.Name, report.Totals, places), true, report.Totals.OverEngaged)

	if len(report.Engagements) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, tr("Engagements"), "", 1, "L", false, 0, "")
		engagements := &table{pdf: pdf, tr: tr, columns: engagementColumns}
		engagements.header()
		for _, e := range report.Engagements {
			engagements.row([]string{
				e.Number,
				e.Date,
				e.LineCode,
				e.SubLineCode,
				e.Supplier,
				e.Description,
				money.Number(e.Amount, places),
				string(e.Status),
				fmt.Sprintf("%d/3", e.Signatures),
			}, false, false)
		}
	}
	return output(pdf)
}

func amountRow(code, name string, r application.ReportRow, places int32) []string {
	return []string{
		code,
		name,
		money.Number(r.Planned, places),
		money.Number(r.Notified, places),
		money.Number(r.Engaged, places),
		money.Number(r.Available, places),
		money.Number(r.Spent, places),
		money.Percent(r.EngagementRate),
		money.Percent(r.SpentRate),
	}
}

var slotTitles = map[budget.Slot]string{
	budget.SlotSupervisor1:   "Visa superviseur 1",
	budget.SlotSupervisor2:   "Visa superviseur 2",
	budget.SlotFinalApproval: "Approbation finale",
}

// BuildVoucherPDF renders one engagement with its three signature blocks.
func BuildVoucherPDF(voucher *application.Voucher, organization string) ([]byte, error) {
	eng := voucher.Engagement
	currency := string(voucher.Currency)
	pdf, tr := newDocument("P", organization, "Fiche d'engagement "+eng.Number, voucher.GeneratedAt)
	pdf.AddPage()

	fields := [][2]string{
		{"Subvention", voucher.GrantCode + " - " + voucher.GrantName},
		{"Ligne budgetaire", voucher.LineCode + " - " + voucher.LineName},
		{"Sous-ligne", voucher.SubLineCode + " - " + voucher.SubLineName},
		{"Date", eng.Date},
		{"Fournisseur", eng.Supplier},
		{"Montant", money.Format(eng.Amount, currency)},
		{"Reference devis", eng.QuoteReference},
		{"Numero facture", eng.InvoiceNumber},
		{"Statut", string(eng.Status)},
		{"Cree par", eng.CreatedBy},
	}
	for _, f := range fields {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(45, 6, tr(f[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, tr(f[1]), "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(45, 6, tr("Description"), "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(0, 5, tr(eng.Description), "", "L", false)
	pdf.Ln(8)

	pageWidth, _ := pdf.GetPageSize()
	blockWidth := (pageWidth - 2*pageMargin - 8) / 3
	blockHeight := 42.0
	x, y := pageMargin, pdf.GetY()
	for _, slot := range budget.Slots {
		pdf.Rect(x, y, blockWidth, blockHeight, "D")
		pdf.SetXY(x+2, y+2)
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(blockWidth-4, 5, tr(slotTitles[slot]), "", 2, "L", false, 0, "")
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(blockWidth-4, 5, tr(string(budget.SlotProfession(slot))), "", 2, "L", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		if sig := eng.Approvals.Get(slot); sig != nil && sig.Signature {
			pdf.CellFormat(blockWidth-4, 5, tr("Signe par: "+sig.Name), "", 2, "L", false, 0, "")
			pdf.CellFormat(blockWidth-4, 5, tr("Le: "+sig.Date), "", 2, "L", false, 0, "")
			if sig.Observation != "" {
				pdf.MultiCell(blockWidth-4, 4, tr("Obs.: "+sig.Observation), "", "L", false)
			}
		} else {
			pdf.CellFormat(blockWidth-4, 5, tr("En attente de signature"), "", 2, "L", false, 0, "")
		}
		x += blockWidth + 4
	}
	pdf.SetXY(pageMargin, y+blockHeight+4)
	return output(pdf)
}
