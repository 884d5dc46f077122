package report

import (
	"bytes"

	"github.com/xuri/excelize/v2"

	"grants-cloud/internal/budget/application"
	"grants-cloud/internal/money"
)

const (
	summarySheet     = "Synthese"
	linesSheet       = "Lignes"
	engagementsSheet = "Engagements"
)

// BuildGrantReportXLSX renders the grant report as a workbook with a
// summary sheet, a budget line sheet and an engagement sheet.
func BuildGrantReportXLSX(report *application.GrantReport, organization string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(linesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(engagementsSheet); err != nil {
		return nil, err
	}

	numFmt := "#,##0.00"
	if money.Places(string(report.Currency)) == 0 {
		numFmt = "#,##0"
	}
	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, err
	}
	percentFmt := "0.0\"%\""
	percentStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &percentFmt})
	if err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DCE2EB"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	overStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FAD7D2"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Rapport d'execution budgetaire"},
		{organization},
		{"Code", report.GrantCode},
		{"Subvention", report.GrantName},
		{"Bailleur", report.Donor},
		{"Statut", string(report.Status)},
		{"Devise", string(report.Currency)},
		{"Montant total", report.TotalAmount},
		{"Total notifie", report.Totals.Notified},
		{"Total engage", report.Totals.Engaged},
		{"Total disponible", report.Totals.Available},
		{"Total decaisse", report.Totals.Spent},
		{"Taux d'engagement", report.Totals.EngagementRate},
		{"Genere le", report.GeneratedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Edite par", report.GeneratedBy},
	}
	for i, values := range summary {
		if err := setRow(f, summarySheet, 1, i+1, values); err != nil {
			return nil, err
		}
	}
	_ = f.SetCellStyle(summarySheet, "B8", "B12", amountStyle)
	_ = f.SetCellStyle(summarySheet, "B13", "B13", percentStyle)
	_ = f.SetColWidth(summarySheet, "A", "A", 22)
	_ = f.SetColWidth(summarySheet, "B", "B", 40)

	lineHeader := []any{"Code", "Ligne", "Niveau", "Prevu", "Notifie", "Engage", "Disponible", "Decaisse", "Taux engagement", "Taux decaissement"}
	if err := setRow(f, linesSheet, 1, 1, lineHeader); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(linesSheet, "A1", "J1", headerStyle)
	rows := append(append([]application.ReportRow(nil), report.Rows...), report.Totals)
	for i, r := range rows {
		row := i + 2
		values := []any{r.Code, r.Name, r.Level, r.Planned, r.Notified, r.Engaged, r.Available, r.Spent, r.EngagementRate, r.SpentRate}
		if err := setRow(f, linesSheet, 1, row, values); err != nil {
			return nil, err
		}
		_ = f.SetCellStyle(linesSheet, cell(4, row), cell(8, row), amountStyle)
		_ = f.SetCellStyle(linesSheet, cell(9, row), cell(10, row), percentStyle)
		if r.OverEngaged {
			_ = f.SetCellStyle(linesSheet, cell(1, row), cell(3, row), overStyle)
		}
	}
	_ = f.SetColWidth(linesSheet, "B", "B", 40)
	_ = f.SetColWidth(linesSheet, "D", "J", 16)

	engHeader := []any{"Numero", "Date", "Ligne", "Sous-ligne", "Fournisseur", "Description", "Montant", "Decaisse", "Statut", "Visas", "Complet"}
	if err := setRow(f, engagementsSheet, 1, 1, engHeader); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(engagementsSheet, "A1", "K1", headerStyle)
	for i, e := range report.Engagements {
		row := i + 2
		values := []any{e.Number, e.Date, e.LineCode, e.SubLineCode, e.Supplier, e.Description, e.Amount, e.Paid, string(e.Status), e.Signatures, e.FullySigned}
		if err := setRow(f, engagementsSheet, 1, row, values); err != nil {
			return nil, err
		}
		_ = f.SetCellStyle(engagementsSheet, cell(7, row), cell(8, row), amountStyle)
	}
	_ = f.SetColWidth(engagementsSheet, "A", "A", 24)
	_ = f.SetColWidth(engagementsSheet, "E", "F", 36)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, col, row int, values []any) error {
	for i, v := range values {
		if err := f.SetCellValue(sheet, cell(col+i, row), v); err != nil {
			return err
		}
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
