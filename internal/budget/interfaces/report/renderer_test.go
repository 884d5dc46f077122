package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"grants-cloud/internal/budget/application"
	budget "grants-cloud/internal/budget/domain"
)

var testNow = time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC)

func sampleReport(engagements int) *application.GrantReport {
	grant := &budget.Grant{
		ID: "g-1", Code: "G1", Name: "Eau potable", Donor: "Fondation Sahel", TotalAmount: 1000000,
		Currency: budget.CurrencyXOF, Status: budget.GrantStatusActive,
		Lines: []budget.BudgetLine{{
			ID: "l-1", Code: "L1", Name: "Equipement", PlannedAmount: 1000000,
			SubLines: []budget.SubBudgetLine{
				{ID: "s-1", Code: "S1", Name: "Pompes", NotifiedAmount: 600000, EngagedAmount: 750000},
				{ID: "s-2", Code: "S2", Name: "Canalisations", NotifiedAmount: 400000},
			},
		}},
	}
	var list []*budget.Engagement
	for i := 0; i < engagements; i++ {
		list = append(list, &budget.Engagement{
			ID: "e", Number: "ENG-2024-03-" + strings.Repeat("0", 5) + string(rune('0'+i%10)),
			BudgetLineID: "l-1", SubBudgetLineID: "s-1", Amount: 12500, Date: "2024-03-14",
			Supplier:    "Société Hydraulique du Sénégal",
			Description: strings.Repeat("Fourniture et installation de pompes solaires ", 4),
			Status:      budget.EngagementStatusPending,
		})
	}
	return application.BuildGrantReport(grant, list, nil, testNow, "Awa Diallo")
}

func TestRenderGrantReportPDF(t *testing.T) {
	data, err := NewRenderer().RenderGrantReport(application.FormatPDF, sampleReport(60))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	// one /Pages node plus at least two pages
	assert.Greater(t, bytes.Count(data, []byte("/Type /Page")), 2)
}

func TestRenderGrantReportXLSX(t *testing.T) {
	report := sampleReport(2)
	data, err := NewRenderer(WithOrganization("ONG Sahel")).RenderGrantReport(application.FormatXLSX, report)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, linesSheet, engagementsSheet}, f.GetSheetList())
	code, err := f.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "G1", code)
	org, err := f.GetCellValue(summarySheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "ONG Sahel", org)

	rows, err := f.GetRows(linesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1+len(report.Rows)+1)
	assert.Equal(t, "S1", rows[2][0])
	assert.Equal(t, "TOTAL", rows[len(rows)-1][0])

	engRows, err := f.GetRows(engagementsSheet)
	require.NoError(t, err)
	assert.Len(t, engRows, 3)
}

func TestRenderGrantReportRejectsUnknownFormat(t *testing.T) {
	_, err := NewRenderer().RenderGrantReport(application.Format("csv"), sampleReport(0))
	require.Error(t, err)
}

func TestRenderVoucher(t *testing.T) {
	eng := &budget.Engagement{
		ID: "e-1", Number: "ENG-2024-03-000001", Amount: 250000, Date: "2024-03-14",
		Supplier: "Hydro SA", Description: "Pompes", Status: budget.EngagementStatusPending,
		Approvals: budget.Approvals{
			Supervisor1: &budget.Signature{Name: "Awa Diallo", Date: "2024-03-14", Signature: true, Observation: "Conforme"},
		},
	}
	data, err := NewRenderer().RenderVoucher(&application.Voucher{
		Engagement: eng, GrantCode: "G1", GrantName: "Eau", Currency: budget.CurrencyXOF, GeneratedAt: testNow,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = NewRenderer().RenderVoucher(&application.Voucher{})
	require.Error(t, err)
}
