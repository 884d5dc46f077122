package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"grants-cloud/internal/auth"
	budget "grants-cloud/internal/budget/domain"
	"grants-cloud/internal/observability/metrics"
)

// Format is a report export format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates an export format.
func ParseFormat(value string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatPDF:
		return FormatPDF, true
	case FormatXLSX:
		return FormatXLSX, true
	default:
		return "", false
	}
}

// ErrExportUnavailable is returned when no renderer is configured.
var ErrExportUnavailable = errors.New("report service: export unavailable")

// Renderer turns report models into documents.
type Renderer interface {
	RenderGrantReport(format Format, report *GrantReport) ([]byte, error)
	RenderVoucher(voucher *Voucher) ([]byte, error)
}

// ReportRow is one budget line or sub-line in a grant report.
type ReportRow struct {
	LineID         string  `json:"lineId"`
	SubLineID      string  `json:"subLineId,omitempty"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Level          int     `json:"level"`
	Planned        float64 `json:"planned"`
	Notified       float64 `json:"notified"`
	Engaged        float64 `json:"engaged"`
	Available      float64 `json:"available"`
	Spent          float64 `json:"spent"`
	EngagementRate float64 `json:"engagementRate"`
	SpentRate      float64 `json:"spentRate"`
	OverEngaged    bool    `json:"overEngaged"`
}

// EngagementRow summarizes an engagement in a grant report.
type EngagementRow struct {
	ID          string                  `json:"id"`
	Number      string                  `json:"engagementNumber"`
	Date        string                  `json:"date"`
	LineCode    string                  `json:"lineCode"`
	SubLineCode string                  `json:"subLineCode"`
	Supplier    string                  `json:"supplier"`
	Description string                  `json:"description"`
	Amount      float64                 `json:"amount"`
	Paid        float64                 `json:"paid"`
	Status      budget.EngagementStatus `json:"status"`
	Signatures  int                     `json:"signatures"`
	FullySigned bool                    `json:"fullySigned"`
}

// GrantReport is the budget execution report of one grant.
type GrantReport struct {
	GrantID     string             `json:"grantId"`
	GrantCode   string             `json:"grantCode"`
	GrantName   string             `json:"grantName"`
	Donor       string             `json:"donor,omitempty"`
	Currency    budget.Currency    `json:"currency"`
	Status      budget.GrantStatus `json:"status"`
	TotalAmount float64            `json:"totalAmount"`
	Rows        []ReportRow        `json:"rows"`
	Totals      ReportRow          `json:"totals"`
	Engagements []EngagementRow    `json:"engagements"`
	GeneratedAt time.Time          `json:"generatedAt"`
	GeneratedBy string             `json:"generatedBy,omitempty"`
}

// Voucher is the printable form of one engagement.
type Voucher struct {
	Engagement  *budget.Engagement
	GrantCode   string
	GrantName   string
	Currency    budget.Currency
	LineCode    string
	LineName    string
	SubLineCode string
	SubLineName string
	GeneratedAt time.Time
}

// ReportService builds grant reports and exports them.
type ReportService struct {
	deps     Deps
	renderer Renderer
}

// NewReportService constructs a service. renderer may be nil.
func NewReportService(deps Deps, renderer Renderer) (*ReportService, error) {
	deps, err := deps.normalize("report service")
	if err != nil {
		return nil, err
	}
	return &ReportService{deps: deps, renderer: renderer}, nil
}

// GrantReport builds the execution report of a grant.
func (s *ReportService) GrantReport(ctx context.Context, grantID string) (*GrantReport, error) {
	actor, err := auth.Require(ctx, auth.ModuleReports, auth.ActionView)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, grantID, actor)
}

// ExportGrantReport renders the grant report as PDF or XLSX.
func (s *ReportService) ExportGrantReport(ctx context.Context, grantID string, format Format) ([]byte, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport(string(format), result, time.Since(start))
	}()

	actor, err := auth.Require(ctx, auth.ModuleReports, auth.ActionExport)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	parsed, ok := ParseFormat(string(format))
	if !ok {
		result = metrics.ResultError
		return nil, budget.NewValidationError("unsupported export format", "format")
	}
	format = parsed
	if s.renderer == nil {
		result = metrics.ResultError
		return nil, ErrExportUnavailable
	}
	report, err := s.build(ctx, grantID, actor)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	data, err := s.renderer.RenderGrantReport(format, report)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	return data, nil
}

// ExportEngagementVoucher renders a single engagement with its signature blocks.
func (s *ReportService) ExportEngagementVoucher(ctx context.Context, engagementID string) ([]byte, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport("voucher", result, time.Since(start))
	}()

	if _, err := auth.Require(ctx, auth.ModuleEngagements, auth.ActionExport); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if s.renderer == nil {
		result = metrics.ResultError
		return nil, ErrExportUnavailable
	}
	eng, err := s.deps.Repo.GetEngagement(ctx, engagementID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	grant, err := s.deps.Repo.GetGrant(ctx, eng.GrantID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	voucher := &Voucher{
		Engagement:  eng,
		GrantCode:   grant.Code,
		GrantName:   grant.Name,
		Currency:    grant.Currency,
		GeneratedAt: s.deps.Clock.Now().UTC(),
	}
	if line, err := grant.Line(eng.BudgetLineID); err == nil {
		voucher.LineCode, voucher.LineName = line.Code, line.Name
		if sub, err := line.SubLine(eng.SubBudgetLineID); err == nil {
			voucher.SubLineCode, voucher.SubLineName = sub.Code, sub.Name
		}
	}
	data, err := s.renderer.RenderVoucher(voucher)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	return data, nil
}

func (s *ReportService) build(ctx context.Context, grantID string, actor auth.Identity) (*GrantReport, error) {
	grant, err := s.deps.Repo.GetGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	engagements, err := s.deps.Repo.ListEngagements(ctx, budget.EngagementFilter{GrantID: grantID})
	if err != nil {
		return nil, err
	}
	paymentPtrs, err := s.deps.Repo.ListPayments(ctx, budget.PaymentFilter{GrantID: grantID})
	if err != nil {
		return nil, err
	}
	payments := make([]budget.Payment, 0, len(paymentPtrs))
	for _, p := range paymentPtrs {
		payments = append(payments, *p)
	}
	return BuildGrantReport(grant, engagements, payments, s.deps.Clock.Now().UTC(), actor.Signer().FullName), nil
}

// BuildGrantReport assembles a report from already loaded state.
func BuildGrantReport(grant *budget.Grant, engagements []*budget.Engagement, payments []budget.Payment, now time.Time, generatedBy string) *GrantReport {
	report := &GrantReport{
		GrantID:     grant.ID,
		GrantCode:   grant.Code,
		GrantName:   grant.Name,
		Donor:       grant.Donor,
		Currency:    grant.Currency,
		Status:      grant.Status,
		TotalAmount: grant.TotalAmount,
		GeneratedAt: now,
		GeneratedBy: generatedBy,
	}
	totals := ReportRow{Code: "TOTAL", Name: "Total"}
	lineCodes := map[string]string{}
	subCodes := map[string]string{}
	for _, l := range grant.Lines {
		line := budget.RecomputeAggregates(l)
		lineCodes[line.ID] = line.Code
		spent := budget.SpentOnLine(payments, line.ID)
		report.Rows = append(report.Rows, ReportRow{
			LineID:         line.ID,
			Code:           line.Code,
			Name:           line.Name,
			Planned:        line.PlannedAmount,
			Notified:       line.NotifiedAmount,
			Engaged:        line.EngagedAmount,
			Available:      line.AvailableAmount,
			Spent:          spent,
			EngagementRate: line.EngagementRate(),
			SpentRate:      budget.SpentRate(line.NotifiedAmount, spent),
			OverEngaged:    line.OverEngaged(),
		})
		for _, sub := range line.SubLines {
			subCodes[sub.ID] = sub.Code
			subSpent := budget.SpentOnSubLine(payments, sub.ID)
			report.Rows = append(report.Rows, ReportRow{
				LineID:         line.ID,
				SubLineID:      sub.ID,
				Code:           sub.Code,
				Name:           sub.Name,
				Level:          1,
				Planned:        sub.PlannedAmount,
				Notified:       sub.NotifiedAmount,
				Engaged:        sub.EngagedAmount,
				Available:      sub.AvailableAmount,
				Spent:          subSpent,
				EngagementRate: sub.EngagementRate(),
				SpentRate:      budget.SpentRate(sub.NotifiedAmount, subSpent),
				OverEngaged:    sub.OverEngaged(),
			})
		}
		totals.Planned += line.PlannedAmount
		totals.Notified += line.NotifiedAmount
		totals.Engaged += line.EngagedAmount
		totals.Available += line.AvailableAmount
		totals.Spent += spent
	}
	totals.EngagementRate = budget.EngagementRate(totals.Notified, totals.Engaged)
	totals.SpentRate = budget.SpentRate(totals.Notified, totals.Spent)
	totals.OverEngaged = totals.Engaged > totals.Notified
	report.Totals = totals

	paidByEngagement := map[string]float64{}
	for _, p := range payments {
		if p.Status == budget.PaymentStatusPaid {
			paidByEngagement[p.EngagementID] += p.Amount
		}
	}
	sorted := append([]*budget.Engagement(nil), engagements...)
	sortEngagements(sorted)
	for _, eng := range sorted {
		report.Engagements = append(report.Engagements, EngagementRow{
			ID:          eng.ID,
			Number:      eng.Number,
			Date:        eng.Date,
			LineCode:    lineCodes[eng.BudgetLineID],
			SubLineCode: subCodes[eng.SubBudgetLineID],
			Supplier:    eng.Supplier,
			Description: eng.Description,
			Amount:      eng.Amount,
			Paid:        paidByEngagement[eng.ID],
			Status:      eng.Status,
			Signatures:  eng.Approvals.SignedCount(),
			FullySigned: eng.Approvals.Complete(),
		})
	}
	return report
}
