package budget

import (
	"strings"
	"time"
)

// GrantInput is the caller payload for registering a grant.
type GrantInput struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Donor       string   `json:"donor,omitempty"`
	TotalAmount *float64 `json:"totalAmount"`
	Currency    string   `json:"currency"`
	Status      string   `json:"status,omitempty"`
	StartDate   string   `json:"startDate,omitempty"`
	EndDate     string   `json:"endDate,omitempty"`
}

// NewGrant validates input and builds a grant without lines.
func NewGrant(id string, in GrantInput, now time.Time) (*Grant, error) {
	var fields []string
	if strings.TrimSpace(in.Code) == "" {
		fields = append(fields, "code")
	}
	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, "name")
	}
	if in.TotalAmount == nil || !validAmount(*in.TotalAmount) {
		fields = append(fields, "totalAmount")
	}
	currency, ok := ParseCurrency(in.Currency)
	if !ok {
		fields = append(fields, "currency")
	}
	status := GrantStatusPending
	if in.Status != "" {
		if status, ok = ParseGrantStatus(in.Status); !ok {
			fields = append(fields, "status")
		}
	}
	start, startErr := parseOptionalDate(in.StartDate)
	if startErr != nil {
		fields = append(fields, "startDate")
	}
	end, endErr := parseOptionalDate(in.EndDate)
	if endErr != nil || (!start.IsZero() && !end.IsZero() && end.Before(start)) {
		fields = append(fields, "endDate")
	}
	if len(fields) > 0 {
		return nil, NewValidationError("missing or invalid fields", fields...)
	}
	return &Grant{
		ID:          id,
		Code:        strings.TrimSpace(in.Code),
		Name:        strings.TrimSpace(in.Name),
		Donor:       strings.TrimSpace(in.Donor),
		TotalAmount: *in.TotalAmount,
		Currency:    currency,
		Status:      status,
		StartDate:   start,
		EndDate:     end,
		Lines:       []BudgetLine{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// SetStatus moves the grant to status.
func (g *Grant) SetStatus(status GrantStatus, now time.Time) error {
	if g == nil {
		return ErrNilGrant
	}
	if _, ok := ParseGrantStatus(string(status)); !ok {
		return NewValidationError("unknown grant status", "status")
	}
	g.Status = status
	g.UpdatedAt = now
	return nil
}

// LineInput is the caller payload for a budget line or sub-line.
type LineInput struct {
	Code           string   `json:"code"`
	Name           string   `json:"name"`
	PlannedAmount  *float64 `json:"plannedAmount,omitempty"`
	NotifiedAmount *float64 `json:"notifiedAmount,omitempty"`
}

func (in LineInput) validate() error {
	var fields []string
	if strings.TrimSpace(in.Code) == "" {
		fields = append(fields, "code")
	}
	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, "name")
	}
	if in.PlannedAmount != nil && !validAmount(*in.PlannedAmount) {
		fields = append(fields, "plannedAmount")
	}
	if in.NotifiedAmount != nil && !validAmount(*in.NotifiedAmount) {
		fields = append(fields, "notifiedAmount")
	}
	if len(fields) > 0 {
		return NewValidationError("missing or invalid fields", fields...)
	}
	return nil
}

// AddLine appends a budget line to the grant.
func (g *Grant) AddLine(id string, in LineInput, now time.Time) (*BudgetLine, error) {
	if g == nil {
		return nil, ErrNilGrant
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.Code)
	for _, line := range g.Lines {
		if line.Code == code {
			return nil, NewValidationError("duplicate budget line code", "code")
		}
	}
	g.Lines = append(g.Lines, BudgetLine{
		ID:             id,
		GrantID:        g.ID,
		Code:           code,
		Name:           strings.TrimSpace(in.Name),
		PlannedAmount:  deref(in.PlannedAmount),
		NotifiedAmount: deref(in.NotifiedAmount),
	})
	g.Recompute()
	g.UpdatedAt = now
	return &g.Lines[len(g.Lines)-1], nil
}

// AddSubLine appends a sub-line to a budget line. From then on the line's
// notified and engaged amounts are derived from its sub-lines.
func (g *Grant) AddSubLine(lineID, id string, in LineInput, now time.Time) (*SubBudgetLine, error) {
	line, err := g.Line(lineID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.Code)
	for _, sub := range line.SubLines {
		if sub.Code == code {
			return nil, NewValidationError("duplicate sub budget line code", "code")
		}
	}
	line.SubLines = append(line.SubLines, SubBudgetLine{
		ID:             id,
		BudgetLineID:   line.ID,
		GrantID:        g.ID,
		Code:           code,
		Name:           strings.TrimSpace(in.Name),
		PlannedAmount:  deref(in.PlannedAmount),
		NotifiedAmount: deref(in.NotifiedAmount),
	})
	g.Recompute()
	g.UpdatedAt = now
	return line.SubLine(id)
}

// SetAmounts changes planned and notified amounts of a line, or of one of
// its sub-lines when subLineID is set. A line with sub-lines has a derived
// notified amount and rejects a direct notified change.
func (g *Grant) SetAmounts(lineID, subLineID string, planned, notified *float64, now time.Time) error {
	line, err := g.Line(lineID)
	if err != nil {
		return err
	}
	var fields []string
	if planned != nil && !validAmount(*planned) {
		fields = append(fields, "plannedAmount")
	}
	if notified != nil && !validAmount(*notified) {
		fields = append(fields, "notifiedAmount")
	}
	if len(fields) > 0 {
		return NewValidationError("invalid amounts", fields...)
	}
	if subLineID != "" {
		sub, err := line.SubLine(subLineID)
		if err != nil {
			return err
		}
		if planned != nil {
			sub.PlannedAmount = *planned
		}
		if notified != nil {
			sub.NotifiedAmount = *notified
		}
	} else {
		if notified != nil && line.HasSubLines() {
			return NewValidationError("notified amount is derived from sub-lines", "notifiedAmount")
		}
		if planned != nil {
			line.PlannedAmount = *planned
		}
		if notified != nil {
			line.NotifiedAmount = *notified
		}
	}
	g.Recompute()
	g.UpdatedAt = now
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func parseOptionalDate(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, strings.TrimSpace(value))
}
