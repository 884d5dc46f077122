package budget

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for engagement and signature dates.
const DateLayout = "2006-01-02"

// EngagementStatus is the decision state of an engagement.
type EngagementStatus string

const (
	EngagementStatusPending  EngagementStatus = "pending"
	EngagementStatusApproved EngagementStatus = "approved"
	EngagementStatusRejected EngagementStatus = "rejected"
)

// ParseEngagementStatus validates an engagement status string.
func ParseEngagementStatus(value string) (EngagementStatus, bool) {
	switch EngagementStatus(value) {
	case EngagementStatusPending, EngagementStatusApproved, EngagementStatusRejected:
		return EngagementStatus(value), true
	default:
		return "", false
	}
}

// Engagement is a commitment booked against a sub budget line.
type Engagement struct {
	ID              string           `json:"id" yaml:"id"`
	Number          string           `json:"engagementNumber" yaml:"engagementNumber"`
	GrantID         string           `json:"grantId" yaml:"grantId"`
	BudgetLineID    string           `json:"budgetLineId" yaml:"budgetLineId"`
	SubBudgetLineID string           `json:"subBudgetLineId" yaml:"subBudgetLineId"`
	Amount          float64          `json:"amount" yaml:"amount"`
	Description     string           `json:"description" yaml:"description"`
	Supplier        string           `json:"supplier" yaml:"supplier"`
	QuoteReference  string           `json:"quoteReference,omitempty" yaml:"quoteReference,omitempty"`
	InvoiceNumber   string           `json:"invoiceNumber,omitempty" yaml:"invoiceNumber,omitempty"`
	Date            string           `json:"date" yaml:"date"`
	Status          EngagementStatus `json:"status" yaml:"status"`
	Approvals       Approvals        `json:"approvals" yaml:"approvals"`
	CreatedBy       string           `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt       time.Time        `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt" yaml:"updatedAt"`
}

// IsDraft reports whether the engagement has not been persisted yet.
func (e *Engagement) IsDraft() bool { return e == nil || e.ID == "" }

// Clone returns a detached copy.
func (e *Engagement) Clone() *Engagement {
	if e == nil {
		return nil
	}
	dup := *e
	dup.Approvals = e.Approvals.clone()
	return &dup
}

// SetStatus moves the engagement to status. Only professions with the
// status capability may do so; signatures are not consulted.
func (e *Engagement) SetStatus(status EngagementStatus, profession Profession) error {
	if e == nil {
		return ErrNilEngagement
	}
	if _, ok := ParseEngagementStatus(string(status)); !ok {
		return NewValidationError("unknown engagement status", "status")
	}
	if !profession.CanModifyStatus() {
		return &PermissionError{Module: "engagements", Action: "modify_status"}
	}
	e.Status = status
	return nil
}

// EngagementInput is the caller payload for creating an engagement.
// Signed supervisor slots in Approvals are re-stamped for the caller;
// the final approval is always discarded.
type EngagementInput struct {
	GrantID         string     `json:"grantId"`
	BudgetLineID    string     `json:"budgetLineId"`
	SubBudgetLineID string     `json:"subBudgetLineId"`
	Amount          *float64   `json:"amount"`
	Description     string     `json:"description"`
	Supplier        string     `json:"supplier"`
	QuoteReference  string     `json:"quoteReference,omitempty"`
	InvoiceNumber   string     `json:"invoiceNumber,omitempty"`
	Date            string     `json:"date,omitempty"`
	Approvals       *Approvals `json:"approvals,omitempty"`
}

// Validate reports every missing or invalid field.
func (in EngagementInput) Validate() error {
	var fields []string
	if strings.TrimSpace(in.GrantID) == "" {
		fields = append(fields, "grantId")
	}
	if strings.TrimSpace(in.BudgetLineID) == "" {
		fields = append(fields, "budgetLineId")
	}
	if strings.TrimSpace(in.SubBudgetLineID) == "" {
		fields = append(fields, "subBudgetLineId")
	}
	if in.Amount == nil || !validAmount(*in.Amount) {
		fields = append(fields, "amount")
	}
	if strings.TrimSpace(in.Description) == "" {
		fields = append(fields, "description")
	}
	if strings.TrimSpace(in.Supplier) == "" {
		fields = append(fields, "supplier")
	}
	if in.Date != "" {
		if _, err := time.Parse(DateLayout, in.Date); err != nil {
			fields = append(fields, "date")
		}
	}
	if len(fields) > 0 {
		return NewValidationError("missing or invalid fields", fields...)
	}
	return nil
}

// NewEngagement validates input and builds a pending engagement for signer.
// Supervisor slots marked as signed in the input are checked against the
// draft and stamped with the signer's name and today's date.
func NewEngagement(id, number string, in EngagementInput, signer Signer, now time.Time) (*Engagement, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	date := in.Date
	if date == "" {
		date = now.Format(DateLayout)
	}
	eng := &Engagement{
		Number:          number,
		GrantID:         in.GrantID,
		BudgetLineID:    in.BudgetLineID,
		SubBudgetLineID: in.SubBudgetLineID,
		Amount:          *in.Amount,
		Description:     strings.TrimSpace(in.Description),
		Supplier:        strings.TrimSpace(in.Supplier),
		QuoteReference:  strings.TrimSpace(in.QuoteReference),
		InvoiceNumber:   strings.TrimSpace(in.InvoiceNumber),
		Date:            date,
		Status:          EngagementStatusPending,
		CreatedBy:       signer.FullName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Approvals != nil {
		for _, slot := range []Slot{SlotSupervisor1, SlotSupervisor2} {
			requested := in.Approvals.Get(slot)
			if requested == nil || !requested.Signature {
				continue
			}
			if err := eng.Sign(slot, signer, requested.Observation, now); err != nil {
				return nil, err
			}
		}
	}
	eng.ID = id
	return eng, nil
}

// EngagementPatch carries editable engagement fields; nil leaves a field as is.
type EngagementPatch struct {
	Amount         *float64 `json:"amount,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Supplier       *string  `json:"supplier,omitempty"`
	QuoteReference *string  `json:"quoteReference,omitempty"`
	InvoiceNumber  *string  `json:"invoiceNumber,omitempty"`
	Date           *string  `json:"date,omitempty"`
}

// Apply edits the engagement and returns the amount delta to book on its sub-line.
// Nothing is changed when validation fails.
func (p EngagementPatch) Apply(e *Engagement, now time.Time) (float64, error) {
	if e == nil {
		return 0, ErrNilEngagement
	}
	var fields []string
	if p.Amount != nil && !validAmount(*p.Amount) {
		fields = append(fields, "amount")
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		fields = append(fields, "description")
	}
	if p.Supplier != nil && strings.TrimSpace(*p.Supplier) == "" {
		fields = append(fields, "supplier")
	}
	if p.Date != nil {
		if _, err := time.Parse(DateLayout, *p.Date); err != nil {
			fields = append(fields, "date")
		}
	}
	if len(fields) > 0 {
		return 0, NewValidationError("missing or invalid fields", fields...)
	}

	var delta float64
	if p.Amount != nil {
		delta = *p.Amount - e.Amount
		e.Amount = *p.Amount
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Supplier != nil {
		e.Supplier = strings.TrimSpace(*p.Supplier)
	}
	if p.QuoteReference != nil {
		e.QuoteReference = strings.TrimSpace(*p.QuoteReference)
	}
	if p.InvoiceNumber != nil {
		e.InvoiceNumber = strings.TrimSpace(*p.InvoiceNumber)
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	e.UpdatedAt = now
	return delta, nil
}

// EngagementFilter narrows engagement listings. Empty fields match everything.
type EngagementFilter struct {
	GrantID string
	Status  EngagementStatus
}

// Match reports whether the engagement passes the filter.
func (f EngagementFilter) Match(e *Engagement) bool {
	if e == nil {
		return false
	}
	if f.GrantID != "" && e.GrantID != f.GrantID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
