package budget

import (
	"strings"
	"time"
)

// PaymentStatus is the disbursement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
)

// ParsePaymentStatus validates a payment status string.
func ParsePaymentStatus(value string) (PaymentStatus, bool) {
	switch PaymentStatus(value) {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusPaid:
		return PaymentStatus(value), true
	default:
		return "", false
	}
}

// Payment is a disbursement against an approved engagement.
type Payment struct {
	ID              string        `json:"id" yaml:"id"`
	EngagementID    string        `json:"engagementId" yaml:"engagementId"`
	GrantID         string        `json:"grantId" yaml:"grantId"`
	BudgetLineID    string        `json:"budgetLineId" yaml:"budgetLineId"`
	SubBudgetLineID string        `json:"subBudgetLineId" yaml:"subBudgetLineId"`
	Amount          float64       `json:"amount" yaml:"amount"`
	Status          PaymentStatus `json:"status" yaml:"status"`
	Reference       string        `json:"reference,omitempty" yaml:"reference,omitempty"`
	Date            string        `json:"date" yaml:"date"`
	CreatedAt       time.Time     `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt" yaml:"updatedAt"`
}

// Clone returns a detached copy.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	dup := *p
	return &dup
}

// PaymentInput is the caller payload for recording a payment.
type PaymentInput struct {
	EngagementID string   `json:"engagementId"`
	Amount       *float64 `json:"amount"`
	Status       string   `json:"status,omitempty"`
	Reference    string   `json:"reference,omitempty"`
	Date         string   `json:"date,omitempty"`
}

// NewPayment builds a payment for an approved engagement.
func NewPayment(id string, eng *Engagement, in PaymentInput, now time.Time) (*Payment, error) {
	var fields []string
	if strings.TrimSpace(in.EngagementID) == "" {
		fields = append(fields, "engagementId")
	}
	if in.Amount == nil || !validAmount(*in.Amount) || *in.Amount == 0 {
		fields = append(fields, "amount")
	}
	status := PaymentStatusPending
	if in.Status != "" {
		parsed, ok := ParsePaymentStatus(in.Status)
		if !ok {
			fields = append(fields, "status")
		}
		status = parsed
	}
	if in.Date != "" {
		if _, err := time.Parse(DateLayout, in.Date); err != nil {
			fields = append(fields, "date")
		}
	}
	if len(fields) > 0 {
		return nil, NewValidationError("missing or invalid fields", fields...)
	}
	if eng == nil {
		return nil, ErrEngagementNotFound
	}
	if eng.Status != EngagementStatusApproved {
		return nil, precondition("payments require an approved engagement")
	}
	date := in.Date
	if date == "" {
		date = now.Format(DateLayout)
	}
	return &Payment{
		ID:              id,
		EngagementID:    eng.ID,
		GrantID:         eng.GrantID,
		BudgetLineID:    eng.BudgetLineID,
		SubBudgetLineID: eng.SubBudgetLineID,
		Amount:          *in.Amount,
		Status:          status,
		Reference:       strings.TrimSpace(in.Reference),
		Date:            date,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// PaymentFilter narrows payment listings. Empty fields match everything.
type PaymentFilter struct {
	GrantID      string
	EngagementID string
}

// Match reports whether the payment passes the filter.
func (f PaymentFilter) Match(p *Payment) bool {
	if p == nil {
		return false
	}
	if f.GrantID != "" && p.GrantID != f.GrantID {
		return false
	}
	if f.EngagementID != "" && p.EngagementID != f.EngagementID {
		return false
	}
	return true
}

var paymentStatusRank = map[PaymentStatus]int{
	PaymentStatusPending:    0,
	PaymentStatusProcessing: 1,
	PaymentStatusPaid:       2,
}

// SetStatus moves the payment forward. Paid is terminal and a payment
// never goes back to an earlier state.
func (p *Payment) SetStatus(status PaymentStatus, now time.Time) error {
	if p == nil {
		return ErrNilPayment
	}
	next, ok := paymentStatusRank[status]
	if !ok {
		return NewValidationError("unknown payment status", "status")
	}
	if next < paymentStatusRank[p.Status] {
		return precondition("payment status cannot move from " + string(p.Status) + " to " + string(status))
	}
	p.Status = status
	p.UpdatedAt = now
	return nil
}

// CheckPaymentCeiling rejects a payment that would take the engagement's
// payments above its amount.
func CheckPaymentCeiling(eng *Engagement, existing []*Payment, amount float64) error {
	if eng == nil {
		return ErrNilEngagement
	}
	total := amount
	for _, p := range existing {
		if p != nil && p.EngagementID == eng.ID {
			total += p.Amount
		}
	}
	if total > eng.Amount {
		return precondition("payments exceed the engagement amount")
	}
	return nil
}

// CheckAmountCoversPayments rejects lowering the engagement amount below
// what its payments already total.
func CheckAmountCoversPayments(eng *Engagement, existing []*Payment, amount float64) error {
	if eng == nil {
		return ErrNilEngagement
	}
	var paid float64
	for _, p := range existing {
		if p != nil && p.EngagementID == eng.ID {
			paid += p.Amount
		}
	}
	if paid > amount {
		return precondition("engagement amount is below its recorded payments")
	}
	return nil
}
