package application

import (
	"time"

	"grants-cloud/internal/auth"
	budget "grants-cloud/internal/budget/domain"
)

// EventMeta identifies who caused an event and when.
type EventMeta struct {
	Actor      auth.Identity
	OccurredAt time.Time
}

// GrantCreated is published after a grant is registered.
type GrantCreated struct {
	EventMeta
	Grant *budget.Grant
}

// GrantStatusChanged is published after a grant status change.
type GrantStatusChanged struct {
	EventMeta
	GrantID string
	From    budget.GrantStatus
	To      budget.GrantStatus
}

// GrantReallocated is published after a grant amendment redistributed its total.
type GrantReallocated struct {
	EventMeta
	GrantID       string
	PreviousTotal float64
	NewTotal      float64
}

// BudgetPlanned is published after a line or sub-line is added or changed.
type BudgetPlanned struct {
	EventMeta
	GrantID   string
	LineID    string
	SubLineID string
	Change    string
}

// EngagementCreated is published after an engagement is booked.
type EngagementCreated struct {
	EventMeta
	Engagement *budget.Engagement
}

// EngagementEdited is published after an engagement edit.
type EngagementEdited struct {
	EventMeta
	Engagement *budget.Engagement
	Delta      float64
}

// ApprovalSigned is published after an approval slot is signed.
type ApprovalSigned struct {
	EventMeta
	EngagementID string
	GrantID      string
	Slot         budget.Slot
	Signature    budget.Signature
}

// EngagementStatusChanged is published after an engagement status change.
type EngagementStatusChanged struct {
	EventMeta
	EngagementID string
	GrantID      string
	From         budget.EngagementStatus
	To           budget.EngagementStatus
}

// PaymentRecorded is published after a payment is recorded.
type PaymentRecorded struct {
	EventMeta
	Payment *budget.Payment
}

// PaymentStatusChanged is published after a payment status change.
type PaymentStatusChanged struct {
	EventMeta
	PaymentID string
	GrantID   string
	From      budget.PaymentStatus
	To        budget.PaymentStatus
}

// OverEngagementDetected is published when an engagement leaves its
// sub-line engaged above the notified amount.
type OverEngagementDetected struct {
	EventMeta
	GrantID          string
	GrantCode        string
	Currency         budget.Currency
	LineID           string
	LineCode         string
	SubLineID        string
	SubLineCode      string
	SubLineName      string
	NotifiedAmount   float64
	EngagedAmount    float64
	AvailableAmount  float64
	EngagementRate   float64
	EngagementID     string
	EngagementNumber string
}

func overEngagement(meta EventMeta, grant *budget.Grant, eng *budget.Engagement) (OverEngagementDetected, bool) {
	line, err := grant.Line(eng.BudgetLineID)
	if err != nil {
		return OverEngagementDetected{}, false
	}
	sub, err := line.SubLine(eng.SubBudgetLineID)
	if err != nil || !sub.OverEngaged() {
		return OverEngagementDetected{}, false
	}
	return OverEngagementDetected{
		EventMeta:        meta,
		GrantID:          grant.ID,
		GrantCode:        grant.Code,
		Currency:         grant.Currency,
		LineID:           line.ID,
		LineCode:         line.Code,
		SubLineID:        sub.ID,
		SubLineCode:      sub.Code,
		SubLineName:      sub.Name,
		NotifiedAmount:   sub.NotifiedAmount,
		EngagedAmount:    sub.EngagedAmount,
		AvailableAmount:  sub.AvailableAmount,
		EngagementRate:   sub.EngagementRate(),
		EngagementID:     eng.ID,
		EngagementNumber: eng.Number,
	}, true
}
