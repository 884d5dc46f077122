package application

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"grants-cloud/internal/auth"
	budget "grants-cloud/internal/budget/domain"
	"grants-cloud/internal/observability/metrics"
)

// PaymentService tracks disbursements made against approved engagements.
type PaymentService struct {
	deps Deps
}

// NewPaymentService constructs a service.
func NewPaymentService(deps Deps) (*PaymentService, error) {
	deps, err := deps.normalize("payment service")
	if err != nil {
		return nil, err
	}
	return &PaymentService{deps: deps}, nil
}

// RecordPayment records a payment for an approved engagement. The total
// paid on an engagement may not exceed its amount.
func (s *PaymentService) RecordPayment(ctx context.Context, in budget.PaymentInput) (*budget.Payment, error) {
	actor, err := auth.Require(ctx, auth.ModuleTracking, auth.ActionCreate)
	if err != nil {
		return nil, err
	}
	var eng *budget.Engagement
	if in.EngagementID != "" {
		eng, err = s.deps.Repo.GetEngagement(ctx, in.EngagementID)
		if err != nil {
			return nil, err
		}
		unlock := s.deps.Locks.Lock(eng.GrantID)
		defer unlock()
	}

	now := s.deps.Clock.Now().UTC()
	payment, err := budget.NewPayment(s.deps.NewID(), eng, in, now)
	if err != nil {
		return nil, err
	}
	existing, err := s.deps.Repo.ListPayments(ctx, budget.PaymentFilter{EngagementID: eng.ID})
	if err != nil {
		return nil, err
	}
	if err := budget.CheckPaymentCeiling(eng, existing, payment.Amount); err != nil {
		return nil, err
	}
	if err := s.deps.Repo.SavePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("payment service: save: %w", err)
	}
	metrics.IncPaymentRecorded(string(payment.Status))
	s.deps.Logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("engagement_id", payment.EngagementID),
		zap.Float64("amount", payment.Amount),
	)
	s.deps.publish(ctx, PaymentRecorded{EventMeta: EventMeta{Actor: actor, OccurredAt: now}, Payment: payment.Clone()})
	return payment, nil
}

// UpdatePaymentStatus moves a payment forward to processing or paid.
func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, id string, status budget.PaymentStatus) (*budget.Payment, error) {
	actor, err := auth.Require(ctx, auth.ModuleTracking, auth.ActionEdit)
	if err != nil {
		return nil, err
	}
	payment, err := s.deps.Repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	from := payment.Status
	now := s.deps.Clock.Now().UTC()
	if err := payment.SetStatus(status, now); err != nil {
		return nil, err
	}
	if from == status {
		return payment, nil
	}
	if err := s.deps.Repo.SavePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("payment service: save: %w", err)
	}
	s.deps.publish(ctx, PaymentStatusChanged{
		EventMeta: EventMeta{Actor: actor, OccurredAt: now},
		PaymentID: payment.ID,
		GrantID:   payment.GrantID,
		From:      from,
		To:        status,
	})
	return payment, nil
}

// GetPayment returns one payment.
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*budget.Payment, error) {
	if _, err := auth.Require(ctx, auth.ModuleTracking, auth.ActionView); err != nil {
		return nil, err
	}
	return s.deps.Repo.GetPayment(ctx, id)
}

// ListPayments returns payments matching filter ordered by date.
func (s *PaymentService) ListPayments(ctx context.Context, filter budget.PaymentFilter) ([]*budget.Payment, error) {
	if _, err := auth.Require(ctx, auth.ModuleTracking, auth.ActionView); err != nil {
		return nil, err
	}
	list, err := s.deps.Repo.ListPayments(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date < list[j].Date
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}
