package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"grants-cloud/internal/auth"
	budget "grants-cloud/internal/budget/domain"
	"grants-cloud/internal/observability/metrics"
)

// EngagementService books engagements against sub budget lines and runs
// their approval workflow.
type EngagementService struct {
	deps    Deps
	numbers *budget.NumberGenerator
}

// NewEngagementService constructs a service.
func NewEngagementService(deps Deps) (*EngagementService, error) {
	deps, err := deps.normalize("engagement service")
	if err != nil {
		return nil, err
	}
	return &EngagementService{deps: deps, numbers: budget.NewNumberGenerator(deps.Clock)}, nil
}

// CreateEngagement validates input, books the amount on the target sub-line
// and stores the engagement and the grant together. Over-commitment is
// allowed and reported through OverEngagementDetected.
func (s *EngagementService) CreateEngagement(ctx context.Context, in budget.EngagementInput) (*budget.Engagement, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveEngagementCreate(result, time.Since(start))
	}()

	eng, grant, actor, err := s.create(ctx, in)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	meta := EventMeta{Actor: actor, OccurredAt: eng.CreatedAt}
	s.deps.Logger.Info("engagement created",
		zap.String("engagement_id", eng.ID),
		zap.String("number", eng.Number),
		zap.String("grant_id", eng.GrantID),
		zap.Float64("amount", eng.Amount),
	)
	s.deps.publish(ctx, EngagementCreated{EventMeta: meta, Engagement: eng.Clone()})
	if event, ok := overEngagement(meta, grant, eng); ok {
		s.deps.publish(ctx, event)
	}
	return eng, nil
}

func (s *EngagementService) create(ctx context.Context, in budget.EngagementInput) (*budget.Engagement, *budget.Grant, auth.Identity, error) {
	actor, err := auth.Require(ctx, auth.ModuleEngagements, auth.ActionCreate)
	if err != nil {
		return nil, nil, actor, err
	}
	if err := in.Validate(); err != nil {
		return nil, nil, actor, err
	}

	unlock := s.deps.Locks.Lock(in.GrantID)
	defer unlock()

	grant, err := s.deps.Repo.GetGrant(ctx, in.GrantID)
	if err != nil {
		return nil, nil, actor, err
	}
	if !grant.AcceptsEngagements() {
		return nil, nil, actor, &budget.PreconditionError{Reason: "grant " + grant.Code + " is " + string(grant.Status) + ", engagements require an active grant"}
	}
	line, err := grant.Line(in.BudgetLineID)
	if err != nil {
		return nil, nil, actor, budget.NewValidationError("unknown budget line", "budgetLineId")
	}
	if _, err := line.SubLine(in.SubBudgetLineID); err != nil {
		return nil, nil, actor, budget.NewValidationError("unknown sub budget line", "subBudgetLineId")
	}

	number, now := s.numbers.Next()
	eng, err := budget.NewEngagement(s.deps.NewID(), number, in, actor.Signer(), now.UTC())
	if err != nil {
		return nil, nil, actor, err
	}
	next := grant.Clone()
	if err := next.Consume(eng.BudgetLineID, eng.SubBudgetLineID, eng.Amount); err != nil {
		return nil, nil, actor, err
	}
	next.UpdatedAt = eng.CreatedAt
	if err := s.deps.Repo.CreateEngagement(ctx, eng, next); err != nil {
		return nil, nil, actor, fmt.Errorf("engagement service: create: %w", err)
	}
	return eng, next, actor, nil
}

// EditEngagement applies patch. Number and budget references never change;
// an amount change is booked as a delta on the sub-line and may not fall
// below the payments already recorded.
func (s *EngagementService) EditEngagement(ctx context.Context, id string, patch budget.EngagementPatch) (*budget.Engagement, error) {
	result := metrics.ResultSuccess
	defer func() {
		metrics.IncEngagementEdit(result)
	}()

	actor, err := auth.Require(ctx, auth.ModuleEngagements, auth.ActionEdit)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	current, err := s.deps.Repo.GetEngagement(ctx, id)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	unlock := s.deps.Locks.Lock(current.GrantID)
	defer unlock()

	eng, err := s.deps.Repo.GetEngagement(ctx, id)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if patch.Amount != nil && *patch.Amount >= 0 {
		payments, err := s.deps.Repo.ListPayments(ctx, budget.PaymentFilter{EngagementID: eng.ID})
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
		if err := budget.CheckAmountCoversPayments(eng, payments, *patch.Amount); err != nil {
			result = metrics.ResultError
			return nil, err
		}
	}
	now := s.deps.Clock.Now().UTC()
	delta, err := patch.Apply(eng, now)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	var grant *budget.Grant
	if delta != 0 {
		grant, err = s.deps.Repo.GetGrant(ctx, eng.GrantID)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
		if err := grant.Consume(eng.BudgetLineID, eng.SubBudgetLineID, delta); err != nil {
			result = metrics.ResultError
			return nil, err
		}
		grant.UpdatedAt = now
	}
	if err := s.deps.Repo.UpdateEngagement(ctx, eng, grant); err != nil {
		result = metrics.ResultError
		return nil, fmt.Errorf("engagement service: update: %w", err)
	}

	meta := EventMeta{Actor: actor, OccurredAt: now}
	s.deps.publish(ctx, EngagementEdited{EventMeta: meta, Engagement: eng.Clone(), Delta: delta})
	if grant != nil && delta > 0 {
		if event, ok := overEngagement(meta, grant, eng); ok {
			s.deps.publish(ctx, event)
		}
	}
	return eng, nil
}

// CanSign reports whether the caller may sign slot on eng. A draft
// engagement (empty id) is accepted for the supervisor slots only.
func (s *EngagementService) CanSign(ctx context.Context, eng *budget.Engagement, slot budget.Slot) error {
	actor, err := auth.Require(ctx, auth.ModuleEngagements, auth.ActionEdit)
	if err != nil {
		return err
	}
	return eng.CanSign(slot, actor.Signer())
}

// SignApproval signs slot as the caller. The engagement status is not changed.
func (s *EngagementService) SignApproval(ctx context.Context, id string, slot budget.Slot, observation string) (*budget.Engagement, error) {
	eng, actor, err := s.sign(ctx, id, slot, observation)
	metrics.IncApprovalSign(string(slot), metrics.Result(err))
	if err != nil {
		return nil, err
	}
	s.deps.Logger.Info("approval signed",
		zap.String("engagement_id", eng.ID),
		zap.String("slot", string(slot)),
		zap.String("signer", actor.Signer().FullName),
	)
	s.deps.publish(ctx, ApprovalSigned{
		EventMeta:    EventMeta{Actor: actor, OccurredAt: eng.UpdatedAt},
		EngagementID: eng.ID,
		GrantID:      eng.GrantID,
		Slot:         slot,
		Signature:    *eng.Approvals.Get(slot),
	})
	return eng, nil
}

func (s *EngagementService) sign(ctx context.Context, id string, slot budget.Slot, observation string) (*budget.Engagement, auth.Identity, error) {
	actor, err := auth.Require(ctx, auth.ModuleEngagements, auth.ActionEdit)
	if err != nil {
		return nil, actor, err
	}
	current, err := s.deps.Repo.GetEngagement(ctx, id)
	if err != nil {
		return nil, actor, err
	}

	unlock := s.deps.Locks.Lock(current.GrantID)
	defer unlock()

	eng, err := s.deps.Repo.GetEngagement(ctx, id)
	if err != nil {
		return nil, actor, err
	}
	now := s.deps.Clock.Now().UTC()
	if err := eng.Sign(slot, actor.Signer(), observation, now); err != nil {
		return nil, actor, err
	}
	eng.UpdatedAt = now
	if err := s.deps.Repo.UpdateEngagement(ctx, eng, nil); err != nil {
		return nil, actor, fmt.Errorf("engagement service: update: %w", err)
	}
	return eng, actor, nil
}

// UpdateStatus moves an engagement to pending, approved or rejected. Only
// the national coordinator may do so; signatures are not required.
func (s *EngagementService) UpdateStatus(ctx context.Context, id string, status budget.EngagementStatus) (*budget.Engagement, error) {
	actor, err := auth.Require(ctx, auth.ModuleEngagements, auth.ActionEdit)
	if err != nil {
		return nil, err
	}
	current, err := s.deps.Repo.GetEngagement(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.deps.Locks.Lock(current.GrantID)
	defer unlock()

	eng, err := s.deps.Repo.GetEngagement(ctx, id)
	if err != nil {
		return nil, err
	}
	from := eng.Status
	if err := eng.SetStatus(status, actor.Profession); err != nil {
		return nil, err
	}
	if from == status {
		return eng, nil
	}
	now := s.deps.Clock.Now().UTC()
	eng.UpdatedAt = now
	if err := s.deps.Repo.UpdateEngagement(ctx, eng, nil); err != nil {
		return nil, fmt.Errorf("engagement service: update: %w", err)
	}
	metrics.IncEngagementStatus(string(status))
	s.deps.publish(ctx, EngagementStatusChanged{
		EventMeta:    EventMeta{Actor: actor, OccurredAt: now},
		EngagementID: eng.ID,
		GrantID:      eng.GrantID,
		From:         from,
		To:           status,
	})
	return eng, nil
}

// GetEngagement returns one engagement.
func (s *EngagementService) GetEngagement(ctx context.Context, id string) (*budget.Engagement, error) {
	if _, err := auth.Require(ctx, auth.ModuleEngagements, auth.ActionView); err != nil {
		return nil, err
	}
	return s.deps.Repo.GetEngagement(ctx, id)
}

// ListEngagements returns engagements matching filter, oldest first.
func (s *EngagementService) ListEngagements(ctx context.Context, filter budget.EngagementFilter) ([]*budget.Engagement, error) {
	if _, err := auth.Require(ctx, auth.ModuleEngagements, auth.ActionView); err != nil {
		return nil, err
	}
	list, err := s.deps.Repo.ListEngagements(ctx, filter)
	if err != nil {
		return nil, err
	}
	sortEngagements(list)
	return list, nil
}

func sortEngagements(list []*budget.Engagement) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].Number < list[j].Number
	})
}
