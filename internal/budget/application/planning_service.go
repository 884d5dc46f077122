package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"grants-cloud/internal/auth"
	budget "grants-cloud/internal/budget/domain"
)

// PlanningService maintains the budget lines and sub-lines of a grant.
type PlanningService struct {
	deps Deps
}

// NewPlanningService constructs a service.
func NewPlanningService(deps Deps) (*PlanningService, error) {
	deps, err := deps.normalize("planning service")
	if err != nil {
		return nil, err
	}
	return &PlanningService{deps: deps}, nil
}

// AddBudgetLine appends a budget line to a grant.
func (s *PlanningService) AddBudgetLine(ctx context.Context, grantID string, in budget.LineInput) (*budget.BudgetLine, error) {
	var added budget.BudgetLine
	err := s.mutate(ctx, grantID, auth.ActionCreate, func(grant *budget.Grant, meta EventMeta) (BudgetPlanned, error) {
		line, err := grant.AddLine(s.deps.NewID(), in, meta.OccurredAt)
		if err != nil {
			return BudgetPlanned{}, err
		}
		added = *line
		return BudgetPlanned{LineID: line.ID, Change: "line.added"}, nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// AddSubBudgetLine appends a sub-line to a budget line.
func (s *PlanningService) AddSubBudgetLine(ctx context.Context, grantID, lineID string, in budget.LineInput) (*budget.SubBudgetLine, error) {
	var added budget.SubBudgetLine
	err := s.mutate(ctx, grantID, auth.ActionCreate, func(grant *budget.Grant, meta EventMeta) (BudgetPlanned, error) {
		sub, err := grant.AddSubLine(lineID, s.deps.NewID(), in, meta.OccurredAt)
		if err != nil {
			return BudgetPlanned{}, err
		}
		added = *sub
		return BudgetPlanned{LineID: lineID, SubLineID: sub.ID, Change: "subline.added"}, nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// UpdateLineAmounts changes planned and notified amounts of a line or,
// when subLineID is set, of a sub-line.
func (s *PlanningService) UpdateLineAmounts(ctx context.Context, grantID, lineID, subLineID string, planned, notified *float64) (*budget.Grant, error) {
	var out *budget.Grant
	err := s.mutate(ctx, grantID, auth.ActionEdit, func(grant *budget.Grant, meta EventMeta) (BudgetPlanned, error) {
		if err := grant.SetAmounts(lineID, subLineID, planned, notified, meta.OccurredAt); err != nil {
			return BudgetPlanned{}, err
		}
		out = grant
		return BudgetPlanned{LineID: lineID, SubLineID: subLineID, Change: "amounts.updated"}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PlanningService) mutate(ctx context.Context, grantID string, action auth.Action, fn func(*budget.Grant, EventMeta) (BudgetPlanned, error)) error {
	actor, err := auth.Require(ctx, auth.ModuleBudgetPlanning, action)
	if err != nil {
		return err
	}

	unlock := s.deps.Locks.Lock(grantID)
	defer unlock()

	grant, err := s.deps.Repo.GetGrant(ctx, grantID)
	if err != nil {
		return err
	}
	meta := EventMeta{Actor: actor, OccurredAt: s.deps.Clock.Now().UTC()}
	event, err := fn(grant, meta)
	if err != nil {
		return err
	}
	if err := s.deps.Repo.SaveGrant(ctx, grant); err != nil {
		return fmt.Errorf("planning service: save: %w", err)
	}
	event.EventMeta = meta
	event.GrantID = grant.ID
	s.deps.Logger.Info("budget planned",
		zap.String("grant_id", grant.ID),
		zap.String("line_id", event.LineID),
		zap.String("change", event.Change),
	)
	s.deps.publish(ctx, event)
	return nil
}
