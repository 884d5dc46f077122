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

// grantCodesLock serializes the duplicate-code check with the save.
const grantCodesLock = "grant-codes"

// GrantService registers grants and amends their totals and status.
type GrantService struct {
	deps Deps
}

// NewGrantService constructs a service.
func NewGrantService(deps Deps) (*GrantService, error) {
	deps, err := deps.normalize("grant service")
	if err != nil {
		return nil, err
	}
	return &GrantService{deps: deps}, nil
}

// CreateGrant registers a grant without budget lines.
func (s *GrantService) CreateGrant(ctx context.Context, in budget.GrantInput) (*budget.Grant, error) {
	actor, err := auth.Require(ctx, auth.ModuleGrants, auth.ActionCreate)
	if err != nil {
		return nil, err
	}
	now := s.deps.Clock.Now().UTC()
	grant, err := budget.NewGrant(s.deps.NewID(), in, now)
	if err != nil {
		return nil, err
	}

	unlock := s.deps.Locks.Lock(grantCodesLock)
	defer unlock()

	existing, err := s.deps.Repo.ListGrants(ctx)
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		if other.Code == grant.Code {
			return nil, budget.NewValidationError("duplicate grant code", "code")
		}
	}
	if err := s.deps.Repo.SaveGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("grant service: save: %w", err)
	}
	s.deps.Logger.Info("grant created", zap.String("grant_id", grant.ID), zap.String("code", grant.Code))
	s.deps.publish(ctx, GrantCreated{EventMeta: EventMeta{Actor: actor, OccurredAt: now}, Grant: grant.Clone()})
	return grant, nil
}

// UpdateGrantAmount changes the notified total of a grant and reallocates it
// across lines and sub-lines by planned share.
func (s *GrantService) UpdateGrantAmount(ctx context.Context, grantID string, newTotal float64) (*budget.Grant, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReallocation(result, time.Since(start))
	}()

	actor, err := auth.Require(ctx, auth.ModuleGrants, auth.ActionEdit)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	unlock := s.deps.Locks.Lock(grantID)
	defer unlock()

	grant, err := s.deps.Repo.GetGrant(ctx, grantID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	previous := grant.TotalAmount
	reallocated, err := grant.Amend(newTotal)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if previous == grant.TotalAmount {
		return grant, nil
	}
	now := s.deps.Clock.Now().UTC()
	grant.UpdatedAt = now
	if err := s.deps.Repo.SaveGrant(ctx, grant); err != nil {
		result = metrics.ResultError
		return nil, fmt.Errorf("grant service: save: %w", err)
	}
	s.deps.Logger.Info("grant amended",
		zap.String("grant_id", grant.ID),
		zap.Float64("previous_total", previous),
		zap.Float64("new_total", newTotal),
		zap.Bool("reallocated", reallocated),
	)
	s.deps.publish(ctx, GrantReallocated{
		EventMeta:     EventMeta{Actor: actor, OccurredAt: now},
		GrantID:       grant.ID,
		PreviousTotal: previous,
		NewTotal:      newTotal,
	})
	return grant, nil
}

// SetGrantStatus moves a grant to another lifecycle status.
func (s *GrantService) SetGrantStatus(ctx context.Context, grantID string, status budget.GrantStatus) (*budget.Grant, error) {
	actor, err := auth.Require(ctx, auth.ModuleGrants, auth.ActionEdit)
	if err != nil {
		return nil, err
	}

	unlock := s.deps.Locks.Lock(grantID)
	defer unlock()

	grant, err := s.deps.Repo.GetGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	from := grant.Status
	now := s.deps.Clock.Now().UTC()
	if err := grant.SetStatus(status, now); err != nil {
		return nil, err
	}
	if from == status {
		return grant, nil
	}
	if err := s.deps.Repo.SaveGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("grant service: save: %w", err)
	}
	s.deps.publish(ctx, GrantStatusChanged{
		EventMeta: EventMeta{Actor: actor, OccurredAt: now},
		GrantID:   grant.ID,
		From:      from,
		To:        status,
	})
	return grant, nil
}

// GetGrant returns a grant with its budget lines.
func (s *GrantService) GetGrant(ctx context.Context, grantID string) (*budget.Grant, error) {
	if _, err := auth.Require(ctx, auth.ModuleGrants, auth.ActionView); err != nil {
		return nil, err
	}
	return s.deps.Repo.GetGrant(ctx, grantID)
}

// ListGrants returns all grants ordered by code.
func (s *GrantService) ListGrants(ctx context.Context) ([]*budget.Grant, error) {
	if _, err := auth.Require(ctx, auth.ModuleGrants, auth.ActionView); err != nil {
		return nil, err
	}
	grants, err := s.deps.Repo.ListGrants(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(grants, func(i, j int) bool { return grants[i].Code < grants[j].Code })
	return grants, nil
}
