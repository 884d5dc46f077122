package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"grants-cloud/internal/auth"
	"grants-cloud/internal/budget/application"
	budget "grants-cloud/internal/budget/domain"
	"grants-cloud/internal/budget/infrastructure/memory"
	"grants-cloud/internal/eventbus"
)

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var (
	admin       = auth.Identity{Subject: "u-admin", FullName: "Admin", Role: auth.RoleAdmin}
	coordinator = auth.Identity{Subject: "u-1", FullName: "Awa Diallo", Role: auth.RoleEditor, Profession: budget.ProfessionGrantCoordinator}
	accountant  = auth.Identity{Subject: "u-2", FullName: "Moussa Traore", Role: auth.RoleEditor, Profession: budget.ProfessionAccountant}
	national    = auth.Identity{Subject: "u-3", FullName: "Fatou Ndiaye", Role: auth.RoleEditor, Profession: budget.ProfessionNationalCoordinator}
	viewer      = auth.Identity{Subject: "u-4", FullName: "Observer", Role: auth.RoleViewer}
)

type fixture struct {
	t        *testing.T
	repo     *memory.Repository
	bus      *eventbus.InMemoryBus
	services *application.Services

	mu     sync.Mutex
	events []any
}

func newFixture(t *testing.T, renderer application.Renderer) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &fixture{
		t:    t,
		repo: memory.NewRepository(),
		bus:  eventbus.NewInMemoryBus(logger),
	}
	services, err := application.NewServices(application.Deps{
		Repo:   f.repo,
		Bus:    f.bus,
		Clock:  &steppingClock{now: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)},
		Logger: logger,
	}, renderer)
	require.NoError(t, err)
	f.services = services

	record := func(ev any) {
		f.mu.Lock()
		f.events = append(f.events, ev)
		f.mu.Unlock()
	}
	eventbus.On(f.bus, func(_ context.Context, ev application.EngagementCreated) error { record(ev); return nil })
	eventbus.On(f.bus, func(_ context.Context, ev application.EngagementStatusChanged) error { record(ev); return nil })
	eventbus.On(f.bus, func(_ context.Context, ev application.ApprovalSigned) error { record(ev); return nil })
	eventbus.On(f.bus, func(_ context.Context, ev application.OverEngagementDetected) error { record(ev); return nil })
	eventbus.On(f.bus, func(_ context.Context, ev application.GrantReallocated) error { record(ev); return nil })
	return f
}

func as(id auth.Identity) context.Context {
	return auth.WithIdentity(context.Background(), id)
}

func amount(v float64) *float64 { return &v }

func (f *fixture) overEngagements() []application.OverEngagementDetected {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []application.OverEngagementDetected
	for _, ev := range f.events {
		if e, ok := ev.(application.OverEngagementDetected); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fixture) countEvents(match func(any) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if match(ev) {
			n++
		}
	}
	return n
}

// seededGrant is an active grant with one line and one sub-line notified at 1000.
type seededGrant struct {
	grantID   string
	lineID    string
	subLineID string
}

func (f *fixture) seedGrant(status budget.GrantStatus) seededGrant {
	f.t.Helper()
	ctx := as(admin)
	grant, err := f.services.Grants.CreateGrant(ctx, budget.GrantInput{
		Code:        "GR-2024-01",
		Name:        "Acces a l'eau",
		Donor:       "Fondation",
		TotalAmount: amount(1000),
		Currency:    "XOF",
		Status:      string(status),
	})
	require.NoError(f.t, err)
	line, err := f.services.Planning.AddBudgetLine(ctx, grant.ID, budget.LineInput{
		Code: "L1", Name: "Equipement", PlannedAmount: amount(1000),
	})
	require.NoError(f.t, err)
	sub, err := f.services.Planning.AddSubBudgetLine(ctx, grant.ID, line.ID, budget.LineInput{
		Code: "L1.1", Name: "Pompes", PlannedAmount: amount(1000), NotifiedAmount: amount(1000),
	})
	require.NoError(f.t, err)
	return seededGrant{grantID: grant.ID, lineID: line.ID, subLineID: sub.ID}
}

func (f *fixture) createEngagement(s seededGrant, value float64) *budget.Engagement {
	f.t.Helper()
	eng, err := f.services.Engagements.CreateEngagement(as(coordinator), budget.EngagementInput{
		GrantID:         s.grantID,
		BudgetLineID:    s.lineID,
		SubBudgetLineID: s.subLineID,
		Amount:          amount(value),
		Description:     "Pompes solaires",
		Supplier:        "SolarTech",
	})
	require.NoError(f.t, err)
	return eng
}

func (f *fixture) subLine(s seededGrant) budget.SubBudgetLine {
	f.t.Helper()
	grant, err := f.repo.GetGrant(context.Background(), s.grantID)
	require.NoError(f.t, err)
	line, err := grant.Line(s.lineID)
	require.NoError(f.t, err)
	sub, err := line.SubLine(s.subLineID)
	require.NoError(f.t, err)
	return *sub
}
