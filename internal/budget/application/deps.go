package application

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	budget "grants-cloud/internal/budget/domain"
	"grants-cloud/internal/eventbus"
)

// Deps are the collaborators shared by the budget services.
type Deps struct {
	Repo   budget.Repository
	Bus    eventbus.EventBus
	Clock  budget.Clock
	Locks  *GrantLocks
	Logger *zap.Logger
	// NewID generates entity identifiers; uuid when nil.
	NewID func() string
}

func (d Deps) normalize(component string) (Deps, error) {
	if d.Repo == nil {
		return d, errors.New(component + ": nil repo")
	}
	if d.Bus == nil {
		return d, errors.New(component + ": nil bus")
	}
	if d.Clock == nil {
		d.Clock = budget.SystemClock{}
	}
	if d.Locks == nil {
		d.Locks = NewGrantLocks()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	d.Logger = d.Logger.Named(component)
	return d, nil
}

func (d Deps) publish(ctx context.Context, event any) {
	if err := d.Bus.Publish(ctx, event); err != nil {
		d.Logger.Warn("publish event failed", zap.String("event", eventbus.EventType(event)), zap.Error(err))
	}
}

// GrantLocks serializes read-modify-write cycles per grant.
type GrantLocks struct {
	mu    sync.Mutex
	locks map[string]*grantLock
}

type grantLock struct {
	mu   sync.Mutex
	refs int
}

// NewGrantLocks constructs an empty lock table.
func NewGrantLocks() *GrantLocks {
	return &GrantLocks{locks: make(map[string]*grantLock)}
}

// Lock acquires the lock for grantID and returns its release func.
func (l *GrantLocks) Lock(grantID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[grantID]
	if !ok {
		lock = &grantLock{}
		l.locks[grantID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, grantID)
		}
		l.mu.Unlock()
	}
}

// Services bundles every budget service over one set of dependencies.
type Services struct {
	Grants      *GrantService
	Planning    *PlanningService
	Engagements *EngagementService
	Payments    *PaymentService
	Reports     *ReportService
}

// NewServices constructs all services sharing deps. renderer may be nil,
// in which case exports fail with ErrExportUnavailable.
func NewServices(deps Deps, renderer Renderer) (*Services, error) {
	if deps.Locks == nil {
		deps.Locks = NewGrantLocks()
	}
	grants, err := NewGrantService(deps)
	if err != nil {
		return nil, err
	}
	planning, err := NewPlanningService(deps)
	if err != nil {
		return nil, err
	}
	engagements, err := NewEngagementService(deps)
	if err != nil {
		return nil, err
	}
	payments, err := NewPaymentService(deps)
	if err != nil {
		return nil, err
	}
	reports, err := NewReportService(deps, renderer)
	if err != nil {
		return nil, err
	}
	return &Services{
		Grants:      grants,
		Planning:    planning,
		Engagements: engagements,
		Payments:    payments,
		Reports:     reports,
	}, nil
}
