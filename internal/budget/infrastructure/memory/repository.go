package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	budget "grants-cloud/internal/budget/domain"
)

// Repository is an in-memory budget repository. Values are cloned on the
// way in and out so callers never share state with the store.
type Repository struct {
	mu          sync.RWMutex
	grants      map[string]*budget.Grant
	engagements map[string]*budget.Engagement
	payments    map[string]*budget.Payment
	version     uint64
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{
		grants:      make(map[string]*budget.Grant),
		engagements: make(map[string]*budget.Engagement),
		payments:    make(map[string]*budget.Payment),
	}
}

// GetGrant loads a grant.
func (r *Repository) GetGrant(ctx context.Context, id string) (*budget.Grant, error) {
	_ = ctx
	r.mu.RLock()
	grant := r.grants[id]
	r.mu.RUnlock()
	if grant == nil {
		return nil, budget.ErrGrantNotFound
	}
	return grant.Clone(), nil
}

// ListGrants returns every grant ordered by creation time.
func (r *Repository) ListGrants(ctx context.Context) ([]*budget.Grant, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]*budget.Grant, 0, len(r.grants))
	for _, grant := range r.grants {
		out = append(out, grant.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SaveGrant inserts or overwrites a grant.
func (r *Repository) SaveGrant(ctx context.Context, grant *budget.Grant) error {
	_ = ctx
	if grant == nil {
		return budget.ErrNilGrant
	}
	stored := grant.Clone()
	r.mu.Lock()
	r.grants[stored.ID] = stored
	r.version++
	r.mu.Unlock()
	return nil
}

// GetEngagement loads an engagement.
func (r *Repository) GetEngagement(ctx context.Context, id string) (*budget.Engagement, error) {
	_ = ctx
	r.mu.RLock()
	eng := r.engagements[id]
	r.mu.RUnlock()
	if eng == nil {
		return nil, budget.ErrEngagementNotFound
	}
	return eng.Clone(), nil
}

// ListEngagements returns engagements matching filter.
func (r *Repository) ListEngagements(ctx context.Context, filter budget.EngagementFilter) ([]*budget.Engagement, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]*budget.Engagement, 0, len(r.engagements))
	for _, eng := range r.engagements {
		if filter.Match(eng) {
			out = append(out, eng.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// CreateEngagement stores a new engagement and its updated grant in one step.
func (r *Repository) CreateEngagement(ctx context.Context, eng *budget.Engagement, grant *budget.Grant) error {
	_ = ctx
	if eng == nil {
		return budget.ErrNilEngagement
	}
	if grant == nil {
		return budget.ErrNilGrant
	}
	engCopy, grantCopy := eng.Clone(), grant.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.grants[grantCopy.ID]; !ok {
		return budget.ErrGrantNotFound
	}
	r.engagements[engCopy.ID] = engCopy
	r.grants[grantCopy.ID] = grantCopy
	r.version++
	return nil
}

// UpdateEngagement overwrites an engagement and, when given, its grant.
func (r *Repository) UpdateEngagement(ctx context.Context, eng *budget.Engagement, grant *budget.Grant) error {
	_ = ctx
	if eng == nil {
		return budget.ErrNilEngagement
	}
	engCopy := eng.Clone()
	grantCopy := grant.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engagements[engCopy.ID]; !ok {
		return budget.ErrEngagementNotFound
	}
	r.engagements[engCopy.ID] = engCopy
	if grantCopy != nil {
		r.grants[grantCopy.ID] = grantCopy
	}
	r.version++
	return nil
}

// GetPayment loads a payment.
func (r *Repository) GetPayment(ctx context.Context, id string) (*budget.Payment, error) {
	_ = ctx
	r.mu.RLock()
	payment := r.payments[id]
	r.mu.RUnlock()
	if payment == nil {
		return nil, budget.ErrPaymentNotFound
	}
	return payment.Clone(), nil
}

// ListPayments returns payments matching filter.
func (r *Repository) ListPayments(ctx context.Context, filter budget.PaymentFilter) ([]*budget.Payment, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]*budget.Payment, 0, len(r.payments))
	for _, payment := range r.payments {
		if filter.Match(payment) {
			out = append(out, payment.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SavePayment inserts or overwrites a payment.
func (r *Repository) SavePayment(ctx context.Context, payment *budget.Payment) error {
	_ = ctx
	if payment == nil {
		return budget.ErrNilPayment
	}
	stored := payment.Clone()
	r.mu.Lock()
	r.payments[stored.ID] = stored
	r.version++
	r.mu.Unlock()
	return nil
}

// Version increases on every write.
func (r *Repository) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Snapshot copies the whole state.
func (r *Repository) Snapshot(now time.Time) *budget.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := &budget.Snapshot{SavedAt: now.UTC()}
	for _, grant := range r.grants {
		snap.Grants = append(snap.Grants, grant.Clone())
	}
	for _, eng := range r.engagements {
		snap.Engagements = append(snap.Engagements, eng.Clone())
	}
	for _, payment := range r.payments {
		snap.Payments = append(snap.Payments, payment.Clone())
	}
	sort.Slice(snap.Grants, func(i, j int) bool { return snap.Grants[i].ID < snap.Grants[j].ID })
	sort.Slice(snap.Engagements, func(i, j int) bool { return snap.Engagements[i].ID < snap.Engagements[j].ID })
	sort.Slice(snap.Payments, func(i, j int) bool { return snap.Payments[i].ID < snap.Payments[j].ID })
	return snap
}

// Restore replaces the whole state with snap. Grant aggregates are
// re-derived so a hand-edited snapshot cannot break the balance invariant.
func (r *Repository) Restore(snap *budget.Snapshot) {
	grants := make(map[string]*budget.Grant)
	engagements := make(map[string]*budget.Engagement)
	payments := make(map[string]*budget.Payment)
	if snap != nil {
		for _, grant := range snap.Grants {
			if grant == nil {
				continue
			}
			stored := grant.Clone()
			stored.Recompute()
			grants[stored.ID] = stored
		}
		for _, eng := range snap.Engagements {
			if eng != nil {
				engagements[eng.ID] = eng.Clone()
			}
		}
		for _, payment := range snap.Payments {
			if payment != nil {
				payments[payment.ID] = payment.Clone()
			}
		}
	}
	r.mu.Lock()
	r.grants, r.engagements, r.payments = grants, engagements, payments
	r.version++
	r.mu.Unlock()
}
