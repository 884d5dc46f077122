package budget

import (
	"context"
	"time"
)

// Repository persists grants, engagements and payments.
// CreateEngagement and UpdateEngagement store the engagement together with
// its grant so budget consumption is never observed half applied.
type Repository interface {
	GetGrant(ctx context.Context, id string) (*Grant, error)
	ListGrants(ctx context.Context) ([]*Grant, error)
	SaveGrant(ctx context.Context, grant *Grant) error

	GetEngagement(ctx context.Context, id string) (*Engagement, error)
	ListEngagements(ctx context.Context, filter EngagementFilter) ([]*Engagement, error)
	CreateEngagement(ctx context.Context, eng *Engagement, grant *Grant) error
	// UpdateEngagement stores eng and, when grant is non-nil, the grant too.
	UpdateEngagement(ctx context.Context, eng *Engagement, grant *Grant) error

	GetPayment(ctx context.Context, id string) (*Payment, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]*Payment, error)
	SavePayment(ctx context.Context, payment *Payment) error
}

// Snapshot is the full persisted state, used to mirror a repository to
// a file or a cache and to restore it on start.
type Snapshot struct {
	Grants      []*Grant      `json:"grants" yaml:"grants"`
	Engagements []*Engagement `json:"engagements" yaml:"engagements"`
	Payments    []*Payment    `json:"payments" yaml:"payments"`
	SavedAt     time.Time     `json:"savedAt" yaml:"savedAt"`
}
