package budget

import (
	"strings"
	"time"
)

// GrantStatus is the lifecycle state of a grant.
type GrantStatus string

const (
	GrantStatusPending   GrantStatus = "pending"
	GrantStatusActive    GrantStatus = "active"
	GrantStatusCompleted GrantStatus = "completed"
	GrantStatusSuspended GrantStatus = "suspended"
)

// ParseGrantStatus validates a grant status string.
func ParseGrantStatus(value string) (GrantStatus, bool) {
	switch GrantStatus(value) {
	case GrantStatusPending, GrantStatusActive, GrantStatusCompleted, GrantStatusSuspended:
		return GrantStatus(value), true
	default:
		return "", false
	}
}

// Currency is one of the supported grant currencies.
type Currency string

const (
	CurrencyXOF Currency = "XOF"
	CurrencyXAF Currency = "XAF"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
	CurrencyCAD Currency = "CAD"
)

// ParseCurrency validates and normalizes a currency code.
func ParseCurrency(value string) (Currency, bool) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(value))); c {
	case CurrencyXOF, CurrencyXAF, CurrencyEUR, CurrencyUSD, CurrencyGBP, CurrencyCHF, CurrencyCAD:
		return c, true
	default:
		return "", false
	}
}

// Grant is an external funding award and the root of the budget hierarchy.
type Grant struct {
	ID            string       `json:"id" yaml:"id"`
	Code          string       `json:"code" yaml:"code"`
	Name          string       `json:"name" yaml:"name"`
	Donor         string       `json:"donor,omitempty" yaml:"donor,omitempty"`
	TotalAmount   float64      `json:"totalAmount" yaml:"totalAmount"`
	PlannedAmount float64      `json:"plannedAmount" yaml:"plannedAmount"`
	Currency      Currency     `json:"currency" yaml:"currency"`
	Status        GrantStatus  `json:"status" yaml:"status"`
	StartDate     time.Time    `json:"startDate" yaml:"startDate"`
	EndDate       time.Time    `json:"endDate" yaml:"endDate"`
	Lines         []BudgetLine `json:"budgetLines" yaml:"budgetLines"`
	CreatedAt     time.Time    `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt" yaml:"updatedAt"`
}

// BudgetLine is an allocation bucket directly under a grant.
type BudgetLine struct {
	ID              string          `json:"id" yaml:"id"`
	GrantID         string          `json:"grantId" yaml:"grantId"`
	Code            string          `json:"code" yaml:"code"`
	Name            string          `json:"name" yaml:"name"`
	PlannedAmount   float64         `json:"plannedAmount" yaml:"plannedAmount"`
	NotifiedAmount  float64         `json:"notifiedAmount" yaml:"notifiedAmount"`
	EngagedAmount   float64         `json:"engagedAmount" yaml:"engagedAmount"`
	AvailableAmount float64         `json:"availableAmount" yaml:"availableAmount"`
	SubLines        []SubBudgetLine `json:"subBudgetLines" yaml:"subBudgetLines"`
}

// SubBudgetLine is the leaf bucket engagements are booked against.
type SubBudgetLine struct {
	ID              string  `json:"id" yaml:"id"`
	BudgetLineID    string  `json:"budgetLineId" yaml:"budgetLineId"`
	GrantID         string  `json:"grantId" yaml:"grantId"`
	Code            string  `json:"code" yaml:"code"`
	Name            string  `json:"name" yaml:"name"`
	PlannedAmount   float64 `json:"plannedAmount" yaml:"plannedAmount"`
	NotifiedAmount  float64 `json:"notifiedAmount" yaml:"notifiedAmount"`
	EngagedAmount   float64 `json:"engagedAmount" yaml:"engagedAmount"`
	AvailableAmount float64 `json:"availableAmount" yaml:"availableAmount"`
}

// AcceptsEngagements reports whether new engagements may be booked on the grant.
func (g *Grant) AcceptsEngagements() bool {
	return g != nil && g.Status == GrantStatusActive
}

// Line returns the budget line with the given id.
func (g *Grant) Line(id string) (*BudgetLine, error) {
	if g == nil {
		return nil, ErrNilGrant
	}
	for i := range g.Lines {
		if g.Lines[i].ID == id {
			return &g.Lines[i], nil
		}
	}
	return nil, ErrLineNotFound
}

// SubLine returns the sub budget line with the given id.
func (l *BudgetLine) SubLine(id string) (*SubBudgetLine, error) {
	for i := range l.SubLines {
		if l.SubLines[i].ID == id {
			return &l.SubLines[i], nil
		}
	}
	return nil, ErrSubLineNotFound
}

// HasSubLines reports whether the line aggregates children.
func (l BudgetLine) HasSubLines() bool { return len(l.SubLines) > 0 }

// Consume books delta against a sub-line and re-derives its parent line.
// Negative deltas release budget. No ceiling is enforced.
func (g *Grant) Consume(lineID, subLineID string, delta float64) error {
	line, err := g.Line(lineID)
	if err != nil {
		return err
	}
	sub, err := line.SubLine(subLineID)
	if err != nil {
		return err
	}
	sub.EngagedAmount += delta
	sub.recompute()
	*line = RecomputeAggregates(*line)
	return nil
}

// Clone returns a deep copy of the grant tree.
func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	dup := *g
	if g.Lines != nil {
		dup.Lines = make([]BudgetLine, len(g.Lines))
		for i, line := range g.Lines {
			dup.Lines[i] = line.clone()
		}
	}
	return &dup
}

func (l BudgetLine) clone() BudgetLine {
	if l.SubLines != nil {
		subs := make([]SubBudgetLine, len(l.SubLines))
		copy(subs, l.SubLines)
		l.SubLines = subs
	}
	return l
}
