package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	budget "grants-cloud/internal/budget/domain"
)

var testNow = time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC)

func seedGrant(t *testing.T) *budget.Grant {
	t.Helper()
	total := 1000.0
	grant, err := budget.NewGrant("g-1", budget.GrantInput{Code: "G1", Name: "Water", TotalAmount: &total, Currency: "XOF", Status: "active"}, testNow)
	require.NoError(t, err)
	_, err = grant.AddLine("l-1", budget.LineInput{Code: "L1", Name: "Equipment"}, testNow)
	require.NoError(t, err)
	notified := 600.0
	_, err = grant.AddSubLine("l-1", "s-1", budget.LineInput{Code: "S1", Name: "Pumps", NotifiedAmount: &notified}, testNow)
	require.NoError(t, err)
	return grant
}

func TestRepositoryClonesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	grant := seedGrant(t)
	require.NoError(t, repo.SaveGrant(ctx, grant))

	grant.Lines[0].SubLines[0].NotifiedAmount = 1
	loaded, err := repo.GetGrant(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, 600.0, loaded.Lines[0].SubLines[0].NotifiedAmount)

	loaded.Lines[0].SubLines[0].NotifiedAmount = 2
	again, err := repo.GetGrant(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, 600.0, again.Lines[0].SubLines[0].NotifiedAmount)
}

func TestRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	_, err := repo.GetGrant(ctx, "missing")
	assert.ErrorIs(t, err, budget.ErrGrantNotFound)
	_, err = repo.GetEngagement(ctx, "missing")
	assert.ErrorIs(t, err, budget.ErrEngagementNotFound)
	_, err = repo.GetPayment(ctx, "missing")
	assert.ErrorIs(t, err, budget.ErrPaymentNotFound)
	assert.ErrorIs(t, repo.SaveGrant(ctx, nil), budget.ErrNilGrant)
}

func TestCreateEngagementStoresGrantTogether(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	grant := seedGrant(t)
	require.NoError(t, repo.SaveGrant(ctx, grant))

	eng := &budget.Engagement{ID: "e-1", Number: "ENG-1", GrantID: "g-1", BudgetLineID: "l-1", SubBudgetLineID: "s-1", Amount: 250, Status: budget.EngagementStatusPending}
	require.NoError(t, grant.Consume("l-1", "s-1", 250))
	require.NoError(t, repo.CreateEngagement(ctx, eng, grant))

	stored, err := repo.GetGrant(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, 250.0, stored.Lines[0].SubLines[0].EngagedAmount)
	assert.Equal(t, 350.0, stored.Lines[0].AvailableAmount)

	list, err := repo.ListEngagements(ctx, budget.EngagementFilter{GrantID: "g-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ENG-1", list[0].Number)

	orphan := &budget.Grant{ID: "other"}
	assert.ErrorIs(t, repo.CreateEngagement(ctx, eng, orphan), budget.ErrGrantNotFound)
}

func TestUpdateEngagementRequiresExisting(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	err := repo.UpdateEngagement(ctx, &budget.Engagement{ID: "e-x"}, nil)
	assert.ErrorIs(t, err, budget.ErrEngagementNotFound)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	grant := seedGrant(t)
	require.NoError(t, repo.SaveGrant(ctx, grant))
	require.NoError(t, repo.SavePayment(ctx, &budget.Payment{ID: "p-1", GrantID: "g-1", EngagementID: "e-1", Amount: 10}))
	before := repo.Version()

	snap := repo.Snapshot(testNow)
	require.Len(t, snap.Grants, 1)
	require.Len(t, snap.Payments, 1)

	other := NewRepository()
	snap.Grants[0].Lines[0].AvailableAmount = -999
	other.Restore(snap)

	restored, err := other.GetGrant(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, 600.0, restored.Lines[0].AvailableAmount)
	payments, err := other.ListPayments(ctx, budget.PaymentFilter{EngagementID: "e-1"})
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	assert.Greater(t, repo.Version(), uint64(0))
	assert.Equal(t, before, repo.Version())
}
