package application_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grants-cloud/internal/budget/application"
	budget "grants-cloud/internal/budget/domain"
)

func TestCreateEngagementConsumesSubLine(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)

	eng := f.createEngagement(s, 400)
	assert.Equal(t, budget.EngagementStatusPending, eng.Status)
	assert.Equal(t, "Awa Diallo", eng.CreatedBy)
	assert.Equal(t, "2024-03-14", eng.Date)

	sub := f.subLine(s)
	assert.Equal(t, 400.0, sub.EngagedAmount)
	assert.Equal(t, 600.0, sub.AvailableAmount)
	assert.Empty(t, f.overEngagements())

	grant, err := f.repo.GetGrant(context.Background(), s.grantID)
	require.NoError(t, err)
	assert.Equal(t, 400.0, grant.Lines[0].EngagedAmount)
	assert.Equal(t, 600.0, grant.Lines[0].AvailableAmount)
}

func TestCreateEngagementAllowsOverEngagement(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)

	eng := f.createEngagement(s, 1500)

	sub := f.subLine(s)
	assert.Equal(t, -500.0, sub.AvailableAmount)
	assert.Greater(t, sub.EngagementRate(), 100.0)

	events := f.overEngagements()
	require.Len(t, events, 1)
	assert.Equal(t, eng.ID, events[0].EngagementID)
	assert.Equal(t, "L1.1", events[0].SubLineCode)
	assert.Equal(t, 1500.0, events[0].EngagedAmount)
	assert.Equal(t, -500.0, events[0].AvailableAmount)
}

func TestCreateEngagementRequiresActiveGrant(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusPending)

	_, err := f.services.Engagements.CreateEngagement(as(coordinator), budget.EngagementInput{
		GrantID:         s.grantID,
		BudgetLineID:    s.lineID,
		SubBudgetLineID: s.subLineID,
		Amount:          amount(100),
		Description:     "Pompes",
		Supplier:        "SolarTech",
	})
	require.ErrorIs(t, err, budget.ErrPrecondition)

	sub := f.subLine(s)
	assert.Zero(t, sub.EngagedAmount)
	assert.Equal(t, 1000.0, sub.AvailableAmount)
	list, err := f.services.Engagements.ListEngagements(as(viewer), budget.EngagementFilter{GrantID: s.grantID})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, f.countEvents(func(ev any) bool {
		_, ok := ev.(application.EngagementCreated)
		return ok
	}))
}

func TestCreateEngagementRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)

	_, err := f.services.Engagements.CreateEngagement(as(coordinator), budget.EngagementInput{
		GrantID:         s.grantID,
		BudgetLineID:    s.lineID,
		SubBudgetLineID: "missing",
		Amount:          amount(10),
		Description:     "x",
		Supplier:        "y",
	})
	var verr *budget.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"subBudgetLineId"}, verr.Fields)

	_, err = f.services.Engagements.CreateEngagement(as(coordinator), budget.EngagementInput{GrantID: s.grantID})
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"budgetLineId", "subBudgetLineId", "amount", "description", "supplier"}, verr.Fields)

	_, err = f.services.Engagements.CreateEngagement(as(viewer), budget.EngagementInput{})
	require.ErrorIs(t, err, budget.ErrPermission)
}

func TestCreateEngagementSignsRequestedSupervisorSlot(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)

	eng, err := f.services.Engagements.CreateEngagement(as(coordinator), budget.EngagementInput{
		GrantID:         s.grantID,
		BudgetLineID:    s.lineID,
		SubBudgetLineID: s.subLineID,
		Amount:          amount(100),
		Description:     "Pompes",
		Supplier:        "SolarTech",
		Approvals: &budget.Approvals{
			Supervisor1:   &budget.Signature{Name: "someone else", Signature: true, Observation: "ok"},
			FinalApproval: &budget.Signature{Name: "forged", Signature: true},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, eng.Approvals.Supervisor1)
	assert.Equal(t, "Awa Diallo", eng.Approvals.Supervisor1.Name)
	assert.Equal(t, "ok", eng.Approvals.Supervisor1.Observation)
	assert.Nil(t, eng.Approvals.FinalApproval)
}

func TestEngagementNumbersShareMonthPrefix(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)

	first := f.createEngagement(s, 10)
	second := f.createEngagement(s, 20)

	for _, eng := range []*budget.Engagement{first, second} {
		assert.True(t, strings.HasPrefix(eng.Number, "ENG-2024-03-"), eng.Number)
		assert.Len(t, eng.Number, len("ENG-2024-03-")+6)
	}
	assert.NotEqual(t, first.Number[len(first.Number)-6:], second.Number[len(second.Number)-6:])
}

func TestSignApprovalOrder(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)
	eng := f.createEngagement(s, 100)

	for _, actor := range []struct {
		name string
		ctx  context.Context
	}{
		{"national", as(national)},
		{"admin", as(admin)},
		{"coordinator", as(coordinator)},
	} {
		_, err := f.services.Engagements.SignApproval(actor.ctx, eng.ID, budget.SlotFinalApproval, "")
		require.ErrorIs(t, err, budget.ErrPrecondition, actor.name)
	}

	_, err := f.services.Engagements.SignApproval(as(coordinator), eng.ID, budget.SlotSupervisor1, "vu")
	require.NoError(t, err)
	_, err = f.services.Engagements.SignApproval(as(national), eng.ID, budget.SlotFinalApproval, "")
	require.ErrorIs(t, err, budget.ErrPrecondition)

	_, err = f.services.Engagements.SignApproval(as(accountant), eng.ID, budget.SlotSupervisor2, "")
	require.NoError(t, err)
	signed, err := f.services.Engagements.SignApproval(as(national), eng.ID, budget.SlotFinalApproval, "bon pour accord")
	require.NoError(t, err)

	assert.True(t, signed.Approvals.Complete())
	assert.Equal(t, budget.EngagementStatusPending, signed.Status)
	assert.Equal(t, 3, f.countEvents(func(ev any) bool {
		_, ok := ev.(application.ApprovalSigned)
		return ok
	}))
}

func TestSignApprovalRejectsResign(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)
	eng := f.createEngagement(s, 100)

	first, err := f.services.Engagements.SignApproval(as(coordinator), eng.ID, budget.SlotSupervisor1, "premier")
	require.NoError(t, err)
	before := *first.Approvals.Supervisor1

	other := coordinator
	other.FullName = "Another Coordinator"
	_, err = f.services.Engagements.SignApproval(as(other), eng.ID, budget.SlotSupervisor1, "second")
	require.ErrorIs(t, err, budget.ErrPrecondition)

	stored, err := f.repo.GetEngagement(context.Background(), eng.ID)
	require.NoError(t, err)
	assert.Equal(t, before, *stored.Approvals.Supervisor1)
}

func TestSignApprovalRequiresMatchingProfession(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)
	eng := f.createEngagement(s, 100)

	_, err := f.services.Engagements.SignApproval(as(accountant), eng.ID, budget.SlotSupervisor1, "")
	require.ErrorIs(t, err, budget.ErrPrecondition)
	_, err = f.services.Engagements.SignApproval(as(viewer), eng.ID, budget.SlotSupervisor1, "")
	require.ErrorIs(t, err, budget.ErrPermission)
	_, err = f.services.Engagements.SignApproval(as(coordinator), eng.ID, budget.Slot("other"), "")
	require.ErrorIs(t, err, budget.ErrValidation)
}

func TestCanSignDraft(t *testing.T) {
	f := newFixture(t, nil)
	draft := &budget.Engagement{}

	require.NoError(t, f.services.Engagements.CanSign(as(coordinator), draft, budget.SlotSupervisor1))
	err := f.services.Engagements.CanSign(as(national), draft, budget.SlotFinalApproval)
	require.ErrorIs(t, err, budget.ErrPrecondition)
}

func TestUpdateStatusIsDecoupledFromSignatures(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)
	eng := f.createEngagement(s, 100)

	_, err := f.services.Engagements.UpdateStatus(as(coordinator), eng.ID, budget.EngagementStatusApproved)
	require.ErrorIs(t, err, budget.ErrPermission)

	approved, err := f.services.Engagements.UpdateStatus(as(national), eng.ID, budget.EngagementStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, budget.EngagementStatusApproved, approved.Status)
	assert.Zero(t, approved.Approvals.SignedCount())

	_, err = f.services.Engagements.UpdateStatus(as(national), eng.ID, budget.EngagementStatus("archived"))
	require.ErrorIs(t, err, budget.ErrValidation)

	rejected, err := f.services.Engagements.UpdateStatus(as(national), eng.ID, budget.EngagementStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, budget.EngagementStatusRejected, rejected.Status)

	assert.Equal(t, 2, f.countEvents(func(ev any) bool {
		_, ok := ev.(application.EngagementStatusChanged)
		return ok
	}))
	assert.Equal(t, 100.0, f.subLine(s).EngagedAmount)
}

func TestEditEngagementBooksDelta(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)
	eng := f.createEngagement(s, 400)

	supplier := "AquaPlus"
	edited, err := f.services.Engagements.EditEngagement(as(coordinator), eng.ID, budget.EngagementPatch{
		Amount:   amount(1200),
		Supplier: &supplier,
	})
	require.NoError(t, err)
	assert.Equal(t, 1200.0, edited.Amount)
	assert.Equal(t, "AquaPlus", edited.Supplier)
	assert.Equal(t, eng.Number, edited.Number)

	sub := f.subLine(s)
	assert.Equal(t, 1200.0, sub.EngagedAmount)
	assert.Equal(t, -200.0, sub.AvailableAmount)
	assert.Len(t, f.overEngagements(), 1)

	_, err = f.services.Engagements.EditEngagement(as(coordinator), eng.ID, budget.EngagementPatch{Amount: amount(300)})
	require.NoError(t, err)
	sub = f.subLine(s)
	assert.Equal(t, 300.0, sub.EngagedAmount)
	assert.Equal(t, 700.0, sub.AvailableAmount)
	assert.Len(t, f.overEngagements(), 1)

	_, err = f.services.Engagements.EditEngagement(as(coordinator), "missing", budget.EngagementPatch{})
	require.ErrorIs(t, err, budget.ErrEngagementNotFound)
}

func TestEditEngagementKeepsAmountAbovePayments(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)
	eng := f.createEngagement(s, 500)
	_, err := f.services.Engagements.UpdateStatus(as(national), eng.ID, budget.EngagementStatusApproved)
	require.NoError(t, err)
	_, err = f.services.Payments.RecordPayment(as(accountant), budget.PaymentInput{EngagementID: eng.ID, Amount: amount(400)})
	require.NoError(t, err)

	_, err = f.services.Engagements.EditEngagement(as(coordinator), eng.ID, budget.EngagementPatch{Amount: amount(100)})
	require.ErrorIs(t, err, budget.ErrPrecondition)

	stored, err := f.services.Engagements.GetEngagement(as(viewer), eng.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, stored.Amount)
	assert.Equal(t, 500.0, f.subLine(s).EngagedAmount)

	edited, err := f.services.Engagements.EditEngagement(as(coordinator), eng.ID, budget.EngagementPatch{Amount: amount(400)})
	require.NoError(t, err)
	assert.Equal(t, 400.0, edited.Amount)
	assert.Equal(t, 400.0, f.subLine(s).EngagedAmount)
}

func TestConcurrentEngagementsKeepBalance(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.services.Engagements.CreateEngagement(as(coordinator), budget.EngagementInput{
				GrantID:         s.grantID,
				BudgetLineID:    s.lineID,
				SubBudgetLineID: s.subLineID,
				Amount:          amount(25),
				Description:     "Petit materiel",
				Supplier:        "Quincaillerie",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sub := f.subLine(s)
	assert.Equal(t, 500.0, sub.EngagedAmount)
	assert.Equal(t, sub.NotifiedAmount-sub.EngagedAmount, sub.AvailableAmount)

	list, err := f.services.Engagements.ListEngagements(as(viewer), budget.EngagementFilter{GrantID: s.grantID})
	require.NoError(t, err)
	require.Len(t, list, workers)
	seen := map[string]bool{}
	for _, eng := range list {
		assert.False(t, seen[eng.Number], eng.Number)
		seen[eng.Number] = true
	}
}
