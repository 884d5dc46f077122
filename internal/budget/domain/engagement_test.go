package budget

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func amount(v float64) *float64 { return &v }

func validInput() EngagementInput {
	return EngagementInput{
		GrantID:         "g-1",
		BudgetLineID:    "l-1",
		SubBudgetLineID: "s-1",
		Amount:          amount(250),
		Description:     "Office supplies",
		Supplier:        "Papeterie du Centre",
	}
}

var (
	coordinator = Signer{FullName: "Awa Diallo", Profession: ProfessionGrantCoordinator}
	accountant  = Signer{FullName: "Moussa Traore", Profession: ProfessionAccountant}
	national    = Signer{FullName: "Fatou Ndiaye", Profession: ProfessionNationalCoordinator}
	nobody      = Signer{FullName: "Guest"}
)

func TestValidateListsMissingFields(t *testing.T) {
	err := EngagementInput{Amount: amount(-1)}.Validate()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"grantId", "budgetLineId", "subBudgetLineId", "amount", "description", "supplier"}, verr.Fields)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateAcceptsZeroAmount(t *testing.T) {
	in := validInput()
	in.Amount = amount(0)
	require.NoError(t, in.Validate())

	in.Amount = nil
	require.ErrorIs(t, in.Validate(), ErrValidation)
}

func TestNewEngagementDropsFinalApproval(t *testing.T) {
	in := validInput()
	in.Approvals = &Approvals{
		Supervisor1:   &Signature{Name: "someone else", Signature: true, Observation: "ok"},
		FinalApproval: &Signature{Name: "forged", Signature: true},
	}

	eng, err := NewEngagement("e-1", "ENG-2024-03-000001", in, coordinator, testNow)
	require.NoError(t, err)

	assert.Nil(t, eng.Approvals.FinalApproval)
	require.NotNil(t, eng.Approvals.Supervisor1)
	assert.Equal(t, Signature{Name: "Awa Diallo", Date: "2024-03-14", Signature: true, Observation: "ok"}, *eng.Approvals.Supervisor1)
	assert.Equal(t, EngagementStatusPending, eng.Status)
	assert.Equal(t, "2024-03-14", eng.Date)
	assert.Equal(t, "e-1", eng.ID)
}

func TestNewEngagementRejectsForeignSupervisorSlot(t *testing.T) {
	in := validInput()
	in.Approvals = &Approvals{Supervisor2: &Signature{Signature: true}}

	_, err := NewEngagement("e-1", "n", in, coordinator, testNow)
	require.ErrorIs(t, err, ErrPrecondition)
}

func existingEngagement(t *testing.T) *Engagement {
	t.Helper()
	eng, err := NewEngagement("e-1", "ENG-2024-03-000001", validInput(), coordinator, testNow)
	require.NoError(t, err)
	return eng
}

func TestFinalApprovalRejectedOnFreshEngagement(t *testing.T) {
	eng := existingEngagement(t)

	for _, signer := range []Signer{coordinator, accountant, national, nobody} {
		err := eng.Sign(SlotFinalApproval, signer, "", testNow)
		require.ErrorIs(t, err, ErrPrecondition, signer.Profession)
	}
	assert.Nil(t, eng.Approvals.FinalApproval)
}

func TestFinalApprovalRequiresBothSupervisors(t *testing.T) {
	eng := existingEngagement(t)
	eng.Approvals.Supervisor1 = &Signature{Name: "Awa Diallo", Signature: true}
	eng.Approvals.Supervisor2 = &Signature{Name: "Moussa Traore", Signature: false}

	require.ErrorIs(t, eng.CanSign(SlotFinalApproval, national), ErrPrecondition)

	require.NoError(t, eng.Sign(SlotSupervisor2, accountant, "vu", testNow))
	require.NoError(t, eng.Sign(SlotFinalApproval, national, "", testNow))
	assert.True(t, eng.Approvals.Complete())
	assert.Equal(t, EngagementStatusPending, eng.Status)
}

func TestFinalApprovalRejectedOnDraft(t *testing.T) {
	draft := &Engagement{Approvals: Approvals{
		Supervisor1: &Signature{Signature: true},
		Supervisor2: &Signature{Signature: true},
	}}
	require.True(t, draft.IsDraft())

	require.ErrorIs(t, draft.CanSign(SlotFinalApproval, national), ErrPrecondition)
}

func TestResignLeavesSignatureUnchanged(t *testing.T) {
	eng := existingEngagement(t)
	require.NoError(t, eng.Sign(SlotSupervisor1, coordinator, "first", testNow))
	before := *eng.Approvals.Supervisor1

	err := eng.Sign(SlotSupervisor1, Signer{FullName: "Other", Profession: ProfessionGrantCoordinator}, "second", testNow.Add(48*time.Hour))

	require.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, before, *eng.Approvals.Supervisor1)
}

func TestSignRequiresMatchingProfession(t *testing.T) {
	eng := existingEngagement(t)

	require.ErrorIs(t, eng.CanSign(SlotSupervisor1, accountant), ErrPrecondition)
	require.ErrorIs(t, eng.CanSign(SlotSupervisor2, nobody), ErrPrecondition)
	require.ErrorIs(t, eng.CanSign(Slot("bogus"), coordinator), ErrValidation)
	require.NoError(t, eng.CanSign(SlotSupervisor2, accountant))
}

func TestSetStatus(t *testing.T) {
	eng := existingEngagement(t)

	err := eng.SetStatus(EngagementStatusApproved, ProfessionAccountant)
	require.ErrorIs(t, err, ErrPermission)
	assert.Equal(t, EngagementStatusPending, eng.Status)

	require.NoError(t, eng.SetStatus(EngagementStatusApproved, ProfessionNationalCoordinator))
	assert.Equal(t, EngagementStatusApproved, eng.Status)
	assert.False(t, eng.Approvals.Complete())

	require.ErrorIs(t, eng.SetStatus("paid", ProfessionNationalCoordinator), ErrValidation)
}

func TestPatchApplyReturnsDelta(t *testing.T) {
	eng := existingEngagement(t)
	later := testNow.Add(time.Hour)

	delta, err := EngagementPatch{Amount: amount(400), Supplier: strPtr(" New Supplier ")}.Apply(eng, later)
	require.NoError(t, err)
	assert.Equal(t, 150.0, delta)
	assert.Equal(t, 400.0, eng.Amount)
	assert.Equal(t, "New Supplier", eng.Supplier)
	assert.Equal(t, later, eng.UpdatedAt)

	_, err = EngagementPatch{Amount: amount(10), Description: strPtr("  ")}.Apply(eng, later)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 400.0, eng.Amount)
}

func strPtr(s string) *string { return &s }

func TestNumberGeneratorFormatAndUniqueness(t *testing.T) {
	gen := NewNumberGenerator(fixedClock{t: testNow})

	first, _ := gen.Next()
	second, _ := gen.Next()

	assert.True(t, strings.HasPrefix(first, "ENG-2024-03-"))
	assert.True(t, strings.HasPrefix(second, "ENG-2024-03-"))
	assert.Len(t, first, len("ENG-2024-03-")+6)
	assert.NotEqual(t, first[len(first)-6:], second[len(second)-6:])
}

func TestParseProfession(t *testing.T) {
	assert.Equal(t, ProfessionAccountant, ParseProfession("Comptable"))
	assert.Equal(t, ProfessionNone, ParseProfession("Directeur"))
	assert.True(t, ProfessionNationalCoordinator.CanModifyStatus())
	assert.False(t, ProfessionNone.CanModifyStatus())
	assert.Equal(t, ProfessionAccountant, SlotProfession(SlotSupervisor2))
}

func TestNewPaymentRequiresApprovedEngagement(t *testing.T) {
	eng := existingEngagement(t)
	in := PaymentInput{EngagementID: eng.ID, Amount: amount(100)}

	_, err := NewPayment("p-1", eng, in, testNow)
	require.ErrorIs(t, err, ErrPrecondition)

	eng.Status = EngagementStatusApproved
	p, err := NewPayment("p-1", eng, in, testNow)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, p.Status)
	assert.Equal(t, "s-1", p.SubBudgetLineID)

	_, err = NewPayment("p-2", eng, PaymentInput{EngagementID: eng.ID, Amount: amount(0)}, testNow)
	require.ErrorIs(t, err, ErrValidation)
}
