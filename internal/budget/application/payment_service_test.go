package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	budget "grants-cloud/internal/budget/domain"
)

func TestRecordPaymentRequiresApprovedEngagement(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)
	eng := f.createEngagement(s, 500)

	_, err := f.services.Payments.RecordPayment(as(accountant), budget.PaymentInput{EngagementID: eng.ID, Amount: amount(100)})
	require.ErrorIs(t, err, budget.ErrPrecondition)

	_, err = f.services.Engagements.UpdateStatus(as(national), eng.ID, budget.EngagementStatusApproved)
	require.NoError(t, err)

	payment, err := f.services.Payments.RecordPayment(as(accountant), budget.PaymentInput{
		EngagementID: eng.ID,
		Amount:       amount(300),
		Reference:    "VIR-001",
		Date:         "2024-03-20",
	})
	require.NoError(t, err)
	assert.Equal(t, budget.PaymentStatusPending, payment.Status)
	assert.Equal(t, s.subLineID, payment.SubBudgetLineID)
	assert.Equal(t, "2024-03-20", payment.Date)

	_, err = f.services.Payments.RecordPayment(as(accountant), budget.PaymentInput{EngagementID: eng.ID, Amount: amount(201)})
	require.ErrorIs(t, err, budget.ErrPrecondition)
	_, err = f.services.Payments.RecordPayment(as(accountant), budget.PaymentInput{EngagementID: eng.ID, Amount: amount(200)})
	require.NoError(t, err)

	list, err := f.services.Payments.ListPayments(as(viewer), budget.PaymentFilter{EngagementID: eng.ID})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.services.Payments.RecordPayment(as(accountant), budget.PaymentInput{})
	var verr *budget.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"engagementId", "amount"}, verr.Fields)

	_, err = f.services.Payments.RecordPayment(as(accountant), budget.PaymentInput{EngagementID: "missing", Amount: amount(1)})
	require.ErrorIs(t, err, budget.ErrEngagementNotFound)

	_, err = f.services.Payments.RecordPayment(as(viewer), budget.PaymentInput{})
	require.ErrorIs(t, err, budget.ErrPermission)
}

func TestPaymentStatusMovesForward(t *testing.T) {
	f := newFixture(t, nil)
	s := f.seedGrant(budget.GrantStatusActive)
	eng := f.createEngagement(s, 500)
	_, err := f.services.Engagements.UpdateStatus(as(national), eng.ID, budget.EngagementStatusApproved)
	require.NoError(t, err)
	payment, err := f.services.Payments.RecordPayment(as(accountant), budget.PaymentInput{EngagementID: eng.ID, Amount: amount(100)})
	require.NoError(t, err)

	paid, err := f.services.Payments.UpdatePaymentStatus(as(accountant), payment.ID, budget.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, budget.PaymentStatusPaid, paid.Status)

	_, err = f.services.Payments.UpdatePaymentStatus(as(accountant), payment.ID, budget.PaymentStatusPending)
	require.ErrorIs(t, err, budget.ErrPrecondition)

	stored, err := f.services.Payments.GetPayment(as(viewer), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, budget.PaymentStatusPaid, stored.Status)
}
