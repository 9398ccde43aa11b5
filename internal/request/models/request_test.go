package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

func validInput() CreationInput {
	return CreationInput{
		RequesterID: id.NewPersonID(),
		ActID:       id.NewActID(),
		ActType:     id.ActBirth,
		Variant:     id.VariantFullCopy,
		CopyCount:   2,
		CommuneID:   id.NewCommuneID(),
		Withdrawal:  WithdrawalCounter,
	}
}

func TestCreationInputValidate(t *testing.T) {
	t.Run("valid counter withdrawal", func(t *testing.T) {
		in := validInput()
		assert.NoError(t, in.Validate())
	})

	t.Run("courier requires address", func(t *testing.T) {
		in := validInput()
		in.Withdrawal = WithdrawalCourier
		err := in.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, dErrors.FieldsOf(err), "delivery_address")
	})

	t.Run("courier with address ok", func(t *testing.T) {
		in := validInput()
		in.Withdrawal = WithdrawalCourier
		in.DeliveryAddress = "BP 123 Abidjan"
		assert.NoError(t, in.Validate())
	})

	t.Run("copy count bounds", func(t *testing.T) {
		in := validInput()
		in.CopyCount = 0
		assert.Error(t, in.Validate())
		in.CopyCount = MaxCopies + 1
		assert.Error(t, in.Validate())
		in.CopyCount = MaxCopies
		assert.NoError(t, in.Validate())
	})

	t.Run("missing act reference", func(t *testing.T) {
		in := validInput()
		in.ActID = id.ActID{}
		err := in.Validate()
		require.Error(t, err)
		assert.Contains(t, dErrors.FieldsOf(err), "act_id")
	})
}

func TestNewTrackingNumber(t *testing.T) {
	now := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	n := NewTrackingNumber(now)
	assert.True(t, strings.HasPrefix(n, "DEM202603"), n)
	assert.Len(t, n, len("DEM202603")+8)
	assert.NotEqual(t, n, NewTrackingNumber(now))
}

func pendingRequest() *Request {
	return &Request{
		ID:              id.NewRequestID(),
		RequesterID:     id.NewPersonID(),
		Status:          StatusPending,
		PaymentRequired: true,
	}
}

func TestValidationTransition(t *testing.T) {
	now := time.Now()
	agent := id.NewAgentID()
	total := decimal.NewFromInt(1500)

	t.Run("payment required routes to awaiting payment", func(t *testing.T) {
		r := pendingRequest()
		require.NoError(t, r.CanValidate())
		r.ApplyValidation(agent, total, "ok", now)
		assert.Equal(t, StatusAwaitingPayment, r.Status)
		assert.True(t, r.AmountComputed)
		assert.True(t, total.Equal(r.TotalAmount))
		assert.Equal(t, agent, r.ValidatedBy)
		require.NotNil(t, r.ValidatedAt)
	})

	t.Run("exempt request skips payment", func(t *testing.T) {
		r := pendingRequest()
		r.PaymentRequired = false
		r.ApplyValidation(agent, decimal.Zero, "", now)
		assert.Equal(t, StatusPaymentConfirmed, r.Status)
	})

	t.Run("only from pending", func(t *testing.T) {
		r := pendingRequest()
		r.Status = StatusInProgress
		err := r.CanValidate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestPaymentGateTransitions(t *testing.T) {
	t.Run("confirm from awaiting payment", func(t *testing.T) {
		r := pendingRequest()
		r.Status = StatusAwaitingPayment
		require.NoError(t, r.CanConfirmPayment())
		r.ApplyPaymentConfirmed()
		assert.Equal(t, StatusPaymentConfirmed, r.Status)
	})

	t.Run("confirm rejected elsewhere", func(t *testing.T) {
		r := pendingRequest()
		assert.Error(t, r.CanConfirmPayment())
	})

	t.Run("reset to pending after aborted payment", func(t *testing.T) {
		r := pendingRequest()
		r.Status = StatusAwaitingPayment
		require.NoError(t, r.CanResetToPending())
		r.ApplyResetToPending()
		assert.Equal(t, StatusPending, r.Status)
	})

	t.Run("no reset once confirmed", func(t *testing.T) {
		r := pendingRequest()
		r.Status = StatusPaymentConfirmed
		assert.Error(t, r.CanResetToPending())
	})
}

func TestProcessingAndClosure(t *testing.T) {
	now := time.Now()
	agent := id.NewAgentID()

	t.Run("full happy path", func(t *testing.T) {
		r := pendingRequest()
		r.ApplyValidation(agent, decimal.NewFromInt(500), "", now)
		r.ApplyPaymentConfirmed()
		require.NoError(t, r.CanStartProcessing())
		r.ApplyProcessing(agent, now)
		assert.Equal(t, StatusInProgress, r.Status)
		assert.Equal(t, agent, r.ProcessedBy)
		require.NoError(t, r.CanApprove())
		r.ApplyApproval("complete file")
		assert.Equal(t, StatusApproved, r.Status)
		require.NoError(t, r.CanDeliver())
		r.ApplyDelivery(now)
		assert.Equal(t, StatusDelivered, r.Status)
		require.NotNil(t, r.DeliveredAt)
		assert.True(t, r.Status.IsTerminal())
	})

	t.Run("deliver only from approved", func(t *testing.T) {
		r := pendingRequest()
		r.Status = StatusInProgress
		assert.Error(t, r.CanDeliver())
	})

	t.Run("reject from in progress and payment confirmed", func(t *testing.T) {
		for _, status := range []Status{StatusInProgress, StatusPaymentConfirmed} {
			r := pendingRequest()
			r.Status = status
			require.NoError(t, r.CanReject(), string(status))
			r.ApplyRejection("illegible act reference")
			assert.Equal(t, StatusRejected, r.Status)
			assert.Equal(t, "illegible act reference", r.RejectionReason)
		}
	})

	t.Run("no reject from approved", func(t *testing.T) {
		r := pendingRequest()
		r.Status = StatusApproved
		assert.Error(t, r.CanReject())
	})
}

func TestCancel(t *testing.T) {
	t.Run("requester cancels before payment", func(t *testing.T) {
		for _, status := range []Status{StatusPending, StatusAwaitingPayment} {
			r := pendingRequest()
			r.Status = status
			require.NoError(t, r.CanCancel(r.RequesterID), string(status))
			r.ApplyCancellation()
			assert.Equal(t, StatusCancelled, r.Status)
		}
	})

	t.Run("someone else cannot cancel", func(t *testing.T) {
		r := pendingRequest()
		err := r.CanCancel(id.NewPersonID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("no cancel after money confirmed", func(t *testing.T) {
		r := pendingRequest()
		r.Status = StatusPaymentConfirmed
		assert.Error(t, r.CanCancel(r.RequesterID))
	})
}
