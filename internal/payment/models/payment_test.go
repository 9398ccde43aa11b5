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

func validPayment() *Payment {
	return &Payment{
		ID:                   id.NewPaymentID(),
		RequestID:            id.NewRequestID(),
		BaseAmount:           decimal.NewFromInt(1000),
		StampAmount:          decimal.NewFromInt(500),
		TotalAmount:          decimal.NewFromInt(1500),
		Method:               MethodMobileMoney,
		Status:               StatusPending,
		TransactionReference: NewReference(time.Now()),
		PhoneNumber:          "+2250700000000",
	}
}

func TestNewReference(t *testing.T) {
	now := time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)
	ref := NewReference(now)
	assert.True(t, strings.HasPrefix(ref, "PAY20260102150405"), ref)
	assert.Len(t, ref, len("PAY20060102150405")+8)
	assert.NotEqual(t, ref, NewReference(now))
}

func TestPaymentValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validPayment().Validate())
	})

	t.Run("mobile money requires phone", func(t *testing.T) {
		p := validPayment()
		p.PhoneNumber = " "
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, dErrors.FieldsOf(err), "phone_number")
	})

	t.Run("cash needs no phone", func(t *testing.T) {
		p := validPayment()
		p.Method = MethodCash
		p.PhoneNumber = ""
		assert.NoError(t, p.Validate())
	})

	t.Run("breakdown must sum to total", func(t *testing.T) {
		p := validPayment()
		p.StampAmount = decimal.NewFromInt(400)
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, dErrors.FieldsOf(err), "total_amount")
	})

	t.Run("sub-cent drift tolerated", func(t *testing.T) {
		p := validPayment()
		p.TotalAmount = decimal.RequireFromString("1500.009")
		assert.NoError(t, p.Validate())
	})

	t.Run("non-positive total", func(t *testing.T) {
		p := validPayment()
		p.BaseAmount = decimal.Zero
		p.StampAmount = decimal.Zero
		p.TotalAmount = decimal.Zero
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, dErrors.FieldsOf(err), "total_amount")
	})
}

func TestConfirmationLifecycle(t *testing.T) {
	now := time.Now()
	agent := id.NewAgentID()

	t.Run("confirm from pending and in progress", func(t *testing.T) {
		for _, status := range []Status{StatusPending, StatusInProgress} {
			p := validPayment()
			p.Status = status
			require.NoError(t, p.CanConfirm(), string(status))
			p.ApplyConfirmation(agent, "token-1", now)
			assert.Equal(t, StatusConfirmed, p.Status)
			assert.Equal(t, "token-1", p.ProviderReference)
			assert.Equal(t, agent, p.ConfirmedBy)
			require.NotNil(t, p.ConfirmedAt)
		}
	})

	t.Run("no double confirmation", func(t *testing.T) {
		p := validPayment()
		p.ApplyConfirmation(agent, "", now)
		err := p.CanConfirm()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("confirmation clears previous error", func(t *testing.T) {
		p := validPayment()
		p.ErrorCode = "TIMEOUT"
		p.ErrorMessage = "provider timeout"
		p.ApplyConfirmation(agent, "", now)
		assert.Empty(t, p.ErrorCode)
		assert.Empty(t, p.ErrorMessage)
	})
}

func TestAbortAndReinitiate(t *testing.T) {
	t.Run("live states", func(t *testing.T) {
		p := validPayment()
		assert.True(t, p.IsLive())
		p.Status = StatusInProgress
		assert.True(t, p.IsLive())
		p.Status = StatusConfirmed
		assert.False(t, p.IsLive())
	})

	t.Run("failure records error", func(t *testing.T) {
		p := validPayment()
		p.ApplyFailure("DECLINED", "insufficient funds")
		assert.Equal(t, StatusFailed, p.Status)
		assert.Equal(t, "DECLINED", p.ErrorCode)
	})

	t.Run("reinitiate from aborted states only", func(t *testing.T) {
		for _, status := range []Status{StatusFailed, StatusExpired, StatusCancelled} {
			p := validPayment()
			p.Status = status
			require.NoError(t, p.CanReinitiate(), string(status))
		}
		for _, status := range []Status{StatusPending, StatusInProgress, StatusConfirmed, StatusRefunded} {
			p := validPayment()
			p.Status = status
			assert.Error(t, p.CanReinitiate(), string(status))
		}
	})

	t.Run("reinitiation resets the row", func(t *testing.T) {
		p := validPayment()
		p.ApplyFailure("DECLINED", "insufficient funds")
		p.ProviderReference = "old-token"

		expires := time.Now().Add(time.Hour)
		p.ApplyReinitiation(MethodCard, "", "PAY-NEW", &expires)
		assert.Equal(t, StatusPending, p.Status)
		assert.Equal(t, MethodCard, p.Method)
		assert.Equal(t, "PAY-NEW", p.TransactionReference)
		assert.Empty(t, p.ProviderReference)
		assert.Empty(t, p.ErrorCode)
		assert.Nil(t, p.ConfirmedAt)
	})
}

func TestRefund(t *testing.T) {
	now := time.Now()

	t.Run("only confirmed money refunds", func(t *testing.T) {
		p := validPayment()
		assert.Error(t, p.CanRefund())
		p.ApplyConfirmation(id.NewAgentID(), "", now)
		require.NoError(t, p.CanRefund())
		p.ApplyRefund(now)
		assert.Equal(t, StatusRefunded, p.Status)
		require.NotNil(t, p.RefundedAt)
	})

	t.Run("no double refund", func(t *testing.T) {
		p := validPayment()
		p.ApplyConfirmation(id.NewAgentID(), "", now)
		p.ApplyRefund(now)
		assert.Error(t, p.CanRefund())
	})
}
