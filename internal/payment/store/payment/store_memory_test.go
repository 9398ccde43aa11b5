package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etatcivil/internal/payment/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

func newPayment() *models.Payment {
	return &models.Payment{
		ID:                   id.NewPaymentID(),
		RequestID:            id.NewRequestID(),
		BaseAmount:           decimal.NewFromInt(1000),
		StampAmount:          decimal.NewFromInt(500),
		TotalAmount:          decimal.NewFromInt(1500),
		Method:               models.MethodCash,
		Status:               models.StatusPending,
		TransactionReference: models.NewReference(time.Now()),
		CreatedAt:            time.Now(),
	}
}

func TestMemoryStoreCreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	p := newPayment()
	require.NoError(t, store.Create(ctx, p))

	byRequest, err := store.FindByRequestID(ctx, p.RequestID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byRequest.ID)

	byRef, err := store.FindByTransactionReference(ctx, p.TransactionReference)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byRef.ID)

	_, err = store.FindByRequestID(ctx, id.NewRequestID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryStoreOnePaymentPerRequest(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	p := newPayment()
	require.NoError(t, store.Create(ctx, p))

	second := newPayment()
	second.RequestID = p.RequestID
	assert.ErrorIs(t, store.Create(ctx, second), sentinel.ErrDuplicate)
}

func TestMemoryStoreExecute(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	p := newPayment()
	require.NoError(t, store.Create(ctx, p))

	t.Run("validation failure writes nothing", func(t *testing.T) {
		_, err := store.Execute(ctx, p.ID,
			func(*models.Payment) error { return sentinel.ErrInvalidState },
			func(pm *models.Payment) { pm.ApplyExpiry() })
		require.ErrorIs(t, err, sentinel.ErrInvalidState)

		stored, err := store.FindByRequestID(ctx, p.RequestID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, stored.Status)
	})

	t.Run("reinitiation re-indexes the reference", func(t *testing.T) {
		oldRef := p.TransactionReference
		newRef := models.NewReference(time.Now().Add(time.Minute))

		_, err := store.Execute(ctx, p.ID,
			func(*models.Payment) error { return nil },
			func(pm *models.Payment) {
				pm.ApplyFailure("DECLINED", "insufficient funds")
				pm.ApplyReinitiation(models.MethodCard, "", newRef, nil)
			})
		require.NoError(t, err)

		found, err := store.FindByTransactionReference(ctx, newRef)
		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)

		_, err = store.FindByTransactionReference(ctx, oldRef)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
