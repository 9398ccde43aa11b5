package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"etatcivil/internal/payment/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

// PostgresStore persists payments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed payment store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new payment. Returns sentinel.ErrDuplicate when the
// request already has a payment or the transaction reference collides.
func (s *PostgresStore) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (id, request_id, base_amount, stamp_amount, total_amount,
			method, status, transaction_reference, provider_reference, phone_number,
			error_code, error_message, note, confirmed_by,
			created_at, confirmed_at, expires_at, refunded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID.String(), p.RequestID.String(),
		p.BaseAmount.String(), p.StampAmount.String(), p.TotalAmount.String(),
		string(p.Method), string(p.Status), p.TransactionReference, p.ProviderReference, p.PhoneNumber,
		p.ErrorCode, p.ErrorMessage, p.Note, nullAgent(p.ConfirmedBy),
		p.CreatedAt, p.ConfirmedAt, p.ExpiresAt, p.RefundedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByRequestID retrieves the payment of a request.
func (s *PostgresStore) FindByRequestID(ctx context.Context, requestID id.RequestID) (*models.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, selectPayment+`WHERE request_id = $1`, requestID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment by request: %w", err)
	}
	return p, nil
}

// FindByTransactionReference retrieves a payment by our reference, the key
// webhooks carry.
func (s *PostgresStore) FindByTransactionReference(ctx context.Context, ref string) (*models.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, selectPayment+`WHERE transaction_reference = $1`, ref))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment by reference: %w", err)
	}
	return p, nil
}

// Execute runs validate and mutate against the payment while holding its
// row lock, persisting the mutation atomically.
func (s *PostgresStore) Execute(ctx context.Context, paymentID id.PaymentID,
	validate func(*models.Payment) error, mutate func(*models.Payment)) (*models.Payment, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute payment: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	p, err := scanPayment(tx.QueryRowContext(ctx, selectPayment+`WHERE id = $1 FOR UPDATE`, paymentID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock payment: %w", err)
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)

	_, err = tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, method = $3, phone_number = $4, transaction_reference = $5,
			provider_reference = $6, error_code = $7, error_message = $8,
			note = $9, confirmed_by = $10, confirmed_at = $11, expires_at = $12, refunded_at = $13
		WHERE id = $1
	`, p.ID.String(), string(p.Status), string(p.Method), p.PhoneNumber, p.TransactionReference,
		p.ProviderReference, p.ErrorCode, p.ErrorMessage,
		p.Note, nullAgent(p.ConfirmedBy), p.ConfirmedAt, p.ExpiresAt, p.RefundedAt)
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute payment: %w", err)
	}
	return p, nil
}

const selectPayment = `
	SELECT id, request_id, base_amount, stamp_amount, total_amount,
		method, status, transaction_reference, provider_reference, phone_number,
		error_code, error_message, note, confirmed_by,
		created_at, confirmed_at, expires_at, refunded_at
	FROM payments
`

type paymentRow interface {
	Scan(dest ...any) error
}

func scanPayment(row paymentRow) (*models.Payment, error) {
	var p models.Payment
	var paymentID, requestID, base, stamp, total, method, status string
	var confirmedBy sql.NullString
	var confirmedAt, expiresAt, refundedAt sql.NullTime
	if err := row.Scan(&paymentID, &requestID, &base, &stamp, &total,
		&method, &status, &p.TransactionReference, &p.ProviderReference, &p.PhoneNumber,
		&p.ErrorCode, &p.ErrorMessage, &p.Note, &confirmedBy,
		&p.CreatedAt, &confirmedAt, &expiresAt, &refundedAt); err != nil {
		return nil, err
	}

	var err error
	if p.ID, err = id.ParsePaymentID(paymentID); err != nil {
		return nil, fmt.Errorf("parse stored payment id: %w", err)
	}
	if p.RequestID, err = id.ParseRequestID(requestID); err != nil {
		return nil, fmt.Errorf("parse stored request id: %w", err)
	}
	if p.BaseAmount, err = decimal.NewFromString(base); err != nil {
		return nil, fmt.Errorf("parse stored base amount: %w", err)
	}
	if p.StampAmount, err = decimal.NewFromString(stamp); err != nil {
		return nil, fmt.Errorf("parse stored stamp amount: %w", err)
	}
	if p.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse stored total amount: %w", err)
	}
	p.Method = models.Method(method)
	p.Status = models.Status(status)
	if confirmedBy.Valid {
		if p.ConfirmedBy, err = id.ParseAgentID(confirmedBy.String); err != nil {
			return nil, fmt.Errorf("parse stored confirmer id: %w", err)
		}
	}
	if confirmedAt.Valid {
		p.ConfirmedAt = &confirmedAt.Time
	}
	if expiresAt.Valid {
		p.ExpiresAt = &expiresAt.Time
	}
	if refundedAt.Valid {
		p.RefundedAt = &refundedAt.Time
	}
	return &p, nil
}

func nullAgent(agentID id.AgentID) sql.NullString {
	if agentID.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: agentID.String(), Valid: true}
}
