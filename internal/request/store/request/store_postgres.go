package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"etatcivil/internal/request/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

// PostgresStore persists document requests in PostgreSQL.
// Pure I/O—workflow guards live in the model, invoked by the service
// through Execute while the row lock is held.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new request. Returns sentinel.ErrDuplicate when the
// request or tracking number is already taken.
func (s *PostgresStore) Create(ctx context.Context, req *models.Request) error {
	query := `
		INSERT INTO requests (id, request_number, tracking_number, requester_id, act_id,
			act_type, document_variant, copy_count, commune_id, status, withdrawal_mode,
			delivery_address, total_amount, amount_computed, payment_required,
			validated_by, processed_by, agent_note, rejection_reason,
			created_at, validated_at, processing_at, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err := s.db.ExecContext(ctx, query,
		req.ID.String(), req.RequestNumber, req.TrackingNumber,
		req.RequesterID.String(), req.ActID.String(),
		string(req.ActType), string(req.Variant), req.CopyCount, req.CommuneID.String(),
		string(req.Status), string(req.Withdrawal), req.DeliveryAddress,
		req.TotalAmount.String(), req.AmountComputed, req.PaymentRequired,
		nullAgent(req.ValidatedBy), nullAgent(req.ProcessedBy),
		req.AgentNote, req.RejectionReason,
		req.CreatedAt, req.ValidatedAt, req.ProcessingAt, req.DeliveredAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// FindByID retrieves a request.
func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	req, err := scanRequest(s.db.QueryRowContext(ctx, selectRequest+`WHERE id = $1`, requestID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request by id: %w", err)
	}
	return req, nil
}

// FindByTrackingNumber retrieves a request by its public tracking number.
func (s *PostgresStore) FindByTrackingNumber(ctx context.Context, number string) (*models.Request, error) {
	req, err := scanRequest(s.db.QueryRowContext(ctx, selectRequest+`WHERE tracking_number = $1`, number))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request by tracking number: %w", err)
	}
	return req, nil
}

// Execute runs validate and mutate against the request while holding its
// row lock, persisting the mutation atomically. A validation error aborts
// without writing.
func (s *PostgresStore) Execute(ctx context.Context, requestID id.RequestID,
	validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute request: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	req, err := scanRequest(tx.QueryRowContext(ctx, selectRequest+`WHERE id = $1 FOR UPDATE`, requestID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock request: %w", err)
	}

	if err := validate(req); err != nil {
		return nil, err
	}
	mutate(req)

	_, err = tx.ExecContext(ctx, `
		UPDATE requests
		SET status = $2, total_amount = $3, amount_computed = $4,
			validated_by = $5, processed_by = $6, agent_note = $7, rejection_reason = $8,
			validated_at = $9, processing_at = $10, delivered_at = $11
		WHERE id = $1
	`, req.ID.String(), string(req.Status), req.TotalAmount.String(), req.AmountComputed,
		nullAgent(req.ValidatedBy), nullAgent(req.ProcessedBy), req.AgentNote, req.RejectionReason,
		req.ValidatedAt, req.ProcessingAt, req.DeliveredAt)
	if err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute request: %w", err)
	}
	return req, nil
}

const selectRequest = `
	SELECT id, request_number, tracking_number, requester_id, act_id,
		act_type, document_variant, copy_count, commune_id, status, withdrawal_mode,
		delivery_address, total_amount, amount_computed, payment_required,
		validated_by, processed_by, agent_note, rejection_reason,
		created_at, validated_at, processing_at, delivered_at
	FROM requests
`

type requestRow interface {
	Scan(dest ...any) error
}

func scanRequest(row requestRow) (*models.Request, error) {
	var req models.Request
	var reqID, requesterID, actID, communeID, actType, variant, status, withdrawal, total string
	var validatedBy, processedBy sql.NullString
	var validatedAt, processingAt, deliveredAt sql.NullTime
	if err := row.Scan(&reqID, &req.RequestNumber, &req.TrackingNumber, &requesterID, &actID,
		&actType, &variant, &req.CopyCount, &communeID, &status, &withdrawal,
		&req.DeliveryAddress, &total, &req.AmountComputed, &req.PaymentRequired,
		&validatedBy, &processedBy, &req.AgentNote, &req.RejectionReason,
		&req.CreatedAt, &validatedAt, &processingAt, &deliveredAt); err != nil {
		return nil, err
	}

	var err error
	if req.ID, err = id.ParseRequestID(reqID); err != nil {
		return nil, fmt.Errorf("parse stored request id: %w", err)
	}
	if req.ActID, err = id.ParseActID(actID); err != nil {
		return nil, fmt.Errorf("parse stored act id: %w", err)
	}
	if req.CommuneID, err = id.ParseCommuneID(communeID); err != nil {
		return nil, fmt.Errorf("parse stored commune id: %w", err)
	}
	if req.RequesterID, err = id.ParsePersonID(requesterID); err != nil {
		return nil, fmt.Errorf("parse stored requester id: %w", err)
	}
	if req.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse stored total amount: %w", err)
	}
	req.ActType = id.ActType(actType)
	req.Variant = id.DocumentVariant(variant)
	req.Status = models.Status(status)
	req.Withdrawal = models.Withdrawal(withdrawal)
	if validatedBy.Valid {
		if req.ValidatedBy, err = id.ParseAgentID(validatedBy.String); err != nil {
			return nil, fmt.Errorf("parse stored validator id: %w", err)
		}
	}
	if processedBy.Valid {
		if req.ProcessedBy, err = id.ParseAgentID(processedBy.String); err != nil {
			return nil, fmt.Errorf("parse stored processor id: %w", err)
		}
	}
	if validatedAt.Valid {
		req.ValidatedAt = &validatedAt.Time
	}
	if processingAt.Valid {
		req.ProcessingAt = &processingAt.Time
	}
	if deliveredAt.Valid {
		req.DeliveredAt = &deliveredAt.Time
	}
	return &req, nil
}

func nullAgent(agentID id.AgentID) sql.NullString {
	if agentID.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: agentID.String(), Valid: true}
}
