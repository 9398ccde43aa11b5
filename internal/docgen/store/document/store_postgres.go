package document

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"etatcivil/internal/docgen/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

// PostgresStore persists generated-document metadata in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed document store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert writes document metadata, keyed by request. Regenerating for the
// same request replaces the previous record, so concurrent delivery
// attempts cannot leave duplicate rows.
func (s *PostgresStore) Upsert(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO generated_documents (id, request_id, file_name, content_type, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (request_id) DO UPDATE SET
			id           = EXCLUDED.id,
			file_name    = EXCLUDED.file_name,
			content_type = EXCLUDED.content_type,
			signature    = EXCLUDED.signature,
			created_at   = EXCLUDED.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		doc.ID.String(), doc.RequestID.String(), doc.FileName, doc.ContentType, doc.Signature, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// FindByRequestID retrieves the document generated for a request.
func (s *PostgresStore) FindByRequestID(ctx context.Context, requestID id.RequestID) (*models.Document, error) {
	query := `
		SELECT id, request_id, file_name, content_type, signature, created_at
		FROM generated_documents
		WHERE request_id = $1
	`
	var doc models.Document
	var docID, reqID string
	err := s.db.QueryRowContext(ctx, query, requestID.String()).
		Scan(&docID, &reqID, &doc.FileName, &doc.ContentType, &doc.Signature, &doc.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document by request: %w", err)
	}
	if doc.ID, err = uuid.Parse(docID); err != nil {
		return nil, fmt.Errorf("parse stored document id: %w", err)
	}
	if doc.RequestID, err = id.ParseRequestID(reqID); err != nil {
		return nil, fmt.Errorf("parse stored request id: %w", err)
	}
	return &doc, nil
}
