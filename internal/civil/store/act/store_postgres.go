package act

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"etatcivil/internal/civil/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

// PostgresStore persists civil acts in PostgreSQL.
// Pure I/O—numbering and validation belong to the service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed act store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new act. Returns sentinel.ErrDuplicate when the act
// number is already taken.
func (s *PostgresStore) Create(ctx context.Context, act *models.Act) error {
	query := `
		INSERT INTO civil_acts (id, act_type, act_number, registry_number, registry_page,
			commune_id, subject_name, subject_given, spouse_name, spouse_given,
			event_date, registered_by, degraded_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		act.ID.String(), string(act.Type), act.ActNumber, act.RegistryNumber, act.RegistryPage,
		act.CommuneID.String(), act.SubjectName, act.SubjectGiven,
		nullString(act.SpouseName), nullString(act.SpouseGiven),
		act.EventDate, nullAgent(act.RegisteredBy), act.DegradedNumber, act.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("create act: %w", err)
	}
	return nil
}

// FindByID retrieves an act by its identifier.
func (s *PostgresStore) FindByID(ctx context.Context, actID id.ActID) (*models.Act, error) {
	act, err := scanAct(s.db.QueryRowContext(ctx, selectAct+`WHERE id = $1`, actID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find act by id: %w", err)
	}
	return act, nil
}

// FindByActNumber retrieves an act by its legal number.
func (s *PostgresStore) FindByActNumber(ctx context.Context, number string) (*models.Act, error) {
	act, err := scanAct(s.db.QueryRowContext(ctx, selectAct+`WHERE act_number = $1`, number))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find act by number: %w", err)
	}
	return act, nil
}

const selectAct = `
	SELECT id, act_type, act_number, registry_number, registry_page,
		commune_id, subject_name, subject_given, spouse_name, spouse_given,
		event_date, registered_by, degraded_number, created_at
	FROM civil_acts
`

type actRow interface {
	Scan(dest ...any) error
}

func scanAct(row actRow) (*models.Act, error) {
	var act models.Act
	var actID, communeID string
	var actType string
	var spouseName, spouseGiven, registeredBy sql.NullString
	if err := row.Scan(&actID, &actType, &act.ActNumber, &act.RegistryNumber, &act.RegistryPage,
		&communeID, &act.SubjectName, &act.SubjectGiven, &spouseName, &spouseGiven,
		&act.EventDate, &registeredBy, &act.DegradedNumber, &act.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if act.ID, err = id.ParseActID(actID); err != nil {
		return nil, fmt.Errorf("parse stored act id: %w", err)
	}
	if act.CommuneID, err = id.ParseCommuneID(communeID); err != nil {
		return nil, fmt.Errorf("parse stored commune id: %w", err)
	}
	act.Type = id.ActType(actType)
	act.SpouseName = spouseName.String
	act.SpouseGiven = spouseGiven.String
	if registeredBy.Valid {
		if act.RegisteredBy, err = id.ParseAgentID(registeredBy.String); err != nil {
			return nil, fmt.Errorf("parse stored agent id: %w", err)
		}
	}
	return &act, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullAgent(agentID id.AgentID) sql.NullString {
	if agentID.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: agentID.String(), Valid: true}
}
