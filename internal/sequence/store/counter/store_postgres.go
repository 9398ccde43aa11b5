package counter

import (
	"context"
	"database/sql"
	"fmt"

	"etatcivil/internal/sequence/models"
	id "etatcivil/pkg/domain"
)

// PostgresStore persists allocation counters in PostgreSQL.
// This store is pure I/O—year resets and sequence advancement belong to the
// service via the Counter model.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed counter store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Allocate runs fn against the counter row for (commune, act type) while
// holding a row lock, then persists the mutated counter. The row is created
// lazily on first allocation for a scope.
func (s *PostgresStore) Allocate(ctx context.Context, communeID id.CommuneID, actType id.ActType, fn func(*models.Counter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin allocate: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	counter, err := lockCounter(ctx, tx, communeID, actType)
	if err == sql.ErrNoRows {
		// First allocation for this scope. The insert may race another
		// allocator; ON CONFLICT makes it a no-op and the re-lock wins.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO act_sequences (commune_id, act_type, last_act_number, last_registry_number, last_request_number, current_year)
			VALUES ($1, $2, 0, 0, 0, 0)
			ON CONFLICT (commune_id, act_type) DO NOTHING
		`, communeID.String(), string(actType))
		if err != nil {
			return fmt.Errorf("create counter: %w", err)
		}
		counter, err = lockCounter(ctx, tx, communeID, actType)
	}
	if err != nil {
		return fmt.Errorf("lock counter: %w", err)
	}

	if err := fn(counter); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE act_sequences
		SET last_act_number = $3, last_registry_number = $4, last_request_number = $5, current_year = $6
		WHERE commune_id = $1 AND act_type = $2
	`, communeID.String(), string(actType),
		counter.LastActNumber, counter.LastRegistryNumber, counter.LastRequestNumber, counter.CurrentYear)
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit allocate: %w", err)
	}
	return nil
}

func lockCounter(ctx context.Context, tx *sql.Tx, communeID id.CommuneID, actType id.ActType) (*models.Counter, error) {
	query := `
		SELECT last_act_number, last_registry_number, last_request_number, current_year
		FROM act_sequences
		WHERE commune_id = $1 AND act_type = $2
		FOR UPDATE
	`
	counter := &models.Counter{CommuneID: communeID, ActType: actType}
	err := tx.QueryRowContext(ctx, query, communeID.String(), string(actType)).
		Scan(&counter.LastActNumber, &counter.LastRegistryNumber, &counter.LastRequestNumber, &counter.CurrentYear)
	if err != nil {
		return nil, err
	}
	return counter, nil
}
