package tariff

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"etatcivil/internal/tariff/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

// PostgresStore persists the price table in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tariff store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindActiveByKey returns the single active tariff for a key, or
// sentinel.ErrNotFound when pricing is not configured.
func (s *PostgresStore) FindActiveByKey(ctx context.Context, key string) (*models.Tariff, error) {
	query := `
		SELECT tariff_key, unit_price, fiscal_stamp, active, applied_from
		FROM tariffs
		WHERE tariff_key = $1 AND active
	`
	tariff, err := scanTariff(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active tariff: %w", err)
	}
	return tariff, nil
}

// Upsert writes a tariff entry, deactivating any previously active entry
// for the same key when the new one is active.
func (s *PostgresStore) Upsert(ctx context.Context, tariff *models.Tariff) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tariff: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if tariff.Active {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tariffs SET active = FALSE WHERE tariff_key = $1 AND active`,
			tariff.Key); err != nil {
			return fmt.Errorf("deactivate previous tariff: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tariffs (tariff_key, unit_price, fiscal_stamp, active, applied_from)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tariff_key, applied_from) DO UPDATE SET
			unit_price = EXCLUDED.unit_price,
			fiscal_stamp = EXCLUDED.fiscal_stamp,
			active = EXCLUDED.active
	`, tariff.Key, tariff.UnitPrice.String(), tariff.FiscalStamp.String(), tariff.Active, tariff.AppliedFrom)
	if err != nil {
		return fmt.Errorf("upsert tariff: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tariff: %w", err)
	}
	return nil
}

type tariffRow interface {
	Scan(dest ...any) error
}

func scanTariff(row tariffRow) (*models.Tariff, error) {
	var tariff models.Tariff
	var unitPrice, fiscalStamp string
	if err := row.Scan(&tariff.Key, &unitPrice, &fiscalStamp, &tariff.Active, &tariff.AppliedFrom); err != nil {
		return nil, err
	}
	var err error
	if tariff.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("parse unit price: %w", err)
	}
	if tariff.FiscalStamp, err = decimal.NewFromString(fiscalStamp); err != nil {
		return nil, fmt.Errorf("parse fiscal stamp: %w", err)
	}
	tariff.ActType, tariff.Variant = splitKey(tariff.Key)
	return &tariff, nil
}

func splitKey(key string) (id.ActType, id.DocumentVariant) {
	for _, actType := range []id.ActType{id.ActBirth, id.ActMarriage, id.ActDeath} {
		prefix := string(actType) + "_"
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			return actType, id.DocumentVariant(key[len(prefix):])
		}
	}
	return "", ""
}
