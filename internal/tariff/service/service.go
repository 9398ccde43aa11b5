package service

import (
	"context"
	"errors"

	"etatcivil/internal/tariff/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/sentinel"
)

// TariffStore provides read access to the price table.
type TariffStore interface {
	FindActiveByKey(ctx context.Context, key string) (*models.Tariff, error)
	Upsert(ctx context.Context, tariff *models.Tariff) error
}

// Service prices document requests against the active tariff table.
type Service struct {
	tariffs TariffStore
}

// New constructs a tariff Service.
func New(tariffs TariffStore) *Service {
	return &Service{tariffs: tariffs}
}

// Quote prices a request. Missing pricing is a hard stop for validation:
// a request must never move to AWAITING_PAYMENT with an unpriced amount.
func (s *Service) Quote(ctx context.Context, actType id.ActType, variant id.DocumentVariant, copies int) (models.Quote, error) {
	if copies < 1 {
		return models.Quote{}, dErrors.New(dErrors.CodeInvalidInput, "copy count must be at least 1")
	}

	key := id.TariffKey(actType, variant)
	tariff, err := s.tariffs.FindActiveByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Quote{}, dErrors.Newf(dErrors.CodePricingUnavailable, "no active tariff for %s", key)
		}
		return models.Quote{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up tariff")
	}
	return tariff.Quote(copies), nil
}

// SetTariff installs a tariff entry, replacing any active entry for the
// same key.
func (s *Service) SetTariff(ctx context.Context, tariff *models.Tariff) error {
	if tariff == nil {
		return dErrors.New(dErrors.CodeBadRequest, "tariff is required")
	}
	if !tariff.ActType.IsValid() || !tariff.Variant.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid tariff key")
	}
	if tariff.UnitPrice.IsNegative() || tariff.FiscalStamp.IsNegative() {
		return dErrors.New(dErrors.CodeInvalidInput, "tariff amounts must not be negative")
	}
	if err := s.tariffs.Upsert(ctx, tariff); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store tariff")
	}
	return nil
}
