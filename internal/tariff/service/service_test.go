package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"etatcivil/internal/tariff/models"
	"etatcivil/internal/tariff/store/tariff"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

type TariffServiceSuite struct {
	suite.Suite
	store   *tariff.MemoryStore
	service *Service
	ctx     context.Context
}

func (s *TariffServiceSuite) SetupTest() {
	s.store = tariff.NewMemory()
	s.service = New(s.store)
	s.ctx = context.Background()
}

func TestTariffServiceSuite(t *testing.T) {
	suite.Run(t, new(TariffServiceSuite))
}

func (s *TariffServiceSuite) install(actType id.ActType, variant id.DocumentVariant, unit, stamp string) {
	s.T().Helper()
	entry := models.NewTariff(actType, variant,
		decimal.RequireFromString(unit), decimal.RequireFromString(stamp),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.service.SetTariff(s.ctx, entry))
}

func (s *TariffServiceSuite) TestQuoteChargesStampOncePerRequest() {
	s.install(id.ActBirth, id.VariantFullCopy, "500", "200")

	quote, err := s.service.Quote(s.ctx, id.ActBirth, id.VariantFullCopy, 3)
	s.Require().NoError(err)
	s.True(quote.BaseAmount.Equal(decimal.RequireFromString("1500")), "base %s", quote.BaseAmount)
	s.True(quote.StampAmount.Equal(decimal.RequireFromString("200")))
	s.True(quote.TotalAmount.Equal(decimal.RequireFromString("1700")), "total %s", quote.TotalAmount)
}

func (s *TariffServiceSuite) TestQuoteMissingTariffIsPricingUnavailable() {
	_, err := s.service.Quote(s.ctx, id.ActMarriage, id.VariantCertificate, 1)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePricingUnavailable))
}

func (s *TariffServiceSuite) TestQuoteIgnoresInactiveTariffs() {
	s.install(id.ActDeath, id.VariantCertificate, "300", "100")
	// Installing a replacement deactivates the previous entry.
	entry := models.NewTariff(id.ActDeath, id.VariantCertificate,
		decimal.RequireFromString("350"), decimal.RequireFromString("100"),
		time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.service.SetTariff(s.ctx, entry))

	quote, err := s.service.Quote(s.ctx, id.ActDeath, id.VariantCertificate, 1)
	s.Require().NoError(err)
	s.True(quote.TotalAmount.Equal(decimal.RequireFromString("450")), "total %s", quote.TotalAmount)
}

func (s *TariffServiceSuite) TestQuoteRejectsNonPositiveCopies() {
	s.install(id.ActBirth, id.VariantFullCopy, "500", "200")

	_, err := s.service.Quote(s.ctx, id.ActBirth, id.VariantFullCopy, 0)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *TariffServiceSuite) TestSetTariffRejectsNegativeAmounts() {
	entry := models.NewTariff(id.ActBirth, id.VariantFullCopy,
		decimal.RequireFromString("-1"), decimal.Zero,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	err := s.service.SetTariff(s.ctx, entry)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
