package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "etatcivil/pkg/domain"
)

// Tariff is one price-table entry. The key is derived from (act type,
// document variant); only one active entry may exist per key.
type Tariff struct {
	Key         string
	ActType     id.ActType
	Variant     id.DocumentVariant
	UnitPrice   decimal.Decimal
	FiscalStamp decimal.Decimal
	Active      bool
	AppliedFrom time.Time
}

// NewTariff builds an active tariff entry for an (act type, variant) pair.
func NewTariff(actType id.ActType, variant id.DocumentVariant, unitPrice, fiscalStamp decimal.Decimal, appliedFrom time.Time) *Tariff {
	return &Tariff{
		Key:         id.TariffKey(actType, variant),
		ActType:     actType,
		Variant:     variant,
		UnitPrice:   unitPrice,
		FiscalStamp: fiscalStamp,
		Active:      true,
		AppliedFrom: appliedFrom,
	}
}

// Quote prices a request for the given number of copies. The fiscal stamp
// is charged once per request, not per copy.
func (t *Tariff) Quote(copies int) Quote {
	base := t.UnitPrice.Mul(decimal.NewFromInt(int64(copies)))
	return Quote{
		UnitPrice:   t.UnitPrice,
		Copies:      copies,
		BaseAmount:  base,
		StampAmount: t.FiscalStamp,
		TotalAmount: base.Add(t.FiscalStamp),
	}
}

// Quote is a priced breakdown for one request.
type Quote struct {
	UnitPrice   decimal.Decimal
	Copies      int
	BaseAmount  decimal.Decimal
	StampAmount decimal.Decimal
	TotalAmount decimal.Decimal
}
