package domain

import dErrors "etatcivil/pkg/domain-errors"

// ActType identifies the kind of civil-status act a record or request
// concerns. The wire values are the legal French vocabulary and are
// persisted inside issued identifiers, so they never change.
type ActType string

const (
	ActBirth    ActType = "NAISSANCE"
	ActMarriage ActType = "MARIAGE"
	ActDeath    ActType = "DECES"
)

var validActTypes = map[ActType]bool{
	ActBirth:    true,
	ActMarriage: true,
	ActDeath:    true,
}

// ParseActType constructs an ActType from external input.
func ParseActType(s string) (ActType, error) {
	t := ActType(s)
	if !validActTypes[t] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid act type")
	}
	return t, nil
}

func (t ActType) IsValid() bool  { return validActTypes[t] }
func (t ActType) String() string { return string(t) }

// NumberPrefix is the act-number prefix encoded into issued identifiers.
func (t ActType) NumberPrefix() string {
	switch t {
	case ActBirth:
		return "ACTENAISS"
	case ActMarriage:
		return "ACTEMARIAGE"
	case ActDeath:
		return "ACTEDECES"
	}
	return "ACTE"
}

// ShortCode is the three-letter fragment used in request numbers.
func (t ActType) ShortCode() string {
	switch t {
	case ActBirth:
		return "NAI"
	case ActMarriage:
		return "MAR"
	case ActDeath:
		return "DEC"
	}
	return "ACT"
}

// DocumentVariant is the kind of document requested against an act.
type DocumentVariant string

const (
	VariantFullCopy                DocumentVariant = "COPIE_INTEGRALE"
	VariantExtractWithFiliation    DocumentVariant = "EXTRAIT_AVEC_FILIATION"
	VariantExtractWithoutFiliation DocumentVariant = "EXTRAIT_SANS_FILIATION"
	VariantCertificate             DocumentVariant = "CERTIFICAT"
)

var validVariants = map[DocumentVariant]bool{
	VariantFullCopy:                true,
	VariantExtractWithFiliation:    true,
	VariantExtractWithoutFiliation: true,
	VariantCertificate:             true,
}

// ParseDocumentVariant constructs a DocumentVariant from external input.
func ParseDocumentVariant(s string) (DocumentVariant, error) {
	v := DocumentVariant(s)
	if !validVariants[v] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid document variant")
	}
	return v, nil
}

func (v DocumentVariant) IsValid() bool  { return validVariants[v] }
func (v DocumentVariant) String() string { return string(v) }

// TariffKey is the lookup key of the price table: act type plus variant,
// e.g. "NAISSANCE_COPIE_INTEGRALE".
func TariffKey(t ActType, v DocumentVariant) string {
	return string(t) + "_" + string(v)
}
