package service

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	id "etatcivil/pkg/domain"
)

// Identifier formats are persisted in legal records and must never change.
//
//	act number      ACTENAISS2024000123
//	registry number REG-NAISSANCE-2024-012
//	registry page   P002
//	request number  DEM-NAI-2024-00042-KON
//	fallback        ACTENAISS-20240317143052-9F3A1C4B

func formatActNumber(actType id.ActType, year, seq int) string {
	return fmt.Sprintf("%s%d%06d", actType.NumberPrefix(), year, seq)
}

func formatRegistryNumber(actType id.ActType, year, seq int) string {
	return fmt.Sprintf("REG-%s-%d-%03d", actType, year, seq)
}

// RegistryPage maps a registry sequence value to its page label. Ten acts
// per page, one-based.
func RegistryPage(seq int) string {
	return fmt.Sprintf("P%03d", ((seq-1)/10)+1)
}

func formatRequestNumber(actType id.ActType, year, seq int, surname string) string {
	number := fmt.Sprintf("DEM-%s-%d-%05d", actType.ShortCode(), year, seq)
	if fragment := nameFragment(surname); fragment != "" {
		number += "-" + fragment
	}
	return number
}

// fallbackNumber issues a degraded identifier when the counter is
// unreachable: unique by construction, never sequential.
func fallbackNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102150405"), randomSuffix())
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
}

// nameFragment extracts up to three letters from a surname for embedding
// in request numbers. Non-letters are dropped; empty input yields no
// fragment.
func nameFragment(surname string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(surname)) {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(r)
		if b.Len() == 3 {
			break
		}
	}
	return b.String()
}
