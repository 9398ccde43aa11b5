package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "etatcivil/pkg/domain"
)

func Test_FormatActNumber(t *testing.T) {
	assert.Equal(t, "ACTENAISS2024000001", formatActNumber(id.ActBirth, 2024, 1))
	assert.Equal(t, "ACTEMARIAGE2024000123", formatActNumber(id.ActMarriage, 2024, 123))
	assert.Equal(t, "ACTEDECES2025999999", formatActNumber(id.ActDeath, 2025, 999999))
}

func Test_FormatRegistryNumber(t *testing.T) {
	assert.Equal(t, "REG-NAISSANCE-2024-001", formatRegistryNumber(id.ActBirth, 2024, 1))
	assert.Equal(t, "REG-DECES-2024-042", formatRegistryNumber(id.ActDeath, 2024, 42))
}

func Test_RegistryPage(t *testing.T) {
	// Ten acts per page, one-based.
	assert.Equal(t, "P001", RegistryPage(1))
	assert.Equal(t, "P001", RegistryPage(10))
	assert.Equal(t, "P002", RegistryPage(11))
	assert.Equal(t, "P002", RegistryPage(20))
	assert.Equal(t, "P013", RegistryPage(125))
}

func Test_FormatRequestNumber(t *testing.T) {
	assert.Equal(t, "DEM-NAI-2024-00001-KON", formatRequestNumber(id.ActBirth, 2024, 1, "Koné"))
	assert.Equal(t, "DEM-MAR-2024-00042", formatRequestNumber(id.ActMarriage, 2024, 42, ""))
	assert.Equal(t, "DEM-DEC-2025-00007-YAO", formatRequestNumber(id.ActDeath, 2025, 7, "yao kouassi"))
}

func Test_NameFragment(t *testing.T) {
	assert.Equal(t, "KON", nameFragment("Koné"))
	assert.Equal(t, "YA", nameFragment("Ya"))
	assert.Equal(t, "", nameFragment("   "))
	assert.Equal(t, "OBR", nameFragment("O'Brien"))
}

func Test_FallbackNumber(t *testing.T) {
	now := time.Date(2024, 3, 17, 14, 30, 52, 0, time.UTC)
	number := fallbackNumber("ACTENAISS", now)
	require.Len(t, number, len("ACTENAISS")+1+14+1+8)
	assert.Contains(t, number, "ACTENAISS-20240317143052-")

	// Random suffixes keep degraded numbers unique.
	assert.NotEqual(t, number, fallbackNumber("ACTENAISS", now))
}
