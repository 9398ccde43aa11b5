package models

import (
	id "etatcivil/pkg/domain"
)

// Counter is the per-(commune, act type) allocation state. One row per
// scope; stores hold the row lock while the service advances it.
type Counter struct {
	CommuneID          id.CommuneID
	ActType            id.ActType
	LastActNumber      int
	LastRegistryNumber int
	LastRequestNumber  int
	CurrentYear        int
}

// NextActNumber advances the act counter and returns the new sequence
// value. The counter resets when the year rolls over.
func (c *Counter) NextActNumber(year int) int {
	c.rollYear(year)
	c.LastActNumber++
	return c.LastActNumber
}

// NextRegistryNumber advances the registry counter and returns the new
// sequence value. The counter resets when the year rolls over.
func (c *Counter) NextRegistryNumber(year int) int {
	c.rollYear(year)
	c.LastRegistryNumber++
	return c.LastRegistryNumber
}

// NextRequestNumber advances the request counter. Request numbers never
// reset: they stay unique across years within a scope.
func (c *Counter) NextRequestNumber(year int) int {
	c.rollYear(year)
	c.LastRequestNumber++
	return c.LastRequestNumber
}

func (c *Counter) rollYear(year int) {
	if c.CurrentYear == year {
		return
	}
	c.CurrentYear = year
	c.LastActNumber = 0
	c.LastRegistryNumber = 0
}
