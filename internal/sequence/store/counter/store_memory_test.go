package counter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"etatcivil/internal/sequence/models"
	id "etatcivil/pkg/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	store     *MemoryStore
	ctx       context.Context
	communeID id.CommuneID
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
	s.communeID = id.NewCommuneID()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) TestCreatesCounterLazily() {
	var got models.Counter
	err := s.store.Allocate(s.ctx, s.communeID, id.ActBirth, func(c *models.Counter) error {
		got = *c
		return nil
	})
	s.Require().NoError(err)
	s.Equal(s.communeID, got.CommuneID)
	s.Equal(id.ActBirth, got.ActType)
	s.Zero(got.LastActNumber)
	s.Zero(got.CurrentYear)
}

func (s *MemoryStoreSuite) TestMutationsPersistAcrossAllocations() {
	err := s.store.Allocate(s.ctx, s.communeID, id.ActBirth, func(c *models.Counter) error {
		c.NextActNumber(2024)
		return nil
	})
	s.Require().NoError(err)

	err = s.store.Allocate(s.ctx, s.communeID, id.ActBirth, func(c *models.Counter) error {
		s.Equal(1, c.LastActNumber)
		s.Equal(2024, c.CurrentYear)
		return nil
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreSuite) TestCallbackErrorRollsBackMutation() {
	boom := errors.New("boom")
	err := s.store.Allocate(s.ctx, s.communeID, id.ActBirth, func(c *models.Counter) error {
		c.NextActNumber(2024)
		return boom
	})
	s.Require().ErrorIs(err, boom)

	err = s.store.Allocate(s.ctx, s.communeID, id.ActBirth, func(c *models.Counter) error {
		s.Zero(c.LastActNumber)
		return nil
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreSuite) TestScopesAreIndependent() {
	err := s.store.Allocate(s.ctx, s.communeID, id.ActBirth, func(c *models.Counter) error {
		c.NextActNumber(2024)
		return nil
	})
	s.Require().NoError(err)

	err = s.store.Allocate(s.ctx, s.communeID, id.ActDeath, func(c *models.Counter) error {
		s.Zero(c.LastActNumber)
		return nil
	})
	s.Require().NoError(err)
}
