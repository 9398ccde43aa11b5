package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"etatcivil/internal/civil/models"
	actstore "etatcivil/internal/civil/store/act"
	seqservice "etatcivil/internal/sequence/service"
	"etatcivil/internal/sequence/store/counter"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/audit"
	"etatcivil/pkg/requestcontext"
)

type CivilServiceSuite struct {
	suite.Suite
	acts      *actstore.MemoryStore
	audit     *capturedAudit
	service   *Service
	ctx       context.Context
	communeID id.CommuneID
	agentID   id.AgentID
}

func (s *CivilServiceSuite) SetupTest() {
	s.acts = actstore.NewMemory()
	s.audit = &capturedAudit{}
	allocator := seqservice.New(counter.NewMemory())
	s.service = New(s.acts, allocator, WithAuditEmitter(s.audit))
	s.communeID = id.NewCommuneID()
	s.agentID = id.NewAgentID()

	ctx := context.Background()
	ctx = requestcontext.WithTime(ctx, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	ctx = requestcontext.WithAgentID(ctx, s.agentID)
	s.ctx = ctx
}

func TestCivilServiceSuite(t *testing.T) {
	suite.Run(t, new(CivilServiceSuite))
}

func birthInput(communeID id.CommuneID) models.RegistrationInput {
	return models.RegistrationInput{
		Type:         id.ActBirth,
		CommuneID:    communeID,
		SubjectName:  "Koné",
		SubjectGiven: "Awa",
		EventDate:    time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
	}
}

func marriageInput(communeID id.CommuneID) models.RegistrationInput {
	return models.RegistrationInput{
		Type:         id.ActMarriage,
		CommuneID:    communeID,
		SubjectName:  "Koné",
		SubjectGiven: "Awa",
		SpouseName:   "Kouassi",
		SpouseGiven:  "Yao",
		EventDate:    time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
	}
}

func (s *CivilServiceSuite) TestRegisterBirthActMintsNumbers() {
	act, err := s.service.RegisterAct(s.ctx, birthInput(s.communeID))
	s.Require().NoError(err)

	s.Equal("ACTENAISS2024000001", act.ActNumber)
	s.Equal("REG-NAISSANCE-2024-001", act.RegistryNumber)
	s.Equal("P001", act.RegistryPage)
	s.Equal(s.agentID, act.RegisteredBy)
	s.False(act.DegradedNumber)

	stored, err := s.service.GetActByNumber(s.ctx, act.ActNumber)
	s.Require().NoError(err)
	s.Equal(act.ID, stored.ID)

	s.Require().Len(s.audit.events, 1)
	s.Equal(audit.ActionActRegistered, s.audit.events[0].Action)
	s.Equal(act.ActNumber, s.audit.events[0].Subject)
}

func (s *CivilServiceSuite) TestRegistrationValidation() {
	s.Run("rejects missing subject name", func() {
		input := birthInput(s.communeID)
		input.SubjectName = ""
		_, err := s.service.RegisterAct(s.ctx, input)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(dErrors.FieldsOf(err), "subject_name")
	})

	s.Run("rejects future event date", func() {
		input := birthInput(s.communeID)
		input.EventDate = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err := s.service.RegisterAct(s.ctx, input)
		s.Require().Error(err)
		s.Contains(dErrors.FieldsOf(err), "event_date")
	})

	s.Run("rejects spouse fields on a birth act", func() {
		input := birthInput(s.communeID)
		input.SpouseName = "Kouassi"
		_, err := s.service.RegisterAct(s.ctx, input)
		s.Require().Error(err)
		s.Contains(dErrors.FieldsOf(err), "spouse_name")
	})
}

func (s *CivilServiceSuite) TestMarriageRequiresTwoDistinctSpouses() {
	input := marriageInput(s.communeID)
	input.SpouseName = input.SubjectName
	input.SpouseGiven = input.SubjectGiven

	_, err := s.service.RegisterAct(s.ctx, input)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(dErrors.FieldsOf(err), "spouse_name")

	// Distinct spouses register fine.
	act, err := s.service.RegisterAct(s.ctx, marriageInput(s.communeID))
	s.Require().NoError(err)
	s.Equal("ACTEMARIAGE2024000001", act.ActNumber)
}

func (s *CivilServiceSuite) TestConcurrentRegistrationsGetUniqueNumbers() {
	const registrations = 20

	var wg sync.WaitGroup
	numbers := make(chan string, registrations)
	for range registrations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			act, err := s.service.RegisterAct(s.ctx, birthInput(s.communeID))
			s.Require().NoError(err)
			numbers <- act.ActNumber
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for number := range numbers {
		s.False(seen[number], "duplicate act number %s", number)
		seen[number] = true
	}
	s.Len(seen, registrations)
}

func (s *CivilServiceSuite) TestGetActNotFound() {
	_, err := s.service.GetAct(s.ctx, id.NewActID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

type capturedAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *capturedAudit) Emit(_ context.Context, event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}
