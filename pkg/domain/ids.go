package domain

import (
	"github.com/google/uuid"

	dErrors "etatcivil/pkg/domain-errors"
)

// Typed identifiers for the main aggregates. Construct via the ParseX
// helpers at trust boundaries; direct casting bypasses validation.
type (
	CommuneID uuid.UUID
	PersonID  uuid.UUID
	ActID     uuid.UUID
	RequestID uuid.UUID
	PaymentID uuid.UUID
	AgentID   uuid.UUID
)

func (id CommuneID) String() string { return uuid.UUID(id).String() }
func (id PersonID) String() string  { return uuid.UUID(id).String() }
func (id ActID) String() string     { return uuid.UUID(id).String() }
func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id PaymentID) String() string { return uuid.UUID(id).String() }
func (id AgentID) String() string   { return uuid.UUID(id).String() }

func (id CommuneID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id PersonID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ActID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id AgentID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

func NewCommuneID() CommuneID { return CommuneID(uuid.New()) }
func NewPersonID() PersonID   { return PersonID(uuid.New()) }
func NewActID() ActID         { return ActID(uuid.New()) }
func NewRequestID() RequestID { return RequestID(uuid.New()) }
func NewPaymentID() PaymentID { return PaymentID(uuid.New()) }
func NewAgentID() AgentID     { return AgentID(uuid.New()) }

func ParseCommuneID(s string) (CommuneID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CommuneID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid commune id")
	}
	return CommuneID(u), nil
}

func ParsePersonID(s string) (PersonID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PersonID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid person id")
	}
	return PersonID(u), nil
}

func ParseActID(s string) (ActID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ActID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid act id")
	}
	return ActID(u), nil
}

func ParseRequestID(s string) (RequestID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RequestID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid request id")
	}
	return RequestID(u), nil
}

func ParsePaymentID(s string) (PaymentID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PaymentID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid payment id")
	}
	return PaymentID(u), nil
}

func ParseAgentID(s string) (AgentID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return AgentID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid agent id")
	}
	return AgentID(u), nil
}
