package models

import (
	"strings"
	"time"

	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

// Act is a registered civil-status record. Numbering is minted exactly
// once at registration; the record is immutable afterwards.
type Act struct {
	ID             id.ActID
	Type           id.ActType
	ActNumber      string
	RegistryNumber string
	RegistryPage   string
	CommuneID      id.CommuneID
	SubjectName    string
	SubjectGiven   string
	// Spouse fields are set for marriage acts only.
	SpouseName   string
	SpouseGiven  string
	EventDate    time.Time
	RegisteredBy id.AgentID
	// DegradedNumber marks identifiers issued through the fallback path;
	// these acts need operator regularization.
	DegradedNumber bool
	CreatedAt      time.Time
}

// RegistrationInput is the validated payload for registering an act.
type RegistrationInput struct {
	Type         id.ActType
	CommuneID    id.CommuneID
	SubjectName  string
	SubjectGiven string
	SpouseName   string
	SpouseGiven  string
	EventDate    time.Time
}

// Validate checks the registration payload. Field messages are collected
// so a citizen-facing form can show them all at once.
func (in *RegistrationInput) Validate(now time.Time) error {
	fields := make(map[string]string)

	if !in.Type.IsValid() {
		fields["type"] = "invalid act type"
	}
	if in.CommuneID.IsZero() {
		fields["commune_id"] = "commune is required"
	}
	if strings.TrimSpace(in.SubjectName) == "" {
		fields["subject_name"] = "subject name is required"
	}
	if strings.TrimSpace(in.SubjectGiven) == "" {
		fields["subject_given"] = "subject given names are required"
	}
	if in.EventDate.IsZero() {
		fields["event_date"] = "event date is required"
	} else if in.EventDate.After(now) {
		fields["event_date"] = "event date cannot be in the future"
	}

	if in.Type == id.ActMarriage {
		if strings.TrimSpace(in.SpouseName) == "" {
			fields["spouse_name"] = "spouse name is required"
		}
		if strings.TrimSpace(in.SpouseGiven) == "" {
			fields["spouse_given"] = "spouse given names are required"
		}
		if sameSubject(in.SubjectName, in.SubjectGiven, in.SpouseName, in.SpouseGiven) {
			fields["spouse_name"] = "spouses must be two distinct persons"
		}
	} else if in.SpouseName != "" || in.SpouseGiven != "" {
		fields["spouse_name"] = "spouse fields are only valid for marriage acts"
	}

	if len(fields) > 0 {
		return dErrors.Validation("invalid act registration", fields)
	}
	return nil
}

func sameSubject(name1, given1, name2, given2 string) bool {
	norm := func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
	return norm(name1) == norm(name2) && norm(given1) == norm(given2)
}
