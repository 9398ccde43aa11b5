package audit

import (
	"time"

	id "etatcivil/pkg/domain"
)

// Event is emitted from domain logic to capture key registry actions.
// Keep it transport-agnostic so publishers can fan out.
type Event struct {
	Timestamp time.Time
	Action    Action
	// Subject is the primary entity the action concerns: an act number,
	// a request number, or a payment transaction reference.
	Subject   string
	AgentID   id.AgentID
	Reason    string
	RequestID string
	Severity  Severity
}

// Action names an auditable registry action.
type Action string

const (
	// Act registration
	ActionActRegistered Action = "act_registered"

	// Request workflow
	ActionRequestCreated    Action = "request_created"
	ActionRequestValidated  Action = "request_validated"
	ActionPaymentConfirmed  Action = "request_payment_confirmed"
	ActionProcessingStarted Action = "request_processing_started"
	ActionRequestApproved   Action = "request_approved"
	ActionRequestRejected   Action = "request_rejected"
	ActionRequestDelivered  Action = "request_delivered"
	ActionRequestCancelled  Action = "request_cancelled"

	// Payment sub-machine
	ActionPaymentInitiated Action = "payment_initiated"
	ActionPaymentFailed    Action = "payment_failed"
	ActionPaymentExpired   Action = "payment_expired"
	ActionPaymentCancelled Action = "payment_cancelled"
	ActionPaymentRefunded  Action = "payment_refunded"

	// ActionRefundFailed records a rejection whose compensating refund did
	// not go through: money is now inconsistent with request state and an
	// operator must reconcile. Always Critical.
	ActionRefundFailed Action = "payment_refund_failed"
)

// Severity levels for routing and alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)
