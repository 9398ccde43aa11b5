package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

// Status is the request workflow state. Transitions are guarded by the
// CanX methods; services never assign Status directly outside ApplyX.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusAwaitingPayment  Status = "AWAITING_PAYMENT"
	StatusPaymentConfirmed Status = "PAYMENT_CONFIRMED"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusDelivered        Status = "DELIVERED"
	StatusCancelled        Status = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Withdrawal is how the requester collects the document.
type Withdrawal string

const (
	WithdrawalCounter Withdrawal = "GUICHET"
	WithdrawalCourier Withdrawal = "COURRIER"
)

// ParseWithdrawal constructs a Withdrawal from external input.
func ParseWithdrawal(s string) (Withdrawal, error) {
	switch Withdrawal(s) {
	case WithdrawalCounter, WithdrawalCourier:
		return Withdrawal(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid withdrawal mode")
}

const (
	MinCopies = 1
	MaxCopies = 10
)

// Request is a citizen's demand for copies of one civil act.
type Request struct {
	ID              id.RequestID
	RequestNumber   string
	TrackingNumber  string
	RequesterID     id.PersonID
	ActID           id.ActID
	ActType         id.ActType
	Variant         id.DocumentVariant
	CopyCount       int
	CommuneID       id.CommuneID
	Status          Status
	Withdrawal      Withdrawal
	DeliveryAddress string
	TotalAmount     decimal.Decimal
	// AmountComputed distinguishes a real zero-cost total from a total
	// that was never priced.
	AmountComputed  bool
	PaymentRequired bool
	ValidatedBy     id.AgentID
	ProcessedBy     id.AgentID
	AgentNote       string
	RejectionReason string
	CreatedAt       time.Time
	ValidatedAt     *time.Time
	ProcessingAt    *time.Time
	DeliveredAt     *time.Time
}

// CreationInput is the payload for creating a request.
type CreationInput struct {
	RequesterID     id.PersonID
	ActID           id.ActID
	ActType         id.ActType
	Variant         id.DocumentVariant
	CopyCount       int
	CommuneID       id.CommuneID
	Withdrawal      Withdrawal
	DeliveryAddress string
}

// Validate checks the creation payload.
func (in *CreationInput) Validate() error {
	fields := make(map[string]string)

	if in.RequesterID.IsZero() {
		fields["requester_id"] = "requester is required"
	}
	if in.ActID.IsZero() {
		fields["act_id"] = "exactly one act reference is required"
	}
	if !in.ActType.IsValid() {
		fields["act_type"] = "invalid act type"
	}
	if !in.Variant.IsValid() {
		fields["document_variant"] = "invalid document variant"
	}
	if in.CopyCount < MinCopies || in.CopyCount > MaxCopies {
		fields["copy_count"] = fmt.Sprintf("copy count must be between %d and %d", MinCopies, MaxCopies)
	}
	if in.CommuneID.IsZero() {
		fields["commune_id"] = "commune is required"
	}
	switch in.Withdrawal {
	case WithdrawalCounter:
	case WithdrawalCourier:
		if strings.TrimSpace(in.DeliveryAddress) == "" {
			fields["delivery_address"] = "delivery address is required for courier withdrawal"
		}
	default:
		fields["withdrawal_mode"] = "invalid withdrawal mode"
	}

	if len(fields) > 0 {
		return dErrors.Validation("invalid request", fields)
	}
	return nil
}

// NewTrackingNumber issues the public tracking identifier handed to the
// requester. Random, not sequential: tracking numbers leak nothing about
// registry volume.
func NewTrackingNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("DEM%d%02d%s", now.Year(), int(now.Month()), suffix)
}

// CanValidate guards the preliminary validation transition.
func (r *Request) CanValidate() error {
	if r.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %s cannot be validated", r.Status)
	}
	return nil
}

// ApplyValidation records the agent's preliminary validation and the
// computed amount. A request that needs no payment skips straight to
// PAYMENT_CONFIRMED.
func (r *Request) ApplyValidation(agentID id.AgentID, total decimal.Decimal, note string, now time.Time) {
	r.TotalAmount = total
	r.AmountComputed = true
	r.ValidatedBy = agentID
	r.AgentNote = note
	r.ValidatedAt = &now
	if r.PaymentRequired {
		r.Status = StatusAwaitingPayment
	} else {
		r.Status = StatusPaymentConfirmed
	}
}

// ApplyFeeWaiver exempts the request from payment. Applied by the
// validating agent before ApplyValidation routes the status, so a waived
// request skips AWAITING_PAYMENT entirely.
func (r *Request) ApplyFeeWaiver() {
	r.PaymentRequired = false
}

// CanConfirmPayment guards the payment confirmation transition.
func (r *Request) CanConfirmPayment() error {
	if r.Status != StatusAwaitingPayment {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %s cannot confirm payment", r.Status)
	}
	return nil
}

// ApplyPaymentConfirmed advances past the payment gate.
func (r *Request) ApplyPaymentConfirmed() {
	r.Status = StatusPaymentConfirmed
}

// CanResetToPending guards the compensating reset after a payment
// failure, expiry, or cancellation.
func (r *Request) CanResetToPending() error {
	if r.Status != StatusAwaitingPayment {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %s cannot reset to pending", r.Status)
	}
	return nil
}

// ApplyResetToPending returns the request to the validation queue after
// its payment fell through.
func (r *Request) ApplyResetToPending() {
	r.Status = StatusPending
}

// CanStartProcessing guards the processing transition.
func (r *Request) CanStartProcessing() error {
	if r.Status != StatusPaymentConfirmed {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %s cannot start processing", r.Status)
	}
	return nil
}

// ApplyProcessing records the agent taking over the request.
func (r *Request) ApplyProcessing(agentID id.AgentID, now time.Time) {
	r.Status = StatusInProgress
	r.ProcessedBy = agentID
	r.ProcessingAt = &now
}

// CanApprove guards approval.
func (r *Request) CanApprove() error {
	if r.Status != StatusInProgress {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %s cannot be approved", r.Status)
	}
	return nil
}

// ApplyApproval marks the request ready for document generation.
func (r *Request) ApplyApproval(note string) {
	r.Status = StatusApproved
	if note != "" {
		r.AgentNote = note
	}
}

// CanReject guards rejection. A request may be rejected while being
// processed or after payment, which is what makes the compensating refund
// necessary.
func (r *Request) CanReject() error {
	switch r.Status {
	case StatusInProgress, StatusPaymentConfirmed:
		return nil
	}
	return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %s cannot be rejected", r.Status)
}

// ApplyRejection records the rejection and its mandatory reason.
func (r *Request) ApplyRejection(reason string) {
	r.Status = StatusRejected
	r.RejectionReason = reason
}

// CanDeliver guards delivery.
func (r *Request) CanDeliver() error {
	if r.Status != StatusApproved {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %s cannot be delivered", r.Status)
	}
	return nil
}

// ApplyDelivery closes the request.
func (r *Request) ApplyDelivery(now time.Time) {
	r.Status = StatusDelivered
	r.DeliveredAt = &now
}

// CanCancel guards requester-initiated cancellation. Only allowed before
// any money has been confirmed.
func (r *Request) CanCancel(by id.PersonID) error {
	if by != r.RequesterID {
		return dErrors.New(dErrors.CodeForbidden, "only the requester may cancel a request")
	}
	switch r.Status {
	case StatusPending, StatusAwaitingPayment:
		return nil
	}
	return dErrors.Newf(dErrors.CodeInvariantViolation, "request in status %s cannot be cancelled", r.Status)
}

// ApplyCancellation closes the request at the requester's demand.
func (r *Request) ApplyCancellation() {
	r.Status = StatusCancelled
}
