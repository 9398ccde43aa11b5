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

// Status is the payment sub-machine state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusConfirmed  Status = "CONFIRMED"
	StatusFailed     Status = "FAILED"
	StatusExpired    Status = "EXPIRED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// Method is the payment channel.
type Method string

const (
	MethodMobileMoney Method = "MOBILE_MONEY"
	MethodCard        Method = "CARTE_BANCAIRE"
	MethodCash        Method = "ESPECES"
)

// ParseMethod constructs a Method from external input.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodMobileMoney, MethodCard, MethodCash:
		return Method(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid payment method")
}

// amountTolerance absorbs rounding drift between the priced breakdown and
// the stored total.
var amountTolerance = decimal.NewFromFloat(0.01)

// Payment is the money side of one request. Exactly one payment row per
// request; re-initiation after failure reuses the row via the workflow
// reset, so history lives in the audit stream.
type Payment struct {
	ID          id.PaymentID
	RequestID   id.RequestID
	BaseAmount  decimal.Decimal
	StampAmount decimal.Decimal
	TotalAmount decimal.Decimal
	Method      Method
	Status      Status
	// TransactionReference is our identifier sent to the gateway.
	TransactionReference string
	// ProviderReference is the gateway's identifier, set once known.
	ProviderReference string
	PhoneNumber       string
	ErrorCode         string
	ErrorMessage      string
	Note              string
	ConfirmedBy       id.AgentID
	CreatedAt         time.Time
	ConfirmedAt       *time.Time
	ExpiresAt         *time.Time
	RefundedAt        *time.Time
}

// NewReference issues a transaction reference for a new payment.
func NewReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("PAY%s%s", now.Format("20060102150405"), suffix)
}

// Validate checks a payment before initiation.
func (p *Payment) Validate() error {
	fields := make(map[string]string)

	if p.RequestID.IsZero() {
		fields["request_id"] = "request is required"
	}
	if !p.TotalAmount.IsPositive() {
		fields["total_amount"] = "amount must be positive"
	}
	if diff := p.BaseAmount.Add(p.StampAmount).Sub(p.TotalAmount).Abs(); diff.GreaterThan(amountTolerance) {
		fields["total_amount"] = "total must equal base amount plus fiscal stamp"
	}
	switch p.Method {
	case MethodMobileMoney:
		if strings.TrimSpace(p.PhoneNumber) == "" {
			fields["phone_number"] = "phone number is required for mobile money"
		}
	case MethodCard, MethodCash:
	default:
		fields["method"] = "invalid payment method"
	}

	if len(fields) > 0 {
		return dErrors.Validation("invalid payment", fields)
	}
	return nil
}

// CanConfirm guards confirmation: only a live payment can be confirmed.
func (p *Payment) CanConfirm() error {
	switch p.Status {
	case StatusPending, StatusInProgress:
		return nil
	}
	return dErrors.Newf(dErrors.CodeInvariantViolation, "payment in status %s cannot be confirmed", p.Status)
}

// ApplyConfirmation records a successful payment.
func (p *Payment) ApplyConfirmation(by id.AgentID, providerRef string, now time.Time) {
	p.Status = StatusConfirmed
	p.ConfirmedBy = by
	if providerRef != "" {
		p.ProviderReference = providerRef
	}
	p.ConfirmedAt = &now
	p.ErrorCode = ""
	p.ErrorMessage = ""
}

// IsLive reports whether the payment can still fail, expire, or be
// cancelled. Terminal payments make those operations no-ops.
func (p *Payment) IsLive() bool {
	switch p.Status {
	case StatusPending, StatusInProgress:
		return true
	}
	return false
}

// ApplyFailure records a gateway failure.
func (p *Payment) ApplyFailure(code, message string) {
	p.Status = StatusFailed
	p.ErrorCode = code
	p.ErrorMessage = message
}

// ApplyExpiry times the payment out.
func (p *Payment) ApplyExpiry() {
	p.Status = StatusExpired
}

// ApplyCancellation abandons the payment.
func (p *Payment) ApplyCancellation() {
	p.Status = StatusCancelled
}

// CanReinitiate guards reuse of the payment row after the previous
// attempt fell through. One payment row per request; attempts are
// distinguished by their transaction references in the audit stream.
func (p *Payment) CanReinitiate() error {
	switch p.Status {
	case StatusFailed, StatusExpired, StatusCancelled:
		return nil
	}
	return dErrors.Newf(dErrors.CodeInvariantViolation, "payment in status %s cannot be re-initiated", p.Status)
}

// ApplyReinitiation resets the row for a fresh attempt.
func (p *Payment) ApplyReinitiation(method Method, phone, ref string, expiresAt *time.Time) {
	p.Status = StatusPending
	p.Method = method
	p.PhoneNumber = phone
	p.TransactionReference = ref
	p.ProviderReference = ""
	p.ErrorCode = ""
	p.ErrorMessage = ""
	p.ConfirmedBy = id.AgentID{}
	p.ConfirmedAt = nil
	p.ExpiresAt = expiresAt
}

// CanRefund guards the compensating refund: only confirmed money can be
// returned.
func (p *Payment) CanRefund() error {
	if p.Status != StatusConfirmed {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "payment in status %s cannot be refunded", p.Status)
	}
	return nil
}

// ApplyRefund records the completed refund.
func (p *Payment) ApplyRefund(now time.Time) {
	p.Status = StatusRefunded
	p.RefundedAt = &now
}
