// Package gateway holds the external payment provider port. The wire
// protocol of any concrete provider stays behind this interface.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// InitiationRequest asks the provider to open a payment session.
type InitiationRequest struct {
	TransactionReference string
	Amount               decimal.Decimal
	Currency             string
	Method               string
	PhoneNumber          string
	Description          string
	NotifyURL            string
}

// InitiationResponse is the provider's session handle.
type InitiationResponse struct {
	ProviderReference string
	RedirectURL       string
}

// Gateway is the provider port.
type Gateway interface {
	InitiatePayment(ctx context.Context, req InitiationRequest) (InitiationResponse, error)
	RefundPayment(ctx context.Context, providerRef string, amount decimal.Decimal) error
}
