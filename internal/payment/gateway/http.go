package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"etatcivil/internal/platform/config"
	dErrors "etatcivil/pkg/domain-errors"
)

// HTTPGateway talks JSON over HTTPS to the configured provider.
type HTTPGateway struct {
	cfg    config.GatewayConfig
	client *http.Client
}

// NewHTTP constructs the provider adapter from configuration.
func NewHTTP(cfg config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type initiateBody struct {
	SiteID        string `json:"site_id"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Channel       string `json:"channel"`
	PhoneNumber   string `json:"customer_phone_number,omitempty"`
	Description   string `json:"description"`
	NotifyURL     string `json:"notify_url"`
}

type initiateReply struct {
	PaymentToken string `json:"payment_token"`
	PaymentURL   string `json:"payment_url"`
	Message      string `json:"message"`
}

// InitiatePayment opens a payment session with the provider.
func (g *HTTPGateway) InitiatePayment(ctx context.Context, req InitiationRequest) (InitiationResponse, error) {
	notifyURL := req.NotifyURL
	if notifyURL == "" {
		notifyURL = g.cfg.NotifyURL
	}
	body := initiateBody{
		SiteID:        g.cfg.SiteID,
		TransactionID: req.TransactionReference,
		Amount:        req.Amount.StringFixed(2),
		Currency:      req.Currency,
		Channel:       req.Method,
		PhoneNumber:   req.PhoneNumber,
		Description:   req.Description,
		NotifyURL:     notifyURL,
	}
	var reply initiateReply
	if err := g.post(ctx, "/v2/payment", body, &reply); err != nil {
		return InitiationResponse{}, err
	}
	if reply.PaymentToken == "" {
		return InitiationResponse{}, dErrors.Newf(dErrors.CodeUnavailable, "gateway rejected initiation: %s", reply.Message)
	}
	return InitiationResponse{
		ProviderReference: reply.PaymentToken,
		RedirectURL:       reply.PaymentURL,
	}, nil
}

type refundBody struct {
	SiteID       string `json:"site_id"`
	PaymentToken string `json:"payment_token"`
	Amount       string `json:"amount"`
}

// RefundPayment asks the provider to return confirmed money.
func (g *HTTPGateway) RefundPayment(ctx context.Context, providerRef string, amount decimal.Decimal) error {
	body := refundBody{
		SiteID:       g.cfg.SiteID,
		PaymentToken: providerRef,
		Amount:       amount.StringFixed(2),
	}
	return g.post(ctx, "/v2/payment/refund", body, &struct{}{})
}

func (g *HTTPGateway) post(ctx context.Context, path string, body, reply any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return dErrors.Newf(dErrors.CodeUnavailable, "gateway returned %d: %s", resp.StatusCode, string(detail))
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
