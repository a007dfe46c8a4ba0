package domain

import (
	"context"
	"time"
)

// Provider names a supported payment gateway.
type Provider string

const (
	ProviderClick Provider = "click"
	ProviderPayme Provider = "payme"
)

// DefaultProvider is used when the caller does not name a gateway.
const DefaultProvider = ProviderClick

// Validate reports whether the value is a member of the closed provider set.
func (p Provider) Validate() bool {
	return p == ProviderClick || p == ProviderPayme
}

// ProviderResponse is the raw shape a gateway adapter returns. Field presence
// is inconsistent by design: the gateway composes two independent sub-steps
// (invoice pre-registration and checkout URL generation), and a partial
// failure of the first can still yield a usable PaymentURL alongside
// Success=false. Normalization of this shape lives in the app package.
type ProviderResponse struct {
	Success         *bool   `json:"success,omitempty"`
	PaymentURL      string  `json:"payment_url,omitempty"`
	InvoiceID       int64   `json:"invoice_id,omitempty"`
	MerchantTransID string  `json:"merchant_trans_id,omitempty"`
	Amount          float64 `json:"amount,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	ErrorCode       int     `json:"error_code,omitempty"`
	Error           string  `json:"error,omitempty"`
	ErrorNote       string  `json:"error_note,omitempty"`
	UserMessage     string  `json:"user_message,omitempty"`
	Detail          string  `json:"detail,omitempty"`
}

// PaymentOutcome is the normalized result of a gateway invocation. Success
// with an empty PaymentURL is possible (a response with no error indicators
// and no URL normalizes to success); callers that need to redirect must treat
// that case as a failure.
type PaymentOutcome struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url,omitempty"`
	ErrorCode     int    `json:"error_code,omitempty"`
	Message       string `json:"message,omitempty"`
}

// WebhookEvent is a verified, parsed gateway webhook notification.
type WebhookEvent struct {
	Provider        Provider
	MerchantTransID string
	Status          TransactionStatus
	PaidAmount      float64
	OccurredAt      time.Time
	Data            map[string]interface{}
}

// GatewayAdapter abstracts one hosted-checkout payment gateway.
type GatewayAdapter interface {
	Name() Provider

	// CreateCheckout runs the gateway's invoice pre-registration and checkout
	// URL generation for the transaction and returns the raw gateway response.
	// A non-nil error means the gateway could not be reached at all; gateway
	// business failures are reported inside the ProviderResponse.
	CreateCheckout(ctx context.Context, tx *Transaction) (*ProviderResponse, error)

	// HandleWebhookEvent verifies the webhook signature and parses the raw
	// payload into a WebhookEvent.
	HandleWebhookEvent(ctx context.Context, rawPayload []byte, signature string) (*WebhookEvent, error)
}
