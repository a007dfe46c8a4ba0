package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
)

// ClickAdapter talks to the Click merchant API. Creating a checkout is two
// independent sub-steps: invoice pre-registration against the merchant API,
// and checkout URL generation (a local construction from merchant
// credentials). A failed invoice call therefore still yields a usable
// checkout URL; the adapter reports that as success=false with payment_url
// set, and the normalization layer decides what to do with it.
type ClickAdapter struct {
	logger        *slog.Logger
	httpClient    *http.Client
	apiURL        string
	checkoutURL   string
	merchantID    string
	serviceID     string
	secretKey     string
	signingSecret string
}

func NewClickAdapter(logger *slog.Logger, apiURL, checkoutURL, merchantID, serviceID, secretKey, signingSecret string, httpClient *http.Client) *ClickAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ClickAdapter{
		logger:        logger.With("adapter", "click"),
		httpClient:    httpClient,
		apiURL:        apiURL,
		checkoutURL:   checkoutURL,
		merchantID:    merchantID,
		serviceID:     serviceID,
		secretKey:     secretKey,
		signingSecret: signingSecret,
	}
}

func (a *ClickAdapter) Name() domain.Provider {
	return domain.ProviderClick
}

// clickInvoiceRequest is the body for Click's invoice creation endpoint.
type clickInvoiceRequest struct {
	ServiceID       string  `json:"service_id"`
	Amount          float64 `json:"amount"`
	MerchantTransID string  `json:"merchant_trans_id"`
}

type clickInvoiceResponse struct {
	ErrorCode int    `json:"error_code"`
	ErrorNote string `json:"error_note"`
	InvoiceID int64  `json:"invoice_id"`
}

// authHeader builds Click's "merchant_user_id:digest:timestamp" auth value,
// where digest is sha1(timestamp + secret_key).
func (a *ClickAdapter) authHeader() string {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	digest := sha1.Sum([]byte(ts + a.secretKey))
	return a.merchantID + ":" + hex.EncodeToString(digest[:]) + ":" + ts
}

// buildCheckoutURL constructs the hosted-checkout URL for a transaction.
func (a *ClickAdapter) buildCheckoutURL(tx *domain.Transaction) string {
	q := url.Values{}
	q.Set("service_id", a.serviceID)
	q.Set("merchant_id", a.merchantID)
	q.Set("amount", strconv.FormatFloat(tx.Amount, 'f', 2, 64))
	q.Set("transaction_param", tx.MerchantTransID)
	return a.checkoutURL + "/?" + q.Encode()
}

func (a *ClickAdapter) CreateCheckout(ctx context.Context, tx *domain.Transaction) (*domain.ProviderResponse, error) {
	a.logger.InfoContext(ctx, "ClickAdapter: CreateCheckout called",
		"transaction_id", tx.ID, "merchant_trans_id", tx.MerchantTransID, "amount", tx.Amount)

	checkoutURL := a.buildCheckoutURL(tx)

	reqBody := clickInvoiceRequest{
		ServiceID:       a.serviceID,
		Amount:          tx.Amount,
		MerchantTransID: tx.MerchantTransID,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Click invoice request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL+"/invoice/create", bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create Click HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Auth", a.authHeader())

	fail := func(code int, note string) *domain.ProviderResponse {
		success := false
		// The invoice record failed but the checkout URL was still generated;
		// pass both through so the caller can apply its leniency policy.
		return &domain.ProviderResponse{
			Success:         &success,
			PaymentURL:      checkoutURL,
			MerchantTransID: tx.MerchantTransID,
			Amount:          tx.Amount,
			Currency:        tx.Currency,
			ErrorCode:       code,
			ErrorNote:       note,
		}
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		a.logger.WarnContext(ctx, "Click invoice service unreachable, falling back to bare checkout URL",
			"error", err, "transaction_id", tx.ID)
		return fail(domain.ErrCodeGeneric, "Invoice service unreachable"), nil
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to read Click invoice response", "error", err, "transaction_id", tx.ID)
		return fail(domain.ErrCodeGeneric, "Failed to read invoice response"), nil
	}

	var invoiceResp clickInvoiceResponse
	if err := json.Unmarshal(respBytes, &invoiceResp); err != nil {
		a.logger.WarnContext(ctx, "Failed to parse Click invoice response", "error", err,
			"status_code", httpResp.StatusCode, "body", string(respBytes))
		return fail(domain.ErrCodeGeneric, "Unparseable invoice response"), nil
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 || invoiceResp.ErrorCode != 0 {
		a.logger.WarnContext(ctx, "Click invoice creation failed",
			"status_code", httpResp.StatusCode, "error_code", invoiceResp.ErrorCode, "error_note", invoiceResp.ErrorNote)
		code := invoiceResp.ErrorCode
		if code == 0 {
			code = domain.ErrCodeGeneric
		}
		return fail(code, invoiceResp.ErrorNote), nil
	}

	a.logger.InfoContext(ctx, "Click invoice created", "invoice_id", invoiceResp.InvoiceID, "transaction_id", tx.ID)
	success := true
	return &domain.ProviderResponse{
		Success:         &success,
		PaymentURL:      checkoutURL,
		InvoiceID:       invoiceResp.InvoiceID,
		MerchantTransID: tx.MerchantTransID,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
	}, nil
}

// clickWebhookPayload is the notification Click sends after checkout resolves.
type clickWebhookPayload struct {
	ClickTransID    int64   `json:"click_trans_id"`
	MerchantTransID string  `json:"merchant_trans_id"`
	Status          string  `json:"status"`
	Amount          float64 `json:"amount"`
	SignTime        string  `json:"sign_time"`
}

func (a *ClickAdapter) HandleWebhookEvent(ctx context.Context, rawPayload []byte, signature string) (*domain.WebhookEvent, error) {
	mac := hmac.New(sha256.New, []byte(a.signingSecret))
	mac.Write(rawPayload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		a.logger.WarnContext(ctx, "Click webhook signature verification failed")
		return nil, fmt.Errorf("webhook signature verification failed")
	}

	var payload clickWebhookPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse Click webhook payload: %w", err)
	}
	if payload.MerchantTransID == "" {
		return nil, fmt.Errorf("click webhook payload missing merchant_trans_id")
	}

	var status domain.TransactionStatus
	switch payload.Status {
	case "completed", "paid", "success":
		status = domain.TransactionStatusCompleted
	case "failed", "error":
		status = domain.TransactionStatusFailed
	case "cancelled", "expired":
		status = domain.TransactionStatusExpired
	default:
		return nil, fmt.Errorf("unknown Click webhook status: %s", payload.Status)
	}

	occurredAt := time.Now().UTC()
	if payload.SignTime != "" {
		if t, err := time.Parse(time.RFC3339, payload.SignTime); err == nil {
			occurredAt = t
		}
	}

	return &domain.WebhookEvent{
		Provider:        domain.ProviderClick,
		MerchantTransID: payload.MerchantTransID,
		Status:          status,
		PaidAmount:      payload.Amount,
		OccurredAt:      occurredAt,
		Data: map[string]interface{}{
			"click_trans_id": payload.ClickTransID,
			"raw_status":     payload.Status,
		},
	}, nil
}
