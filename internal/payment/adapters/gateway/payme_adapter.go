package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
)

// PaymeAdapter talks to the Payme (Paycom) merchant API. The checkout URL is
// a base64-encoded parameter string appended to the hosted checkout host, so
// like Click it can be generated even when the receipt pre-registration call
// fails.
type PaymeAdapter struct {
	logger        *slog.Logger
	httpClient    *http.Client
	apiURL        string
	checkoutURL   string
	merchantID    string
	signingSecret string
}

func NewPaymeAdapter(logger *slog.Logger, apiURL, checkoutURL, merchantID, signingSecret string, httpClient *http.Client) *PaymeAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &PaymeAdapter{
		logger:        logger.With("adapter", "payme"),
		httpClient:    httpClient,
		apiURL:        apiURL,
		checkoutURL:   checkoutURL,
		merchantID:    merchantID,
		signingSecret: signingSecret,
	}
}

func (a *PaymeAdapter) Name() domain.Provider {
	return domain.ProviderPayme
}

// paymeRPCRequest is the JSON-RPC envelope Payme's merchant API uses.
type paymeRPCRequest struct {
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

type paymeRPCResponse struct {
	Result map[string]interface{} `json:"result,omitempty"`
	Error  *paymeRPCError         `json:"error,omitempty"`
}

type paymeRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// buildCheckoutURL encodes "m=<merchant>;ac.order_id=<id>;a=<tiyin>" in
// base64 as Payme's hosted checkout expects. Amounts are sent in tiyin.
func (a *PaymeAdapter) buildCheckoutURL(tx *domain.Transaction) string {
	tiyin := int64(math.Round(tx.Amount * 100))
	params := fmt.Sprintf("m=%s;ac.order_id=%s;a=%d", a.merchantID, tx.MerchantTransID, tiyin)
	return a.checkoutURL + "/" + base64.StdEncoding.EncodeToString([]byte(params))
}

func (a *PaymeAdapter) CreateCheckout(ctx context.Context, tx *domain.Transaction) (*domain.ProviderResponse, error) {
	a.logger.InfoContext(ctx, "PaymeAdapter: CreateCheckout called",
		"transaction_id", tx.ID, "merchant_trans_id", tx.MerchantTransID, "amount", tx.Amount)

	checkoutURL := a.buildCheckoutURL(tx)

	rpcReq := paymeRPCRequest{
		Method: "receipts.create",
		Params: map[string]interface{}{
			"amount": int64(math.Round(tx.Amount * 100)),
			"account": map[string]string{
				"order_id": tx.MerchantTransID,
			},
		},
	}
	reqBytes, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Payme receipt request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create Payme HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Auth", a.merchantID)

	fail := func(code int, note string) *domain.ProviderResponse {
		success := false
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
		a.logger.WarnContext(ctx, "Payme receipt service unreachable, falling back to bare checkout URL",
			"error", err, "transaction_id", tx.ID)
		return fail(domain.ErrCodeGeneric, "Receipt service unreachable"), nil
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to read Payme receipt response", "error", err, "transaction_id", tx.ID)
		return fail(domain.ErrCodeGeneric, "Failed to read receipt response"), nil
	}

	var rpcResp paymeRPCResponse
	if err := json.Unmarshal(respBytes, &rpcResp); err != nil {
		a.logger.WarnContext(ctx, "Failed to parse Payme receipt response", "error", err,
			"status_code", httpResp.StatusCode, "body", string(respBytes))
		return fail(domain.ErrCodeGeneric, "Unparseable receipt response"), nil
	}

	if rpcResp.Error != nil {
		a.logger.WarnContext(ctx, "Payme receipt creation failed",
			"code", rpcResp.Error.Code, "message", rpcResp.Error.Message)
		return fail(rpcResp.Error.Code, rpcResp.Error.Message), nil
	}

	a.logger.InfoContext(ctx, "Payme receipt created", "transaction_id", tx.ID)
	success := true
	return &domain.ProviderResponse{
		Success:         &success,
		PaymentURL:      checkoutURL,
		MerchantTransID: tx.MerchantTransID,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
	}, nil
}

// paymeWebhookPayload is the notification shape Payme posts to our webhook.
type paymeWebhookPayload struct {
	ReceiptID string  `json:"receipt_id"`
	OrderID   string  `json:"order_id"`
	State     int     `json:"state"` // 4 = paid, negative = cancelled/failed
	Amount    float64 `json:"amount"`
}

func (a *PaymeAdapter) HandleWebhookEvent(ctx context.Context, rawPayload []byte, signature string) (*domain.WebhookEvent, error) {
	mac := hmac.New(sha256.New, []byte(a.signingSecret))
	mac.Write(rawPayload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		a.logger.WarnContext(ctx, "Payme webhook signature verification failed")
		return nil, fmt.Errorf("webhook signature verification failed")
	}

	var payload paymeWebhookPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse Payme webhook payload: %w", err)
	}
	if payload.OrderID == "" {
		return nil, fmt.Errorf("payme webhook payload missing order_id")
	}

	var status domain.TransactionStatus
	switch {
	case payload.State == 4:
		status = domain.TransactionStatusCompleted
	case payload.State < 0:
		status = domain.TransactionStatusExpired
	default:
		status = domain.TransactionStatusFailed
	}

	return &domain.WebhookEvent{
		Provider:        domain.ProviderPayme,
		MerchantTransID: payload.OrderID,
		Status:          status,
		PaidAmount:      payload.Amount / 100, // tiyin to so'm
		OccurredAt:      time.Now().UTC(),
		Data: map[string]interface{}{
			"receipt_id": payload.ReceiptID,
			"state":      payload.State,
		},
	}, nil
}
