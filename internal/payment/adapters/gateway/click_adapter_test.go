package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
)

const testSigningSecret = "test-webhook-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signPayload(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func testTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:              "tx-1",
		MerchantTransID: "mt-1",
		Amount:          150000,
		Currency:        "UZS",
	}
}

func newClickAdapterForServer(server *httptest.Server) *ClickAdapter {
	return NewClickAdapter(discardLogger(), server.URL, "https://my.click.uz/services/pay",
		"merchant-1", "service-1", "secret-key", testSigningSecret, server.Client())
}

func TestClickAdapter_CreateCheckout_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/invoice/create", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Auth"))

		var req clickInvoiceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mt-1", req.MerchantTransID)
		assert.Equal(t, float64(150000), req.Amount)

		json.NewEncoder(w).Encode(clickInvoiceResponse{ErrorCode: 0, InvoiceID: 42})
	}))
	defer server.Close()

	adapter := newClickAdapterForServer(server)
	resp, err := adapter.CreateCheckout(context.Background(), testTransaction())

	require.NoError(t, err)
	require.NotNil(t, resp.Success)
	assert.True(t, *resp.Success)
	assert.Equal(t, int64(42), resp.InvoiceID)
	assert.Contains(t, resp.PaymentURL, "https://my.click.uz/services/pay/?")
	assert.Contains(t, resp.PaymentURL, "transaction_param=mt-1")
	assert.Contains(t, resp.PaymentURL, "service_id=service-1")
	assert.Contains(t, resp.PaymentURL, "amount=150000.00")
}

// Invoice failure still carries the locally built checkout URL so the caller
// can decide whether the payment can proceed anyway.
func TestClickAdapter_CreateCheckout_InvoiceErrorKeepsPaymentURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(clickInvoiceResponse{ErrorCode: -9, ErrorNote: "merchant blocked"})
	}))
	defer server.Close()

	adapter := newClickAdapterForServer(server)
	resp, err := adapter.CreateCheckout(context.Background(), testTransaction())

	require.NoError(t, err)
	require.NotNil(t, resp.Success)
	assert.False(t, *resp.Success)
	assert.Equal(t, -9, resp.ErrorCode)
	assert.Equal(t, "merchant blocked", resp.ErrorNote)
	assert.NotEmpty(t, resp.PaymentURL)
}

func TestClickAdapter_CreateCheckout_Non2xxKeepsPaymentURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error_code":0}`))
	}))
	defer server.Close()

	adapter := newClickAdapterForServer(server)
	resp, err := adapter.CreateCheckout(context.Background(), testTransaction())

	require.NoError(t, err)
	assert.False(t, *resp.Success)
	assert.Equal(t, domain.ErrCodeGeneric, resp.ErrorCode)
	assert.NotEmpty(t, resp.PaymentURL)
}

func TestClickAdapter_CreateCheckout_ServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	adapter := newClickAdapterForServer(server)
	resp, err := adapter.CreateCheckout(context.Background(), testTransaction())

	require.NoError(t, err)
	assert.False(t, *resp.Success)
	assert.Equal(t, "Invoice service unreachable", resp.ErrorNote)
	assert.NotEmpty(t, resp.PaymentURL)
}

func TestClickAdapter_HandleWebhookEvent_Completed(t *testing.T) {
	adapter := NewClickAdapter(discardLogger(), "http://unused", "https://my.click.uz/services/pay",
		"merchant-1", "service-1", "secret-key", testSigningSecret, nil)

	payload := []byte(`{"click_trans_id":7,"merchant_trans_id":"mt-1","status":"success","amount":150000}`)
	event, err := adapter.HandleWebhookEvent(context.Background(), payload, signPayload(payload))

	require.NoError(t, err)
	assert.Equal(t, domain.ProviderClick, event.Provider)
	assert.Equal(t, "mt-1", event.MerchantTransID)
	assert.Equal(t, domain.TransactionStatusCompleted, event.Status)
	assert.Equal(t, float64(150000), event.PaidAmount)
}

func TestClickAdapter_HandleWebhookEvent_StatusMapping(t *testing.T) {
	adapter := NewClickAdapter(discardLogger(), "http://unused", "https://my.click.uz/services/pay",
		"merchant-1", "service-1", "secret-key", testSigningSecret, nil)

	cases := map[string]domain.TransactionStatus{
		"completed": domain.TransactionStatusCompleted,
		"paid":      domain.TransactionStatusCompleted,
		"failed":    domain.TransactionStatusFailed,
		"error":     domain.TransactionStatusFailed,
		"cancelled": domain.TransactionStatusExpired,
		"expired":   domain.TransactionStatusExpired,
	}
	for raw, want := range cases {
		payload := []byte(`{"merchant_trans_id":"mt-1","status":"` + raw + `"}`)
		event, err := adapter.HandleWebhookEvent(context.Background(), payload, signPayload(payload))
		require.NoError(t, err, "status %q", raw)
		assert.Equal(t, want, event.Status, "status %q", raw)
	}
}

func TestClickAdapter_HandleWebhookEvent_BadSignature(t *testing.T) {
	adapter := NewClickAdapter(discardLogger(), "http://unused", "https://my.click.uz/services/pay",
		"merchant-1", "service-1", "secret-key", testSigningSecret, nil)

	payload := []byte(`{"merchant_trans_id":"mt-1","status":"success"}`)
	_, err := adapter.HandleWebhookEvent(context.Background(), payload, "deadbeef")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook signature verification failed")
}

func TestClickAdapter_HandleWebhookEvent_UnknownStatus(t *testing.T) {
	adapter := NewClickAdapter(discardLogger(), "http://unused", "https://my.click.uz/services/pay",
		"merchant-1", "service-1", "secret-key", testSigningSecret, nil)

	payload := []byte(`{"merchant_trans_id":"mt-1","status":"limbo"}`)
	_, err := adapter.HandleWebhookEvent(context.Background(), payload, signPayload(payload))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown Click webhook status")
}

func TestClickAdapter_HandleWebhookEvent_MissingMerchantTransID(t *testing.T) {
	adapter := NewClickAdapter(discardLogger(), "http://unused", "https://my.click.uz/services/pay",
		"merchant-1", "service-1", "secret-key", testSigningSecret, nil)

	payload := []byte(`{"status":"success"}`)
	_, err := adapter.HandleWebhookEvent(context.Background(), payload, signPayload(payload))

	require.Error(t, err)
}
