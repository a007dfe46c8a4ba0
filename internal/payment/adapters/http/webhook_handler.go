package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
)

const MaxRequestBodySize = 1 << 20 // 1 MB

// PaymentWebhookProcessor defines the interface required by the WebhookHandler
// for processing gateway events. This makes testing easier by allowing mocks.
type PaymentWebhookProcessor interface {
	HandlePaymentWebhook(ctx context.Context, provider domain.Provider, rawPayload []byte, signature string) error
}

type WebhookHandler struct {
	appService PaymentWebhookProcessor
	logger     *slog.Logger
}

func NewWebhookHandler(appService PaymentWebhookProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		appService: appService,
		logger:     logger.With("component", "webhook_handler"),
	}
}

// RegisterRoutes registers gateway webhook routes with the given router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/{provider}", h.HandlePaymentWebhook)
}

// HandlePaymentWebhook receives callback events from a payment gateway.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	provider := domain.Provider(chi.URLParam(r, "provider"))
	if !provider.Validate() {
		logger.WarnContext(ctx, "Webhook for unknown provider", "provider", provider)
		http.Error(w, "Unknown payment provider", http.StatusNotFound)
		return
	}
	logger = logger.With("provider", provider)

	signature := r.Header.Get("X-Payment-Signature")
	logger = logger.With("signature_present", signature != "")

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	rawPayload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook request body", "error", err)
		if err.Error() == "http: request body too large" {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Error reading request body", http.StatusBadRequest)
		}
		return
	}

	logger.InfoContext(ctx, "Received payment webhook",
		"remote_addr", r.RemoteAddr,
		"content_length", r.ContentLength,
		"payload_size", len(rawPayload))

	if err := h.appService.HandlePaymentWebhook(ctx, provider, rawPayload, signature); err != nil {
		logger.ErrorContext(ctx, "Error processing payment webhook", "error", err)

		errStr := err.Error()
		switch {
		case strings.Contains(errStr, "webhook signature verification failed"),
			strings.Contains(errStr, "invalid signature"):
			http.Error(w, "Webhook signature verification failed", http.StatusBadRequest)
		case strings.Contains(errStr, "payment transaction not found"):
			http.Error(w, "Payment transaction not found", http.StatusNotFound)
		default:
			http.Error(w, "Internal server error processing webhook", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("Webhook received successfully")); err != nil {
		logger.WarnContext(ctx, "Failed to write webhook success response", "error", err)
	}
	logger.InfoContext(ctx, "Payment webhook processed successfully")
}
