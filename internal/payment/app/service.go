package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
	"github.com/ilmiynashr/journal-payments/internal/payment/repository"
)

var ErrPaymentGateway = errors.New("payment gateway error")

// GatewayRegistry resolves a provider name to its adapter.
type GatewayRegistry interface {
	Get(provider domain.Provider) (domain.GatewayAdapter, error)
}

// EventPublisher publishes payment events for the rest of the portal.
// messagebroker.NatsClient satisfies it.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// CreateTransactionInput is the billable context for one payment intent.
type CreateTransactionInput struct {
	UserID               string
	Amount               float64
	Currency             string
	ServiceType          domain.ServiceType
	ArticleID            string
	TranslationRequestID string
}

// StatusCheckResult mirrors the numeric status contract the portal frontend
// consumes.
type StatusCheckResult struct {
	ErrorCode     int    `json:"error_code"`
	ErrorNote     string `json:"error_note"`
	PaymentStatus *int   `json:"payment_status,omitempty"`
}

// PaymentService orchestrates the transaction lifecycle: creation, gateway
// invocation, webhook-driven terminal status, and status reconciliation.
type PaymentService struct {
	transactionRepo repository.TransactionRepository
	gateways        GatewayRegistry
	events          EventPublisher
	logger          *slog.Logger
	defaultCurrency string
}

func NewPaymentService(
	transactionRepo repository.TransactionRepository,
	gateways GatewayRegistry,
	events EventPublisher,
	logger *slog.Logger,
	defaultCurrency string,
) *PaymentService {
	if defaultCurrency == "" {
		defaultCurrency = "UZS"
	}
	return &PaymentService{
		transactionRepo: transactionRepo,
		gateways:        gateways,
		events:          events,
		logger:          logger.With("service", "payment"),
		defaultCurrency: defaultCurrency,
	}
}

// CreateTransaction validates the billable context and persists exactly one
// transaction record. Validation failures are reported before any I/O.
// Callers must not invoke this twice for the same logical intent; retrying a
// failed gateway invocation reuses the id this call returned.
func (s *PaymentService) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*domain.Transaction, error) {
	if in.Amount <= 0 || math.IsInf(in.Amount, 0) || math.IsNaN(in.Amount) {
		return nil, domain.NewValidationError("amount must be a positive finite number")
	}
	if err := in.ServiceType.Validate(); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	articleID := strings.TrimSpace(in.ArticleID)
	translationRequestID := strings.TrimSpace(in.TranslationRequestID)
	if articleID != "" && translationRequestID != "" {
		return nil, domain.NewValidationError("at most one of article and translation_request may be set")
	}

	currency := in.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	tx := &domain.Transaction{
		UserID:      in.UserID,
		Amount:      in.Amount,
		Currency:    currency,
		ServiceType: in.ServiceType,
		Status:      domain.TransactionStatusPending,
	}
	if articleID != "" {
		tx.ArticleID = &articleID
	}
	if translationRequestID != "" {
		tx.TranslationRequestID = &translationRequestID
	}

	created, err := s.transactionRepo.Create(ctx, tx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to create transaction record", "error", err, "user_id", in.UserID)
		return nil, fmt.Errorf("creating transaction: %w", err)
	}
	if created.ID == "" {
		// Defends the initiator guarantee: a nil-error return always carries an id.
		return nil, &domain.PaymentError{
			Kind:    domain.ErrorKindGateway,
			Code:    domain.ErrCodeGeneric,
			Message: "Transaction yaratilmadi. Server javob bermadi.",
		}
	}

	transactionsCreatedCounter.WithLabelValues(string(created.ServiceType)).Inc()
	s.logger.InfoContext(ctx, "Transaction created",
		"transaction_id", created.ID, "service_type", created.ServiceType, "amount", created.Amount)
	return created, nil
}

// ProcessPayment asks the named gateway for a hosted-checkout URL for an
// existing transaction and normalizes whatever comes back. Every failure
// shape collapses into {success:false, error_code, message}; raw transport
// errors never escape.
func (s *PaymentService) ProcessPayment(ctx context.Context, transactionID string, provider domain.Provider) domain.PaymentOutcome {
	if strings.TrimSpace(transactionID) == "" {
		return domain.PaymentOutcome{
			Success:   false,
			ErrorCode: domain.ErrCodeValidation,
			Message:   "transaction id is required",
		}
	}
	if provider == "" {
		provider = domain.DefaultProvider
	}
	if !provider.Validate() {
		return domain.PaymentOutcome{
			Success:       false,
			TransactionID: transactionID,
			ErrorCode:     domain.ErrCodeValidation,
			Message:       fmt.Sprintf("unknown payment provider: %s", provider),
		}
	}

	adapter, err := s.gateways.Get(provider)
	if err != nil {
		s.logger.ErrorContext(ctx, "Gateway adapter not configured", "provider", provider, "error", err)
		return domain.PaymentOutcome{
			Success:       false,
			TransactionID: transactionID,
			ErrorCode:     domain.ErrCodeGeneric,
			Message:       domain.DefaultErrorMessage,
		}
	}

	tx, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PaymentOutcome{
				Success:       false,
				TransactionID: transactionID,
				ErrorCode:     domain.ErrCodeNotFound,
				Message:       "Transaction not found",
			}
		}
		s.logger.ErrorContext(ctx, "Failed to load transaction for payment", "error", err, "transaction_id", transactionID)
		return networkFailure(transactionID)
	}

	start := time.Now()
	resp, err := adapter.CreateCheckout(ctx, tx)
	gatewayRequestDurationHist.WithLabelValues(string(provider)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.ErrorContext(ctx, "Gateway invocation failed", "error", err, "provider", provider, "transaction_id", transactionID)
		gatewayInvocationsCounter.WithLabelValues(string(provider), "network_error").Inc()
		return networkFailure(transactionID)
	}

	outcome := NormalizeResponse(transactionID, resp)
	if outcome.Success {
		gatewayInvocationsCounter.WithLabelValues(string(provider), "success").Inc()
		if resp.Success != nil && !*resp.Success {
			// The leniency override fired; worth a trace in production logs.
			s.logger.WarnContext(ctx, "Gateway reported failure but returned a payment URL, overriding to success",
				"provider", provider, "transaction_id", transactionID, "error_code", resp.ErrorCode)
		}
	} else {
		gatewayInvocationsCounter.WithLabelValues(string(provider), "failure").Inc()
		s.logger.WarnContext(ctx, "Gateway invocation returned failure",
			"provider", provider, "transaction_id", transactionID,
			"error_code", outcome.ErrorCode, "message", outcome.Message)
	}
	return outcome
}

// CheckPaymentStatus maps the backend status of a transaction to the numeric
// code contract: 2 paid, -1 failed, 0 pending; -5 when the transaction does
// not exist; -9 when the lookup itself failed.
func (s *PaymentService) CheckPaymentStatus(ctx context.Context, transactionID string) StatusCheckResult {
	tx, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return StatusCheckResult{ErrorCode: domain.ErrCodeNotFound, ErrorNote: "Transaction not found"}
		}
		s.logger.ErrorContext(ctx, "Failed to check payment status", "error", err, "transaction_id", transactionID)
		return StatusCheckResult{ErrorCode: domain.ErrCodeStatusCheck, ErrorNote: "Failed to check payment status"}
	}

	code := tx.PaymentStatusCode()
	return StatusCheckResult{ErrorCode: 0, ErrorNote: "Success", PaymentStatus: &code}
}

// ListTransactions returns the user's transactions for the portal dashboard.
func (s *PaymentService) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.transactionRepo.ListByUserID(ctx, userID, limit, offset)
}

// paymentEvent is the NATS payload published when a transaction reaches a
// terminal status.
type paymentEvent struct {
	TransactionID string                   `json:"transaction_id"`
	Provider      domain.Provider          `json:"provider"`
	Status        domain.TransactionStatus `json:"status"`
	Amount        float64                  `json:"amount"`
	ServiceType   domain.ServiceType       `json:"service_type"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

// HandlePaymentWebhook verifies and applies a gateway webhook. Terminal
// status is set exclusively here; the orchestration flow only ever observes
// it. Replayed events for an already-terminal transaction are acknowledged
// without effect.
func (s *PaymentService) HandlePaymentWebhook(ctx context.Context, provider domain.Provider, rawPayload []byte, signature string) error {
	adapter, err := s.gateways.Get(provider)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPaymentGateway, err.Error())
	}

	event, err := adapter.HandleWebhookEvent(ctx, rawPayload, signature)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to handle webhook event via adapter", "error", err, "provider", provider)
		return fmt.Errorf("%w: %s", ErrPaymentGateway, err.Error())
	}

	tx, err := s.transactionRepo.GetByMerchantTransID(ctx, event.MerchantTransID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.ErrorContext(ctx, "Webhook for unknown transaction",
				"merchant_trans_id", event.MerchantTransID, "provider", provider)
			return fmt.Errorf("payment transaction not found for merchant trans id %s: %w", event.MerchantTransID, err)
		}
		return fmt.Errorf("database error retrieving transaction: %w", err)
	}

	if tx.Terminal() {
		s.logger.InfoContext(ctx, "Transaction already in a terminal status, webhook idempotent",
			"transaction_id", tx.ID, "status", tx.Status, "event_status", event.Status)
		return nil
	}

	var paidAt *time.Time
	if event.Status == domain.TransactionStatusCompleted {
		t := event.OccurredAt
		paidAt = &t
	}
	if err := s.transactionRepo.UpdateStatus(ctx, tx.ID, event.Status, paidAt); err != nil {
		return fmt.Errorf("updating transaction status: %w", err)
	}
	webhookEventsCounter.WithLabelValues(string(provider), string(event.Status)).Inc()
	s.logger.InfoContext(ctx, "Transaction status updated by webhook",
		"transaction_id", tx.ID, "old_status", tx.Status, "new_status", event.Status, "provider", provider)

	s.publishPaymentEvent(ctx, tx, event)
	return nil
}

func (s *PaymentService) publishPaymentEvent(ctx context.Context, tx *domain.Transaction, event *domain.WebhookEvent) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(paymentEvent{
		TransactionID: tx.ID,
		Provider:      event.Provider,
		Status:        event.Status,
		Amount:        tx.Amount,
		ServiceType:   tx.ServiceType,
		OccurredAt:    event.OccurredAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal payment event", "error", err, "transaction_id", tx.ID)
		return
	}
	subject := "payments.transaction." + string(event.Status)
	if err := s.events.Publish(subject, payload); err != nil {
		// Event delivery is best-effort; the status update already committed.
		s.logger.ErrorContext(ctx, "Failed to publish payment event", "error", err, "subject", subject, "transaction_id", tx.ID)
	}
}
