package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ilmiynashr/journal-payments/internal/payment/app"
	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
	"github.com/ilmiynashr/journal-payments/internal/payment/middleware"
)

// TransactionService defines the application operations the handler exposes.
type TransactionService interface {
	CreateTransaction(ctx context.Context, in app.CreateTransactionInput) (*domain.Transaction, error)
	ProcessPayment(ctx context.Context, transactionID string, provider domain.Provider) domain.PaymentOutcome
	CheckPaymentStatus(ctx context.Context, transactionID string) app.StatusCheckResult
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error)
}

// IdempotencyChecker guards transaction creation against duplicate submissions.
type IdempotencyChecker interface {
	Key(scope, key string) string
	Seen(ctx context.Context, key string) (bool, error)
}

type TransactionHandler struct {
	appService  TransactionService
	idempotency IdempotencyChecker
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewTransactionHandler(appService TransactionService, idempotency IdempotencyChecker, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		appService:  appService,
		idempotency: idempotency,
		validate:    validator.New(),
		logger:      logger.With("handler", "transaction"),
	}
}

// RegisterRoutes registers transaction routes with the given router.
func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/transactions", h.handleCreateTransaction)
	r.Get("/transactions", h.handleListTransactions)
	r.Post("/transactions/{transactionID}/pay", h.handleProcessPayment)
	r.Get("/transactions/{transactionID}/status", h.handleCheckStatus)
}

func (h *TransactionHandler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	authUser, ok := ctx.Value(middleware.AuthenticatedUserContextKey).(middleware.AuthenticatedUser)
	if !ok || authUser.ID == "" {
		logger.WarnContext(ctx, "User not authenticated for create transaction")
		h.jsonError(ctx, w, logger, "User not authenticated", http.StatusUnauthorized)
		return
	}
	logger = logger.With("auth_user_id", authUser.ID)

	if idemKey := r.Header.Get("Idempotency-Key"); idemKey != "" && h.idempotency != nil {
		seen, err := h.idempotency.Seen(ctx, h.idempotency.Key("tx_create:"+authUser.ID, idemKey))
		if err != nil {
			logger.ErrorContext(ctx, "Idempotency check failed", "error", err)
			h.jsonError(ctx, w, logger, "Failed to verify idempotency key", http.StatusInternalServerError)
			return
		}
		if seen {
			logger.InfoContext(ctx, "Duplicate transaction creation suppressed", "idempotency_key", idemKey)
			h.jsonError(ctx, w, logger, "Duplicate request: transaction already created for this idempotency key", http.StatusConflict)
			return
		}
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(ctx, "Failed to decode create transaction request", "error", err)
		h.jsonError(ctx, w, logger, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		logger.WarnContext(ctx, "Create transaction request failed validation", "error", err)
		h.jsonError(ctx, w, logger, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := h.appService.CreateTransaction(ctx, app.CreateTransactionInput{
		UserID:               authUser.ID,
		Amount:               req.Amount,
		Currency:             req.Currency,
		ServiceType:          domain.ServiceType(req.ServiceType),
		ArticleID:            req.ArticleID,
		TranslationRequestID: req.TranslationRequestID,
	})
	if err != nil {
		var payErr *domain.PaymentError
		if errors.As(err, &payErr) && payErr.Kind == domain.ErrorKindValidation {
			h.jsonError(ctx, w, logger, payErr.Message, http.StatusBadRequest)
			return
		}
		logger.ErrorContext(ctx, "Failed to create transaction", "error", err)
		h.jsonError(ctx, w, logger, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTransactionResponse(tx))
}

func (h *TransactionHandler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	authUser, ok := ctx.Value(middleware.AuthenticatedUserContextKey).(middleware.AuthenticatedUser)
	if !ok || authUser.ID == "" {
		logger.WarnContext(ctx, "User not authenticated for process payment")
		h.jsonError(ctx, w, logger, "User not authenticated", http.StatusUnauthorized)
		return
	}

	transactionID := chi.URLParam(r, "transactionID")
	if _, err := uuid.Parse(transactionID); err != nil {
		logger.WarnContext(ctx, "Invalid transaction ID format", "transaction_id", transactionID)
		h.jsonError(ctx, w, logger, "Invalid transaction ID format", http.StatusBadRequest)
		return
	}

	var req ProcessPaymentRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.ErrorContext(ctx, "Failed to decode process payment request", "error", err)
			h.jsonError(ctx, w, logger, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.validate.Struct(req); err != nil {
			h.jsonError(ctx, w, logger, "Validation failed: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	outcome := h.appService.ProcessPayment(ctx, transactionID, domain.Provider(req.Provider))

	// The outcome envelope always answers 200; success/failure lives inside it.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PaymentOutcomeResponse{
		Success:       outcome.Success,
		TransactionID: outcome.TransactionID,
		PaymentURL:    outcome.PaymentURL,
		ErrorCode:     outcome.ErrorCode,
		Message:       outcome.Message,
	})
}

func (h *TransactionHandler) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	authUser, ok := ctx.Value(middleware.AuthenticatedUserContextKey).(middleware.AuthenticatedUser)
	if !ok || authUser.ID == "" {
		logger.WarnContext(ctx, "User not authenticated for status check")
		h.jsonError(ctx, w, logger, "User not authenticated", http.StatusUnauthorized)
		return
	}

	transactionID := chi.URLParam(r, "transactionID")
	if _, err := uuid.Parse(transactionID); err != nil {
		logger.WarnContext(ctx, "Invalid transaction ID format", "transaction_id", transactionID)
		h.jsonError(ctx, w, logger, "Invalid transaction ID format", http.StatusBadRequest)
		return
	}

	result := h.appService.CheckPaymentStatus(ctx, transactionID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *TransactionHandler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	authUser, ok := ctx.Value(middleware.AuthenticatedUserContextKey).(middleware.AuthenticatedUser)
	if !ok || authUser.ID == "" {
		logger.WarnContext(ctx, "User not authenticated for list transactions")
		h.jsonError(ctx, w, logger, "User not authenticated", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.appService.ListTransactions(ctx, authUser.ID, limit, offset)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list transactions", "error", err, "user_id", authUser.ID)
		h.jsonError(ctx, w, logger, "Failed to retrieve transactions", http.StatusInternalServerError)
		return
	}

	resp := make([]TransactionResponse, 0, len(transactions))
	for i := range transactions {
		resp = append(resp, toTransactionResponse(&transactions[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *TransactionHandler) jsonError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	logger.WarnContext(ctx, "API Error Response", "status_code", statusCode, "message", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(GenericErrorResponse{Error: message})
}
