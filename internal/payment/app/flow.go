package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
)

// TransactionCreator is the slice of PaymentService the flow needs for the
// initiation step.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, in CreateTransactionInput) (*domain.Transaction, error)
}

// PaymentProcessor is the slice of PaymentService the flow needs for the
// gateway invocation step.
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, transactionID string, provider domain.Provider) domain.PaymentOutcome
}

// Redirector hands a validated checkout URL off to the user.
type Redirector interface {
	Execute(ctx context.Context, checkoutURL string) error
}

// PaymentFlow is the entry point for clients that embed the payment
// orchestrator directly instead of going through the HTTP API. Each
// PaymentFlow owns a single payment attempt and runs it through its
// lifecycle: idle -> processing -> success or failed. A failed attempt may
// be retried and reuses the transaction created on the first try; only
// idle and failed attempts may be cancelled. State transitions are
// serialized, but triggering Pay while an attempt is in flight does not
// block on it.
type PaymentFlow struct {
	mu sync.Mutex

	creator    TransactionCreator
	processor  PaymentProcessor
	redirector Redirector
	logger     *slog.Logger

	input   CreateTransactionInput
	attempt domain.PaymentAttempt
}

func NewPaymentFlow(
	creator TransactionCreator,
	processor PaymentProcessor,
	redirector Redirector,
	logger *slog.Logger,
	input CreateTransactionInput,
	provider domain.Provider,
) *PaymentFlow {
	if provider == "" {
		provider = domain.DefaultProvider
	}
	return &PaymentFlow{
		creator:    creator,
		processor:  processor,
		redirector: redirector,
		logger:     logger.With("component", "payment_flow"),
		input:      input,
		attempt: domain.PaymentAttempt{
			Status:   domain.AttemptStatusIdle,
			Provider: provider,
		},
	}
}

// Attempt returns a snapshot of the current attempt state.
func (f *PaymentFlow) Attempt() domain.PaymentAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempt
}

// Pay drives the attempt forward. A trigger while an attempt is already
// processing, or after it has succeeded, returns the current snapshot
// without touching the backend. A retry after failure reuses the previously
// created transaction id and never creates a second transaction.
//
// The lock is held only for state transitions, never across the backend
// calls, so a second trigger issued mid-flight observes processing and
// returns immediately instead of queueing behind the first.
func (f *PaymentFlow) Pay(ctx context.Context) domain.PaymentAttempt {
	f.mu.Lock()
	switch f.attempt.Status {
	case domain.AttemptStatusProcessing, domain.AttemptStatusSuccess:
		attempt := f.attempt
		f.mu.Unlock()
		return attempt
	}
	f.attempt.Status = domain.AttemptStatusProcessing
	f.attempt.ErrorMessage = ""
	f.attempt.ErrorCode = 0
	input := f.input
	provider := f.attempt.Provider
	transactionID := f.attempt.TransactionID
	f.mu.Unlock()

	if transactionID == "" {
		tx, err := f.creator.CreateTransaction(ctx, input)
		if err != nil {
			return f.commitFailure(ctx, transactionID, err)
		}
		transactionID = tx.ID
	} else {
		f.logger.InfoContext(ctx, "Retrying payment with existing transaction",
			"transaction_id", transactionID)
	}

	outcome := f.processor.ProcessPayment(ctx, transactionID, provider)
	if !outcome.Success || outcome.PaymentURL == "" {
		errorCode := outcome.ErrorCode
		message := outcome.Message
		if outcome.Success && outcome.PaymentURL == "" {
			errorCode = domain.ErrCodeRedirect
			message = "To'lov URL topilmadi. Iltimos, qayta urinib ko'ring."
		}
		if message == "" {
			message = domain.DefaultErrorMessage
		}
		return f.commit(transactionID, func() {
			f.attempt.Status = domain.AttemptStatusFailed
			f.attempt.ErrorCode = errorCode
			f.attempt.ErrorMessage = message
		})
	}

	if err := f.redirector.Execute(ctx, outcome.PaymentURL); err != nil {
		return f.commitFailure(ctx, transactionID, err)
	}

	attempt := f.commit(transactionID, func() {
		f.attempt.Status = domain.AttemptStatusSuccess
		f.attempt.PaymentURL = outcome.PaymentURL
	})
	f.logger.InfoContext(ctx, "Payment attempt succeeded, user redirected",
		"transaction_id", transactionID, "provider", provider)
	return attempt
}

// commit applies a terminal state transition under the lock and returns the
// resulting snapshot. The transaction id is recorded so a later retry
// reuses it.
func (f *PaymentFlow) commit(transactionID string, apply func()) domain.PaymentAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempt.TransactionID = transactionID
	apply()
	return f.attempt
}

// Cancel abandons the attempt. It is permitted only while idle or after a
// failure; an in-flight or successful attempt cannot be cancelled.
func (f *PaymentFlow) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.attempt.Status.Cancellable() {
		return false
	}
	provider := f.attempt.Provider
	f.attempt = domain.PaymentAttempt{
		Status:   domain.AttemptStatusIdle,
		Provider: provider,
	}
	return true
}

func (f *PaymentFlow) commitFailure(ctx context.Context, transactionID string, err error) domain.PaymentAttempt {
	errorCode := domain.ErrCodeGeneric
	message := domain.DefaultErrorMessage
	var payErr *domain.PaymentError
	if errors.As(err, &payErr) {
		errorCode = payErr.Code
		message = payErr.Message
	}
	attempt := f.commit(transactionID, func() {
		f.attempt.Status = domain.AttemptStatusFailed
		f.attempt.ErrorCode = errorCode
		f.attempt.ErrorMessage = message
	})
	f.logger.WarnContext(ctx, "Payment attempt failed",
		"transaction_id", transactionID,
		"error_code", errorCode, "error", err)
	return attempt
}
