package app

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
)

// Navigator abstracts the client surface that actually moves the user to the
// hosted checkout page. The HTTP layer implements it with redirect responses;
// tests implement it in memory.
type Navigator interface {
	// Navigate performs the primary hand-off to the checkout URL.
	Navigate(ctx context.Context, checkoutURL string) error
	// NavigateFallback performs the secondary, more primitive hand-off.
	NavigateFallback(ctx context.Context, checkoutURL string) error
	// Departed reports whether the primary hand-off demonstrably took effect.
	Departed(ctx context.Context) bool
	// OfferManualActivation surfaces a user-activated affordance carrying the
	// checkout URL, used when every automatic hand-off failed.
	OfferManualActivation(ctx context.Context, checkoutURL string) error
}

// ValidateCheckoutURL rejects anything that is not an absolute http(s) URL.
// A malformed URL from a gateway must fail the attempt, never be handed to
// the navigator.
func ValidateCheckoutURL(raw string) error {
	if raw == "" {
		return &domain.PaymentError{
			Kind:    domain.ErrorKindRedirect,
			Code:    domain.ErrCodeRedirect,
			Message: "To'lov URL topilmadi. Iltimos, qayta urinib ko'ring.",
		}
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &domain.PaymentError{
			Kind:    domain.ErrorKindRedirect,
			Code:    domain.ErrCodeRedirect,
			Message: "To'lov sahifasiga o'tishda xatolik yuz berdi.",
		}
	}
	return nil
}

// RedirectExecutor drives the staged hand-off to a hosted checkout page:
// primary navigation, a short bounded verification, a secondary primitive,
// and a final manual affordance. It never reports failure once the URL
// validated; the worst case is the manual affordance.
type RedirectExecutor struct {
	navigator   Navigator
	logger      *slog.Logger
	verifyDelay time.Duration
}

func NewRedirectExecutor(navigator Navigator, logger *slog.Logger) *RedirectExecutor {
	return &RedirectExecutor{
		navigator:   navigator,
		logger:      logger.With("component", "redirect_executor"),
		verifyDelay: 100 * time.Millisecond,
	}
}

// Execute validates the URL and walks the fallback chain. The returned error
// is non-nil only for an invalid URL or after the manual affordance itself
// could not be offered.
func (e *RedirectExecutor) Execute(ctx context.Context, checkoutURL string) error {
	if err := ValidateCheckoutURL(checkoutURL); err != nil {
		return err
	}

	if err := e.navigator.Navigate(ctx, checkoutURL); err == nil {
		if e.departedAfterDelay(ctx) {
			return nil
		}
		e.logger.WarnContext(ctx, "Primary navigation did not take effect, trying fallback", "url", checkoutURL)
	} else {
		e.logger.WarnContext(ctx, "Primary navigation failed, trying fallback", "error", err, "url", checkoutURL)
	}
	redirectFallbackCounter.WithLabelValues("secondary").Inc()

	if err := e.navigator.NavigateFallback(ctx, checkoutURL); err == nil {
		return nil
	} else {
		e.logger.WarnContext(ctx, "Fallback navigation failed, offering manual activation", "error", err, "url", checkoutURL)
	}
	redirectFallbackCounter.WithLabelValues("manual").Inc()

	if err := e.navigator.OfferManualActivation(ctx, checkoutURL); err != nil {
		e.logger.ErrorContext(ctx, "Manual activation affordance failed", "error", err, "url", checkoutURL)
		return &domain.PaymentError{
			Kind:    domain.ErrorKindRedirect,
			Code:    domain.ErrCodeRedirect,
			Message: "To'lov sahifasiga o'tishda xatolik yuz berdi.",
		}
	}
	return nil
}

func (e *RedirectExecutor) departedAfterDelay(ctx context.Context) bool {
	select {
	case <-time.After(e.verifyDelay):
	case <-ctx.Done():
		return true
	}
	return e.navigator.Departed(ctx)
}
