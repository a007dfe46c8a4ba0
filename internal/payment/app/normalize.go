package app

import (
	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
)

// NormalizeResponse resolves a raw gateway response into a PaymentOutcome.
//
// The gateway composes two independent calls (invoice pre-registration and
// checkout URL generation), so the raw response may omit the success flag or
// report success=false while still carrying a usable payment_url. The
// precedence below is a deliberate leniency policy preserved from production
// behavior, not a bug; a partial invoice failure must not block the user from
// completing payment when a URL was produced. Do not "clean it up".
//
//  1. No explicit success flag: success if payment_url is present, or if
//     neither an error code nor an error string is present.
//  2. success=false with a non-empty payment_url: overridden to success.
//  3. Otherwise the explicit success flag is trusted.
func NormalizeResponse(transactionID string, resp *domain.ProviderResponse) domain.PaymentOutcome {
	success := false
	switch {
	case resp.Success == nil:
		if resp.PaymentURL != "" {
			success = true
		} else if resp.ErrorCode == 0 && resp.Error == "" {
			success = true
		}
	case !*resp.Success && resp.PaymentURL != "":
		success = true
	default:
		success = *resp.Success
	}

	if success {
		return domain.PaymentOutcome{
			Success:       true,
			TransactionID: transactionID,
			PaymentURL:    resp.PaymentURL,
		}
	}

	code := resp.ErrorCode
	if code == 0 {
		code = domain.ErrCodeGeneric
	}
	return domain.PaymentOutcome{
		Success:       false,
		TransactionID: transactionID,
		ErrorCode:     code,
		Message:       extractErrorMessage(resp),
	}
}

// extractErrorMessage picks the best human-readable message from a failed
// gateway response: explicit user-facing message, then the provider error
// note, then the generic error field, then detail, then the localized
// fallback.
func extractErrorMessage(resp *domain.ProviderResponse) string {
	if resp.UserMessage != "" {
		return resp.UserMessage
	}
	if resp.ErrorNote != "" {
		return resp.ErrorNote
	}
	if resp.Error != "" {
		return resp.Error
	}
	if resp.Detail != "" {
		return resp.Detail
	}
	return domain.DefaultErrorMessage
}

// networkFailure is the uniform outcome for transport-level errors; raw
// transport errors never reach the flow layer.
func networkFailure(transactionID string) domain.PaymentOutcome {
	return domain.PaymentOutcome{
		Success:       false,
		TransactionID: transactionID,
		ErrorCode:     domain.ErrCodeGeneric,
		Message:       domain.DefaultErrorMessage,
	}
}
