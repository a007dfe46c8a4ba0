package domain

import "errors"

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrorKind classifies a payment failure for the caller.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation" // malformed input, reported before any I/O
	ErrorKindNetwork    ErrorKind = "network"    // transport failure talking to a gateway
	ErrorKindGateway    ErrorKind = "gateway"    // gateway reported failure without a usable checkout URL
	ErrorKindRedirect   ErrorKind = "redirect"   // checkout URL failed validation or navigation never took effect
)

// Error codes surfaced in normalized outcomes. The negative values follow the
// Click error-code convention the portal frontend already understands.
const (
	ErrCodeGeneric     = -1
	ErrCodeRedirect    = -2
	ErrCodeValidation  = -3
	ErrCodeNotFound    = -5
	ErrCodeStatusCheck = -9
)

// DefaultErrorMessage is the localized fallback shown when no better message
// can be extracted from a gateway response.
const DefaultErrorMessage = "To'lovni amalga oshirishda xatolik yuz berdi"

// PaymentError is the uniform failure shape every layer reports. Raw transport
// errors are never propagated past the gateway invoker.
type PaymentError struct {
	Kind    ErrorKind
	Code    int
	Message string
}

func (e *PaymentError) Error() string {
	return e.Message
}

// NewValidationError builds a PaymentError for malformed initiator input.
func NewValidationError(message string) *PaymentError {
	return &PaymentError{Kind: ErrorKindValidation, Code: ErrCodeValidation, Message: message}
}
