package domain

// AttemptStatus is the client-visible state of one payment flow.
type AttemptStatus string

const (
	AttemptStatusIdle       AttemptStatus = "idle"
	AttemptStatusProcessing AttemptStatus = "processing"
	AttemptStatusSuccess    AttemptStatus = "success"
	AttemptStatusFailed     AttemptStatus = "failed"
)

// Cancellable reports whether a flow in this state may be closed by the user.
// Cancellation while processing must wait for the in-flight call to resolve,
// and success is terminal (navigation away follows).
func (s AttemptStatus) Cancellable() bool {
	return s == AttemptStatusIdle || s == AttemptStatusFailed
}

// PaymentAttempt is the ephemeral, flow-local attempt state. It is never
// persisted; each flow instance owns exactly one value.
type PaymentAttempt struct {
	Status        AttemptStatus `json:"status"`
	Provider      Provider      `json:"provider"`
	TransactionID string        `json:"transaction_id,omitempty"`
	PaymentURL    string        `json:"payment_url,omitempty"` // set only on success
	ErrorMessage  string        `json:"error_message,omitempty"`
	ErrorCode     int           `json:"error_code,omitempty"`
}
