package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ServiceType identifies the billable portal service a transaction pays for.
type ServiceType string

const (
	ServiceTypeTopUp           ServiceType = "top_up"
	ServiceTypePublicationFee  ServiceType = "publication_fee"
	ServiceTypeFastTrack       ServiceType = "fast_track"
	ServiceTypeLanguageEditing ServiceType = "language_editing"
	ServiceTypeTranslation     ServiceType = "translation"
	ServiceTypeBookPublication ServiceType = "book_publication"
)

// Value implements the driver.Valuer interface for ServiceType.
func (st ServiceType) Value() (driver.Value, error) {
	return string(st), nil
}

// Scan implements the sql.Scanner interface for ServiceType.
func (st *ServiceType) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan ServiceType: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*st = ServiceType(strVal)
	return st.Validate()
}

// Validate reports whether the value is a member of the closed enumeration.
func (st ServiceType) Validate() error {
	switch st {
	case ServiceTypeTopUp, ServiceTypePublicationFee, ServiceTypeFastTrack,
		ServiceTypeLanguageEditing, ServiceTypeTranslation, ServiceTypeBookPublication:
		return nil
	default:
		return fmt.Errorf("unknown ServiceType value: %s", string(st))
	}
}

// TransactionStatus is the backend-owned lifecycle state of a transaction.
// The orchestration flow never sets a terminal status itself; only the
// gateway webhook path does.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusExpired   TransactionStatus = "expired"
)

// Numeric payment-status codes returned to the portal frontend by the
// reconciliation endpoint. Values are part of the portal API contract.
const (
	PaymentStatusPaid    = 2
	PaymentStatusPending = 0
	PaymentStatusFailed  = -1
)

// Transaction is one billing record for a user-initiated billable action.
// ID is assigned on creation and immutable afterwards.
type Transaction struct {
	ID              string            `json:"id"` // UUID
	UserID          string            `json:"user_id"`
	Amount          float64           `json:"amount"` // so'm, must be > 0
	Currency        string            `json:"currency"`
	ServiceType     ServiceType       `json:"service_type"`
	Status          TransactionStatus `json:"status"`
	MerchantTransID string            `json:"merchant_trans_id"` // correlation id sent to the gateway

	// At most one of the two references is ever set.
	ArticleID            *string `json:"article,omitempty"`
	TranslationRequestID *string `json:"translation_request,omitempty"`

	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Terminal reports whether the transaction has reached a final status.
func (t *Transaction) Terminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusExpired:
		return true
	}
	return false
}

// PaymentStatusCode maps the backend status string to the numeric code the
// portal frontend expects: completed -> 2, failed/expired -> -1, other -> 0.
func (t *Transaction) PaymentStatusCode() int {
	switch t.Status {
	case TransactionStatusCompleted:
		return PaymentStatusPaid
	case TransactionStatusFailed, TransactionStatusExpired:
		return PaymentStatusFailed
	default:
		return PaymentStatusPending
	}
}
