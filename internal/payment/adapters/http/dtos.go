package http

import (
	"time"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
)

// CreateTransactionRequest DTO for POST /transactions
type CreateTransactionRequest struct {
	Amount               float64 `json:"amount" validate:"required,gt=0"`
	Currency             string  `json:"currency" validate:"omitempty,len=3"`
	ServiceType          string  `json:"service_type" validate:"required"`
	ArticleID            string  `json:"article_id" validate:"omitempty,uuid"`
	TranslationRequestID string  `json:"translation_request_id" validate:"omitempty,uuid"`
}

// TransactionResponse DTO
type TransactionResponse struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	Amount               float64    `json:"amount"`
	Currency             string     `json:"currency"`
	ServiceType          string     `json:"service_type"`
	Status               string     `json:"status"`
	MerchantTransID      string     `json:"merchant_trans_id"`
	ArticleID            *string    `json:"article_id,omitempty"`
	TranslationRequestID *string    `json:"translation_request_id,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// ProcessPaymentRequest DTO for POST /transactions/{transactionID}/pay
type ProcessPaymentRequest struct {
	Provider string `json:"provider" validate:"omitempty,oneof=click payme"`
}

// PaymentOutcomeResponse DTO mirrors the normalized gateway outcome.
type PaymentOutcomeResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	PaymentURL    string `json:"payment_url,omitempty"`
	ErrorCode     int    `json:"error_code,omitempty"`
	Message       string `json:"message,omitempty"`
}

// GenericErrorResponse is the error envelope used across the API.
type GenericErrorResponse struct {
	Error string `json:"error"`
}

func toTransactionResponse(tx *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                   tx.ID,
		UserID:               tx.UserID,
		Amount:               tx.Amount,
		Currency:             tx.Currency,
		ServiceType:          string(tx.ServiceType),
		Status:               string(tx.Status),
		MerchantTransID:      tx.MerchantTransID,
		ArticleID:            tx.ArticleID,
		TranslationRequestID: tx.TranslationRequestID,
		PaidAt:               tx.PaidAt,
		CreatedAt:            tx.CreatedAt,
	}
}
