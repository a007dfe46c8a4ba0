package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
	"github.com/ilmiynashr/journal-payments/internal/payment/repository"
)

type pgTransactionRepository struct {
	db     repository.Querier
	logger *slog.Logger
}

// NewPgTransactionRepository creates a new TransactionRepository for PostgreSQL.
func NewPgTransactionRepository(db repository.Querier, logger *slog.Logger) repository.TransactionRepository {
	return &pgTransactionRepository{db: db, logger: logger.With("component", "transaction_repository_pg")}
}

func (r *pgTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	tx.ID = uuid.NewString()
	tx.CreatedAt = time.Now().UTC()
	tx.UpdatedAt = tx.CreatedAt
	if tx.Status == "" {
		tx.Status = domain.TransactionStatusPending
	}
	if tx.MerchantTransID == "" {
		tx.MerchantTransID = uuid.NewString()
	}

	query := `
		INSERT INTO transactions (id, user_id, amount, currency, service_type, status,
		                          merchant_trans_id, article_id, translation_request_id,
		                          paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		tx.ID, tx.UserID, tx.Amount, tx.Currency, tx.ServiceType, tx.Status,
		tx.MerchantTransID, tx.ArticleID, tx.TranslationRequestID,
		tx.PaidAt, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating transaction", "error", err, "transaction_id", tx.ID)
		return nil, fmt.Errorf("creating transaction: %w", err)
	}
	return tx, nil
}

func (r *pgTransactionRepository) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var articleID sql.NullString
	var translationRequestID sql.NullString
	var paidAt sql.NullTime

	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Amount, &tx.Currency, &tx.ServiceType, &tx.Status,
		&tx.MerchantTransID, &articleID, &translationRequestID,
		&paidAt, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err // pgx.ErrNoRows handled by callers
	}

	if articleID.Valid {
		tx.ArticleID = &articleID.String
	}
	if translationRequestID.Valid {
		tx.TranslationRequestID = &translationRequestID.String
	}
	if paidAt.Valid {
		t := paidAt.Time
		tx.PaidAt = &t
	}
	return &tx, nil
}

const selectTransactionColumns = `
		SELECT id, user_id, amount, currency, service_type, status,
		       merchant_trans_id, article_id, translation_request_id,
		       paid_at, created_at, updated_at
		FROM transactions
`

func (r *pgTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, selectTransactionColumns+` WHERE id = $1`, id)
	tx, err := r.scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting transaction by ID", "error", err, "id", id)
		return nil, fmt.Errorf("getting transaction by ID: %w", err)
	}
	return tx, nil
}

func (r *pgTransactionRepository) GetByMerchantTransID(ctx context.Context, merchantTransID string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, selectTransactionColumns+` WHERE merchant_trans_id = $1`, merchantTransID)
	tx, err := r.scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting transaction by merchant trans ID", "error", err, "merchant_trans_id", merchantTransID)
		return nil, fmt.Errorf("getting transaction by merchant trans ID: %w", err)
	}
	return tx, nil
}

func (r *pgTransactionRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error) {
	query := selectTransactionColumns + `
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing transactions", "error", err, "user_id", userID)
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		transactions = append(transactions, *tx)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

func (r *pgTransactionRepository) UpdateStatus(ctx context.Context, id string, status domain.TransactionStatus, paidAt *time.Time) error {
	query := `
		UPDATE transactions
		SET status = $2, paid_at = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, status, paidAt, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating transaction status", "error", err, "id", id, "status", status)
		return fmt.Errorf("updating transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
