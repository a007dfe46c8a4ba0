package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
)

// Querier is the subset of pgxpool.Pool the repositories need. pgx.Tx and
// pgxmock pools satisfy it as well, so repository methods can run inside or
// outside a transaction and be driven by mocks in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TransactionRepository defines the interface for transaction persistence.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByMerchantTransID(ctx context.Context, merchantTransID string) (*domain.Transaction, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error)

	// UpdateStatus sets a terminal (or pending) status. paidAt is recorded
	// only for completed transactions.
	UpdateStatus(ctx context.Context, id string, status domain.TransactionStatus, paidAt *time.Time) error
}
