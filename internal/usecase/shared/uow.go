package shared

import (
	"context"

	"merchant-backend/internal/domain/transaction"
	"merchant-backend/internal/infra/sqlc"

	"github.com/google/uuid"
)

type UnitOfWork interface {
	// Within: Full transaction for write operations with retry logic
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// WithinReadOnly: Read-only snapshot so a page and its total agree
	WithinReadOnly(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// WithDB: Single query operations using implicit transactions
	WithDB(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Transactions() TransactionRepository
	DB() sqlc.DBTX
}

type TransactionRepository interface {
	Create(ctx context.Context, db sqlc.DBTX, tx *transaction.Transaction) (*transaction.Transaction, error)
	FindByID(ctx context.Context, db sqlc.DBTX, id uuid.UUID) (*transaction.Transaction, error)
	// SettlePending moves a PENDING row to status and reports whether a row changed.
	SettlePending(ctx context.Context, db sqlc.DBTX, id uuid.UUID, status transaction.Status) (bool, error)
	// FindByMerchant returns one page ordered newest first plus the merchant's total.
	FindByMerchant(ctx context.Context, db sqlc.DBTX, merchantID uuid.UUID, skip, take int) ([]*transaction.Transaction, int64, error)
}
