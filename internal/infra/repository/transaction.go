package repository

import (
	"context"
	"log/slog"

	"merchant-backend/internal/domain/transaction"
	"merchant-backend/internal/infra"
	"merchant-backend/internal/infra/sqlc"
	"merchant-backend/internal/pkg/pgconv"

	"github.com/google/uuid"
)

type TransactionQueries interface {
	CreateTransaction(ctx context.Context, db sqlc.DBTX, arg sqlc.CreateTransactionParams) (sqlc.Transactions, error)
	FindTransactionByID(ctx context.Context, db sqlc.DBTX, id uuid.UUID) (sqlc.Transactions, error)
	SettlePendingTransaction(ctx context.Context, db sqlc.DBTX, arg sqlc.SettlePendingTransactionParams) (int64, error)
	ListTransactionsByMerchant(ctx context.Context, db sqlc.DBTX, arg sqlc.ListTransactionsByMerchantParams) ([]sqlc.Transactions, error)
	CountTransactionsByMerchant(ctx context.Context, db sqlc.DBTX, merchantID uuid.UUID) (int64, error)
}

type TransactionRepository struct {
	queries TransactionQueries
	logger  *slog.Logger
}

func NewTransactionRepository(queries TransactionQueries, logger *slog.Logger) *TransactionRepository {
	return &TransactionRepository{
		queries: queries,
		logger:  logger,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, db sqlc.DBTX, t *transaction.Transaction) (*transaction.Transaction, error) {
	row, err := r.queries.CreateTransaction(ctx, db, sqlc.CreateTransactionParams{
		ID:         t.ID(),
		MerchantID: t.MerchantID(),
		Amount:     pgconv.DecimalToText(t.Amount().Value()),
		Currency:   t.Currency().Value(),
		Status:     t.Status().String(),
		CreatedAt:  t.CreatedAt(),
	})
	if err != nil {
		return nil, infra.WrapRepoErr(r.logger, infra.ClassifyPgErr(err), "failed to create transaction", err)
	}
	return r.toEntity(row)
}

func (r *TransactionRepository) FindByID(ctx context.Context, db sqlc.DBTX, id uuid.UUID) (*transaction.Transaction, error) {
	row, err := r.queries.FindTransactionByID(ctx, db, id)
	if err != nil {
		kind := infra.ClassifyPgErr(err)
		if kind == infra.KindNotFound {
			return nil, infra.NotFound("transaction not found", err)
		}
		return nil, infra.WrapRepoErr(r.logger, kind, "failed to find transaction by ID", err)
	}
	return r.toEntity(row)
}

func (r *TransactionRepository) SettlePending(ctx context.Context, db sqlc.DBTX, id uuid.UUID, status transaction.Status) (bool, error) {
	affected, err := r.queries.SettlePendingTransaction(ctx, db, sqlc.SettlePendingTransactionParams{
		ID:     id,
		Status: status.String(),
	})
	if err != nil {
		return false, infra.WrapRepoErr(r.logger, infra.ClassifyPgErr(err), "failed to settle transaction", err)
	}
	return affected > 0, nil
}

func (r *TransactionRepository) FindByMerchant(ctx context.Context, db sqlc.DBTX, merchantID uuid.UUID, skip, take int) ([]*transaction.Transaction, int64, error) {
	rows, err := r.queries.ListTransactionsByMerchant(ctx, db, sqlc.ListTransactionsByMerchantParams{
		MerchantID: merchantID,
		Limit:      int32(take), // #nosec G115 -- bounded by the listing limit
		Offset:     int32(skip), // #nosec G115 -- bounded by page * limit
	})
	if err != nil {
		return nil, 0, infra.WrapRepoErr(r.logger, infra.KindDBFailure, "failed to list transactions", err)
	}

	total, err := r.queries.CountTransactionsByMerchant(ctx, db, merchantID)
	if err != nil {
		return nil, 0, infra.WrapRepoErr(r.logger, infra.KindDBFailure, "failed to count transactions", err)
	}

	items := make([]*transaction.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := r.toEntity(row)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

func (r *TransactionRepository) toEntity(row sqlc.Transactions) (*transaction.Transaction, error) {
	value, err := pgconv.DecimalFromText(row.Amount)
	if err != nil {
		return nil, infra.WrapRepoErr(r.logger, infra.KindDBFailure, "invalid stored amount", err)
	}
	amount, err := transaction.NewAmount(value)
	if err != nil {
		return nil, infra.WrapRepoErr(r.logger, infra.KindDBFailure, "invalid stored amount", err)
	}
	currency, err := transaction.NewCurrency(row.Currency)
	if err != nil {
		return nil, infra.WrapRepoErr(r.logger, infra.KindDBFailure, "invalid stored currency", err)
	}
	status, err := transaction.NewStatus(row.Status)
	if err != nil {
		return nil, infra.WrapRepoErr(r.logger, infra.KindDBFailure, "invalid stored status", err)
	}

	return transaction.ReconstructTransaction(row.ID, row.MerchantID, amount, currency, status, row.CreatedAt.UTC()), nil
}
