package sqlc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (id, merchant_id, amount, currency, status, created_at)
VALUES ($1, $2, $3::numeric, $4, $5::transactions_status_enum, $6)
RETURNING id, merchant_id, amount::text, currency, status::text, created_at
`

type CreateTransactionParams struct {
	ID         uuid.UUID
	MerchantID uuid.UUID
	Amount     pgtype.Text
	Currency   string
	Status     string
	CreatedAt  time.Time
}

func (q *Queries) CreateTransaction(ctx context.Context, db DBTX, arg CreateTransactionParams) (Transactions, error) {
	row := db.QueryRow(ctx, createTransaction,
		arg.ID,
		arg.MerchantID,
		arg.Amount,
		arg.Currency,
		arg.Status,
		arg.CreatedAt,
	)
	var i Transactions
	err := row.Scan(
		&i.ID,
		&i.MerchantID,
		&i.Amount,
		&i.Currency,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const findTransactionByID = `-- name: FindTransactionByID :one
SELECT id, merchant_id, amount::text, currency, status::text, created_at
FROM transactions
WHERE id = $1
`

func (q *Queries) FindTransactionByID(ctx context.Context, db DBTX, id uuid.UUID) (Transactions, error) {
	row := db.QueryRow(ctx, findTransactionByID, id)
	var i Transactions
	err := row.Scan(
		&i.ID,
		&i.MerchantID,
		&i.Amount,
		&i.Currency,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const settlePendingTransaction = `-- name: SettlePendingTransaction :execrows
UPDATE transactions
SET status = $2::transactions_status_enum
WHERE id = $1 AND status = 'PENDING'
`

type SettlePendingTransactionParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) SettlePendingTransaction(ctx context.Context, db DBTX, arg SettlePendingTransactionParams) (int64, error) {
	result, err := db.Exec(ctx, settlePendingTransaction, arg.ID, arg.Status)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listTransactionsByMerchant = `-- name: ListTransactionsByMerchant :many
SELECT id, merchant_id, amount::text, currency, status::text, created_at
FROM transactions
WHERE merchant_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`

type ListTransactionsByMerchantParams struct {
	MerchantID uuid.UUID
	Limit      int32
	Offset     int32
}

func (q *Queries) ListTransactionsByMerchant(ctx context.Context, db DBTX, arg ListTransactionsByMerchantParams) ([]Transactions, error) {
	rows, err := db.Query(ctx, listTransactionsByMerchant, arg.MerchantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transactions
	for rows.Next() {
		var i Transactions
		if err := rows.Scan(
			&i.ID,
			&i.MerchantID,
			&i.Amount,
			&i.Currency,
			&i.Status,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countTransactionsByMerchant = `-- name: CountTransactionsByMerchant :one
SELECT count(*) FROM transactions WHERE merchant_id = $1
`

func (q *Queries) CountTransactionsByMerchant(ctx context.Context, db DBTX, merchantID uuid.UUID) (int64, error) {
	row := db.QueryRow(ctx, countTransactionsByMerchant, merchantID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
