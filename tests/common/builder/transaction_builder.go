//go:build unit || e2e

package builder

import (
	"time"

	domtx "merchant-backend/internal/domain/transaction"
	reqdto "merchant-backend/internal/handler/dto/request"
	"merchant-backend/internal/infra/sqlc"
	"merchant-backend/internal/usecase/commands"
	"merchant-backend/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type TransactionBuilder struct {
	ID         uuid.UUID
	MerchantID uuid.UUID
	Amount     string
	Currency   string
	Status     domtx.Status
	CreatedAt  time.Time
}

func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{
		ID:         uuid.New(),
		MerchantID: uuid.New(),
		Amount:     "100.50",
		Currency:   "USD",
		Status:     domtx.StatusPending,
		CreatedAt:  time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (b *TransactionBuilder) With(mutate func(*TransactionBuilder)) *TransactionBuilder {
	mutate(b)
	return b
}

// Build methods
func (b *TransactionBuilder) BuildDomain() *domtx.Transaction {
	amount, err := domtx.NewAmountFromString(b.Amount)
	if err != nil {
		panic(err)
	}
	currency, err := domtx.NewCurrency(b.Currency)
	if err != nil {
		panic(err)
	}
	return domtx.ReconstructTransaction(b.ID, b.MerchantID, amount, currency, b.Status, b.CreatedAt)
}

func (b *TransactionBuilder) BuildRow() sqlc.Transactions {
	return sqlc.Transactions{
		ID:         b.ID,
		MerchantID: b.MerchantID,
		Amount:     pgtype.Text{String: b.Amount, Valid: true},
		Currency:   b.Currency,
		Status:     b.Status.String(),
		CreatedAt:  b.CreatedAt,
	}
}

func (b *TransactionBuilder) BuildCreateRequestDTO() reqdto.CreateTransactionRequest {
	amount := decimal.RequireFromString(b.Amount)
	return reqdto.CreateTransactionRequest{Amount: &amount, Currency: b.Currency}
}

func (b *TransactionBuilder) BuildResult() *commands.TransactionResult {
	t := b.BuildDomain()
	return &commands.TransactionResult{
		ID:         t.ID(),
		MerchantID: t.MerchantID(),
		Amount:     t.Amount(),
		Currency:   t.Currency().Value(),
		Status:     t.Status(),
		CreatedAt:  t.CreatedAt(),
	}
}

func (b *TransactionBuilder) BuildView() *queries.TransactionView {
	return queries.ToTransactionView(b.BuildDomain())
}
