package request

import (
	"merchant-backend/internal/usecase/commands"

	"github.com/shopspring/decimal"
)

type CreateTransactionRequest struct {
	// decimal accepts the amount as a JSON number or a numeric string.
	Amount   *decimal.Decimal `json:"amount" binding:"required" swaggertype:"number" example:"100.50"`
	Currency string           `json:"currency" binding:"required,len=3" example:"USD"`
}

func (r *CreateTransactionRequest) ToInput() commands.CreateTransactionInput {
	return commands.CreateTransactionInput{
		Amount:   *r.Amount,
		Currency: r.Currency,
	}
}

type ListTransactionsRequest struct {
	Page  int `form:"page" binding:"omitempty,min=1" example:"1"`
	Limit int `form:"limit" binding:"omitempty,min=1" example:"10"`
}
