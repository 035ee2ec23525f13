package response

import (
	"encoding/json"
	"time"

	"merchant-backend/internal/usecase/commands"
	"merchant-backend/internal/usecase/queries"
)

type TransactionResponse struct {
	ID         string      `json:"id"`
	MerchantID string      `json:"merchantId"`
	Amount     json.Number `json:"amount" swaggertype:"number"`
	Currency   string      `json:"currency"`
	Status     string      `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func FromTransactionResult(r *commands.TransactionResult) *TransactionResponse {
	return &TransactionResponse{
		ID:         r.ID.String(),
		MerchantID: r.MerchantID.String(),
		Amount:     json.Number(r.Amount.String()),
		Currency:   r.Currency,
		Status:     r.Status.String(),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func FromTransactionView(v *queries.TransactionView) *TransactionResponse {
	return &TransactionResponse{
		ID:         v.ID.String(),
		MerchantID: v.MerchantID.String(),
		Amount:     v.Amount,
		Currency:   v.Currency,
		Status:     v.Status,
		CreatedAt:  v.CreatedAt.UTC(),
	}
}

type PageMetaResponse struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

type TransactionListResponse struct {
	Data []*TransactionResponse `json:"data"`
	Meta PageMetaResponse       `json:"meta"`
}

func FromTransactionPage(p *queries.TransactionPage) *TransactionListResponse {
	data := make([]*TransactionResponse, len(p.Data))
	for i := range p.Data {
		data[i] = FromTransactionView(&p.Data[i])
	}
	return &TransactionListResponse{
		Data: data,
		Meta: PageMetaResponse{
			Total:      p.Meta.Total,
			Page:       p.Meta.Page,
			Limit:      p.Meta.Limit,
			TotalPages: p.Meta.TotalPages,
		},
	}
}
