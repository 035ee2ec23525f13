package transaction

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreatedEvent is the snapshot published when a transaction is created. The
// amount goes on the wire as a JSON number.
type CreatedEvent struct {
	ID         uuid.UUID       `json:"id"`
	MerchantID uuid.UUID       `json:"merchantId"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type createdEventWire struct {
	ID         uuid.UUID   `json:"id"`
	MerchantID uuid.UUID   `json:"merchantId"`
	Amount     json.Number `json:"amount"`
	Currency   string      `json:"currency"`
	Status     Status      `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func (e CreatedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(createdEventWire{
		ID:         e.ID,
		MerchantID: e.MerchantID,
		Amount:     json.Number(e.Amount.String()),
		Currency:   e.Currency,
		Status:     e.Status,
		CreatedAt:  e.CreatedAt.UTC(),
	})
}

// UnmarshalJSON accepts the amount as either a number or a numeric string.
func (e *CreatedEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		createdEventWire
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var amount decimal.Decimal
	if len(raw.Amount) > 0 {
		if err := amount.UnmarshalJSON(raw.Amount); err != nil {
			return err
		}
	}
	*e = CreatedEvent{
		ID:         raw.ID,
		MerchantID: raw.MerchantID,
		Amount:     amount,
		Currency:   raw.Currency,
		Status:     raw.Status,
		CreatedAt:  raw.CreatedAt,
	}
	return nil
}

var ErrInvalidEvent = errors.New("invalid transaction created event")

// Validate rejects events that cannot identify a transaction.
func (e CreatedEvent) Validate() error {
	if e.ID == uuid.Nil || e.MerchantID == uuid.Nil {
		return ErrInvalidEvent
	}
	return nil
}
