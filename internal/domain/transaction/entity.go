package transaction

import (
	"time"

	"merchant-backend/internal/pkg/clock"

	"github.com/google/uuid"
)

type Transaction struct {
	id         uuid.UUID
	merchantID uuid.UUID
	amount     Amount
	currency   Currency
	status     Status
	createdAt  time.Time
}

func NewTransaction(clk clock.Clock, merchantID uuid.UUID, amount Amount, currency Currency) *Transaction {
	return &Transaction{
		id:         uuid.New(),
		merchantID: merchantID,
		amount:     amount,
		currency:   currency,
		status:     StatusPending,
		createdAt:  clk.Now().UTC(),
	}
}

func ReconstructTransaction(
	id, merchantID uuid.UUID,
	amount Amount,
	currency Currency,
	status Status,
	createdAt time.Time,
) *Transaction {
	return &Transaction{
		id:         id,
		merchantID: merchantID,
		amount:     amount,
		currency:   currency,
		status:     status,
		createdAt:  createdAt,
	}
}

// Settle moves a pending transaction to a terminal status. Settling again with
// the status it already holds is a no-op and reports changed=false.
func (t *Transaction) Settle(next Status) (changed bool, err error) {
	if !next.IsTerminal() {
		return false, ErrInvalidStatus
	}
	if t.status == next {
		return false, nil
	}
	if !t.status.CanTransitionTo(next) {
		return false, ErrInvalidTransition
	}
	t.status = next
	return true, nil
}

func (t *Transaction) CreatedEvent() CreatedEvent {
	return CreatedEvent{
		ID:         t.id,
		MerchantID: t.merchantID,
		Amount:     t.amount.Value(),
		Currency:   t.currency.Value(),
		Status:     t.status,
		CreatedAt:  t.createdAt,
	}
}

func (t *Transaction) ID() uuid.UUID         { return t.id }
func (t *Transaction) MerchantID() uuid.UUID { return t.merchantID }
func (t *Transaction) Amount() Amount        { return t.amount }
func (t *Transaction) Currency() Currency    { return t.currency }
func (t *Transaction) Status() Status        { return t.status }
func (t *Transaction) CreatedAt() time.Time  { return t.createdAt }
