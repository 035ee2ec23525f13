package sqlc

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Transactions is a row of the transactions table. Amount and Status are
// selected as text.
type Transactions struct {
	ID         uuid.UUID
	MerchantID uuid.UUID
	Amount     pgtype.Text
	Currency   string
	Status     string
	CreatedAt  time.Time
}
