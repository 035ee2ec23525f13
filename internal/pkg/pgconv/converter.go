package pgconv

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var ErrInvalidNumeric = errors.New("invalid numeric value")

func UUIDFromPgtype(pu pgtype.UUID) uuid.UUID {
	if !pu.Valid {
		return uuid.Nil
	}
	return uuid.UUID(pu.Bytes)
}

func UUIDToPgtype(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// DecimalFromText parses a numeric column selected as ::text. Going through
// text keeps the exact scale that float conversion would lose.
func DecimalFromText(pt pgtype.Text) (decimal.Decimal, error) {
	if !pt.Valid {
		return decimal.Zero, ErrInvalidNumeric
	}
	d, err := decimal.NewFromString(pt.String)
	if err != nil {
		return decimal.Zero, ErrInvalidNumeric
	}
	return d, nil
}

// DecimalToText renders a value for a $n::numeric parameter.
func DecimalToText(d decimal.Decimal) pgtype.Text {
	return pgtype.Text{String: d.String(), Valid: true}
}

// IsNoRows checks if the error is a "no rows" error from either sql or pgx
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}
