//go:build unit

package pgconv_test

import (
	"fmt"
	"testing"

	"merchant-backend/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalFromText(t *testing.T) {
	d, err := pgconv.DecimalFromText(pgtype.Text{String: "1250.50", Valid: true})
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("1250.5")))

	_, err = pgconv.DecimalFromText(pgtype.Text{Valid: false})
	assert.ErrorIs(t, err, pgconv.ErrInvalidNumeric)

	_, err = pgconv.DecimalFromText(pgtype.Text{String: "abc", Valid: true})
	assert.ErrorIs(t, err, pgconv.ErrInvalidNumeric)
}

func TestUUIDRoundTrip(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id, pgconv.UUIDFromPgtype(pgconv.UUIDToPgtype(id)))
	assert.Equal(t, uuid.Nil, pgconv.UUIDFromPgtype(pgtype.UUID{}))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, pgconv.IsNoRows(pgx.ErrNoRows))
	assert.True(t, pgconv.IsNoRows(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)))
	assert.False(t, pgconv.IsNoRows(fmt.Errorf("other")))
}
