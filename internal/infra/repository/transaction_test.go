//go:build unit

package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"merchant-backend/internal/domain/transaction"
	"merchant-backend/internal/infra"
	"merchant-backend/internal/infra/sqlc"
	"merchant-backend/internal/pkg/clock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTransactionQueries struct {
	mock.Mock
}

func (m *MockTransactionQueries) CreateTransaction(ctx context.Context, db sqlc.DBTX, arg sqlc.CreateTransactionParams) (sqlc.Transactions, error) {
	args := m.Called(ctx, db, arg)
	return args.Get(0).(sqlc.Transactions), args.Error(1)
}

func (m *MockTransactionQueries) FindTransactionByID(ctx context.Context, db sqlc.DBTX, id uuid.UUID) (sqlc.Transactions, error) {
	args := m.Called(ctx, db, id)
	return args.Get(0).(sqlc.Transactions), args.Error(1)
}

func (m *MockTransactionQueries) SettlePendingTransaction(ctx context.Context, db sqlc.DBTX, arg sqlc.SettlePendingTransactionParams) (int64, error) {
	args := m.Called(ctx, db, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionQueries) ListTransactionsByMerchant(ctx context.Context, db sqlc.DBTX, arg sqlc.ListTransactionsByMerchantParams) ([]sqlc.Transactions, error) {
	args := m.Called(ctx, db, arg)
	return args.Get(0).([]sqlc.Transactions), args.Error(1)
}

func (m *MockTransactionQueries) CountTransactionsByMerchant(ctx context.Context, db sqlc.DBTX, merchantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, db, merchantID)
	return args.Get(0).(int64), args.Error(1)
}

var testCreatedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func row(id, merchantID uuid.UUID, amount, status string) sqlc.Transactions {
	return sqlc.Transactions{
		ID:         id,
		MerchantID: merchantID,
		Amount:     pgtype.Text{String: amount, Valid: true},
		Currency:   "USD",
		Status:     status,
		CreatedAt:  testCreatedAt,
	}
}

func newEntity(t *testing.T, merchantID uuid.UUID) *transaction.Transaction {
	t.Helper()
	amount, err := transaction.NewAmount(decimal.RequireFromString("150.75"))
	require.NoError(t, err)
	currency, err := transaction.NewCurrency("USD")
	require.NoError(t, err)
	return transaction.NewTransaction(clock.NewMockClock(testCreatedAt), merchantID, amount, currency)
}

func TestTransactionRepository_Create(t *testing.T) {
	merchantID := uuid.New()

	tests := []struct {
		name     string
		mockErr  error
		wantKind infra.RepositoryErrorKind
	}{
		{name: "success"},
		{name: "unknown merchant", mockErr: &pgconn.PgError{Code: "23503"}, wantKind: infra.KindForeignKeyViolated},
		{name: "database error", mockErr: assert.AnError, wantKind: infra.KindDBFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entity := newEntity(t, merchantID)
			params := sqlc.CreateTransactionParams{
				ID:         entity.ID(),
				MerchantID: merchantID,
				Amount:     pgtype.Text{String: "150.75", Valid: true},
				Currency:   "USD",
				Status:     "PENDING",
				CreatedAt:  testCreatedAt,
			}

			mockQueries := new(MockTransactionQueries)
			mockQueries.On("CreateTransaction", mock.Anything, mock.Anything, params).
				Return(row(entity.ID(), merchantID, "150.75", "PENDING"), tt.mockErr)

			repo := NewTransactionRepository(mockQueries, discardLogger())
			got, err := repo.Create(context.Background(), nil, entity)

			if tt.wantKind != "" {
				assert.Error(t, err)
				assert.True(t, infra.IsKind(err, tt.wantKind))
			} else {
				require.NoError(t, err)
				assert.Equal(t, entity.ID(), got.ID())
				assert.Equal(t, "150.75", got.Amount().String())
				assert.Equal(t, transaction.StatusPending, got.Status())
			}
			mockQueries.AssertExpectations(t)
		})
	}
}

func TestTransactionRepository_FindByID(t *testing.T) {
	id, merchantID := uuid.New(), uuid.New()

	t.Run("found", func(t *testing.T) {
		mockQueries := new(MockTransactionQueries)
		mockQueries.On("FindTransactionByID", mock.Anything, mock.Anything, id).
			Return(row(id, merchantID, "10.50", "SUCCESS"), nil)

		got, err := NewTransactionRepository(mockQueries, discardLogger()).FindByID(context.Background(), nil, id)
		require.NoError(t, err)
		assert.Equal(t, merchantID, got.MerchantID())
		assert.Equal(t, "10.50", got.Amount().String())
		assert.Equal(t, transaction.StatusSuccess, got.Status())
		assert.Equal(t, testCreatedAt, got.CreatedAt())
	})

	t.Run("not found", func(t *testing.T) {
		mockQueries := new(MockTransactionQueries)
		mockQueries.On("FindTransactionByID", mock.Anything, mock.Anything, id).
			Return(sqlc.Transactions{}, pgx.ErrNoRows)

		_, err := NewTransactionRepository(mockQueries, discardLogger()).FindByID(context.Background(), nil, id)
		assert.True(t, infra.IsKind(err, infra.KindNotFound))
	})

	t.Run("corrupt stored status", func(t *testing.T) {
		mockQueries := new(MockTransactionQueries)
		mockQueries.On("FindTransactionByID", mock.Anything, mock.Anything, id).
			Return(row(id, merchantID, "10.50", "REFUNDED"), nil)

		_, err := NewTransactionRepository(mockQueries, discardLogger()).FindByID(context.Background(), nil, id)
		assert.True(t, infra.IsKind(err, infra.KindDBFailure))
	})
}

func TestTransactionRepository_SettlePending(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name        string
		affected    int64
		mockErr     error
		wantChanged bool
		wantErr     bool
	}{
		{name: "pending row settled", affected: 1, wantChanged: true},
		{name: "already settled", affected: 0},
		{name: "database error", mockErr: assert.AnError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockQueries := new(MockTransactionQueries)
			mockQueries.On("SettlePendingTransaction", mock.Anything, mock.Anything,
				sqlc.SettlePendingTransactionParams{ID: id, Status: "FAILED"}).
				Return(tt.affected, tt.mockErr)

			changed, err := NewTransactionRepository(mockQueries, discardLogger()).
				SettlePending(context.Background(), nil, id, transaction.StatusFailed)

			if tt.wantErr {
				assert.True(t, infra.IsKind(err, infra.KindDBFailure))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantChanged, changed)
			}
			mockQueries.AssertExpectations(t)
		})
	}
}

func TestTransactionRepository_FindByMerchant(t *testing.T) {
	merchantID := uuid.New()
	first, second := uuid.New(), uuid.New()

	mockQueries := new(MockTransactionQueries)
	mockQueries.On("ListTransactionsByMerchant", mock.Anything, mock.Anything,
		sqlc.ListTransactionsByMerchantParams{MerchantID: merchantID, Limit: 10, Offset: 20}).
		Return([]sqlc.Transactions{
			row(first, merchantID, "1.00", "PENDING"),
			row(second, merchantID, "2.50", "FAILED"),
		}, nil)
	mockQueries.On("CountTransactionsByMerchant", mock.Anything, mock.Anything, merchantID).
		Return(int64(22), nil)

	items, total, err := NewTransactionRepository(mockQueries, discardLogger()).
		FindByMerchant(context.Background(), nil, merchantID, 20, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(22), total)
	require.Len(t, items, 2)
	assert.Equal(t, first, items[0].ID())
	assert.Equal(t, second, items[1].ID())
	assert.Equal(t, "2.50", items[1].Amount().String())
	mockQueries.AssertExpectations(t)
}

func TestTransactionRepository_FindByMerchant_Empty(t *testing.T) {
	merchantID := uuid.New()

	mockQueries := new(MockTransactionQueries)
	mockQueries.On("ListTransactionsByMerchant", mock.Anything, mock.Anything, mock.Anything).
		Return([]sqlc.Transactions(nil), nil)
	mockQueries.On("CountTransactionsByMerchant", mock.Anything, mock.Anything, merchantID).
		Return(int64(0), nil)

	items, total, err := NewTransactionRepository(mockQueries, discardLogger()).
		FindByMerchant(context.Background(), nil, merchantID, 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Zero(t, total)
}
