//go:build unit

package commands_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"merchant-backend/internal/domain/transaction"
	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/errs"
	"merchant-backend/internal/usecase/commands"
	"merchant-backend/internal/usecase/shared"
	"merchant-backend/internal/usecase/shared/sharedtest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var now = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

type TransactionCommandsTestSuite struct {
	suite.Suite
	uow        *sharedtest.UnitOfWork
	cache      *sharedtest.PageCache
	publisher  *sharedtest.Publisher
	merchantID uuid.UUID
	commands   commands.TransactionCommands
}

func (s *TransactionCommandsTestSuite) SetupTest() {
	s.uow = sharedtest.NewUnitOfWork()
	s.cache = sharedtest.NewPageCache()
	s.publisher = sharedtest.NewPublisher()
	s.merchantID = uuid.New()
	s.commands = s.newCommands(time.Second)
}

func (s *TransactionCommandsTestSuite) newCommands(publishTimeout time.Duration) commands.TransactionCommands {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return commands.NewTransactionCommands(s.uow, s.cache, s.publisher, clock.NewMockClock(now), logger, publishTimeout)
}

func TestTransactionCommandsSuite(t *testing.T) {
	suite.Run(t, new(TransactionCommandsTestSuite))
}

func (s *TransactionCommandsTestSuite) input(amount, currency string) commands.CreateTransactionInput {
	return commands.CreateTransactionInput{Amount: decimal.RequireFromString(amount), Currency: currency}
}

func (s *TransactionCommandsTestSuite) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(s.commands.Drain(ctx))
}

func (s *TransactionCommandsTestSuite) TestCreate_PersistsPendingAndPublishes() {
	result, err := s.commands.Create(context.Background(), s.input("150.75", "USD"), s.merchantID)
	s.Require().NoError(err)

	s.Equal(s.merchantID, result.MerchantID)
	s.Equal("150.75", result.Amount.String())
	s.Equal("USD", result.Currency)
	s.Equal(transaction.StatusPending, result.Status)
	s.Equal(now, result.CreatedAt)

	stored, ok := s.uow.Get(result.ID)
	s.Require().True(ok)
	s.Equal(transaction.StatusPending, stored.Status())

	s.drain()
	select {
	case ev := <-s.publisher.Events:
		created, ok := ev.(transaction.CreatedEvent)
		s.Require().True(ok)
		s.Equal(result.ID, created.ID)
		s.Equal(s.merchantID, created.MerchantID)
		s.Equal(transaction.StatusPending, created.Status)
		s.True(created.Amount.Equal(decimal.RequireFromString("150.75")))
	default:
		s.Fail("created event was not published")
	}
}

func (s *TransactionCommandsTestSuite) TestCreate_InvalidatesFirstPage() {
	key := shared.FirstPageCacheKey(s.merchantID)
	s.Require().NoError(s.cache.Set(context.Background(), key, map[string]int{"stale": 1}, time.Minute))

	_, err := s.commands.Create(context.Background(), s.input("10", "EUR"), s.merchantID)
	s.Require().NoError(err)

	s.False(s.cache.Has(key))
	s.drain()
}

func (s *TransactionCommandsTestSuite) TestCreate_ValidationErrors() {
	testCases := []struct {
		name   string
		amount string
		cur    string
	}{
		{name: "ゼロ金額", amount: "0", cur: "USD"},
		{name: "負の金額", amount: "-5", cur: "USD"},
		{name: "小数点以下3桁", amount: "1.005", cur: "USD"},
		{name: "上限超過", amount: "100000000", cur: "USD"},
		{name: "小文字の通貨", amount: "10", cur: "usd"},
		{name: "4文字の通貨", amount: "10", cur: "USDT"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.commands.Create(context.Background(), s.input(tc.amount, tc.cur), s.merchantID)
			s.True(errs.Is(err, errs.ErrDomainValidation))
		})
	}
	s.Zero(s.uow.Len())
	s.drain()
	s.Empty(s.publisher.Events)
}

func (s *TransactionCommandsTestSuite) TestCreate_UnknownMerchant() {
	s.uow.Merchants = map[uuid.UUID]bool{}

	_, err := s.commands.Create(context.Background(), s.input("10", "USD"), s.merchantID)
	s.True(errs.Is(err, errs.ErrMerchantNotFound))
	s.drain()
	s.Empty(s.publisher.Events)
}

func (s *TransactionCommandsTestSuite) TestCreate_DatabaseFailure() {
	s.uow.Err = errors.New("connection reset")

	_, err := s.commands.Create(context.Background(), s.input("10", "USD"), s.merchantID)
	s.True(errs.Is(err, errs.ErrDatabaseOperationFailed))
}

func (s *TransactionCommandsTestSuite) TestCreate_PublishFailureDoesNotFailRequest() {
	s.publisher.Err = errors.New("broker down")

	result, err := s.commands.Create(context.Background(), s.input("10", "USD"), s.merchantID)
	s.Require().NoError(err)
	s.drain()

	stored, ok := s.uow.Get(result.ID)
	s.Require().True(ok)
	s.Equal(transaction.StatusPending, stored.Status())
}

func (s *TransactionCommandsTestSuite) TestCreate_DoesNotWaitForPublish() {
	s.publisher.Block = true
	s.commands = s.newCommands(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.commands.Create(context.Background(), s.input("10", "USD"), s.merchantID)
		s.NoError(err)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("create blocked on the publish")
	}
	s.drain()
}

func (s *TransactionCommandsTestSuite) TestCreate_CacheFailureDoesNotFailRequest() {
	s.cache.DeleteErr = errors.New("redis down")

	_, err := s.commands.Create(context.Background(), s.input("10", "USD"), s.merchantID)
	s.NoError(err)
	s.drain()
}

func (s *TransactionCommandsTestSuite) pending() *transaction.Transaction {
	amount, err := transaction.NewAmountFromString("42.00")
	s.Require().NoError(err)
	currency, err := transaction.NewCurrency("USD")
	s.Require().NoError(err)
	t := transaction.NewTransaction(clock.NewMockClock(now), s.merchantID, amount, currency)
	s.uow.Put(t)
	return t
}

func (s *TransactionCommandsTestSuite) TestUpdateStatus_SettlesPending() {
	for _, status := range []transaction.Status{transaction.StatusSuccess, transaction.StatusFailed} {
		s.Run(status.String(), func() {
			t := s.pending()
			key := shared.FirstPageCacheKey(s.merchantID)
			s.Require().NoError(s.cache.Set(context.Background(), key, "stale", time.Minute))

			s.Require().NoError(s.commands.UpdateStatus(context.Background(), t.ID(), status))

			stored, _ := s.uow.Get(t.ID())
			s.Equal(status, stored.Status())
			s.False(s.cache.Has(key))
		})
	}
}

func (s *TransactionCommandsTestSuite) TestUpdateStatus_SameTerminalIsNoop() {
	t := s.pending()
	s.Require().NoError(s.commands.UpdateStatus(context.Background(), t.ID(), transaction.StatusSuccess))
	s.NoError(s.commands.UpdateStatus(context.Background(), t.ID(), transaction.StatusSuccess))

	stored, _ := s.uow.Get(t.ID())
	s.Equal(transaction.StatusSuccess, stored.Status())
}

func (s *TransactionCommandsTestSuite) TestUpdateStatus_TerminalNeverChanges() {
	t := s.pending()
	s.Require().NoError(s.commands.UpdateStatus(context.Background(), t.ID(), transaction.StatusSuccess))

	err := s.commands.UpdateStatus(context.Background(), t.ID(), transaction.StatusFailed)
	s.ErrorIs(err, transaction.ErrInvalidTransition)

	stored, _ := s.uow.Get(t.ID())
	s.Equal(transaction.StatusSuccess, stored.Status())
}

func (s *TransactionCommandsTestSuite) TestUpdateStatus_RejectsPending() {
	t := s.pending()
	err := s.commands.UpdateStatus(context.Background(), t.ID(), transaction.StatusPending)
	s.True(errs.Is(err, errs.ErrDomainValidation))
}

func (s *TransactionCommandsTestSuite) TestUpdateStatus_MissingTransactionIsIgnored() {
	s.NoError(s.commands.UpdateStatus(context.Background(), uuid.New(), transaction.StatusFailed))
	s.Empty(s.cache.Deleted)
}

func (s *TransactionCommandsTestSuite) TestUpdateStatus_DatabaseFailure() {
	t := s.pending()
	s.uow.Err = errors.New("connection reset")
	s.Error(s.commands.UpdateStatus(context.Background(), t.ID(), transaction.StatusFailed))
}

func TestDrain_RespectsContext(t *testing.T) {
	publisher := sharedtest.NewPublisher()
	publisher.Block = true
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := commands.NewTransactionCommands(sharedtest.NewUnitOfWork(), sharedtest.NewPageCache(), publisher,
		clock.NewMockClock(now), logger, time.Minute)

	_, err := uc.Create(context.Background(), commands.CreateTransactionInput{
		Amount:   decimal.NewFromInt(5),
		Currency: "USD",
	}, uuid.New())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, uc.Drain(ctx), context.DeadlineExceeded)
}
