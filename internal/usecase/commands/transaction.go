package commands

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"merchant-backend/internal/domain/transaction"
	"merchant-backend/internal/infra"
	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/errs"
	"merchant-backend/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultPublishTimeout = 10 * time.Second

type CreateTransactionInput struct {
	Amount   decimal.Decimal
	Currency string
}

type TransactionResult struct {
	ID         uuid.UUID
	MerchantID uuid.UUID
	Amount     transaction.Amount
	Currency   string
	Status     transaction.Status
	CreatedAt  time.Time
}

//go:generate mockgen -source=transaction.go -destination=../../../tests/mock/commands/transaction.go -package=commandsmock
type TransactionCommands interface {
	Create(ctx context.Context, input CreateTransactionInput, merchantID uuid.UUID) (*TransactionResult, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status transaction.Status) error
	// Drain waits for in-flight event publishes. Only shutdown calls it.
	Drain(ctx context.Context) error
}

type transactionCommandsImpl struct {
	uow            shared.UnitOfWork
	cache          shared.PageCache
	publisher      shared.EventPublisher
	clock          clock.Clock
	logger         *slog.Logger
	publishTimeout time.Duration

	publishes sync.WaitGroup
}

func NewTransactionCommands(
	uow shared.UnitOfWork,
	cache shared.PageCache,
	publisher shared.EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
	publishTimeout time.Duration,
) TransactionCommands {
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	return &transactionCommandsImpl{
		uow:            uow,
		cache:          cache,
		publisher:      publisher,
		clock:          clk,
		logger:         logger.With(slog.String("component", "transactions")),
		publishTimeout: publishTimeout,
	}
}

func (uc *transactionCommandsImpl) Create(ctx context.Context, input CreateTransactionInput, merchantID uuid.UUID) (*TransactionResult, error) {
	amount, err := transaction.NewAmount(input.Amount)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDomainValidation)
	}
	currency, err := transaction.NewCurrency(input.Currency)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDomainValidation)
	}

	entity := transaction.NewTransaction(uc.clock, merchantID, amount, currency)

	var created *transaction.Transaction
	err = uc.uow.WithDB(ctx, func(ctx context.Context, tx shared.Tx) error {
		var derr error
		created, derr = tx.Transactions().Create(ctx, tx.DB(), entity)
		return derr
	})
	if err != nil {
		if infra.IsKind(err, infra.KindForeignKeyViolated) {
			return nil, errs.Mark(err, errs.ErrMerchantNotFound)
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	uc.invalidateFirstPage(ctx, merchantID)
	uc.publishCreated(ctx, created.CreatedEvent())

	uc.logger.Info("transaction created",
		slog.String("transaction_id", created.ID().String()),
		slog.String("merchant_id", merchantID.String()))

	return toResult(created), nil
}

// publishCreated hands the event to the broker without blocking the caller.
// A failed publish leaves the transaction PENDING; it is logged, not returned.
func (uc *transactionCommandsImpl) publishCreated(ctx context.Context, event transaction.CreatedEvent) {
	pubCtx := context.WithoutCancel(ctx)

	uc.publishes.Add(1)
	go func() {
		defer uc.publishes.Done()
		defer func() {
			if r := recover(); r != nil {
				uc.logger.Error("panic while publishing transaction event",
					slog.String("transaction_id", event.ID.String()),
					slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(pubCtx, uc.publishTimeout)
		defer cancel()

		if err := uc.publisher.PublishTransactionCreated(ctx, event); err != nil {
			uc.logger.Error("failed to publish transaction event",
				slog.String("transaction_id", event.ID.String()),
				slog.String("error", err.Error()))
			return
		}
		uc.logger.Debug("event handed to broker", slog.String("transaction_id", event.ID.String()))
	}()
}

func (uc *transactionCommandsImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status transaction.Status) error {
	if !status.IsTerminal() {
		return errs.Mark(transaction.ErrInvalidStatus, errs.ErrDomainValidation)
	}

	var (
		merchantID uuid.UUID
		found      bool
	)
	err := uc.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		changed, derr := tx.Transactions().SettlePending(ctx, tx.DB(), id, status)
		if derr != nil {
			return derr
		}

		current, derr := tx.Transactions().FindByID(ctx, tx.DB(), id)
		if derr != nil {
			if infra.IsKind(derr, infra.KindNotFound) {
				return nil
			}
			return derr
		}
		found = true
		merchantID = current.MerchantID()

		if changed {
			return nil
		}
		// The row was already settled. Same status again is a no-op.
		_, derr = current.Settle(status)
		return derr
	})
	if err != nil {
		return err
	}

	if !found {
		uc.logger.Warn("status update for missing transaction ignored", slog.String("transaction_id", id.String()))
		return nil
	}

	uc.invalidateFirstPage(ctx, merchantID)
	return nil
}

func (uc *transactionCommandsImpl) invalidateFirstPage(ctx context.Context, merchantID uuid.UUID) {
	key := shared.FirstPageCacheKey(merchantID)
	if err := uc.cache.Delete(ctx, key); err != nil {
		uc.logger.Warn("failed to invalidate transaction cache",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

func (uc *transactionCommandsImpl) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		uc.publishes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toResult(t *transaction.Transaction) *TransactionResult {
	return &TransactionResult{
		ID:         t.ID(),
		MerchantID: t.MerchantID(),
		Amount:     t.Amount(),
		Currency:   t.Currency().Value(),
		Status:     t.Status(),
		CreatedAt:  t.CreatedAt(),
	}
}
