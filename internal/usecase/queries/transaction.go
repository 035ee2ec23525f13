package queries

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"merchant-backend/internal/domain/transaction"
	"merchant-backend/internal/infra"
	"merchant-backend/internal/infra/cache"
	"merchant-backend/internal/pkg/errs"
	"merchant-backend/internal/pkg/metrics"
	"merchant-backend/internal/usecase/shared"

	"github.com/google/uuid"
)

type TransactionView struct {
	ID         uuid.UUID   `json:"id"`
	MerchantID uuid.UUID   `json:"merchantId"`
	Amount     json.Number `json:"amount"`
	Currency   string      `json:"currency"`
	Status     string      `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
}

type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// TransactionPage is also the cached value, so its JSON shape is the
// cache format.
type TransactionPage struct {
	Data []TransactionView `json:"data"`
	Meta PageMeta          `json:"meta"`
}

//go:generate mockgen -source=transaction.go -destination=../../../tests/mock/queries/transaction.go -package=queriesmock
type TransactionQueries interface {
	FindAll(ctx context.Context, merchantID uuid.UUID, page, limit int) (*TransactionPage, error)
	FindByID(ctx context.Context, merchantID, id uuid.UUID) (*TransactionView, error)
}

type transactionQueriesImpl struct {
	uow     shared.UnitOfWork
	cache   shared.PageCache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewTransactionQueries(uow shared.UnitOfWork, pageCache shared.PageCache, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) TransactionQueries {
	return &transactionQueriesImpl{
		uow:     uow,
		cache:   pageCache,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "transactions")),
		metrics: m,
	}
}

// NormalizePage applies the listing defaults and the limit cap.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = shared.DefaultPage
	}
	if limit < 1 {
		limit = shared.DefaultLimit
	}
	if limit > shared.MaxLimit {
		limit = shared.MaxLimit
	}
	return page, limit
}

func (q *transactionQueriesImpl) FindAll(ctx context.Context, merchantID uuid.UUID, page, limit int) (*TransactionPage, error) {
	page, limit = NormalizePage(page, limit)
	key := shared.PageCacheKey(merchantID, page, limit)

	var cached TransactionPage
	err := q.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		q.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return &cached, nil
	case errors.Is(err, cache.ErrCacheMiss):
		q.metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		q.metrics.CacheLookups.WithLabelValues("error").Inc()
		q.logger.Warn("cache read failed, falling back to database", slog.String("key", key), slog.String("error", err.Error()))
	}

	var (
		rows  []*transaction.Transaction
		total int64
	)
	err = q.uow.WithinReadOnly(ctx, func(ctx context.Context, tx shared.Tx) error {
		var derr error
		rows, total, derr = tx.Transactions().FindByMerchant(ctx, tx.DB(), merchantID, (page-1)*limit, limit)
		return derr
	})
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	result := &TransactionPage{
		Data: make([]TransactionView, 0, len(rows)),
		Meta: PageMeta{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages(total, limit),
		},
	}
	for _, t := range rows {
		result.Data = append(result.Data, *ToTransactionView(t))
	}

	if err := q.cache.Set(ctx, key, result, q.ttl); err != nil {
		q.logger.Warn("failed to cache transaction page", slog.String("key", key), slog.String("error", err.Error()))
	}
	return result, nil
}

func (q *transactionQueriesImpl) FindByID(ctx context.Context, merchantID, id uuid.UUID) (*TransactionView, error) {
	var found *transaction.Transaction
	err := q.uow.WithDB(ctx, func(ctx context.Context, tx shared.Tx) error {
		var derr error
		found, derr = tx.Transactions().FindByID(ctx, tx.DB(), id)
		return derr
	})
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrTransactionNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	// Someone else's transaction reads as absent.
	if found.MerchantID() != merchantID {
		return nil, errs.ErrTransactionNotFound
	}
	return ToTransactionView(found), nil
}

func ToTransactionView(t *transaction.Transaction) *TransactionView {
	return &TransactionView{
		ID:         t.ID(),
		MerchantID: t.MerchantID(),
		Amount:     json.Number(t.Amount().String()),
		Currency:   t.Currency().Value(),
		Status:     t.Status().String(),
		CreatedAt:  t.CreatedAt(),
	}
}

func totalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	l := int64(limit)
	return int((total + l - 1) / l)
}
