package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	cacheKeyPrefix = "transactions"

	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageCacheKey addresses one cached listing page.
func PageCacheKey(merchantID uuid.UUID, page, limit int) string {
	return fmt.Sprintf("%s:%s:%d:%d", cacheKeyPrefix, merchantID, page, limit)
}

// FirstPageCacheKey is the only key busted on writes. Other pages of the
// merchant stay stale until their TTL runs out.
func FirstPageCacheKey(merchantID uuid.UUID) string {
	return PageCacheKey(merchantID, DefaultPage, DefaultLimit)
}

type PageCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, event any) error
}
