// Package sharedtest provides in-memory implementations of the usecase ports
// for tests.
package sharedtest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"merchant-backend/internal/domain/transaction"
	"merchant-backend/internal/infra"
	"merchant-backend/internal/infra/cache"
	"merchant-backend/internal/infra/sqlc"
	"merchant-backend/internal/usecase/shared"

	"github.com/google/uuid"
)

// UnitOfWork keeps transactions in a map. Merchants, when non-nil, restricts
// which merchant ids may own a transaction.
type UnitOfWork struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*transaction.Transaction
	Merchants map[uuid.UUID]bool
	// Err is returned by every repository call when set.
	Err error

	ReadOnlyCalls int
}

func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{rows: map[uuid.UUID]*transaction.Transaction{}}
}

func (u *UnitOfWork) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	return fn(ctx, memTx{u})
}

func (u *UnitOfWork) WithinReadOnly(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	u.mu.Lock()
	u.ReadOnlyCalls++
	u.mu.Unlock()
	return fn(ctx, memTx{u})
}

func (u *UnitOfWork) WithDB(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	return fn(ctx, memTx{u})
}

// Put stores t as is.
func (u *UnitOfWork) Put(t *transaction.Transaction) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rows[t.ID()] = clone(t)
}

func (u *UnitOfWork) Get(id uuid.UUID) (*transaction.Transaction, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t, ok := u.rows[id]
	if !ok {
		return nil, false
	}
	return clone(t), true
}

func (u *UnitOfWork) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rows)
}

type memTx struct {
	u *UnitOfWork
}

func (t memTx) Transactions() shared.TransactionRepository { return memRepo(t) }
func (t memTx) DB() sqlc.DBTX                              { return nil }

type memRepo struct {
	u *UnitOfWork
}

func (r memRepo) Create(_ context.Context, _ sqlc.DBTX, t *transaction.Transaction) (*transaction.Transaction, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if r.u.Err != nil {
		return nil, r.u.Err
	}
	if r.u.Merchants != nil && !r.u.Merchants[t.MerchantID()] {
		return nil, infra.RepositoryError{Kind: infra.KindForeignKeyViolated}
	}
	r.u.rows[t.ID()] = clone(t)
	return clone(t), nil
}

func (r memRepo) FindByID(_ context.Context, _ sqlc.DBTX, id uuid.UUID) (*transaction.Transaction, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if r.u.Err != nil {
		return nil, r.u.Err
	}
	t, ok := r.u.rows[id]
	if !ok {
		return nil, infra.NotFound("transaction not found", nil)
	}
	return clone(t), nil
}

func (r memRepo) SettlePending(_ context.Context, _ sqlc.DBTX, id uuid.UUID, status transaction.Status) (bool, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if r.u.Err != nil {
		return false, r.u.Err
	}
	t, ok := r.u.rows[id]
	if !ok || t.Status() != transaction.StatusPending {
		return false, nil
	}
	r.u.rows[id] = transaction.ReconstructTransaction(t.ID(), t.MerchantID(), t.Amount(), t.Currency(), status, t.CreatedAt())
	return true, nil
}

func (r memRepo) FindByMerchant(_ context.Context, _ sqlc.DBTX, merchantID uuid.UUID, skip, take int) ([]*transaction.Transaction, int64, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if r.u.Err != nil {
		return nil, 0, r.u.Err
	}

	var owned []*transaction.Transaction
	for _, t := range r.u.rows {
		if t.MerchantID() == merchantID {
			owned = append(owned, t)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt().Equal(owned[j].CreatedAt()) {
			return owned[i].CreatedAt().After(owned[j].CreatedAt())
		}
		return owned[i].ID().String() > owned[j].ID().String()
	})

	items := []*transaction.Transaction{}
	for i := skip; i < len(owned) && i < skip+take; i++ {
		items = append(items, clone(owned[i]))
	}
	return items, int64(len(owned)), nil
}

func clone(t *transaction.Transaction) *transaction.Transaction {
	return transaction.ReconstructTransaction(t.ID(), t.MerchantID(), t.Amount(), t.Currency(), t.Status(), t.CreatedAt())
}

// PageCache stores JSON like the redis store does.
type PageCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	TTLs    map[string]time.Duration
	Deleted []string

	GetErr, SetErr, DeleteErr error
}

func NewPageCache() *PageCache {
	return &PageCache{entries: map[string][]byte{}, TTLs: map[string]time.Duration{}}
}

func (c *PageCache) Get(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return c.GetErr
	}
	raw, ok := c.entries[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *PageCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	c.TTLs[key] = ttl
	return nil
}

func (c *PageCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deleted = append(c.Deleted, keys...)
	if c.DeleteErr != nil {
		return c.DeleteErr
	}
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *PageCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Publisher records published events on a buffered channel.
type Publisher struct {
	Events chan any
	Err    error
	// Block holds every publish until its context is done.
	Block bool
}

func NewPublisher() *Publisher {
	return &Publisher{Events: make(chan any, 16)}
}

func (p *Publisher) PublishTransactionCreated(ctx context.Context, event any) error {
	if p.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	if p.Err != nil {
		return p.Err
	}
	p.Events <- event
	return nil
}
