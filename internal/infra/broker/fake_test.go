//go:build unit

package broker_test

import (
	"context"
	"errors"
	"sync"

	"merchant-backend/internal/infra/broker"

	amqp "github.com/rabbitmq/amqp091-go"
)

type binding struct {
	queue, key, exchange string
}

type fakeChannel struct {
	mu sync.Mutex

	confirm     bool
	prefetch    int
	exchanges   map[string]string
	queues      []string
	bindings    []binding
	published   []amqp.Publishing
	publishKeys []string
	publishErr  error
	consumers   int
	deliveries  chan amqp.Delivery
	notify      []chan *amqp.Error
	closed      bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		exchanges:  map[string]string{},
		deliveries: make(chan amqp.Delivery, 16),
	}
}

func (f *fakeChannel) Confirm(bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirm = true
	return nil
}

func (f *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefetch = prefetchCount
	return nil
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !durable {
		return errors.New("exchange must be durable")
	}
	f.exchanges[name] = kind
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.queues = append(f.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings = append(f.bindings, binding{queue: name, key: key, exchange: exchange})
	return nil
}

func (f *fakeChannel) PublishWithDeferredConfirmWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.published = append(f.published, msg)
	f.publishKeys = append(f.publishKeys, key)
	return nil, nil
}

func (f *fakeChannel) Consume(_, _ string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if autoAck {
		return nil, errors.New("consumer must use manual ack")
	}
	f.consumers++
	return f.deliveries, nil
}

func (f *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify = append(f.notify, receiver)
	return receiver
}

func (f *fakeChannel) Close() error {
	f.shutdown(nil)
	return nil
}

// drop simulates the broker killing the channel.
func (f *fakeChannel) drop() {
	f.shutdown(&amqp.Error{Code: amqp.ChannelError, Reason: "channel killed"})
}

func (f *fakeChannel) shutdown(reason *amqp.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, n := range f.notify {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
	close(f.deliveries)
}

func (f *fakeChannel) deliver(d amqp.Delivery) {
	f.deliveries <- d
}

func (f *fakeChannel) snapshot() (published []amqp.Publishing, keys []string, consumers int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]amqp.Publishing(nil), f.published...), append([]string(nil), f.publishKeys...), f.consumers, f.closed
}

type fakeConnection struct {
	mu     sync.Mutex
	ch     *fakeChannel
	notify []chan *amqp.Error
	closed bool
}

func (f *fakeConnection) Channel() (broker.Channel, error) {
	return f.ch, nil
}

func (f *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify = append(f.notify, receiver)
	return receiver
}

func (f *fakeConnection) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return amqp.ErrClosed
	}
	f.closed = true
	for _, n := range f.notify {
		close(n)
	}
	return nil
}

func (f *fakeConnection) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeBroker hands out a fresh connection per dial and can refuse the first
// failures dials.
type fakeBroker struct {
	mu       sync.Mutex
	failures int
	dials    int
	conns    []*fakeConnection
}

func (b *fakeBroker) dial(string) (broker.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.failures != 0 {
		if b.failures > 0 {
			b.failures--
		}
		return nil, errors.New("connection refused")
	}
	conn := &fakeConnection{ch: newFakeChannel()}
	b.conns = append(b.conns, conn)
	return conn, nil
}

func (b *fakeBroker) latest() *fakeConnection {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		return nil
	}
	return b.conns[len(b.conns)-1]
}

func (b *fakeBroker) connCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) counts() (acked, nacked int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acked), len(a.nacked)
}

func (a *fakeAcknowledger) anyRequeued() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.requeue {
		if r {
			return true
		}
	}
	return false
}
