package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"merchant-backend/internal/pkg/errs"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes one decoded delivery body. A returned error, or a
// panic, nacks the delivery without requeue.
type HandlerFunc func(ctx context.Context, body json.RawMessage) error

// JSONHandler decodes the body into T before calling fn.
func JSONHandler[T any](fn func(ctx context.Context, msg T) error) HandlerFunc {
	return func(ctx context.Context, body json.RawMessage) error {
		var msg T
		if err := json.Unmarshal(body, &msg); err != nil {
			return errs.Wrap(err, "failed to decode message")
		}
		return fn(ctx, msg)
	}
}

// Consume waits for the connection and registers handler as the single
// consumer of the queue. The registration is restored after every reconnect.
func (c *Client) Consume(ctx context.Context, handler HandlerFunc) error {
	if err := c.WaitForConnection(ctx, c.opts.ConnectTimeout); err != nil {
		return err
	}

	c.mu.Lock()
	if c.handler != nil {
		c.mu.Unlock()
		return ErrAlreadyConsuming
	}
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.handler = handler
	ch := c.ch
	ready := c.state == StateReady && ch != nil
	c.mu.Unlock()

	// Lost the connection between the wait and the lock: the supervisor will
	// start the consumer once it reconnects.
	if !ready {
		return nil
	}

	runCtx := c.runContext()
	if err := c.startConsumer(runCtx, ch, handler); err != nil {
		c.mu.Lock()
		c.handler = nil
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Client) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runCtx == nil {
		return context.Background()
	}
	return c.runCtx
}

func (c *Client) startConsumer(ctx context.Context, ch Channel, handler HandlerFunc) error {
	deliveries, err := ch.Consume(c.opts.Queue, "", false, false, false, false, nil)
	if err != nil {
		return errs.Wrapf(err, "failed to consume from %s", c.opts.Queue)
	}

	go func() {
		for d := range deliveries {
			if !c.beginDelivery() {
				// Unacked deliveries are requeued by the broker when the
				// channel closes.
				return
			}
			c.handleDelivery(ctx, d, handler)
			c.inflight.Done()
		}
	}()

	c.logger.Info("consumer registered and ready", slog.String("queue", c.opts.Queue))
	return nil
}

func (c *Client) beginDelivery() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return false
	}
	c.inflight.Add(1)
	return true
}

func (c *Client) handleDelivery(ctx context.Context, d amqp.Delivery, handler HandlerFunc) {
	logger := c.logger.With(slog.Uint64("delivery_tag", d.DeliveryTag))

	if !json.Valid(d.Body) {
		logger.Error("dropping delivery with invalid JSON body")
		c.metrics.BrokerDeliveries.WithLabelValues("nack_invalid").Inc()
		if err := d.Nack(false, false); err != nil {
			logger.Warn("failed to nack delivery", slog.String("error", err.Error()))
		}
		return
	}

	// Shutdown does not cancel a handler that is already running, only the
	// per-message timeout does.
	hctx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc = func() {}
	if c.opts.HandlerTimeout > 0 {
		hctx, cancel = context.WithTimeout(hctx, c.opts.HandlerTimeout)
	}
	err := invoke(hctx, handler, d.Body)
	cancel()

	if err != nil {
		logger.Error("error processing message", slog.String("error", err.Error()))
		c.metrics.BrokerDeliveries.WithLabelValues("nack_failed").Inc()
		if nackErr := d.Nack(false, false); nackErr != nil {
			logger.Warn("failed to nack delivery", slog.String("error", nackErr.Error()))
		}
		return
	}

	c.metrics.BrokerDeliveries.WithLabelValues("ack").Inc()
	if ackErr := d.Ack(false); ackErr != nil {
		logger.Warn("failed to ack delivery", slog.String("error", ackErr.Error()))
		return
	}
	logger.Debug("message processed successfully")
}

func invoke(ctx context.Context, handler HandlerFunc, body json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.Mark(fmt.Errorf("handler panic: %v", r), ErrHandlerFailure)
		}
	}()
	if err := handler(ctx, body); err != nil {
		return errs.Mark(err, ErrHandlerFailure)
	}
	return nil
}
