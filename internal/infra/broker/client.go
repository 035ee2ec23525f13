package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/internal/pkg/errs"
	"merchant-backend/internal/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrConnectionTimeout = errs.New("broker connection timeout")
	ErrPublishDegraded   = errs.New("broker not ready, message dropped")
	ErrPublishNacked     = errs.New("broker rejected published message")
	ErrHandlerFailure    = errs.New("message handler failed")
	ErrAlreadyConsuming  = errs.New("consumer already registered")
	ErrClientClosed      = errs.New("broker client closed")
)

const (
	exchangeKind     = "topic"
	readinessPoll    = 100 * time.Millisecond
	contentTypeJSON  = "application/json"
	defaultPrefetch  = 1
	defaultPublishTO = 5 * time.Second
)

type Options struct {
	URL            string
	Exchange       string
	Queue          string
	RoutingKey     string
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	PublishTimeout time.Duration
	HandlerTimeout time.Duration
	Prefetch       int
}

func OptionsFromConfig(cfg config.RabbitMQConfig) Options {
	return Options{
		URL:            cfg.URL,
		Exchange:       cfg.Exchange,
		Queue:          cfg.Queue,
		RoutingKey:     cfg.RoutingKey,
		ConnectTimeout: cfg.ConnectTimeout,
		ReconnectDelay: cfg.ReconnectDelay,
		PublishTimeout: cfg.PublishTimeout,
		HandlerTimeout: cfg.HandlerTimeout,
		Prefetch:       cfg.Prefetch,
	}
}

// Client keeps one managed connection and confirm-mode channel to the broker.
// A supervisor goroutine redials after every loss, redeclares the topology and
// restarts the registered consumer.
type Client struct {
	opts    Options
	dial    Dialer
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	state   State
	conn    Connection
	ch      Channel
	handler HandlerFunc
	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// inflight counts deliveries being handled. Add only happens under mu
	// while the client is not closed.
	inflight sync.WaitGroup
}

func NewClient(opts Options, dial Dialer, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *Client {
	if opts.Prefetch <= 0 {
		opts.Prefetch = defaultPrefetch
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTO
	}
	return &Client{
		opts:    opts,
		dial:    dial,
		clock:   clk,
		logger:  logger.With(slog.String("component", "broker")),
		metrics: m,
		state:   StateIdle,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) IsConnected() bool {
	return c.State() == StateReady
}

// fire applies ev and reports whether the state changed. Callers hold mu.
func (c *Client) fire(ev event) bool {
	to, ok := c.state.next(ev)
	if !ok {
		return false
	}
	c.logger.Debug("broker state change", slog.String("from", c.state.String()), slog.String("to", to.String()))
	c.state = to
	return true
}

// Connect starts the supervisor and waits up to ConnectTimeout for the first
// successful connection. On timeout the supervisor keeps redialing in the
// background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClientClosed
	case StateIdle:
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.runCtx, c.cancel = runCtx, cancel
		c.done = make(chan struct{})
		go c.supervise(runCtx, c.done)
	}
	c.mu.Unlock()

	return c.WaitForConnection(ctx, c.opts.ConnectTimeout)
}

// WaitForConnection blocks until the client is ready, the timeout elapses or
// ctx is done.
func (c *Client) WaitForConnection(ctx context.Context, timeout time.Duration) error {
	if c.IsConnected() {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(readinessPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrConnectionTimeout
		case <-ticker.C:
			switch c.State() {
			case StateReady:
				return nil
			case StateClosed:
				return ErrClientClosed
			}
		}
	}
}

func (c *Client) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		c.mu.Lock()
		if !c.fire(eventDial) {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		lost, err := c.establish(ctx)
		if err != nil {
			c.logger.Error("failed to connect to broker", slog.String("error", err.Error()))
			c.mu.Lock()
			c.fire(eventConnectFailed)
			c.mu.Unlock()
		} else {
			c.logger.Info("connected to broker",
				slog.String("exchange", c.opts.Exchange),
				slog.String("queue", c.opts.Queue))

			select {
			case <-ctx.Done():
				return
			case amqpErr := <-lost:
				c.mu.Lock()
				changed := c.fire(eventDisconnect)
				conn, ch := c.conn, c.ch
				c.conn, c.ch = nil, nil
				c.mu.Unlock()
				if !changed {
					return
				}
				attrs := []any{}
				if amqpErr != nil {
					attrs = append(attrs, slog.String("error", amqpErr.Error()))
				}
				c.logger.Warn("disconnected from broker", attrs...)
				closeQuietly(ch, conn)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// establish dials and prepares the channel. The returned channel yields once
// when either the connection or the channel goes away.
func (c *Client) establish(ctx context.Context) (<-chan *amqp.Error, error) {
	conn, err := c.dial(c.opts.URL)
	if err != nil {
		return nil, errs.Wrap(err, "dial")
	}

	ch, err := conn.Channel()
	if err != nil {
		closeQuietly(nil, conn)
		return nil, errs.Wrap(err, "open channel")
	}

	if err := c.setup(ch); err != nil {
		closeQuietly(ch, conn)
		return nil, err
	}

	lost := make(chan *amqp.Error, 1)
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		var amqpErr *amqp.Error
		select {
		case amqpErr = <-connClosed:
		case amqpErr = <-chClosed:
		case <-ctx.Done():
			return
		}
		lost <- amqpErr
	}()

	c.mu.Lock()
	if !c.fire(eventConnect) {
		c.mu.Unlock()
		closeQuietly(ch, conn)
		return nil, ErrClientClosed
	}
	c.conn, c.ch = conn, ch
	handler := c.handler
	c.mu.Unlock()

	if handler != nil {
		if err := c.startConsumer(ctx, ch, handler); err != nil {
			// Closing the channel trips the lost notification and the
			// supervisor redials.
			c.logger.Error("failed to restart consumer", slog.String("error", err.Error()))
			_ = ch.Close()
		}
	}

	return lost, nil
}

func (c *Client) setup(ch Channel) error {
	if err := ch.Confirm(false); err != nil {
		return errs.Wrap(err, "enable publisher confirms")
	}
	if err := ch.ExchangeDeclare(c.opts.Exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return errs.Wrapf(err, "declare exchange %s", c.opts.Exchange)
	}
	if _, err := ch.QueueDeclare(c.opts.Queue, true, false, false, false, nil); err != nil {
		return errs.Wrapf(err, "declare queue %s", c.opts.Queue)
	}
	if err := ch.QueueBind(c.opts.Queue, c.opts.RoutingKey, c.opts.Exchange, false, nil); err != nil {
		return errs.Wrapf(err, "bind queue %s", c.opts.Queue)
	}
	if err := ch.Qos(c.opts.Prefetch, 0, false); err != nil {
		return errs.Wrap(err, "set prefetch")
	}
	return nil
}

func (c *Client) readyChannel() (Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || c.ch == nil {
		return nil, false
	}
	return c.ch, true
}

// Publish sends message as persistent JSON and waits for the broker confirm.
// When the client is not ready the message is dropped and nil is returned.
func (c *Client) Publish(ctx context.Context, routingKey string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		c.metrics.BrokerPublishes.WithLabelValues("error").Inc()
		return errs.Wrap(err, "failed to encode message")
	}

	ch, ready := c.readyChannel()
	if !ready {
		c.metrics.BrokerPublishes.WithLabelValues("dropped").Inc()
		c.logger.Warn("broker not ready, skipping message publish",
			slog.String("routing_key", routingKey),
			slog.String("error", ErrPublishDegraded.Error()))
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, c.opts.PublishTimeout)
	defer cancel()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(pubCtx, c.opts.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    c.clock.Now(),
		Body:         body,
	})
	if err != nil {
		c.metrics.BrokerPublishes.WithLabelValues("error").Inc()
		return errs.Wrapf(err, "failed to publish message to %s", routingKey)
	}

	// nil when the channel is not in confirm mode
	if confirm != nil {
		acked, err := confirm.WaitContext(pubCtx)
		if err != nil {
			c.metrics.BrokerPublishes.WithLabelValues("error").Inc()
			return errs.Wrapf(err, "failed waiting for confirm on %s", routingKey)
		}
		if !acked {
			c.metrics.BrokerPublishes.WithLabelValues("nacked").Inc()
			return ErrPublishNacked
		}
	}

	c.metrics.BrokerPublishes.WithLabelValues("confirmed").Inc()
	c.logger.Debug("published message", slog.String("routing_key", routingKey))
	return nil
}

// PublishTransactionCreated publishes with the configured routing key.
func (c *Client) PublishTransactionCreated(ctx context.Context, event any) error {
	return c.Publish(ctx, c.opts.RoutingKey, event)
}

// Disconnect stops the supervisor, lets in-flight deliveries finish until ctx
// is done, then closes the channel and the connection. Errors are swallowed
// and repeated calls are no-ops.
func (c *Client) Disconnect(ctx context.Context) {
	c.mu.Lock()
	if !c.fire(eventClose) {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	conn, ch := c.conn, c.ch
	c.conn, c.ch = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		c.logger.Warn("shutdown with deliveries still in flight")
	}

	closeQuietly(ch, conn)

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	c.logger.Info("disconnected from broker")
}

func closeQuietly(ch Channel, conn Connection) {
	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}
