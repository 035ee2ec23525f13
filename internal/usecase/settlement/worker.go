package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"merchant-backend/internal/domain/transaction"
	"merchant-backend/internal/infra/broker"
	"merchant-backend/internal/pkg/errs"
	"merchant-backend/internal/pkg/metrics"

	"github.com/google/uuid"
)

const (
	DefaultProcessingDelay = 5 * time.Second
	compensationTimeout    = 10 * time.Second
)

var (
	ErrSettlementFailed = errs.New("settlement failed")
	ErrInvalidDecision  = errs.New("decider returned a non-terminal status")
)

type Consumer interface {
	Consume(ctx context.Context, handler broker.HandlerFunc) error
}

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status transaction.Status) error
}

// Worker settles transactions announced by created events, one at a time.
type Worker struct {
	consumer Consumer
	updater  StatusUpdater
	decider  Decider
	delay    time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewWorker(consumer Consumer, updater StatusUpdater, decider Decider, delay time.Duration, logger *slog.Logger, m *metrics.Metrics) *Worker {
	if delay <= 0 {
		delay = DefaultProcessingDelay
	}
	return &Worker{
		consumer: consumer,
		updater:  updater,
		decider:  decider,
		delay:    delay,
		logger:   logger.With(slog.String("component", "settlement")),
		metrics:  m,
	}
}

// Start registers the worker as the queue consumer.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.consumer.Consume(ctx, broker.JSONHandler(w.Process)); err != nil {
		return errs.Wrap(err, "failed to start settlement consumer")
	}
	w.logger.Info("settlement worker started", slog.Duration("processing_delay", w.delay))
	return nil
}

// Process settles one transaction. Any failure after the event is accepted
// forces the transaction to FAILED before the error is returned, so nothing
// stays PENDING because of this worker.
func (w *Worker) Process(ctx context.Context, event transaction.CreatedEvent) (err error) {
	if verr := event.Validate(); verr != nil {
		return errs.Mark(verr, ErrSettlementFailed)
	}

	logger := w.logger.With(slog.String("transaction_id", event.ID.String()))
	logger.Info("processing transaction")

	defer func() {
		if r := recover(); r != nil {
			err = errs.Mark(fmt.Errorf("settlement panic: %v", r), ErrSettlementFailed)
			logger.Error("unexpected panic while processing transaction", slog.Any("panic", r))
			w.compensate(ctx, logger, event.ID)
		}
	}()

	status, serr := w.settle(ctx, event)
	if serr != nil {
		if errs.Is(serr, transaction.ErrInvalidTransition) {
			// Settled by an earlier delivery; its outcome stands.
			logger.Warn("transaction already settled", slog.String("error", serr.Error()))
			return errs.Mark(serr, ErrSettlementFailed)
		}
		logger.Error("unexpected error while processing transaction", slog.String("error", serr.Error()))
		w.compensate(ctx, logger, event.ID)
		return errs.Mark(serr, ErrSettlementFailed)
	}

	w.metrics.SettlementOutcomes.WithLabelValues(status.String()).Inc()
	if status == transaction.StatusSuccess {
		logger.Info("transaction completed successfully")
	} else {
		logger.Warn("transaction failed during processing")
	}
	return nil
}

func (w *Worker) settle(ctx context.Context, event transaction.CreatedEvent) (transaction.Status, error) {
	if err := sleep(ctx, w.delay); err != nil {
		return "", err
	}

	status := w.decider.Decide(ctx, event)
	if !status.IsTerminal() {
		return "", ErrInvalidDecision
	}

	if err := w.updater.UpdateStatus(ctx, event.ID, status); err != nil {
		return "", err
	}
	return status, nil
}

// compensate marks the transaction FAILED on a context that survives the
// handler's own cancellation or timeout.
func (w *Worker) compensate(ctx context.Context, logger *slog.Logger, id uuid.UUID) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	w.metrics.SettlementOutcomes.WithLabelValues("compensated").Inc()
	if err := w.updater.UpdateStatus(cctx, id, transaction.StatusFailed); err != nil {
		logger.Error("failed to mark transaction as failed", slog.String("error", err.Error()))
		return
	}
	logger.Warn("transaction marked as failed after processing error")
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
