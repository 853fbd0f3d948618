package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"academy/internal/platform/kafka/producer"
	"academy/pkg/platform/audit/outbox"
	"academy/pkg/platform/audit/outbox/metrics"
)

// Publisher is the subset of the Kafka producer the worker needs.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox and publishes pending entries to Kafka.
// Delivery is at-least-once; consumers dedupe on the message key.
type Worker struct {
	store        outbox.Store
	publisher    Publisher
	topic        string
	batchSize    int
	pollInterval time.Duration
	retention    time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Worker.
type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) {
		if topic != "" {
			w.topic = topic
		}
	}
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithRetention sets how long processed entries are kept before cleanup. Zero disables cleanup.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		w.retention = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates a new outbox worker.
func New(store outbox.Store, publisher Publisher, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:        store,
		publisher:    publisher,
		topic:        "academy.credentials.events",
		batchSize:    100,
		pollInterval: 500 * time.Millisecond,
		retention:    7 * 24 * time.Hour,
		logger:       slog.Default(),
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	lastCleanup := time.Now()
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.Poll(w.ctx)
			if w.retention > 0 && time.Since(lastCleanup) > time.Hour {
				w.cleanup(w.ctx)
				lastCleanup = time.Now()
			}
		}
	}
}

// Poll publishes one batch and returns how many entries were published.
func (w *Worker) Poll(ctx context.Context) int {
	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.ObservePollDuration(time.Since(start).Seconds())
		}
	}()

	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to fetch outbox entries", "error", err)
		if w.metrics != nil {
			w.metrics.IncPublishFailures()
		}
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	if w.metrics != nil {
		w.metrics.ObserveBatchSize(len(entries))
	}

	published := 0
	for _, entry := range entries {
		if err := w.publishEntry(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			if w.metrics != nil {
				w.metrics.IncPublishFailures()
			}
			continue
		}

		if err := w.store.MarkProcessed(ctx, entry.ID, time.Now()); err != nil {
			// Published but not marked: it will be re-published and deduped downstream.
			w.logger.ErrorContext(ctx, "failed to mark entry as processed",
				"id", entry.ID,
				"error", err,
			)
			continue
		}

		published++
		if w.metrics != nil {
			w.metrics.IncPublished()
		}
	}
	return published
}

func (w *Worker) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()

	err := w.publisher.Produce(ctx, &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.ID.String()),
		Value: entry.Payload,
		Headers: map[string]string{
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID,
			"event_type":     entry.EventType,
		},
	})
	if err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	}
	return nil
}

func (w *Worker) cleanup(ctx context.Context) {
	deleted, err := w.store.DeleteProcessedBefore(ctx, time.Now().Add(-w.retention))
	if err != nil {
		w.logger.WarnContext(ctx, "outbox cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		w.logger.InfoContext(ctx, "outbox cleanup", "deleted", deleted)
	}
}

// drain publishes what is left during shutdown, bounded by a short timeout.
func (w *Worker) drain() {
	w.logger.Info("draining outbox worker")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		if w.Poll(ctx) == 0 {
			return
		}
	}
}

// Stop cancels polling and waits for the drain to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateMetrics refreshes the pending depth gauge.
func (w *Worker) UpdateMetrics(ctx context.Context) error {
	if w.metrics == nil {
		return nil
	}
	count, err := w.store.CountPending(ctx)
	if err != nil {
		return err
	}
	w.metrics.SetPendingDepth(count)
	return nil
}
