package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"nearbridge/internal/model"
	"nearbridge/internal/pagerduty"
	"nearbridge/internal/storage"
)

// Sink delivers one alert and reports the number of attempts made.
type Sink interface {
	Trigger(ctx context.Context, alert model.Alert) (pagerduty.Response, int, error)
}

// Task is one alert queued for delivery, with the identity fields the
// journal records.
type Task struct {
	Alert        model.Alert
	Subscription string
	AccountID    string
	TxHash       string
}

// Dispatcher runs a fixed pool of delivery workers over a bounded queue.
// Enqueue blocks when the queue is full, so slow deliveries throttle the
// read loop instead of growing memory without bound.
type Dispatcher struct {
	sink    Sink
	journal storage.Journal
	logger  *zap.Logger
	queue   chan Task
	workers int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(sink Sink, journal storage.Journal, workers, queueSize int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = storage.NopJournal{}
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sink:    sink,
		journal: journal,
		logger:  logger,
		queue:   make(chan Task, queueSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Enqueue queues one alert for delivery, blocking while the queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, task Task) error {
	select {
	case d.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
}

// Shutdown stops accepting work and lets in-flight deliveries finish within
// the grace period. Deliveries still pending afterwards are abandoned and
// journaled, not silently dropped.
func (d *Dispatcher) Shutdown(grace time.Duration) {
	close(d.queue)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		d.logger.Warn("shutdown grace elapsed, abandoning pending deliveries",
			zap.Duration("grace", grace),
		)
		d.cancel()
		<-done
	}
	d.cancel()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for task := range d.queue {
		d.deliver(task)
	}
}

func (d *Dispatcher) deliver(task Task) {
	resp, attempts, err := d.sink.Trigger(d.ctx, task.Alert)

	record := model.DeliveryRecord{
		Subscription: task.Subscription,
		DedupKey:     task.Alert.DedupKey,
		Summary:      task.Alert.Payload.Summary,
		Severity:     task.Alert.Payload.Severity,
		Status:       model.DeliveryDelivered,
		Attempts:     attempts,
		AccountID:    task.AccountID,
		TxHash:       task.TxHash,
		DeliveredAt:  time.Now().UTC().Format(time.RFC3339),
	}

	switch {
	case err == nil:
		d.logger.Info("alert delivered",
			zap.String("subscription", task.Subscription),
			zap.String("dedup_key", resp.DedupKey),
			zap.Int("attempts", attempts),
		)
	case d.ctx.Err() != nil:
		record.Status = model.DeliveryAbandoned
		record.Error = err.Error()
		d.logger.Warn("alert abandoned during shutdown",
			zap.String("subscription", task.Subscription),
			zap.String("dedup_key", task.Alert.DedupKey),
		)
	default:
		record.Status = model.DeliveryFailed
		record.Error = err.Error()
		d.logger.Error("alert delivery failed",
			zap.String("subscription", task.Subscription),
			zap.String("dedup_key", task.Alert.DedupKey),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	}

	if err := d.journal.Append([]model.DeliveryRecord{record}); err != nil {
		d.logger.Warn("journal write failed", zap.Error(err))
	}
}
