package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"attendance-guard/internal/models"
)

var (
	ErrQueueFull = errors.New("alert queue full")
	ErrClosed    = errors.New("alert dispatcher closed")
)

// Notifier confirms recorded attendance to the employee
type Notifier interface {
	NotifyAttendance(emp *models.Employee, res *models.VerificationResult)
}

type job struct {
	kind string
	id   string
	run  func(ctx context.Context) error
}

// Dispatcher hands alerts and notifications to a buffered queue drained by
// background workers, so callers never wait on Telegram or Kafka. Each
// delivery gets its own timeout; the caller's context is not used because
// it usually ends with the request.
type Dispatcher struct {
	sink     Sink
	notifier Notifier
	logger   *zap.Logger

	queue     chan job
	queueSize int
	workers   int
	timeout   time.Duration

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithNotifier routes attendance confirmations through the queue
func WithNotifier(n Notifier) DispatcherOption {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithQueueSize bounds the number of pending deliveries
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.queueSize = n }
}

// WithWorkers sets the number of delivery goroutines. One worker keeps
// alerts in submission order.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) { d.workers = n }
}

// WithDeliveryTimeout bounds a single delivery
func WithDeliveryTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// NewDispatcher starts the workers. sink may be nil when only
// notifications are dispatched.
func NewDispatcher(sink Sink, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:      sink,
		logger:    logger,
		queueSize: 256,
		workers:   1,
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 1 {
		d.workers = 1
	}

	d.queue = make(chan job, d.queueSize)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// AlertTamper queues a tamper alert
func (d *Dispatcher) AlertTamper(_ context.Context, rec *models.TamperRecord) error {
	if d.sink == nil {
		return nil
	}
	snapshot := *rec
	return d.enqueue(job{kind: "tamper", id: rec.ID, run: func(ctx context.Context) error {
		return d.sink.AlertTamper(ctx, &snapshot)
	}})
}

// AlertAudit queues an audit alert
func (d *Dispatcher) AlertAudit(_ context.Context, rec *models.AuditRecord) error {
	if d.sink == nil {
		return nil
	}
	snapshot := *rec
	return d.enqueue(job{kind: "audit", id: rec.ID, run: func(ctx context.Context) error {
		return d.sink.AlertAudit(ctx, &snapshot)
	}})
}

// NotifyAttendance queues the employee confirmation
func (d *Dispatcher) NotifyAttendance(emp *models.Employee, res *models.VerificationResult) {
	if d.notifier == nil {
		return
	}
	e, r := *emp, *res
	_ = d.enqueue(job{kind: "attendance", id: emp.ID, run: func(context.Context) error {
		d.notifier.NotifyAttendance(&e, &r)
		return nil
	}})
}

func (d *Dispatcher) enqueue(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- j:
		return nil
	default:
		d.dropped.Add(1)
		d.logger.Warn("Alert queue full, dropping delivery",
			zap.String("kind", j.kind),
			zap.String("id", j.id),
			zap.Int("queue_size", d.queueSize),
		)
		return fmt.Errorf("%s %s: %w", j.kind, j.id, ErrQueueFull)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := j.run(ctx)
		cancel()
		if err != nil {
			d.logger.Error("Alert delivery failed",
				zap.String("kind", j.kind),
				zap.String("id", j.id),
				zap.Error(err),
			)
		}
	}
}

// Pending returns the number of queued deliveries
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Dropped returns the number of deliveries rejected by a full queue
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Shutdown stops accepting deliveries and waits until the queue is drained
// or ctx is done
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("alert queue not drained, %d pending: %w", len(d.queue), ctx.Err())
	}
}
