package webhooks

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// MetricsRecorder is an interface for recording webhook metrics
type MetricsRecorder interface {
	RecordEvent(eventType string)
	RecordDelivery(eventType, status string)
	RecordDeliveryDuration(eventType string, duration time.Duration)
	RecordRetry(eventType string)
	RecordDroppedEvent()
	SetQueueSize(size int)
}

// Dispatcher handles asynchronous webhook delivery. Events are queued by
// Emit and fanned out by a fixed pool of workers; a failed delivery is
// retried in place until the endpoint's retry budget is spent.
type Dispatcher struct {
	endpoints   []Endpoint
	client      *http.Client
	eventChan   chan *Event
	workerCount int
	metrics     MetricsRecorder

	// retryDelay is swapped out by tests
	retryDelay func(attempt int) time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a new webhook dispatcher. Endpoints are expected to
// have passed Validate.
func NewDispatcher(endpoints []Endpoint, workerCount, bufferSize int, metrics MetricsRecorder) *Dispatcher {
	if workerCount <= 0 {
		workerCount = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		endpoints:   endpoints,
		client:      newHTTPClient(),
		eventChan:   make(chan *Event, bufferSize),
		workerCount: workerCount,
		metrics:     metrics,
		retryDelay:  CalculateRetryDelay,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the webhook dispatcher workers
func (d *Dispatcher) Start() {
	slog.Info("starting webhook dispatcher", "workers", d.workerCount, "endpoints", len(d.endpoints))

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Shutdown stops accepting events and waits for queued ones to be handled.
// Pending retry waits are abandoned once ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if !d.closed {
		slog.Info("shutting down webhook dispatcher", "queued", len(d.eventChan))
		d.closed = true
		close(d.eventChan)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
	}
	d.cancel()

	slog.Info("webhook dispatcher shutdown complete")
}

// Emit queues an event for delivery without blocking. Events are dropped
// when the queue is full or the dispatcher is shutting down.
func (d *Dispatcher) Emit(event *Event) {
	if event == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		slog.Warn("webhook dispatcher shutting down, dropping event", "event_type", event.Type)
		d.metrics.RecordDroppedEvent()
		return
	}

	select {
	case d.eventChan <- event:
		d.metrics.RecordEvent(string(event.Type))
		d.metrics.SetQueueSize(len(d.eventChan))
	default:
		slog.Warn("webhook event channel full, dropping event", "event_type", event.Type)
		d.metrics.RecordDroppedEvent()
	}
}

// GetQueueSize returns the current size of the event queue
func (d *Dispatcher) GetQueueSize() int {
	return len(d.eventChan)
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	slog.Debug("webhook worker started", "worker_id", id)
	for event := range d.eventChan {
		d.processEvent(event)
		d.metrics.SetQueueSize(len(d.eventChan))
	}
	slog.Debug("webhook worker stopped", "worker_id", id)
}

// processEvent delivers event to every subscribed endpoint
func (d *Dispatcher) processEvent(event *Event) {
	for i := range d.endpoints {
		ep := &d.endpoints[i]
		if !ep.SubscribedTo(event.Type) {
			continue
		}

		payload, err := TransformPayload(event, ep.Format)
		if err != nil {
			slog.Error("failed to transform event payload", "error", err, "format", ep.Format)
			continue
		}

		d.deliverWithRetry(ep, event.Type, payload)
	}
}

func (d *Dispatcher) deliverWithRetry(ep *Endpoint, eventType EventType, payload string) {
	label := string(eventType)

	for attempt := 1; ; attempt++ {
		start := time.Now()
		result := deliver(d.ctx, d.client, ep, eventType, payload)
		d.metrics.RecordDeliveryDuration(label, time.Since(start))

		if result.Success {
			d.metrics.RecordDelivery(label, "success")
			return
		}

		if !ShouldRetry(attempt, ep.MaxRetries) {
			d.metrics.RecordDelivery(label, "failed")
			slog.Error("webhook delivery failed after max retries",
				"url", ep.URL,
				"event_type", label,
				"attempts", attempt,
				"error", result.Error)
			return
		}

		delay := d.retryDelay(attempt - 1)
		d.metrics.RecordRetry(label)
		slog.Info("webhook delivery failed, scheduling retry",
			"url", ep.URL,
			"attempt", attempt,
			"max_retries", ep.MaxRetries,
			"delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-d.ctx.Done():
			timer.Stop()
			d.metrics.RecordDelivery(label, "abandoned")
			return
		}
	}
}
