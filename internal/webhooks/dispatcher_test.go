package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// MockMetricsRecorder implements MetricsRecorder for testing
type MockMetricsRecorder struct {
	mu            sync.Mutex
	events        int
	deliveries    map[string]int
	retries       int
	droppedEvents int
	queueSize     int
}

func newMockMetrics() *MockMetricsRecorder {
	return &MockMetricsRecorder{deliveries: make(map[string]int)}
}

func (m *MockMetricsRecorder) RecordEvent(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events++
}

func (m *MockMetricsRecorder) RecordDelivery(eventType, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[status]++
}

func (m *MockMetricsRecorder) RecordDeliveryDuration(eventType string, duration time.Duration) {}

func (m *MockMetricsRecorder) RecordRetry(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *MockMetricsRecorder) RecordDroppedEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedEvents++
}

func (m *MockMetricsRecorder) SetQueueSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueSize = size
}

func (m *MockMetricsRecorder) delivered(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveries[status]
}

func validEndpoint(t *testing.T, ep Endpoint) Endpoint {
	t.Helper()
	if err := ep.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return ep
}

// shutdown drains the dispatcher and fails the test if it hangs
func shutdown(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.Shutdown(ctx)
}

func TestNewDispatcher(t *testing.T) {
	d := NewDispatcher(nil, 5, 1000, newMockMetrics())
	if d.workerCount != 5 {
		t.Errorf("workerCount = %d, want 5", d.workerCount)
	}
	if cap(d.eventChan) != 1000 {
		t.Errorf("eventChan capacity = %d, want 1000", cap(d.eventChan))
	}

	d = NewDispatcher(nil, 0, -1, newMockMetrics())
	if d.workerCount != 1 || cap(d.eventChan) != 0 {
		t.Errorf("invalid sizes not clamped: workers=%d cap=%d", d.workerCount, cap(d.eventChan))
	}
}

func TestDispatcher_DeliversToSubscribedEndpoints(t *testing.T) {
	var accessed, all atomic.Int32
	accessedOnly := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessed.Add(1)
	}))
	defer accessedOnly.Close()
	everything := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		all.Add(1)
	}))
	defer everything.Close()

	metrics := newMockMetrics()
	d := NewDispatcher([]Endpoint{
		validEndpoint(t, Endpoint{URL: accessedOnly.URL, Events: []string{"deck.accessed"}}),
		validEndpoint(t, Endpoint{URL: everything.URL, Format: FormatDiscord}),
	}, 2, 10, metrics)
	d.Start()

	d.Emit(sampleEvent(EventDeckAccessed))
	d.Emit(sampleEvent(EventDeckCreated))
	shutdown(t, d)

	if accessed.Load() != 1 {
		t.Errorf("accessed-only endpoint got %d deliveries, want 1", accessed.Load())
	}
	if all.Load() != 2 {
		t.Errorf("catch-all endpoint got %d deliveries, want 2", all.Load())
	}
	if metrics.events != 2 || metrics.delivered("success") != 3 {
		t.Errorf("metrics events=%d success=%d", metrics.events, metrics.delivered("success"))
	}
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	metrics := newMockMetrics()
	d := NewDispatcher([]Endpoint{validEndpoint(t, Endpoint{URL: server.URL, MaxRetries: 5})}, 1, 10, metrics)
	d.retryDelay = func(int) time.Duration { return time.Millisecond }
	d.Start()

	d.Emit(sampleEvent(EventDeckUploaded))
	shutdown(t, d)

	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if metrics.retries != 2 || metrics.delivered("success") != 1 {
		t.Errorf("retries=%d success=%d", metrics.retries, metrics.delivered("success"))
	}
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	metrics := newMockMetrics()
	d := NewDispatcher([]Endpoint{validEndpoint(t, Endpoint{URL: server.URL, MaxRetries: 2})}, 1, 10, metrics)
	d.retryDelay = func(int) time.Duration { return time.Millisecond }
	d.Start()

	d.Emit(sampleEvent(EventDeckDeleted))
	shutdown(t, d)

	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if metrics.delivered("failed") != 1 {
		t.Errorf("failed deliveries = %d, want 1", metrics.delivered("failed"))
	}
}

func TestDispatcher_ShutdownAbandonsRetryWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	metrics := newMockMetrics()
	d := NewDispatcher([]Endpoint{validEndpoint(t, Endpoint{URL: server.URL, MaxRetries: 10})}, 1, 10, metrics)
	d.retryDelay = func(int) time.Duration { return time.Hour }
	d.Start()
	d.Emit(sampleEvent(EventDeckCreated))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return after its context expired")
	}
	if metrics.delivered("abandoned") != 1 {
		t.Errorf("abandoned deliveries = %d, want 1", metrics.delivered("abandoned"))
	}
}

func TestDispatcher_EmitChannelFull(t *testing.T) {
	metrics := newMockMetrics()
	d := NewDispatcher(nil, 1, 2, metrics)

	// not started, so nothing drains
	for i := 0; i < 3; i++ {
		d.Emit(sampleEvent(EventDeckAccessed))
	}

	if metrics.droppedEvents != 1 || metrics.events != 2 {
		t.Errorf("dropped=%d events=%d, want 1 and 2", metrics.droppedEvents, metrics.events)
	}
	if d.GetQueueSize() != 2 {
		t.Errorf("queue size = %d, want 2", d.GetQueueSize())
	}
}

func TestDispatcher_EmitAfterShutdown(t *testing.T) {
	metrics := newMockMetrics()
	d := NewDispatcher(nil, 1, 2, metrics)
	d.Start()
	shutdown(t, d)

	d.Emit(sampleEvent(EventDeckAccessed))
	d.Emit(nil)
	if metrics.droppedEvents != 1 {
		t.Errorf("dropped = %d, want 1", metrics.droppedEvents)
	}

	// second shutdown is a no-op
	shutdown(t, d)
}
