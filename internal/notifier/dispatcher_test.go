package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/config"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
)

// flakySender fails the first failures calls, then succeeds.
type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []models.Alert
}

func (s *flakySender) Send(_ context.Context, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("channel down")
	}
	s.sent = append(s.sent, alert)
	return nil
}

func (s *flakySender) snapshot() (int, []models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]models.Alert(nil), s.sent...)
}

type memoryLog struct {
	mu          sync.Mutex
	delivered   []string
	undelivered map[string]string
}

func newMemoryLog() *memoryLog {
	return &memoryLog{undelivered: make(map[string]string)}
}

func (l *memoryLog) MarkDelivered(_ context.Context, alertID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delivered = append(l.delivered, alertID)
	return nil
}

func (l *memoryLog) MarkUndelivered(_ context.Context, alertID, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undelivered[alertID] = reason
	return nil
}

func testOptions() Options {
	return Options{
		QueueCapacity:  4,
		OverflowPolicy: config.OverflowDropOldest,
		RetryLimit:     3,
		BackoffBase:    time.Millisecond,
		BackoffCap:     4 * time.Millisecond,
	}
}

func alertN(n string) models.Alert {
	return models.Alert{ID: n, StreamID: "cam-1", Kind: models.HazardMissingHardhat, Timestamp: time.Now()}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// TestDeliveryAfterTransientFailures: a sender that recovers within the
// retry limit still delivers the alert exactly once.
func TestDeliveryAfterTransientFailures(t *testing.T) {
	sender := &flakySender{failures: 2}
	logBook := newMemoryLog()
	d := NewDispatcher(sender, logBook, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	if !d.Enqueue(alertN("a-1")) {
		t.Fatal("enqueue into empty queue failed")
	}

	waitFor(t, func() bool {
		_, sent := sender.snapshot()
		return len(sent) == 1
	})
	calls, sent := sender.snapshot()
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if sent[0].ID != "a-1" {
		t.Fatalf("wrong alert delivered: %v", sent)
	}
	waitFor(t, func() bool {
		logBook.mu.Lock()
		defer logBook.mu.Unlock()
		return len(logBook.delivered) == 1
	})
}

// TestPermanentFailureMarksUndelivered: exactly retry_limit attempts occur,
// then the alert is recorded as undelivered, not lost.
func TestPermanentFailureMarksUndelivered(t *testing.T) {
	sender := &flakySender{failures: 1000}
	logBook := newMemoryLog()
	d := NewDispatcher(sender, logBook, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(alertN("a-1"))

	waitFor(t, func() bool {
		logBook.mu.Lock()
		defer logBook.mu.Unlock()
		return len(logBook.undelivered) == 1
	})
	calls, _ := sender.snapshot()
	if calls != 3 {
		t.Fatalf("expected exactly retry_limit=3 attempts, got %d", calls)
	}
	if d.Undelivered() != 1 {
		t.Fatalf("expected 1 undelivered, got %d", d.Undelivered())
	}
}

// TestDropOldestOverflow: with no consumer running, overflowing the queue
// evicts the oldest alerts deterministically.
func TestDropOldestOverflow(t *testing.T) {
	sender := &flakySender{}
	d := NewDispatcher(sender, nil, testOptions())

	for i := 0; i < 6; i++ {
		if !d.Enqueue(alertN(string(rune('a' + i)))) {
			t.Fatalf("drop-oldest enqueue %d must succeed", i)
		}
	}
	if d.Dropped() != 2 {
		t.Fatalf("expected 2 evictions, got %d", d.Dropped())
	}

	// The queue now holds the 4 newest alerts.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	waitFor(t, func() bool {
		_, sent := sender.snapshot()
		return len(sent) == 4
	})
	_, sent := sender.snapshot()
	if sent[0].ID != "c" {
		t.Fatalf("oldest surviving alert should be c, got %s", sent[0].ID)
	}
}

// TestRejectOverflow: the reject policy refuses new alerts when full and
// keeps the queued ones.
func TestRejectOverflow(t *testing.T) {
	opts := testOptions()
	opts.OverflowPolicy = config.OverflowReject
	d := NewDispatcher(&flakySender{}, nil, opts)

	for i := 0; i < 4; i++ {
		if !d.Enqueue(alertN("keep")) {
			t.Fatalf("enqueue %d within capacity must succeed", i)
		}
	}
	if d.Enqueue(alertN("extra")) {
		t.Fatal("reject policy must refuse the overflowing alert")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected 1 rejection, got %d", d.Dropped())
	}
}
