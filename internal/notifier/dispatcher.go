package notifier

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/config"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
)

// DeliveryLog records the final delivery outcome of an alert, typically in
// the alert table. Either method may be a no-op when no log is configured.
type DeliveryLog interface {
	MarkDelivered(ctx context.Context, alertID string) error
	MarkUndelivered(ctx context.Context, alertID, reason string) error
}

// Dispatcher owns the one queue shared by every stream's producer and the
// single dispatch loop. The queue is bounded; overflow behavior is the
// configured policy and nothing else, so producers never block on a slow
// channel.
type Dispatcher struct {
	sender      Sender
	deliveryLog DeliveryLog

	mu     sync.Mutex
	queue  chan models.Alert
	policy config.OverflowPolicy

	retryLimit  int
	backoffBase time.Duration
	backoffCap  time.Duration

	dropped     uint64
	undelivered uint64
}

// Options параметры диспетчера
type Options struct {
	QueueCapacity  int
	OverflowPolicy config.OverflowPolicy
	RetryLimit     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
}

// NewDispatcher создаёт диспетчер уведомлений. deliveryLog may be nil.
func NewDispatcher(sender Sender, deliveryLog DeliveryLog, opts Options) *Dispatcher {
	return &Dispatcher{
		sender:      sender,
		deliveryLog: deliveryLog,
		queue:       make(chan models.Alert, opts.QueueCapacity),
		policy:      opts.OverflowPolicy,
		retryLimit:  opts.RetryLimit,
		backoffBase: opts.BackoffBase,
		backoffCap:  opts.BackoffCap,
	}
}

// Enqueue hands an alert to the dispatch loop without blocking. When the
// queue is full, drop-oldest evicts the oldest queued alert to make room;
// reject refuses the new one. Returns false when the alert was not queued.
func (d *Dispatcher) Enqueue(alert models.Alert) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case d.queue <- alert:
		return true
	default:
	}

	if d.policy == config.OverflowReject {
		d.dropped++
		log.Printf("Notifier: queue full, rejecting alert %s (%s)", alert.ID, alert.Kind)
		return false
	}

	// drop-oldest: evict one and retry; the dispatch loop may have drained
	// an entry in between, which is fine.
	select {
	case old := <-d.queue:
		d.dropped++
		log.Printf("Notifier: queue full, evicting oldest alert %s (%s)", old.ID, old.Kind)
	default:
	}
	select {
	case d.queue <- alert:
		return true
	default:
		d.dropped++
		return false
	}
}

// Dropped returns how many alerts overflowed the queue.
func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Run consumes the queue until ctx is cancelled, delivering each alert
// at-least-once within the retry budget.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Println("Notifier: dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			log.Println("Notifier: dispatch loop stopped")
			return
		case alert := <-d.queue:
			d.deliver(ctx, alert)
		}
	}
}

// deliver retries with exponential backoff up to the attempt limit. An
// exhausted alert is logged as undelivered, never silently dropped.
func (d *Dispatcher) deliver(ctx context.Context, alert models.Alert) {
	var lastErr error

	for attempt := 1; attempt <= d.retryLimit; attempt++ {
		lastErr = d.sender.Send(ctx, alert)
		if lastErr == nil {
			if d.deliveryLog != nil {
				if err := d.deliveryLog.MarkDelivered(ctx, alert.ID); err != nil {
					log.Printf("Notifier: mark delivered %s: %v", alert.ID, err)
				}
			}
			return
		}

		log.Printf("Notifier: send alert %s attempt %d/%d failed: %v",
			alert.ID, attempt, d.retryLimit, lastErr)

		if attempt == d.retryLimit {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = d.retryLimit
		case <-time.After(d.backoff(attempt)):
		}
	}

	d.mu.Lock()
	d.undelivered++
	d.mu.Unlock()
	log.Printf("Notifier: alert %s undelivered after %d attempts: %v", alert.ID, d.retryLimit, lastErr)
	if d.deliveryLog != nil {
		if err := d.deliveryLog.MarkUndelivered(ctx, alert.ID, lastErr.Error()); err != nil {
			log.Printf("Notifier: mark undelivered %s: %v", alert.ID, err)
		}
	}
}

// Undelivered returns how many alerts exhausted their retry budget.
func (d *Dispatcher) Undelivered() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.undelivered
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.backoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.backoffCap {
			return d.backoffCap
		}
	}
	if delay > d.backoffCap {
		return d.backoffCap
	}
	return delay
}
