package pipeline

import (
	"sync/atomic"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
)

// frameQueue is the bounded buffer between a stream's capture goroutine and
// its processing loop. When full, the oldest unconsumed frame is dropped so
// capture never stalls: bounded staleness over backpressure.
type frameQueue struct {
	ch    chan *models.Frame
	drops uint64
}

func newFrameQueue(capacity int) *frameQueue {
	return &frameQueue{ch: make(chan *models.Frame, capacity)}
}

// Push enqueues a frame, evicting the oldest when the buffer is full.
// Single producer only.
func (q *frameQueue) Push(f *models.Frame) {
	for {
		select {
		case q.ch <- f:
			return
		default:
		}
		select {
		case <-q.ch:
			atomic.AddUint64(&q.drops, 1)
		default:
		}
	}
}

// Close signals end of capture; the consumer drains what remains.
func (q *frameQueue) Close() { close(q.ch) }

// Frames is the consumer side.
func (q *frameQueue) Frames() <-chan *models.Frame { return q.ch }

// Drops returns how many frames were evicted unconsumed.
func (q *frameQueue) Drops() uint64 { return atomic.LoadUint64(&q.drops) }
