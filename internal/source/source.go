// Package source abstracts cameras and recorded footage into a sequence of
// timestamped frames. Implementations must return within the deadline of the
// context they are given and must report read failures as
// *SourceUnavailableError so the pipeline can run its reconnect policy
// instead of treating them as end-of-stream.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
)

// ErrEndOfStream signals that a finite source ran out of frames.
var ErrEndOfStream = errors.New("source: end of stream")

// SourceUnavailableError wraps a read failure that a reconnect may fix.
// Stream identity is preserved across reconnect attempts.
type SourceUnavailableError struct {
	StreamID string
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.StreamID, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err as a SourceUnavailableError for the given stream.
func Unavailable(streamID string, err error) error {
	return &SourceUnavailableError{StreamID: streamID, Err: err}
}

// FrameSource yields frames for exactly one stream.
type FrameSource interface {
	// Next returns the next frame, ErrEndOfStream when the source is
	// exhausted, or a *SourceUnavailableError on a read failure. It must
	// honor ctx cancellation and never block past the ctx deadline.
	Next(ctx context.Context) (*models.Frame, error)
	Close() error
}

// Backoff вычисляет задержку переподключения с экспоненциальным ростом
// delay = base * 2^(attempt-1), capped at cap.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the wait before reconnect attempt n (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}
