// Package pipeline wires frame source, detector, hazard evaluation, dedup
// tracking and alert dispatch into one continuous loop per camera stream.
// Streams are independent: a failure in one never touches another's state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/detector"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/hazard"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/source"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/tracker"
)

// Detector runs inference for one frame.
type Detector interface {
	Infer(ctx context.Context, frame *models.Frame) ([]models.Detection, error)
}

// AlertSink accepts alerts for asynchronous delivery.
type AlertSink interface {
	Enqueue(alert models.Alert) bool
}

// SnapshotStore keeps the frame image an alert refers to. Optional.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, streamID string, frameSeq uint64, jpeg []byte) (string, error)
}

// AlertLog persists alert records. Optional.
type AlertLog interface {
	CreateAlert(ctx context.Context, alert models.Alert) error
}

// HeartbeatSender reports stream liveness. Optional.
type HeartbeatSender interface {
	SendHeartbeat(msg models.Heartbeat) error
}

// StreamOptions собирает зависимости и параметры одного стрима
type StreamOptions struct {
	StreamID   string
	OpenSource func(ctx context.Context) (source.FrameSource, error)

	Detector  Detector
	Gate      *detector.Gate
	Evaluator *hazard.Evaluator
	Tracker   *tracker.Tracker
	Sink      AlertSink
	Registry  *Registry

	Snapshots  SnapshotStore   // may be nil
	AlertLog   AlertLog        // may be nil
	Heartbeats HeartbeatSender // may be nil

	SourceTimeout      time.Duration
	InferDeadline      time.Duration
	FrameQueueCapacity int
	Backoff            source.Backoff
	HeartbeatInterval  time.Duration
}

// Stream is one camera stream's pipeline loop.
type Stream struct {
	opts StreamOptions
}

// NewStream создаёт пайплайн одного стрима
func NewStream(opts StreamOptions) *Stream {
	return &Stream{opts: opts}
}

// Run executes the loop until the source ends, a fatal inference failure
// halts the stream, or ctx is cancelled. The stop signal is observed at a
// frame boundary: the frame being processed finishes, queued frames are
// discarded, then resources are released.
func (s *Stream) Run(ctx context.Context) error {
	id := s.opts.StreamID
	s.opts.Registry.Update(id, func(st *models.StreamStatus) {
		st.State = models.StreamStarting
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := s.openWithBackoff(runCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.opts.Registry.Update(id, func(st *models.StreamStatus) {
				st.State = models.StreamStopped
			})
			return nil
		}
		s.fail(err)
		return err
	}
	defer src.Close()

	queue := newFrameQueue(s.opts.FrameQueueCapacity)
	go s.capture(runCtx, src, queue)

	if s.opts.Heartbeats != nil && s.opts.HeartbeatInterval > 0 {
		go s.heartbeatLoop(runCtx)
	}

	s.opts.Registry.Update(id, func(st *models.StreamStatus) {
		st.State = models.StreamRunning
	})
	log.Printf("Stream %s: running", id)

	for frame := range queue.Frames() {
		if runCtx.Err() != nil {
			break
		}
		if err := s.process(runCtx, frame); err != nil {
			cancel() // stop capture before surfacing
			s.fail(err)
			return err
		}
	}

	s.opts.Registry.Update(id, func(st *models.StreamStatus) {
		st.State = models.StreamStopped
		st.FramesDropped = queue.Drops()
	})
	log.Printf("Stream %s: stopped", id)
	return nil
}

// openWithBackoff retries the source factory until it succeeds or ctx ends.
// Each attempt is independent; stream identity is never lost.
func (s *Stream) openWithBackoff(ctx context.Context) (source.FrameSource, error) {
	for attempt := 1; ; attempt++ {
		src, err := s.opts.OpenSource(ctx)
		if err == nil {
			return src, nil
		}

		var unavailable *source.SourceUnavailableError
		if !errors.As(err, &unavailable) {
			return nil, err
		}

		delay := s.opts.Backoff.Delay(attempt)
		log.Printf("Stream %s: source unavailable (attempt %d), retrying in %v: %v",
			s.opts.StreamID, attempt, delay, err)
		s.opts.Registry.Update(s.opts.StreamID, func(st *models.StreamStatus) {
			st.State = models.StreamReconnecting
			st.LastError = err.Error()
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// capture reads frames into the bounded queue until end of stream or
// cancellation. Read failures pause only this stream and run the reconnect
// backoff; a successful read resets it.
func (s *Stream) capture(ctx context.Context, src source.FrameSource, queue *frameQueue) {
	defer queue.Close()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		fctx := ctx
		var cancel context.CancelFunc = func() {}
		if s.opts.SourceTimeout > 0 {
			fctx, cancel = context.WithTimeout(ctx, s.opts.SourceTimeout)
		}
		frame, err := src.Next(fctx)
		cancel()

		switch {
		case err == nil:
			if attempt > 0 {
				attempt = 0
				s.opts.Registry.Update(s.opts.StreamID, func(st *models.StreamStatus) {
					st.State = models.StreamRunning
					st.LastError = ""
				})
				log.Printf("Stream %s: source recovered", s.opts.StreamID)
			}
			queue.Push(frame)
			s.opts.Registry.Update(s.opts.StreamID, func(st *models.StreamStatus) {
				st.FramesRead++
				st.FramesDropped = queue.Drops()
				st.LastFrameAt = frame.Timestamp
			})

		case errors.Is(err, source.ErrEndOfStream):
			log.Printf("Stream %s: end of stream", s.opts.StreamID)
			return

		case ctx.Err() != nil:
			return

		default:
			attempt++
			delay := s.opts.Backoff.Delay(attempt)
			log.Printf("Stream %s: read failed (attempt %d), retrying in %v: %v",
				s.opts.StreamID, attempt, delay, err)
			s.opts.Registry.Update(s.opts.StreamID, func(st *models.StreamStatus) {
				st.State = models.StreamReconnecting
				st.LastError = err.Error()
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}
}

// process runs one frame through detection, evaluation and tracking.
// Transient inference failures drop the frame; a fatal one is returned and
// halts the stream.
func (s *Stream) process(ctx context.Context, frame *models.Frame) error {
	if err := s.opts.Gate.Acquire(ctx); err != nil {
		return nil // shutting down at a frame boundary
	}
	// The inference context is detached from the stop signal: a stop request
	// lets the in-flight inference run to completion (bounded only by its
	// deadline) and is observed at the next frame boundary.
	ictx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc = func() {}
	if s.opts.InferDeadline > 0 {
		ictx, cancel = context.WithTimeout(ictx, s.opts.InferDeadline)
	}
	detections, err := s.opts.Detector.Infer(ictx, frame)
	cancel()
	s.opts.Gate.Release()

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if detector.IsTransient(err) {
			log.Printf("Stream %s: dropping frame %d: %v", s.opts.StreamID, frame.Seq, err)
			s.opts.Registry.Update(s.opts.StreamID, func(st *models.StreamStatus) {
				st.InferRetries++
				st.LastError = err.Error()
			})
			return nil
		}
		return fmt.Errorf("stream %s: %w", s.opts.StreamID, err)
	}

	candidates := s.opts.Evaluator.Evaluate(detections)
	alerts := s.opts.Tracker.Observe(frame.Seq, frame.Timestamp, candidates)

	for _, alert := range alerts {
		s.emit(ctx, frame, alert)
	}
	return nil
}

// emit attaches the snapshot, persists the record and queues the alert for
// delivery. Storage failures are logged; they never block alerting.
func (s *Stream) emit(ctx context.Context, frame *models.Frame, alert models.Alert) {
	// A frame that finished inference is processed to the end even when a
	// stop arrived meanwhile.
	ctx = context.WithoutCancel(ctx)
	if s.opts.Snapshots != nil {
		path, err := s.opts.Snapshots.SaveSnapshot(ctx, frame.StreamID, frame.Seq, frame.Data)
		if err != nil {
			log.Printf("Stream %s: save snapshot: %v", s.opts.StreamID, err)
		} else {
			alert.Snapshot = path
		}
	}

	if s.opts.AlertLog != nil {
		if err := s.opts.AlertLog.CreateAlert(ctx, alert); err != nil {
			log.Printf("Stream %s: persist alert %s: %v", s.opts.StreamID, alert.ID, err)
		}
	}

	if !s.opts.Sink.Enqueue(alert) {
		log.Printf("Stream %s: notifier rejected alert %s", s.opts.StreamID, alert.ID)
	}
	s.opts.Registry.Update(s.opts.StreamID, func(st *models.StreamStatus) {
		st.AlertsRaised++
	})
	log.Printf("Stream %s: alert %s (%s, renewal=%v) at frame %d",
		s.opts.StreamID, alert.ID, alert.Kind, alert.Renewal, frame.Seq)
}

func (s *Stream) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, _ := s.opts.Registry.Get(s.opts.StreamID)
			hb := models.Heartbeat{
				StreamID:  s.opts.StreamID,
				State:     st.State,
				Frame:     st.FramesRead,
				TimeStamp: time.Now().UTC(),
			}
			if err := s.opts.Heartbeats.SendHeartbeat(hb); err != nil {
				log.Printf("Stream %s: error sending heartbeat: %v", s.opts.StreamID, err)
			}
		}
	}
}

func (s *Stream) fail(err error) {
	log.Printf("Stream %s: halted: %v", s.opts.StreamID, err)
	s.opts.Registry.Update(s.opts.StreamID, func(st *models.StreamStatus) {
		st.State = models.StreamFailed
		st.LastError = err.Error()
	})
}
