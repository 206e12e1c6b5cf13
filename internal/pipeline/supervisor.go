package pipeline

import (
	"context"
	"log"
	"sync"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/config"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/detector"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/hazard"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/source"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/tracker"
)

// Deps are the shared collaborators handed to every stream.
type Deps struct {
	Detector   Detector
	Gate       *detector.Gate
	Sink       AlertSink
	Registry   *Registry
	Snapshots  SnapshotStore   // may be nil
	AlertLog   AlertLog        // may be nil
	Heartbeats HeartbeatSender // may be nil
}

// Supervisor запускает по одному пайплайну на каждый стрим из конфига.
// Each stream runs in its own goroutine with its own evaluator and tracker,
// so per-stream state needs no cross-stream locking.
type Supervisor struct {
	cfg     *config.Config
	deps    Deps
	streams []*Stream
}

// NewSupervisor builds the per-stream pipelines from the config.
func NewSupervisor(cfg *config.Config, deps Deps) *Supervisor {
	thresholds := hazard.Thresholds{
		IoUHardhat:      cfg.Hazard.IoUThresholdHardhat,
		IoUVest:         cfg.Hazard.IoUThresholdVest,
		ProximityRadius: cfg.Hazard.ProximityRadius,
	}
	trackerCfg := tracker.Config{
		ConfirmFrames:   cfg.Tracker.ConfirmFrames,
		ResolveFrames:   cfg.Tracker.ResolveFrames,
		ReAlertInterval: cfg.Tracker.ReAlertInterval.Std(),
		AssocIoU:        cfg.Tracker.AssocIoU,
	}

	s := &Supervisor{cfg: cfg, deps: deps}
	for _, sc := range cfg.Streams {
		sc := sc
		s.streams = append(s.streams, NewStream(StreamOptions{
			StreamID:   sc.ID,
			OpenSource: openSourceFunc(cfg, sc),
			Detector:   deps.Detector,
			Gate:       deps.Gate,
			Evaluator:  hazard.NewEvaluator(hazard.DefaultRules(), thresholds),
			Tracker:    tracker.New(sc.ID, trackerCfg),
			Sink:       deps.Sink,
			Registry:   deps.Registry,
			Snapshots:  deps.Snapshots,
			AlertLog:   deps.AlertLog,
			Heartbeats: deps.Heartbeats,

			SourceTimeout:      cfg.Pipeline.SourceTimeout.Std(),
			InferDeadline:      cfg.Detection.InferDeadline.Std(),
			FrameQueueCapacity: cfg.Pipeline.FrameQueueCapacity,
			Backoff: source.Backoff{
				Base: cfg.Pipeline.ReconnectBase.Std(),
				Cap:  cfg.Pipeline.ReconnectCap.Std(),
			},
			HeartbeatInterval: cfg.Pipeline.HeartbeatInterval.Std(),
		}))
	}
	return s
}

// Run starts every stream and blocks until all of them finish. A stream
// halting on a fatal error does not stop the others.
func (s *Supervisor) Run(ctx context.Context) {
	log.Printf("Supervisor: starting %d streams", len(s.streams))

	var wg sync.WaitGroup
	for _, stream := range s.streams {
		wg.Add(1)
		go func(stream *Stream) {
			defer wg.Done()
			if err := stream.Run(ctx); err != nil {
				log.Printf("Supervisor: stream %s exited: %v", stream.opts.StreamID, err)
			}
		}(stream)
	}
	wg.Wait()
	log.Println("Supervisor: all streams finished")
}

func openSourceFunc(cfg *config.Config, sc config.StreamConfig) func(ctx context.Context) (source.FrameSource, error) {
	return func(ctx context.Context) (source.FrameSource, error) {
		switch sc.Kind {
		case "minio":
			return source.NewMinioSource(ctx, sc.ID,
				cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, sc.Source)
		default:
			return source.NewDirSource(sc.ID, sc.Source)
		}
	}
}
