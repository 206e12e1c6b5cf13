// Package tracker turns per-frame hazard candidates into deduplicated alert
// lifecycles. Each tracked instance is one hazard kind for one person,
// followed across frames by bounding-box overlap. A Tracker is owned by a
// single stream's loop and is not safe for concurrent use; it never needs
// to be, because no state crosses streams.
package tracker

import (
	"time"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
	"github.com/google/uuid"
)

// State of one tracked hazard instance.
type State string

const (
	StateCandidate State = "candidate"
	StateConfirmed State = "confirmed"
	StateAlerted   State = "alerted"
	StateResolved  State = "resolved"
)

// Instance is one tracked hazard occurrence. last_seen >= first_seen always.
type Instance struct {
	ID        string
	StreamID  string
	Kind      models.HazardKind
	Severity  models.Severity
	Person    models.Detection // latest associated person detection
	FirstSeen time.Time
	LastSeen  time.Time
	State     State

	hits        int // consecutive frames the condition recurred
	misses      int // consecutive frames it was absent
	lastAlertAt time.Time
}

// Config параметры дедупликации
type Config struct {
	ConfirmFrames   int           // N consecutive frames before confirmation
	ResolveFrames   int           // M consecutive misses before resolution
	ReAlertInterval time.Duration // renewal period while alerted; 0 disables renewals
	AssocIoU        float64       // min person-box IoU to associate across frames
}

// Tracker owns the instance arena for one stream.
type Tracker struct {
	streamID  string
	cfg       Config
	instances map[string]*Instance
}

// New создаёт трекер для одного стрима
func New(streamID string, cfg Config) *Tracker {
	return &Tracker{
		streamID:  streamID,
		cfg:       cfg,
		instances: make(map[string]*Instance),
	}
}

// Open returns how many instances are currently tracked.
func (t *Tracker) Open() int { return len(t.instances) }

// Observe consumes one frame's candidates and returns the alerts to
// dispatch. Association is greedy: each candidate binds to the unclaimed
// instance of its hazard kind with the highest person-box overlap at or
// above the association threshold; no overlap means a fresh instance.
// Instances absent this frame accumulate misses; a candidate-state instance
// is dropped on its first miss (the confirm window requires consecutive
// frames), confirmed and alerted ones resolve after ResolveFrames misses
// and are evicted.
func (t *Tracker) Observe(frameSeq uint64, ts time.Time, candidates []models.HazardCandidate) []models.Alert {
	claimed := make(map[string]bool, len(candidates))
	var alerts []models.Alert

	for _, cand := range candidates {
		inst := t.associate(cand, claimed)
		if inst == nil {
			inst = &Instance{
				ID:        uuid.New().String(),
				StreamID:  t.streamID,
				Kind:      cand.Kind,
				Severity:  cand.Severity,
				FirstSeen: ts,
				State:     StateCandidate,
			}
			t.instances[inst.ID] = inst
		}
		claimed[inst.ID] = true

		inst.Person = cand.Person
		inst.LastSeen = ts
		inst.hits++
		inst.misses = 0

		alerts = append(alerts, t.advance(inst, frameSeq, ts)...)
	}

	t.sweepMisses(claimed)
	return alerts
}

// associate finds the best unclaimed instance for the candidate.
func (t *Tracker) associate(cand models.HazardCandidate, claimed map[string]bool) *Instance {
	var best *Instance
	bestIoU := t.cfg.AssocIoU
	for _, inst := range t.instances {
		if claimed[inst.ID] || inst.Kind != cand.Kind {
			continue
		}
		iou := inst.Person.Box.IoU(cand.Person.Box)
		if iou > bestIoU || (iou == bestIoU && iou > 0 && (best == nil || inst.ID < best.ID)) {
			best, bestIoU = inst, iou
		}
	}
	return best
}

// advance runs the state machine for an instance seen this frame.
func (t *Tracker) advance(inst *Instance, frameSeq uint64, ts time.Time) []models.Alert {
	switch inst.State {
	case StateCandidate:
		if inst.hits < t.cfg.ConfirmFrames {
			return nil
		}
		inst.State = StateConfirmed
		fallthrough

	case StateConfirmed:
		// Confirmation dispatches exactly one alert.
		inst.State = StateAlerted
		inst.lastAlertAt = ts
		return []models.Alert{t.newAlert(inst, frameSeq, ts, false)}

	case StateAlerted:
		if t.cfg.ReAlertInterval <= 0 {
			return nil
		}
		// One renewal per elapsed re-alert interval, none before.
		var alerts []models.Alert
		for !ts.Before(inst.lastAlertAt.Add(t.cfg.ReAlertInterval)) {
			inst.lastAlertAt = inst.lastAlertAt.Add(t.cfg.ReAlertInterval)
			alerts = append(alerts, t.newAlert(inst, frameSeq, ts, true))
		}
		return alerts
	}
	return nil
}

// sweepMisses ages out every instance the current frame did not claim.
func (t *Tracker) sweepMisses(claimed map[string]bool) {
	for id, inst := range t.instances {
		if claimed[id] {
			continue
		}
		inst.hits = 0
		inst.misses++

		if inst.State == StateCandidate {
			// The confirm window is consecutive; one miss restarts it.
			delete(t.instances, id)
			continue
		}
		if inst.misses >= t.cfg.ResolveFrames {
			inst.State = StateResolved
			delete(t.instances, id)
		}
	}
}

func (t *Tracker) newAlert(inst *Instance, frameSeq uint64, ts time.Time, renewal bool) models.Alert {
	return models.Alert{
		ID:         uuid.New().String(),
		InstanceID: inst.ID,
		StreamID:   inst.StreamID,
		Kind:       inst.Kind,
		Severity:   inst.Severity,
		Renewal:    renewal,
		Person:     inst.Person,
		FrameSeq:   frameSeq,
		Timestamp:  ts,
	}
}
