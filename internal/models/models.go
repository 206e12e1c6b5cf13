package models

import (
	"math"
	"time"
)

// Label классы, которые возвращает модель детекции
type Label string

const (
	LabelPerson     Label = "Person"
	LabelHardhat    Label = "Hardhat"
	LabelNoHardhat  Label = "NO-Hardhat"
	LabelMask       Label = "Mask"
	LabelNoMask     Label = "NO-Mask"
	LabelVest       Label = "Safety Vest"
	LabelNoVest     Label = "NO-Safety Vest"
	LabelSafetyCone Label = "Safety Cone"
	LabelMachinery  Label = "machinery"
	LabelVehicle    Label = "vehicle"
)

// BBox is an axis-aligned box in the pixel space of one frame, [x1 y1 x2 y2].
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Center returns the midpoint of the box.
func (b BBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Area returns the area of the box, zero for degenerate boxes.
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection-over-union of two boxes in the same frame.
func (b BBox) IoU(o BBox) float64 {
	ix1, iy1 := max(b.X1, o.X1), max(b.Y1, o.Y1)
	ix2, iy2 := min(b.X2, o.X2), min(b.Y2, o.Y2)
	inter := BBox{X1: ix1, Y1: iy1, X2: ix2, Y2: iy2}.Area()
	if inter == 0 {
		return 0
	}
	return inter / (b.Area() + o.Area() - inter)
}

// CenterDistance returns the euclidean distance between the box centers.
func (b BBox) CenterDistance(o BBox) float64 {
	bx, by := b.Center()
	ox, oy := o.Center()
	return math.Hypot(bx-ox, by-oy)
}

// Detection представляет структуру одного обнаруженного объекта
type Detection struct {
	Label Label   `json:"class"`
	Score float64 `json:"score"`
	Box   BBox    `json:"box"`
}

// Frame is one decoded-source image owned by the stage processing it.
type Frame struct {
	StreamID  string
	Seq       uint64
	Timestamp time.Time
	Data      []byte // encoded JPEG, immutable after capture
}

// HazardKind названия типов опасных ситуаций
type HazardKind string

const (
	HazardMissingHardhat     HazardKind = "missing-hardhat"
	HazardMissingMask        HazardKind = "missing-mask"
	HazardMissingVest        HazardKind = "missing-safety-vest"
	HazardMachineryProximity HazardKind = "machinery-proximity"
)

// Severity of a hazard kind, carried into alerts.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// HazardCandidate is one rule firing for one person in one frame.
// Evidence holds the detections that made the rule fire (the person is
// always included first).
type HazardCandidate struct {
	Kind     HazardKind  `json:"kind"`
	Severity Severity    `json:"severity"`
	Person   Detection   `json:"person"`
	Evidence []Detection `json:"evidence"`
}

// Alert is created once per hazard-instance transition into the alerted
// state (and once per renewal interval after that). Immutable after creation.
type Alert struct {
	ID         string     `json:"id"`
	InstanceID string     `json:"instance_id"`
	StreamID   string     `json:"stream_id"`
	Kind       HazardKind `json:"kind"`
	Severity   Severity   `json:"severity"`
	Renewal    bool       `json:"renewal"`
	Person     Detection  `json:"person"`
	Snapshot   string     `json:"snapshot,omitempty"` // object path in the snapshots bucket
	FrameSeq   uint64     `json:"frame_seq"`
	Timestamp  time.Time  `json:"timestamp"`
}

// StreamState lifecycle of one camera stream's pipeline loop.
type StreamState string

const (
	StreamStarting     StreamState = "starting"
	StreamRunning      StreamState = "running"
	StreamReconnecting StreamState = "reconnecting"
	StreamFailed       StreamState = "failed"
	StreamStopped      StreamState = "stopped"
)

// StreamStatus is the observable status of one stream, updated by its own
// loop and read by the status API.
type StreamStatus struct {
	StreamID      string      `json:"stream_id"`
	State         StreamState `json:"state"`
	FramesRead    uint64      `json:"frames_read"`
	FramesDropped uint64      `json:"frames_dropped"`
	InferRetries  uint64      `json:"infer_retries"`
	AlertsRaised  uint64      `json:"alerts_raised"`
	LastFrameAt   time.Time   `json:"last_frame_at,omitempty"`
	LastError     string      `json:"last_error,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Heartbeat периодическое сообщение о прогрессе стрима
type Heartbeat struct {
	StreamID  string      `json:"stream_id"`
	State     StreamState `json:"state"`
	Frame     uint64      `json:"frame"`
	TimeStamp time.Time   `json:"timestamp"`
}
