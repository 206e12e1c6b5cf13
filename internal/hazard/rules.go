// Package hazard decides, per frame, which detected persons are in an unsafe
// configuration. Evaluation is a pure function of one frame's detections plus
// configured thresholds; no state crosses frames (tracking lives in the
// tracker package).
package hazard

import (
	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
	"github.com/samber/lo"
)

// Thresholds пороговые значения правил, задаются конфигом
type Thresholds struct {
	IoUHardhat      float64
	IoUVest         float64
	ProximityRadius float64
}

// Rule is one hazard predicate. Check inspects a single person against the
// frame's full detection set and returns the contributing detections when
// the rule fires. Rules are independent: every rule that fires for a person
// emits its own candidate, none suppresses another.
type Rule struct {
	Kind     models.HazardKind
	Severity models.Severity
	Check    func(person models.Detection, all []models.Detection, t Thresholds) (bool, []models.Detection)
}

// DefaultRules returns the rule table for the construction-site label set.
func DefaultRules() []Rule {
	return []Rule{
		{
			Kind:     models.HazardMissingHardhat,
			Severity: models.SeverityWarning,
			Check:    missingGear(models.LabelHardhat, models.LabelNoHardhat, func(t Thresholds) float64 { return t.IoUHardhat }),
		},
		{
			Kind:     models.HazardMissingVest,
			Severity: models.SeverityWarning,
			Check:    missingGear(models.LabelVest, models.LabelNoVest, func(t Thresholds) float64 { return t.IoUVest }),
		},
		{
			Kind:     models.HazardMissingMask,
			Severity: models.SeverityWarning,
			Check:    missingGear(models.LabelMask, models.LabelNoMask, func(t Thresholds) float64 { return t.IoUHardhat }),
		},
		{
			Kind:     models.HazardMachineryProximity,
			Severity: models.SeverityCritical,
			Check:    tooCloseTo(models.LabelMachinery, models.LabelVehicle),
		},
	}
}

// missingGear builds a rule that fires when a person has no overlapping
// detection of the positive gear label above the IoU threshold. A detection
// of the explicit negative label over the person is direct evidence and
// fires the rule regardless of any positive box.
func missingGear(positive, negative models.Label, iou func(Thresholds) float64) func(models.Detection, []models.Detection, Thresholds) (bool, []models.Detection) {
	return func(person models.Detection, all []models.Detection, t Thresholds) (bool, []models.Detection) {
		threshold := iou(t)

		for _, d := range all {
			if d.Label == negative && person.Box.IoU(d.Box) >= threshold {
				return true, []models.Detection{person, d}
			}
		}
		for _, d := range all {
			if d.Label == positive && person.Box.IoU(d.Box) >= threshold {
				return false, nil
			}
		}
		return true, []models.Detection{person}
	}
}

// tooCloseTo builds a rule that fires when any detection with one of the
// given labels has its center within the proximity radius of the person's
// center.
func tooCloseTo(labels ...models.Label) func(models.Detection, []models.Detection, Thresholds) (bool, []models.Detection) {
	return func(person models.Detection, all []models.Detection, t Thresholds) (bool, []models.Detection) {
		near := lo.Filter(all, func(d models.Detection, _ int) bool {
			return lo.Contains(labels, d.Label) && person.Box.CenterDistance(d.Box) < t.ProximityRadius
		})
		if len(near) == 0 {
			return false, nil
		}
		return true, append([]models.Detection{person}, near...)
	}
}
