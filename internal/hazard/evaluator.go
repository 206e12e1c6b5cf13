package hazard

import (
	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
	"github.com/samber/lo"
)

// Evaluator applies the rule table to one frame's detections.
type Evaluator struct {
	rules      []Rule
	thresholds Thresholds
}

// NewEvaluator создаёт оценщик с таблицей правил и порогами
func NewEvaluator(rules []Rule, thresholds Thresholds) *Evaluator {
	return &Evaluator{rules: rules, thresholds: thresholds}
}

// Evaluate returns a candidate for every (person, rule) pair that fires.
// Multiple rules firing for the same person emit independent candidates.
func (e *Evaluator) Evaluate(detections []models.Detection) []models.HazardCandidate {
	persons := lo.Filter(detections, func(d models.Detection, _ int) bool {
		return d.Label == models.LabelPerson
	})

	var candidates []models.HazardCandidate
	for _, person := range persons {
		for _, rule := range e.rules {
			fired, evidence := rule.Check(person, detections, e.thresholds)
			if !fired {
				continue
			}
			candidates = append(candidates, models.HazardCandidate{
				Kind:     rule.Kind,
				Severity: rule.Severity,
				Person:   person,
				Evidence: evidence,
			})
		}
	}
	return candidates
}
