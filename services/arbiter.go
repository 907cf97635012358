package services

import (
	"vigil/models"
)

// Arbitration thresholds and fallback confidences. The fallbacks are used
// when a count-based rule fires but the classifier did not score a matching
// alias label this cycle.
const (
	ConfidenceThreshold    = 0.35
	HeatThreshold          = 0.65
	HeatSecondaryThreshold = 0.25

	FlameCountTrigger     = 4
	SoundCountTrigger     = 3
	VibrationCountTrigger = 3
	MotionCountTrigger    = 2

	SoundFallbackConfidence     = 0.75
	VibrationFallbackConfidence = 0.68
	MotionConfidence            = 0.72
)

// scoreView holds the per-cycle auxiliary values derived from the labeled
// score set. All comparisons are strict so the first-seen label wins exact
// ties, which keeps arbitration deterministic for a fixed label order.
type scoreView struct {
	scores models.ClassificationResult

	maxScore float64
	topLabel string

	// heatScore is the score of the first heat/fire-alias label, 0 if none.
	heatScore float64

	// classesLowerThanHeat counts non-heat labels scoring strictly below
	// heatScore. Only meaningful when heatScore > 0.
	classesLowerThanHeat int
}

func newScoreView(scores models.ClassificationResult) scoreView {
	v := scoreView{scores: scores}

	for _, s := range scores {
		if s.Score > v.maxScore {
			v.maxScore = s.Score
			v.topLabel = s.Label
		}
	}

	for _, s := range scores {
		if s.Class == models.ClassHeat {
			v.heatScore = s.Score
			break
		}
	}

	if v.heatScore > 0 {
		for _, s := range scores {
			if s.Class != models.ClassHeat && s.Score < v.heatScore {
				v.classesLowerThanHeat++
			}
		}
	}

	return v
}

// firstScore returns the score of the first label of the given class.
func (v *scoreView) firstScore(class models.LabelClass) (float64, bool) {
	for _, s := range v.scores {
		if s.Class == class {
			return s.Score, true
		}
	}
	return 0, false
}

// rule is one guarded step of the priority cascade: nil means "not my case,
// try the next rule".
type rule func(counts models.AnomalyCounts, v *scoreView) *models.Decision

// DecisionArbiter turns one cycle's anomaly counts and labeled scores into
// the final decision. It is pure: no I/O, no state across calls.
//
// The cascade deliberately ranks saturated rule-based counters above the
// classifier's score landscape. Repeated threshold crossings across a window
// are treated as a stronger signal than any single model score, so e.g. a
// high "Vibration" score cannot override a flame-count trigger.
type DecisionArbiter struct {
	rules []rule
}

func NewDecisionArbiter() *DecisionArbiter {
	return &DecisionArbiter{
		rules: []rule{
			flameRule,
			soundRule,
			vibrationRule,
			motionRule,
			scanRule,
		},
	}
}

// Arbitrate evaluates the cascade top to bottom and returns the decision of
// the first rule that fires, falling back to the Normal decision.
func (a *DecisionArbiter) Arbitrate(counts models.AnomalyCounts, scores models.ClassificationResult) models.Decision {
	view := newScoreView(scores)

	for _, r := range a.rules {
		if d := r(counts, &view); d != nil {
			return *d
		}
	}

	return normalDecision(&view)
}

// flameRule: a saturated flame counter always wins. Confidence comes from the
// heat/fire-alias score; a classifier that scored heat at exactly 0 yields a
// zero-confidence alert rather than an invented minimum.
func flameRule(counts models.AnomalyCounts, v *scoreView) *models.Decision {
	if counts.Flame < FlameCountTrigger {
		return nil
	}
	return &models.Decision{
		Status:      models.StatusHeat,
		Confidence:  v.heatScore,
		AlertActive: true,
	}
}

func soundRule(counts models.AnomalyCounts, v *scoreView) *models.Decision {
	if counts.Sound < SoundCountTrigger {
		return nil
	}
	confidence := SoundFallbackConfidence
	if score, ok := v.firstScore(models.ClassSound); ok {
		confidence = score
	}
	return &models.Decision{
		Status:      models.StatusLoud,
		Confidence:  confidence,
		AlertActive: true,
	}
}

func vibrationRule(counts models.AnomalyCounts, v *scoreView) *models.Decision {
	if counts.Vibration < VibrationCountTrigger {
		return nil
	}
	confidence := VibrationFallbackConfidence
	if score, ok := v.firstScore(models.ClassVibration); ok {
		confidence = score
	}
	return &models.Decision{
		Status:      models.StatusVibration,
		Confidence:  confidence,
		AlertActive: true,
	}
}

func motionRule(counts models.AnomalyCounts, v *scoreView) *models.Decision {
	if counts.Motion < MotionCountTrigger {
		return nil
	}
	return &models.Decision{
		Status:      models.StatusMotion,
		Confidence:  MotionConfidence,
		AlertActive: true,
	}
}

// scanRule is the generic threshold scan over all labels except Normal. Only
// heat and vibration aliases can self-trigger; anything else needs a
// saturated counter from the rules above. Heat has a secondary path: a
// modest heat score still triggers when at least 3 other classes score
// strictly below it.
func scanRule(counts models.AnomalyCounts, v *scoreView) *models.Decision {
	var best *models.LabelScore

	for i := range v.scores {
		s := v.scores[i]
		if s.Class == models.ClassNormal {
			continue
		}

		trigger := false
		switch s.Class {
		case models.ClassHeat:
			trigger = s.Score > HeatThreshold ||
				(v.classesLowerThanHeat >= 3 && s.Score > HeatSecondaryThreshold)
		case models.ClassVibration:
			trigger = s.Score > ConfidenceThreshold
		}
		if !trigger {
			continue
		}

		if best == nil || s.Score > best.Score {
			best = &v.scores[i]
		}
	}

	if best == nil {
		return nil
	}
	return &models.Decision{
		Status:      best.Label,
		Confidence:  best.Score,
		AlertActive: true,
	}
}

// normalDecision is the terminal fallback: no counter saturated, no label
// self-triggered. Confidence prefers the Normal label's own score, else the
// maximum score seen this cycle.
func normalDecision(v *scoreView) models.Decision {
	confidence := v.maxScore
	if score, ok := v.firstScore(models.ClassNormal); ok {
		confidence = score
	}
	return models.Decision{
		Status:      models.StatusNormal,
		Confidence:  confidence,
		AlertActive: false,
	}
}
