package service

import (
	"fmt"
	"math"
	"time"

	"exam_prep_backend/internal/model"
)

// DataIntegrityWarning flags an answer whose question is no longer on the
// quiz. The answer is skipped; scoring carries on.
type DataIntegrityWarning struct {
	QuestionID uint   `json:"questionId"`
	Reason     string `json:"reason"`
}

// ScoreOutcome is everything one scoring pass derives.
type ScoreOutcome struct {
	Score    model.Score            `json:"score"`
	Passed   bool                   `json:"passed"`
	Warnings []DataIntegrityWarning `json:"warnings,omitempty"`
}

// ScoringEngine turns graded answers into a Score. It holds no state and
// performs no I/O, so the same inputs always yield the same outcome.
type ScoringEngine struct{}

func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{}
}

// Compute returns a copy of answers with PointsAwarded set, and the score.
// The input slice is not modified.
func (e *ScoringEngine) Compute(answers []model.Answer, cfg model.QuizScoringConfig, submittedAt time.Time) ([]model.Answer, ScoreOutcome) {
	out := make([]model.Answer, len(answers))
	copy(out, answers)

	var (
		total, maxScore     float64
		weighted, weightMax float64
		warnings            []DataIntegrityWarning
	)
	for i := range out {
		a := &out[i]
		if _, ok := cfg.QuestionIDs[a.QuestionID]; !ok {
			a.PointsAwarded = 0
			warnings = append(warnings, DataIntegrityWarning{
				QuestionID: a.QuestionID,
				Reason:     fmt.Sprintf("question %d is no longer part of quiz %d", a.QuestionID, cfg.QuizID),
			})
			continue
		}

		awarded := awardedPoints(a, cfg)
		a.PointsAwarded = awarded
		total += awarded
		maxScore += a.Snapshot.Points
		weighted += awarded * a.Snapshot.Weight
		weightMax += a.Snapshot.Points * a.Snapshot.Weight
	}

	score := model.Score{
		Raw:         total,
		MaxScore:    maxScore,
		Weighted:    weighted,
		WeightedMax: weightMax,
		Bonus:       cfg.BonusPoints,
	}

	penaltyRatio := 0.0
	if isLate(cfg.LateSubmission, submittedAt) && total > 0 {
		penaltyRatio = cfg.LateSubmission.PenaltyPercentage / 100
		score.Penalty = total * penaltyRatio
	}
	adjusted := total - score.Penalty

	base, baseMax := adjusted, maxScore
	if cfg.Method == model.ScoringWeighted {
		base, baseMax = weighted-weighted*penaltyRatio, weightMax
	}
	score.Percentage = percentage(base, baseMax, cfg.Rounding, cfg.RoundingPrecision)

	scaleMax := cfg.CustomScaleMax
	if scaleMax <= 0 {
		scaleMax = cfg.TotalPoints
	}
	if scaleMax <= 0 {
		scaleMax = maxScore
	}
	score.Scaled = score.Percentage / 100 * scaleMax

	switch cfg.Method {
	case model.ScoringPercentage:
		score.Final = score.Percentage
	case model.ScoringWeighted:
		score.Final = math.Max(0, base)
	case model.ScoringCustom:
		score.Final = score.Scaled
	default:
		score.Final = math.Max(0, adjusted)
	}
	score.Final += score.Bonus
	if score.Final < 0 {
		score.Final = 0
	}

	return out, ScoreOutcome{
		Score:    score,
		Passed:   score.Percentage >= cfg.PassingScore,
		Warnings: warnings,
	}
}

// awardedPoints is the marginal contribution of one answer. Partial credit
// wins over negative marking; unanswered and pending-review answers are
// never penalised. A reviewer's score always counts.
func awardedPoints(a *model.Answer, cfg model.QuizScoringConfig) float64 {
	pts := a.Snapshot.Points
	switch {
	case a.IsCorrect:
		return pts
	case a.PartialScore != nil && (cfg.PartialCredit || a.ManuallyGraded):
		return pts * clamp(*a.PartialScore, 0, 100) / 100
	case cfg.NegativeMarking && a.Answered() && !a.NeedsManual:
		return -pts * cfg.NegativeMarkingFactor
	}
	return 0
}

func isLate(p model.LateSubmissionPolicy, submittedAt time.Time) bool {
	return p.Allowed && p.Deadline != nil && submittedAt.After(*p.Deadline)
}

func percentage(value, outOf float64, policy model.RoundingPolicy, precision int) float64 {
	if outOf <= 0 {
		return 0
	}
	return clamp(applyRounding(100*value/outOf, policy, precision), 0, 100)
}

func applyRounding(v float64, policy model.RoundingPolicy, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	f := math.Pow(10, float64(precision))
	switch policy {
	case model.RoundingRound:
		return math.Round(v*f) / f
	case model.RoundingCeil:
		return math.Ceil(v*f) / f
	case model.RoundingFloor:
		return math.Floor(v*f) / f
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
