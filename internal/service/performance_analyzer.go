package service

import (
	"exam_prep_backend/internal/model"
)

const (
	strengthThreshold = 75.0
	weaknessThreshold = 50.0

	defaultSection    = "general"
	defaultDifficulty = "unspecified"
)

type PerformanceOutcome struct {
	Performance         model.Performance
	SectionBreakdown    []model.Breakdown
	DifficultyBreakdown []model.Breakdown
	TypeBreakdown       []model.Breakdown
}

// PerformanceAnalyzer derives descriptive metrics from scored answers.
type PerformanceAnalyzer struct{}

func NewPerformanceAnalyzer() *PerformanceAnalyzer {
	return &PerformanceAnalyzer{}
}

// Analyze only considers answers whose question is still on the quiz, the
// same set the scoring engine counted.
func (p *PerformanceAnalyzer) Analyze(answers []model.Answer, score model.Score, timeSpentSeconds int, cfg model.QuizScoringConfig) PerformanceOutcome {
	sections := newBreakdownSet()
	difficulties := newBreakdownSet()
	types := newBreakdownSet()

	var perf model.Performance
	answered, judged := 0, 0
	for i := range answers {
		a := &answers[i]
		if _, ok := cfg.QuestionIDs[a.QuestionID]; !ok {
			continue
		}
		perf.TotalQuestions++

		section := a.Snapshot.Section
		if section == "" {
			section = defaultSection
		}
		difficulty := a.Snapshot.Difficulty
		if difficulty == "" {
			difficulty = defaultDifficulty
		}
		groups := []*model.Breakdown{
			sections.get(section),
			difficulties.get(difficulty),
			types.get(string(a.Snapshot.Type)),
		}

		outcome := classify(a)
		switch outcome {
		case outcomeCorrect:
			perf.Correct++
		case outcomePartial:
			perf.Partial++
		case outcomeIncorrect:
			perf.Incorrect++
		case outcomePending:
			perf.PendingReview++
		default:
			perf.Unanswered++
		}
		if a.Answered() {
			answered++
			if outcome != outcomePending {
				judged++
			}
		}

		for _, g := range groups {
			g.Total++
			g.Score += a.PointsAwarded
			g.MaxScore += a.Snapshot.Points
			g.TimeSpentSeconds += a.TimeSpentSeconds
			switch outcome {
			case outcomeCorrect:
				g.Correct++
			case outcomePartial:
				g.Partial++
			case outcomeIncorrect:
				g.Incorrect++
			case outcomePending:
				g.PendingReview++
			}
			if a.Answered() {
				g.Answered++
			}
		}
	}

	if judged > 0 {
		perf.Accuracy = 100 * float64(perf.Correct) / float64(judged)
	}
	if answered > 0 {
		perf.AvgTimePerQuestion = float64(timeSpentSeconds) / float64(answered)
	}
	if perf.TotalQuestions > 0 {
		perf.CompletionRate = 100 * float64(answered) / float64(perf.TotalQuestions)
	}
	if timeSpentSeconds > 0 {
		minutes := float64(timeSpentSeconds) / 60
		perf.Speed = float64(answered) / minutes
		perf.Efficiency = score.Percentage / minutes
	}

	out := PerformanceOutcome{
		SectionBreakdown:    sections.finish(cfg),
		DifficultyBreakdown: difficulties.finish(cfg),
		TypeBreakdown:       types.finish(cfg),
	}
	for _, b := range out.SectionBreakdown {
		if b.MaxScore <= 0 {
			continue
		}
		switch {
		case b.Percentage >= strengthThreshold:
			perf.Strengths = append(perf.Strengths, b.Key)
		case b.Percentage < weaknessThreshold:
			perf.Weaknesses = append(perf.Weaknesses, b.Key)
		}
	}
	out.Performance = perf
	return out
}

type answerOutcome int

const (
	outcomeUnanswered answerOutcome = iota
	outcomeCorrect
	outcomePartial
	outcomeIncorrect
	outcomePending
)

func classify(a *model.Answer) answerOutcome {
	switch {
	case a.IsCorrect:
		return outcomeCorrect
	case a.IsPartial():
		return outcomePartial
	case a.Answered() && a.NeedsManual && !a.ManuallyGraded:
		return outcomePending
	case a.Answered():
		return outcomeIncorrect
	}
	return outcomeUnanswered
}

// breakdownSet keeps groups in first-appearance order.
type breakdownSet struct {
	order []string
	index map[string]*model.Breakdown
}

func newBreakdownSet() *breakdownSet {
	return &breakdownSet{index: make(map[string]*model.Breakdown)}
}

func (s *breakdownSet) get(key string) *model.Breakdown {
	if b, ok := s.index[key]; ok {
		return b
	}
	b := &model.Breakdown{Key: key}
	s.index[key] = b
	s.order = append(s.order, key)
	return b
}

func (s *breakdownSet) finish(cfg model.QuizScoringConfig) []model.Breakdown {
	out := make([]model.Breakdown, 0, len(s.order))
	for _, k := range s.order {
		b := *s.index[k]
		b.Percentage = percentage(b.Score, b.MaxScore, cfg.Rounding, cfg.RoundingPrecision)
		if judged := b.Answered - b.PendingReview; judged > 0 {
			b.Accuracy = 100 * float64(b.Correct) / float64(judged)
		}
		out = append(out, b)
	}
	return out
}
