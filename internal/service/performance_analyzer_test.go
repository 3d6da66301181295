package service

import (
	"testing"

	"exam_prep_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCountsAndRates(t *testing.T) {
	answers := buildAnswers(
		answerSpec{id: 1, points: 5, correct: true, section: "algebra"},
		answerSpec{id: 2, points: 5, correct: true, section: "algebra"},
		answerSpec{id: 3, points: 5, partial: ptr(40), section: "geometry"},
		answerSpec{id: 4, points: 5, answered: true, section: "geometry"},
		answerSpec{id: 5, points: 5},
	)
	for i := range answers {
		answers[i].TimeSpentSeconds = 30
	}
	cfg := configFor(answers, func(c *model.QuizScoringConfig) { c.PartialCredit = true })
	scored, score := NewScoringEngine().Compute(answers, cfg, submitted)

	out := NewPerformanceAnalyzer().Analyze(scored, score.Score, 240, cfg)
	p := out.Performance

	assert.Equal(t, 5, p.TotalQuestions)
	assert.Equal(t, 2, p.Correct)
	assert.Equal(t, 1, p.Partial)
	assert.Equal(t, 1, p.Incorrect)
	assert.Equal(t, 1, p.Unanswered)
	assert.Equal(t, p.TotalQuestions, p.Correct+p.Partial+p.Incorrect+p.PendingReview+p.Unanswered)
	assert.Equal(t, 50.0, p.Accuracy)
	assert.Equal(t, 80.0, p.CompletionRate)
	assert.Equal(t, 1.0, p.Speed)
	assert.Equal(t, 60.0, p.AvgTimePerQuestion)
	assert.InDelta(t, score.Score.Percentage/4, p.Efficiency, 1e-9)

	require.Len(t, out.SectionBreakdown, 3)
	assert.Equal(t, "algebra", out.SectionBreakdown[0].Key)
	assert.Equal(t, 100.0, out.SectionBreakdown[0].Percentage)
	assert.Equal(t, "geometry", out.SectionBreakdown[1].Key)
	assert.Equal(t, 20.0, out.SectionBreakdown[1].Percentage)
	assert.Equal(t, defaultSection, out.SectionBreakdown[2].Key)
	assert.Equal(t, []string{"algebra"}, p.Strengths)
	assert.Equal(t, []string{"geometry", defaultSection}, p.Weaknesses)

	require.Len(t, out.DifficultyBreakdown, 1)
	assert.Equal(t, defaultDifficulty, out.DifficultyBreakdown[0].Key)
	assert.Equal(t, 5, out.DifficultyBreakdown[0].Total)
	require.Len(t, out.TypeBreakdown, 1)
	assert.Equal(t, 150, out.TypeBreakdown[0].TimeSpentSeconds)
}

func TestAnalyzeIgnoresQuestionsMissingFromQuiz(t *testing.T) {
	answers := buildAnswers(
		answerSpec{id: 1, points: 5, correct: true},
		answerSpec{id: 2, points: 5, correct: true},
	)
	cfg := configFor(answers, nil)
	delete(cfg.QuestionIDs, 2)

	out := NewPerformanceAnalyzer().Analyze(answers, model.Score{}, 0, cfg)
	assert.Equal(t, 1, out.Performance.TotalQuestions)
	assert.Equal(t, 0.0, out.Performance.Speed)
}

func TestAnalyzeNothingAnswered(t *testing.T) {
	answers := buildAnswers(answerSpec{id: 1, points: 1}, answerSpec{id: 2, points: 1})
	cfg := configFor(answers, nil)

	out := NewPerformanceAnalyzer().Analyze(answers, model.Score{}, 60, cfg)
	assert.Equal(t, 2, out.Performance.Unanswered)
	assert.Equal(t, 0.0, out.Performance.Accuracy)
	assert.Equal(t, 0.0, out.Performance.AvgTimePerQuestion)
	assert.Equal(t, 0.0, out.Performance.CompletionRate)
}

func TestAnalyzeKeepsPendingReviewOutOfAccuracy(t *testing.T) {
	answers := buildAnswers(
		answerSpec{id: 1, points: 5, correct: true, section: "essays"},
		answerSpec{id: 2, points: 5, answered: true, section: "essays"},
		answerSpec{id: 3, points: 10, answered: true, section: "essays"},
	)
	answers[2].NeedsManual = true
	cfg := configFor(answers, nil)

	out := NewPerformanceAnalyzer().Analyze(answers, model.Score{}, 0, cfg)
	p := out.Performance
	assert.Equal(t, 1, p.Correct)
	assert.Equal(t, 1, p.Incorrect)
	assert.Equal(t, 1, p.PendingReview)
	assert.Zero(t, p.Unanswered)
	assert.Equal(t, 50.0, p.Accuracy)
	assert.Equal(t, 100.0, p.CompletionRate)

	require.Len(t, out.SectionBreakdown, 1)
	assert.Equal(t, 1, out.SectionBreakdown[0].PendingReview)
	assert.Equal(t, 3, out.SectionBreakdown[0].Answered)
	assert.Equal(t, 50.0, out.SectionBreakdown[0].Accuracy)

	answers[2].NeedsManual = false
	answers[2].ManuallyGraded = true
	answers[2].IsCorrect = true
	p = NewPerformanceAnalyzer().Analyze(answers, model.Score{}, 0, cfg).Performance
	assert.Zero(t, p.PendingReview)
	assert.Equal(t, 2, p.Correct)
	assert.InDelta(t, 66.667, p.Accuracy, 0.001)
}
