package service

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"exam_prep_backend/internal/model"

	"github.com/montanaflynn/stats"
)

const distributionBuckets = 10

// AttemptHistoryReader is the read-only view of attempt history the
// statistics calculator depends on.
type AttemptHistoryReader interface {
	ListQuizAttempts(ctx context.Context, quizID uint) ([]model.AttemptSummary, error)
	ListUserAttempts(ctx context.Context, userID uint) ([]model.AttemptSummary, error)
	ListAttemptsForQuizzes(ctx context.Context, quizIDs []uint) ([]model.AttemptSummary, error)
}

type CalculatorOption func(*StatisticsCalculator)

func WithMinAttempts(n int) CalculatorOption {
	return func(c *StatisticsCalculator) { c.SetThresholds(n, int(c.window.Load())) }
}

func WithRollingWindow(n int) CalculatorOption {
	return func(c *StatisticsCalculator) { c.SetThresholds(int(c.minAttempts.Load()), n) }
}

func WithClock(now func() time.Time) CalculatorOption {
	return func(c *StatisticsCalculator) { c.now = now }
}

// StatisticsCalculator computes quiz and student aggregates. It never writes;
// results may lag behind concurrent submissions.
type StatisticsCalculator struct {
	history     AttemptHistoryReader
	now         func() time.Time
	minAttempts atomic.Int64
	window      atomic.Int64
}

func NewStatisticsCalculator(history AttemptHistoryReader, opts ...CalculatorOption) *StatisticsCalculator {
	c := &StatisticsCalculator{history: history, now: time.Now}
	c.minAttempts.Store(3)
	c.window.Store(5)
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetThresholds swaps the cohort minimum and rolling window; values below 1
// are raised to 1.
func (c *StatisticsCalculator) SetThresholds(minAttempts, window int) {
	c.minAttempts.Store(int64(max(1, minAttempts)))
	c.window.Store(int64(max(1, window)))
}

func (c *StatisticsCalculator) QuizStatistics(ctx context.Context, quizID uint, passingScore float64) (*model.QuizStatistics, error) {
	attempts, err := c.history.ListQuizAttempts(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list attempts of quiz %d: %w", quizID, err)
	}
	stats := Summarize(attempts, passingScore)
	stats.QuizID = quizID
	stats.CalculatedAt = c.now()
	return stats, nil
}

// Summarize folds attempt summaries into quiz statistics. Only scored
// attempts feed the score aggregates; no attempts yields zeros.
func Summarize(attempts []model.AttemptSummary, passingScore float64) *model.QuizStatistics {
	stats := &model.QuizStatistics{
		PassingScore:  passingScore,
		TotalAttempts: len(attempts),
		Distribution:  emptyDistribution(),
	}

	var scores []float64
	timeSpent := 0
	for _, a := range attempts {
		switch {
		case a.State.Scored():
			scores = append(scores, a.Percentage)
			timeSpent += a.TimeSpentSeconds
			if a.Percentage >= passingScore {
				stats.PassedCount++
			} else {
				stats.FailedCount++
			}
			stats.Distribution[bucketIndex(a.Percentage)].Count++
		case a.State == model.AttemptAbandoned:
			stats.AbandonedAttempts++
		case a.State == model.AttemptDisqualified:
			stats.DisqualifiedAttempts++
		}
	}
	stats.CompletedAttempts = len(scores)
	if len(scores) == 0 {
		return stats
	}

	stats.AverageScore = Mean(scores)
	stats.MedianScore = Median(scores)
	stats.StandardDeviation = StandardDeviation(scores)
	stats.HighestScore, stats.LowestScore = scoreRange(scores)
	stats.PassRate = 100 * float64(stats.PassedCount) / float64(len(scores))
	stats.CompletionRate = 100 * float64(len(scores)) / float64(len(attempts))
	stats.AverageTimeSpent = float64(timeSpent) / float64(len(scores))
	return stats
}

// QuizRanking ranks the scored attempts of a quiz by percentage. Ties share
// a rank.
func (c *StatisticsCalculator) QuizRanking(ctx context.Context, quizID uint) ([]model.AttemptRanking, error) {
	attempts, err := c.history.ListQuizAttempts(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list attempts of quiz %d: %w", quizID, err)
	}
	return Rank(attempts), nil
}

func Rank(attempts []model.AttemptSummary) []model.AttemptRanking {
	var scored []model.AttemptSummary
	for _, a := range attempts {
		if a.State.Scored() {
			scored = append(scored, a)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Percentage != scored[j].Percentage {
			return scored[i].Percentage > scored[j].Percentage
		}
		return scored[i].ID < scored[j].ID
	})

	all := make([]float64, len(scored))
	for i, a := range scored {
		all[i] = a.Percentage
	}
	out := make([]model.AttemptRanking, len(scored))
	for i, a := range scored {
		rank := i + 1
		if i > 0 && a.Percentage == scored[i-1].Percentage {
			rank = out[i-1].Rank
		}
		out[i] = model.AttemptRanking{
			AttemptID:  a.ID,
			Rank:       rank,
			Percentile: PercentileRank(a.Percentage, all),
		}
	}
	return out
}

func (c *StatisticsCalculator) StudentMetrics(ctx context.Context, userID uint) (*model.StudentAggregateMetrics, error) {
	attempts, err := c.history.ListUserAttempts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts of user %d: %w", userID, err)
	}
	minAttempts := int(c.minAttempts.Load())
	window := int(c.window.Load())

	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].StartedAt.Before(attempts[j].StartedAt)
	})

	m := &model.StudentAggregateMetrics{
		UserID:        userID,
		TotalAttempts: len(attempts),
		Trend:         model.TrendStable,
		CalculatedAt:  c.now(),
	}
	quizzes := make(map[uint]struct{})
	var quizIDs []uint
	var scores []float64
	for _, a := range attempts {
		if _, seen := quizzes[a.QuizID]; !seen {
			quizzes[a.QuizID] = struct{}{}
			quizIDs = append(quizIDs, a.QuizID)
		}
		if !a.State.Scored() {
			continue
		}
		scores = append(scores, a.Percentage)
		if a.Passed {
			m.PassedCount++
		}
	}
	m.QuizzesAttempted = len(quizIDs)
	m.ScoredAttempts = len(scores)
	m.SufficientData = len(scores) >= minAttempts
	if len(scores) == 0 {
		return m, nil
	}

	m.AverageScore = Mean(scores)
	m.BestScore, _ = scoreRange(scores)
	m.PassRate = 100 * float64(m.PassedCount) / float64(len(scores))
	m.RollingAverage = Mean(scores[max(0, len(scores)-window):])

	if len(scores) >= 2 {
		k := min(window, len(scores)/2)
		m.ImprovementRate = Mean(scores[len(scores)-k:]) - Mean(scores[:k])
		switch {
		case m.ImprovementRate > 0:
			m.Trend = model.TrendImproving
		case m.ImprovementRate < 0:
			m.Trend = model.TrendDeclining
		}
	}

	if !m.SufficientData {
		return m, nil
	}
	cohort, err := c.history.ListAttemptsForQuizzes(ctx, quizIDs)
	if err != nil {
		return nil, fmt.Errorf("list cohort attempts: %w", err)
	}
	averages := cohortAverages(cohort, minAttempts)
	m.CohortSize = len(averages)
	p := PercentileRank(m.AverageScore, averages)
	m.Percentile = &p
	return m, nil
}

// cohortAverages returns the mean percentage of every student with at least
// minAttempts scored attempts, in user id order.
func cohortAverages(attempts []model.AttemptSummary, minAttempts int) []float64 {
	byUser := make(map[uint][]float64)
	for _, a := range attempts {
		if a.State.Scored() {
			byUser[a.UserID] = append(byUser[a.UserID], a.Percentage)
		}
	}
	users := make([]uint, 0, len(byUser))
	for u, s := range byUser {
		if len(s) >= minAttempts {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	out := make([]float64, len(users))
	for i, u := range users {
		out[i] = Mean(byUser[u])
	}
	return out
}

// The helpers below treat an empty sample as zero; the library reports it
// as an error.

func Mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}

// StandardDeviation is the population standard deviation.
func StandardDeviation(values []float64) float64 {
	sd, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return 0
	}
	return sd
}

func Median(values []float64) float64 {
	m, err := stats.Median(values)
	if err != nil {
		return 0
	}
	return m
}

func scoreRange(values []float64) (highest, lowest float64) {
	highest, _ = stats.Max(values)
	lowest, _ = stats.Min(values)
	return highest, lowest
}

// PercentileRank is the share of all that is strictly below score, 0-100.
func PercentileRank(score float64, all []float64) float64 {
	if len(all) == 0 {
		return 0
	}
	below := 0
	for _, v := range all {
		if v < score {
			below++
		}
	}
	return 100 * float64(below) / float64(len(all))
}

func emptyDistribution() []model.ScoreBucket {
	out := make([]model.ScoreBucket, distributionBuckets)
	width := 100.0 / distributionBuckets
	for i := range out {
		out[i] = model.ScoreBucket{From: float64(i) * width, To: float64(i+1) * width}
	}
	return out
}

func bucketIndex(p float64) int {
	i := int(p / (100.0 / distributionBuckets))
	return min(max(i, 0), distributionBuckets-1)
}
