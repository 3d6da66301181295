package model

import "time"

// ScoreBucket counts attempts whose percentage falls in [From, To); the last
// bucket is closed at 100.
type ScoreBucket struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

// QuizStatistics is the quiz-level reporting read model.
type QuizStatistics struct {
	QuizID               uint          `json:"quizId"`
	PassingScore         float64       `json:"passingScore"`
	TotalAttempts        int           `json:"totalAttempts"`
	CompletedAttempts    int           `json:"completedAttempts"`
	AbandonedAttempts    int           `json:"abandonedAttempts"`
	DisqualifiedAttempts int           `json:"disqualifiedAttempts"`
	PassedCount          int           `json:"passedCount"`
	FailedCount          int           `json:"failedCount"`
	AverageScore         float64       `json:"averageScore"`
	MedianScore          float64       `json:"medianScore"`
	HighestScore         float64       `json:"highestScore"`
	LowestScore          float64       `json:"lowestScore"`
	StandardDeviation    float64       `json:"standardDeviation"`
	PassRate             float64       `json:"passRate"`
	CompletionRate       float64       `json:"completionRate"`
	AverageTimeSpent     float64       `json:"averageTimeSpent"`
	Distribution         []ScoreBucket `json:"distribution"`
	CalculatedAt         time.Time     `json:"calculatedAt"`
}

const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// StudentAggregateMetrics is the student-level reporting read model.
type StudentAggregateMetrics struct {
	UserID           uint      `json:"userId"`
	TotalAttempts    int       `json:"totalAttempts"`
	ScoredAttempts   int       `json:"scoredAttempts"`
	QuizzesAttempted int       `json:"quizzesAttempted"`
	PassedCount      int       `json:"passedCount"`
	AverageScore     float64   `json:"averageScore"`
	BestScore        float64   `json:"bestScore"`
	RollingAverage   float64   `json:"rollingAverage"`
	ImprovementRate  float64   `json:"improvementRate"`
	PassRate         float64   `json:"passRate"`
	Trend            string    `json:"trend"`
	Percentile       *float64  `json:"percentile,omitempty"`
	CohortSize       int       `json:"cohortSize"`
	SufficientData   bool      `json:"sufficientData"`
	CalculatedAt     time.Time `json:"calculatedAt"`
}

// AttemptRanking is what the ranking pass writes back onto an attempt.
type AttemptRanking struct {
	AttemptID  string  `json:"attemptId"`
	Rank       int     `json:"rank"`
	Percentile float64 `json:"percentile"`
}
