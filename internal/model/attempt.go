package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AttemptState string

const (
	AttemptNotStarted   AttemptState = "not_started"
	AttemptInProgress   AttemptState = "in_progress"
	AttemptCompleted    AttemptState = "completed"
	AttemptSubmitted    AttemptState = "submitted"
	AttemptGraded       AttemptState = "graded"
	AttemptAbandoned    AttemptState = "abandoned"
	AttemptDisqualified AttemptState = "disqualified"
)

const (
	EndReasonSubmitted    = "submitted"
	EndReasonTimeout      = "time_out"
	EndReasonDisqualified = "disqualified"
)

func (s AttemptState) Terminal() bool {
	return s == AttemptGraded || s == AttemptAbandoned || s == AttemptDisqualified
}

// Scored reports whether the state is completed or later on the main path.
func (s AttemptState) Scored() bool {
	return s == AttemptCompleted || s == AttemptSubmitted || s == AttemptGraded
}

type PauseInterval struct {
	PausedAt     time.Time  `json:"pausedAt"`
	ResumedAt    *time.Time `json:"resumedAt,omitempty"`
	LimitSeconds int        `json:"limitSeconds,omitempty"`
}

// Credited is how many seconds of the pause are added to the attempt's
// deadline. An open pause is measured up to now; LimitSeconds caps it.
func (p PauseInterval) Credited(now time.Time) int {
	end := now
	if p.ResumedAt != nil {
		end = *p.ResumedAt
	}
	d := int(end.Sub(p.PausedAt).Seconds())
	if d < 0 {
		return 0
	}
	if p.LimitSeconds > 0 && d > p.LimitSeconds {
		return p.LimitSeconds
	}
	return d
}

type Score struct {
	Raw         float64 `json:"raw"`
	MaxScore    float64 `json:"maxScore"`
	Percentage  float64 `json:"percentage"`
	Weighted    float64 `json:"weighted"`
	WeightedMax float64 `json:"weightedMax"`
	Scaled      float64 `json:"scaled"`
	Bonus       float64 `json:"bonus"`
	Penalty     float64 `json:"penalty"`
	Final       float64 `json:"final"`
}

type Performance struct {
	TotalQuestions     int      `json:"totalQuestions"`
	Correct            int      `json:"correct"`
	Incorrect          int      `json:"incorrect"`
	Partial            int      `json:"partial"`
	Unanswered         int      `json:"unanswered"`
	PendingReview      int      `json:"pendingReview"` // answered, waiting for a reviewer
	Accuracy           float64  `json:"accuracy"`      // over answers with a verdict
	CompletionRate     float64  `json:"completionRate"`
	Speed              float64  `json:"speed"`      // questions per minute
	Efficiency         float64  `json:"efficiency"` // percentage points per minute
	AvgTimePerQuestion float64  `json:"avgTimePerQuestion"`
	Strengths          []string `json:"strengths,omitempty"`
	Weaknesses         []string `json:"weaknesses,omitempty"`
}

// Breakdown is a per-group sub-aggregate (section, difficulty, type).
type Breakdown struct {
	Key              string  `json:"key"`
	Total            int     `json:"total"`
	Answered         int     `json:"answered"`
	Correct          int     `json:"correct"`
	Incorrect        int     `json:"incorrect"`
	Partial          int     `json:"partial"`
	PendingReview    int     `json:"pendingReview"`
	Score            float64 `json:"score"`
	MaxScore         float64 `json:"maxScore"`
	Percentage       float64 `json:"percentage"`
	Accuracy         float64 `json:"accuracy"`
	TimeSpentSeconds int     `json:"timeSpentSeconds"`
}

type Result struct {
	Passed     bool       `json:"passed"`
	Rank       *int       `json:"rank,omitempty"`
	Percentile *float64   `json:"percentile,omitempty"`
	RankedAt   *time.Time `json:"rankedAt,omitempty"`
}

// Attempt is one student's pass at one quiz.
type Attempt struct {
	UUIDBase

	QuizID        uint         `gorm:"index:idx_attempt_user_quiz;type:bigint unsigned" json:"quizId"`
	UserID        uint         `gorm:"index:idx_attempt_user_quiz;type:bigint unsigned" json:"userId"`
	AttemptNumber int          `json:"attemptNumber"`
	State         AttemptState `gorm:"size:20;index" json:"state"`
	// ActiveKey is set only while in progress; the unique index keeps one
	// open attempt per (user, quiz).
	ActiveKey *string `gorm:"size:64;uniqueIndex" json:"-"`

	StartedAt        time.Time                          `json:"startedAt"`
	LastActivityAt   time.Time                          `json:"lastActivityAt"`
	SubmittedAt      *time.Time                         `json:"submittedAt,omitempty"`
	GradedAt         *time.Time                         `json:"gradedAt,omitempty"`
	EndedAt          *time.Time                         `json:"endedAt,omitempty"`
	TimeSpentSeconds int                                `json:"timeSpentSeconds"`
	PausedSeconds    int                                `json:"pausedSeconds"`
	PauseCount       int                                `json:"pauseCount"`
	Pauses           datatypes.JSONSlice[PauseInterval] `json:"pauses"`

	Answers datatypes.JSONSlice[Answer] `json:"answers"`

	Score               Score                          `gorm:"embedded;embeddedPrefix:score_" json:"score"`
	Performance         Performance                    `gorm:"serializer:json;type:json" json:"performance"`
	SectionBreakdown    datatypes.JSONSlice[Breakdown] `json:"sectionBreakdown"`
	DifficultyBreakdown datatypes.JSONSlice[Breakdown] `json:"difficultyBreakdown"`
	TypeBreakdown       datatypes.JSONSlice[Breakdown] `json:"typeBreakdown"`
	Result              Result                         `gorm:"embedded;embeddedPrefix:result_" json:"result"`

	EndReason        string `gorm:"size:30" json:"endReason,omitempty"`
	DisqualifyReason string `gorm:"type:text" json:"disqualifyReason,omitempty"`
}

func (Attempt) TableName() string {
	return "quiz_attempts"
}

func ActiveKeyFor(userID, quizID uint) string {
	return fmt.Sprintf("%d:%d", userID, quizID)
}

func (a *Attempt) IsPaused() bool {
	if len(a.Pauses) == 0 {
		return false
	}
	return a.Pauses[len(a.Pauses)-1].ResumedAt == nil
}

// FindAnswer returns the index of the answer for questionID, or -1.
func (a *Attempt) FindAnswer(questionID uint) int {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == questionID {
			return i
		}
	}
	return -1
}

// AttemptSummary is the slim read model the statistics layer works on.
type AttemptSummary struct {
	ID               string       `json:"id"`
	QuizID           uint         `json:"quizId"`
	UserID           uint         `json:"userId"`
	AttemptNumber    int          `json:"attemptNumber"`
	State            AttemptState `json:"state"`
	Percentage       float64      `json:"percentage"`
	Passed           bool         `json:"passed"`
	TimeSpentSeconds int          `json:"timeSpentSeconds"`
	StartedAt        time.Time    `json:"startedAt"`
	SubmittedAt      *time.Time   `json:"submittedAt,omitempty"`
}

func (a *Attempt) Summary() AttemptSummary {
	return AttemptSummary{
		ID:               a.ID,
		QuizID:           a.QuizID,
		UserID:           a.UserID,
		AttemptNumber:    a.AttemptNumber,
		State:            a.State,
		Percentage:       a.Score.Percentage,
		Passed:           a.Result.Passed,
		TimeSpentSeconds: a.TimeSpentSeconds,
		StartedAt:        a.StartedAt,
		SubmittedAt:      a.SubmittedAt,
	}
}
