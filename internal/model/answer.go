package model

import "time"

// QuestionSnapshot is taken once, at attempt start, and never modified.
type QuestionSnapshot struct {
	QuestionID    uint         `json:"questionId"`
	Type          QuestionType `json:"type"`
	Points        float64      `json:"points"`
	Weight        float64      `json:"weight"`
	Order         int          `json:"order"`
	Section       string       `json:"section,omitempty"`
	Difficulty    string       `json:"difficulty,omitempty"`
	ManualGrading bool         `json:"manualGrading,omitempty"`
	AnswerKey     AnswerKey    `json:"answerKey"`
}

type AnswerHistoryEntry struct {
	Payload    Payload   `json:"payload"`
	ReplacedAt time.Time `json:"replacedAt"`
}

// Answer is owned by its Attempt. History is append-only.
type Answer struct {
	QuestionID uint             `json:"questionId"`
	Snapshot   QuestionSnapshot `json:"snapshot"`

	Response         Payload              `json:"response"`
	History          []AnswerHistoryEntry `json:"history,omitempty"`
	TimeSpentSeconds int                  `json:"timeSpentSeconds"`
	FirstViewedAt    *time.Time           `json:"firstViewedAt,omitempty"`
	AnsweredAt       *time.Time           `json:"answeredAt,omitempty"`
	Flagged          bool                 `json:"flagged"`
	Confidence       *int                 `json:"confidence,omitempty"`
	HintUsed         bool                 `json:"hintUsed"`

	IsCorrect      bool     `json:"isCorrect"`
	PartialScore   *float64 `json:"partialScore,omitempty"` // 0-100
	PointsAwarded  float64  `json:"pointsAwarded"`
	NeedsManual    bool     `json:"needsManual"`
	ManuallyGraded bool     `json:"manuallyGraded"`
	Feedback       string   `json:"feedback,omitempty"`
}

func NewAnswer(snap QuestionSnapshot) Answer {
	return Answer{QuestionID: snap.QuestionID, Snapshot: snap}
}

func (a *Answer) Answered() bool {
	return a.Response.Answered()
}

// Record replaces the current response, pushing the previous one (if any)
// onto the history first.
func (a *Answer) Record(p Payload, at time.Time) {
	if a.Response.Value != nil {
		a.History = append(a.History, AnswerHistoryEntry{Payload: a.Response, ReplacedAt: at})
	}
	a.Response = p
	if a.FirstViewedAt == nil {
		t := at
		a.FirstViewedAt = &t
	}
	t := at
	a.AnsweredAt = &t
}

// IsPartial reports 0 < partial score < 100.
func (a *Answer) IsPartial() bool {
	return a.PartialScore != nil && *a.PartialScore > 0 && *a.PartialScore < 100
}
