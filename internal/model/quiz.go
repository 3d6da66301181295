package model

import (
	"time"

	"gorm.io/datatypes"
)

type ScoringMethod string

const (
	ScoringSum        ScoringMethod = "sum"
	ScoringPercentage ScoringMethod = "percentage"
	ScoringWeighted   ScoringMethod = "weighted"
	ScoringCustom     ScoringMethod = "custom"
)

type RoundingPolicy string

const (
	RoundingNone  RoundingPolicy = "none"
	RoundingRound RoundingPolicy = "round"
	RoundingCeil  RoundingPolicy = "ceil"
	RoundingFloor RoundingPolicy = "floor"
)

type GradingMethod string

const (
	GradingAuto   GradingMethod = "auto"
	GradingManual GradingMethod = "manual"
	GradingHybrid GradingMethod = "hybrid"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Quiz is the catalog's view of a quiz. This service only reads it.
type Quiz struct {
	BaseModel

	Title                 string         `gorm:"size:255;not null" json:"title"`
	TotalPoints           float64        `gorm:"default:0" json:"totalPoints"`
	PassingScore          float64        `gorm:"default:60" json:"passingScore"` // percentage
	ScoringMethod         ScoringMethod  `gorm:"size:20;default:'sum'" json:"scoringMethod"`
	CustomScaleMax        float64        `gorm:"default:0" json:"customScaleMax"`
	NegativeMarking       bool           `gorm:"default:false" json:"negativeMarking"`
	NegativeMarkingFactor float64        `gorm:"default:0" json:"negativeMarkingFactor"`
	PartialCredit         bool           `gorm:"default:false" json:"partialCredit"`
	Rounding              RoundingPolicy `gorm:"size:10" json:"rounding"`
	RoundingPrecision     *int           `json:"roundingPrecision,omitempty"`
	BonusPoints           float64        `gorm:"default:0" json:"bonusPoints"`
	AllowLateSubmission   bool           `gorm:"default:false" json:"allowLateSubmission"`
	LatePenaltyPercentage float64        `gorm:"default:0" json:"latePenaltyPercentage"`
	GradingMethod         GradingMethod  `gorm:"size:10;default:'auto'" json:"gradingMethod"`

	DurationSeconds int  `gorm:"default:0" json:"durationSeconds"` // 0 = untimed
	GraceSeconds    int  `gorm:"default:0" json:"graceSeconds"`
	AllowPause      bool `gorm:"default:false" json:"allowPause"`
	MaxPauses       int  `gorm:"default:0" json:"maxPauses"`
	MaxPauseSeconds int  `gorm:"default:0" json:"maxPauseSeconds"` // 0 = service default
	AttemptLimit    int  `gorm:"default:0" json:"attemptLimit"` // 0 = unlimited
	CooldownSeconds int  `gorm:"default:0" json:"cooldownSeconds"`

	AvailableFrom *time.Time `json:"availableFrom,omitempty"`
	AvailableTo   *time.Time `json:"availableTo,omitempty"`

	Questions []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuizQuestion is a question placed on a quiz together with its
// scoring-relevant fields. AnswerKey never leaves the service.
type QuizQuestion struct {
	BaseModel

	QuizID        uint                         `gorm:"index;type:bigint unsigned" json:"quizId"`
	QuestionID    uint                         `gorm:"index;type:bigint unsigned" json:"questionId"`
	Type          QuestionType                 `gorm:"size:30" json:"type"`
	Points        float64                      `gorm:"default:1" json:"points"`
	Weight        float64                      `gorm:"default:1" json:"weight"`
	Order         int                          `gorm:"default:0" json:"order"`
	Section       string                       `gorm:"size:100" json:"section"`
	Difficulty    string                       `gorm:"size:20;default:'medium'" json:"difficulty"`
	ManualGrading bool                         `gorm:"default:false" json:"manualGrading"`
	AnswerKey     datatypes.JSONType[AnswerKey] `json:"-"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// Snapshot copies the scoring-relevant fields so later edits to the live
// question never change an attempt that already started.
func (q QuizQuestion) Snapshot() QuestionSnapshot {
	key := q.AnswerKey.Data()
	weight := q.Weight
	if weight <= 0 {
		weight = 1
	}
	return QuestionSnapshot{
		QuestionID:    q.QuestionID,
		Type:          q.Type,
		Points:        q.Points,
		Weight:        weight,
		Order:         q.Order,
		Section:       q.Section,
		Difficulty:    q.Difficulty,
		ManualGrading: q.ManualGrading || q.Type.RequiresManualGrading(),
		AnswerKey:     key.clone(),
	}
}

// AnswerKey is the correct-answer definition. Which fields apply depends on
// the question type.
type AnswerKey struct {
	Choices       []string          `json:"choices,omitempty"`
	Texts         []string          `json:"texts,omitempty"`
	CaseSensitive bool              `json:"caseSensitive,omitempty"`
	Numeric       *float64          `json:"numeric,omitempty"`
	Tolerance     float64           `json:"tolerance,omitempty"`
	Sequence      []string          `json:"sequence,omitempty"`
	Pairs         map[string]string `json:"pairs,omitempty"`
}

func (k AnswerKey) clone() AnswerKey {
	out := AnswerKey{
		Choices:       append([]string(nil), k.Choices...),
		Texts:         append([]string(nil), k.Texts...),
		CaseSensitive: k.CaseSensitive,
		Tolerance:     k.Tolerance,
		Sequence:      append([]string(nil), k.Sequence...),
	}
	if k.Numeric != nil {
		v := *k.Numeric
		out.Numeric = &v
	}
	if k.Pairs != nil {
		out.Pairs = make(map[string]string, len(k.Pairs))
		for a, b := range k.Pairs {
			out.Pairs[a] = b
		}
	}
	return out
}

type LateSubmissionPolicy struct {
	Allowed           bool       `json:"allowed"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	PenaltyPercentage float64    `json:"penaltyPercentage"`
}

// QuizScoringConfig is the read-only input of the scoring engine.
type QuizScoringConfig struct {
	QuizID                uint                 `json:"quizId"`
	TotalPoints           float64              `json:"totalPoints"`
	PassingScore          float64              `json:"passingScore"`
	Method                ScoringMethod        `json:"method"`
	CustomScaleMax        float64              `json:"customScaleMax"`
	NegativeMarking       bool                 `json:"negativeMarking"`
	NegativeMarkingFactor float64              `json:"negativeMarkingFactor"`
	PartialCredit         bool                 `json:"partialCredit"`
	Rounding              RoundingPolicy       `json:"rounding"`
	RoundingPrecision     int                  `json:"roundingPrecision"`
	BonusPoints           float64              `json:"bonusPoints"`
	LateSubmission        LateSubmissionPolicy `json:"lateSubmission"`
	GradingMethod         GradingMethod        `json:"gradingMethod"`
	// QuestionIDs is the set of questions currently on the quiz.
	QuestionIDs map[uint]struct{} `json:"-"`
}

// ScoringConfig derives the engine input. Unset rounding falls back to the
// given defaults.
func (q *Quiz) ScoringConfig(defaultRounding RoundingPolicy, defaultPrecision int) QuizScoringConfig {
	cfg := QuizScoringConfig{
		QuizID:                q.ID,
		TotalPoints:           q.TotalPoints,
		PassingScore:          q.PassingScore,
		Method:                q.ScoringMethod,
		CustomScaleMax:        q.CustomScaleMax,
		NegativeMarking:       q.NegativeMarking,
		NegativeMarkingFactor: q.NegativeMarkingFactor,
		PartialCredit:         q.PartialCredit,
		Rounding:              q.Rounding,
		RoundingPrecision:     defaultPrecision,
		BonusPoints:           q.BonusPoints,
		LateSubmission: LateSubmissionPolicy{
			Allowed:           q.AllowLateSubmission,
			Deadline:          q.AvailableTo,
			PenaltyPercentage: q.LatePenaltyPercentage,
		},
		GradingMethod: q.GradingMethod,
		QuestionIDs:   make(map[uint]struct{}, len(q.Questions)),
	}
	if cfg.Method == "" {
		cfg.Method = ScoringSum
	}
	if cfg.Rounding == "" {
		cfg.Rounding = defaultRounding
	}
	if q.RoundingPrecision != nil {
		cfg.RoundingPrecision = *q.RoundingPrecision
	}
	if cfg.GradingMethod == "" {
		cfg.GradingMethod = GradingAuto
	}
	for _, qq := range q.Questions {
		cfg.QuestionIDs[qq.QuestionID] = struct{}{}
		if q.TotalPoints == 0 {
			cfg.TotalPoints += qq.Points
		}
	}
	return cfg
}

// Deadline is the wall-clock instant after which an in-progress attempt
// counts as abandoned. Zero time means untimed.
func (q *Quiz) Deadline(startedAt time.Time, pausedSeconds int) time.Time {
	if q.DurationSeconds <= 0 {
		return time.Time{}
	}
	total := q.DurationSeconds + q.GraceSeconds + pausedSeconds
	return startedAt.Add(time.Duration(total) * time.Second)
}
