package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"exam_prep_backend/internal/config"
	"exam_prep_backend/internal/model"
	"exam_prep_backend/internal/util"
	"exam_prep_backend/pkg/events"
	"exam_prep_backend/pkg/logger"
	"exam_prep_backend/pkg/monitoring"
	"exam_prep_backend/pkg/tracing"

	"go.uber.org/zap"
)

// AttemptStore persists attempts. Mutate loads one attempt under a row lock,
// applies fn and saves the result; an error from fn discards every change.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	FindByID(ctx context.Context, id string) (*model.Attempt, error)
	FindActive(ctx context.Context, userID, quizID uint) (*model.Attempt, error)
	ListUserQuizAttempts(ctx context.Context, userID, quizID uint) ([]model.AttemptSummary, error)
	ListInProgress(ctx context.Context) ([]model.AttemptSummary, error)
	Mutate(ctx context.Context, id string, fn func(a *model.Attempt) error) (*model.Attempt, error)
}

// QuizCatalog is the read-only quiz definition source.
type QuizCatalog interface {
	GetQuiz(ctx context.Context, quizID uint) (*model.Quiz, error)
}

type AttemptOption func(*AttemptService)

func WithAttemptClock(now func() time.Time) AttemptOption {
	return func(s *AttemptService) { s.now = now }
}

func WithGrader(g AnswerGrader) AttemptOption {
	return func(s *AttemptService) { s.Grader = g }
}

// WithPauseLimit caps a single pause for quizzes that set no limit of their own.
func WithPauseLimit(seconds int) AttemptOption {
	return func(s *AttemptService) { s.machine.PauseLimitSeconds = seconds }
}

type AttemptService struct {
	Store    AttemptStore
	Catalog  QuizCatalog
	Events   events.Publisher
	Grader   AnswerGrader
	Scoring  *ScoringEngine
	Analyzer *PerformanceAnalyzer

	machine          AttemptStateMachine
	defaultRounding  model.RoundingPolicy
	defaultPrecision int
	now              func() time.Time
}

func NewAttemptService(store AttemptStore, catalog QuizCatalog, publisher events.Publisher, cfg config.ScoringConfig, opts ...AttemptOption) *AttemptService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	s := &AttemptService{
		Store:            store,
		Catalog:          catalog,
		Events:           publisher,
		Grader:           NewAnswerGrader(),
		Scoring:          NewScoringEngine(),
		Analyzer:         NewPerformanceAnalyzer(),
		defaultRounding:  model.RoundingPolicy(cfg.DefaultRounding),
		defaultPrecision: cfg.DefaultPrecision,
		now:              time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SubmissionResult is returned by Submit and ManualGrade. Cached is set when
// the attempt had already been scored and nothing was recomputed.
type SubmissionResult struct {
	Attempt  *model.Attempt         `json:"attempt"`
	Warnings []DataIntegrityWarning `json:"warnings,omitempty"`
	Cached   bool                   `json:"cached"`
}

// ManualScore is a reviewer's verdict on one answer, as a 0-100 percentage.
type ManualScore struct {
	QuestionID uint    `json:"questionId" binding:"required"`
	Score      float64 `json:"score"`
	Feedback   string  `json:"feedback"`
}

func (s *AttemptService) quiz(ctx context.Context, quizID uint) (*model.Quiz, error) {
	quiz, err := s.Catalog.GetQuiz(ctx, quizID)
	if errors.Is(err, util.ErrQuizNotFound) {
		return nil, util.NotFound(err)
	}
	return quiz, err
}

func (s *AttemptService) load(ctx context.Context, id string) (*model.Attempt, error) {
	a, err := s.Store.FindByID(ctx, id)
	if errors.Is(err, util.ErrAttemptNotFound) {
		return nil, util.NotFound(err)
	}
	return a, err
}

func (s *AttemptService) mutate(ctx context.Context, id string, fn func(a *model.Attempt) error) (*model.Attempt, error) {
	a, err := s.Store.Mutate(ctx, id, fn)
	if errors.Is(err, util.ErrAttemptNotFound) {
		return nil, util.NotFound(err)
	}
	return a, err
}

func owned(a *model.Attempt, userID uint) error {
	if a.UserID != userID {
		return util.Denied("attempt belongs to another user", nil)
	}
	return nil
}

// Start opens a new attempt, snapshotting every question of the quiz.
func (s *AttemptService) Start(ctx context.Context, quizID, userID uint) (*model.Attempt, error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.Start", "")
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	quiz, err := s.quiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if quiz.AvailableFrom != nil && now.Before(*quiz.AvailableFrom) {
		from := *quiz.AvailableFrom
		err = util.Denied("quiz is not open yet", &from)
		return nil, err
	}
	if quiz.AvailableTo != nil && now.After(*quiz.AvailableTo) && !quiz.AllowLateSubmission {
		err = util.Denied("quiz is closed", nil)
		return nil, err
	}

	active, err := s.Store.FindActive(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		err = util.Conflict(string(active.State), fmt.Sprintf("attempt %s is already in progress", active.ID))
		return nil, err
	}

	history, err := s.Store.ListUserQuizAttempts(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	if err = checkAttemptPolicy(quiz, history, now); err != nil {
		return nil, err
	}

	attempt := &model.Attempt{
		QuizID:        quizID,
		UserID:        userID,
		AttemptNumber: nextAttemptNumber(history),
		State:         model.AttemptNotStarted,
		Answers:       snapshotAnswers(quiz.Questions),
	}
	attempt.ID = model.GenerateUUID()
	if err = s.machine.Start(attempt, now); err != nil {
		return nil, err
	}

	if err = s.Store.Create(ctx, attempt); err != nil {
		if errors.Is(err, util.ErrActiveAttemptExists) {
			err = util.Conflict(string(model.AttemptInProgress), "another attempt for this quiz is already in progress")
		}
		return nil, err
	}

	monitoring.AttemptsStarted.Inc()
	s.publish(events.AttemptStarted, attempt)
	logger.Log.Info("Attempt started",
		zap.String("attemptId", attempt.ID),
		zap.Uint("quizId", quizID),
		zap.Uint("userId", userID),
		zap.Int("attemptNumber", attempt.AttemptNumber))
	return attempt, nil
}

func checkAttemptPolicy(quiz *model.Quiz, history []model.AttemptSummary, now time.Time) error {
	if quiz.AttemptLimit > 0 && len(history) >= quiz.AttemptLimit {
		return util.Denied(fmt.Sprintf("attempt limit of %d reached", quiz.AttemptLimit), nil)
	}
	if quiz.CooldownSeconds <= 0 || len(history) == 0 {
		return nil
	}
	last := history[0].StartedAt
	for _, h := range history[1:] {
		if h.StartedAt.After(last) {
			last = h.StartedAt
		}
	}
	for _, h := range history {
		if h.SubmittedAt != nil && h.SubmittedAt.After(last) {
			last = *h.SubmittedAt
		}
	}
	next := last.Add(time.Duration(quiz.CooldownSeconds) * time.Second)
	if now.Before(next) {
		return util.Denied("cooldown between attempts has not elapsed", &next)
	}
	return nil
}

func nextAttemptNumber(history []model.AttemptSummary) int {
	n := 0
	for _, h := range history {
		if h.AttemptNumber > n {
			n = h.AttemptNumber
		}
	}
	return n + 1
}

func snapshotAnswers(questions []model.QuizQuestion) []model.Answer {
	sorted := append([]model.QuizQuestion(nil), questions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].QuestionID < sorted[j].QuestionID
	})
	out := make([]model.Answer, len(sorted))
	for i, q := range sorted {
		out[i] = model.NewAnswer(q.Snapshot())
	}
	return out
}

// Get returns an attempt to its owner or to a reviewer.
func (s *AttemptService) Get(ctx context.Context, id string, userID uint, role model.UserRole) (*model.Attempt, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !role.CanReview() {
		if err := owned(a, userID); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// RecordAnswer stores a response. An attempt found past its deadline is
// abandoned instead and the call is rejected.
func (s *AttemptService) RecordAnswer(ctx context.Context, id string, userID, questionID uint, in AnswerInput) (*model.Attempt, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(current, userID); err != nil {
		return nil, err
	}
	quiz, err := s.quiz(ctx, current.QuizID)
	if err != nil {
		return nil, err
	}

	return s.mutateUnlessExpired(ctx, id, quiz, func(a *model.Attempt, now time.Time) error {
		return s.machine.RecordAnswer(a, questionID, in, now)
	})
}

// pausedSoFar includes an open pause up to its limit; past the limit the
// attempt clock runs again.
func pausedSoFar(a *model.Attempt, now time.Time) int {
	paused := a.PausedSeconds
	if a.IsPaused() {
		paused += a.Pauses[len(a.Pauses)-1].Credited(now)
	}
	return paused
}

func (s *AttemptService) Pause(ctx context.Context, id string, userID uint) (*model.Attempt, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(current, userID); err != nil {
		return nil, err
	}
	quiz, err := s.quiz(ctx, current.QuizID)
	if err != nil {
		return nil, err
	}
	return s.mutateUnlessExpired(ctx, id, quiz, func(a *model.Attempt, now time.Time) error {
		return s.machine.Pause(a, quiz, now)
	})
}

func (s *AttemptService) Resume(ctx context.Context, id string, userID uint) (*model.Attempt, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(current, userID); err != nil {
		return nil, err
	}
	quiz, err := s.quiz(ctx, current.QuizID)
	if err != nil {
		return nil, err
	}
	return s.mutateUnlessExpired(ctx, id, quiz, func(a *model.Attempt, now time.Time) error {
		return s.machine.Resume(a, now)
	})
}

// mutateUnlessExpired abandons an attempt found past its deadline and
// rejects the call; otherwise it applies fn.
func (s *AttemptService) mutateUnlessExpired(ctx context.Context, id string, quiz *model.Quiz, fn func(a *model.Attempt, now time.Time) error) (*model.Attempt, error) {
	expired := false
	a, err := s.mutate(ctx, id, func(a *model.Attempt) error {
		now := s.now()
		if s.machine.Expire(a, quiz.Deadline(a.StartedAt, pausedSoFar(a, now)), now) {
			expired = true
			return nil
		}
		return fn(a, now)
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.finished(events.AttemptAbandoned, a)
		return nil, util.InvalidState(string(a.State), "time limit exceeded")
	}
	return a, nil
}

// Submit closes the attempt and scores it exactly once. Submitting an
// attempt that is already submitted or graded returns the stored result.
func (s *AttemptService) Submit(ctx context.Context, id string, userID uint) (*SubmissionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.Submit", id)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = owned(current, userID); err != nil {
		return nil, err
	}
	if current.State == model.AttemptSubmitted || current.State == model.AttemptGraded {
		return &SubmissionResult{Attempt: current, Cached: true}, nil
	}
	quiz, err := s.quiz(ctx, current.QuizID)
	if err != nil {
		return nil, err
	}

	var (
		warnings []DataIntegrityWarning
		cached   bool
		expired  bool
	)
	a, err := s.mutate(ctx, id, func(a *model.Attempt) error {
		if a.State == model.AttemptSubmitted || a.State == model.AttemptGraded {
			cached = true
			return nil
		}
		now := s.now()
		if s.machine.Expire(a, quiz.Deadline(a.StartedAt, pausedSoFar(a, now)), now) {
			expired = true
			return nil
		}
		if a.State == model.AttemptInProgress && quiz.AvailableTo != nil && now.After(*quiz.AvailableTo) && !quiz.AllowLateSubmission {
			return util.Denied("submission window has closed", nil)
		}
		if err := s.machine.Complete(a, now); err != nil {
			return err
		}
		ws, pending := s.score(ctx, a, quiz)
		warnings = ws
		return s.machine.Finalize(a, pending || quiz.GradingMethod == model.GradingManual, now)
	})
	if err != nil {
		return nil, err
	}
	if cached {
		return &SubmissionResult{Attempt: a, Cached: true}, nil
	}
	if expired {
		s.finished(events.AttemptAbandoned, a)
		err = util.InvalidState(string(a.State), "time limit exceeded")
		return nil, err
	}

	if a.State == model.AttemptGraded {
		s.finished(events.AttemptGraded, a)
	} else {
		s.finished(events.AttemptSubmitted, a)
	}
	logger.Log.Info("Attempt submitted",
		zap.String("attemptId", a.ID),
		zap.String("state", string(a.State)),
		zap.Float64("percentage", a.Score.Percentage),
		zap.Bool("passed", a.Result.Passed))
	return &SubmissionResult{Attempt: a, Warnings: warnings}, nil
}

// score runs grade → score → analyse on the attempt in place and reports
// whether any answer still waits for a reviewer.
func (s *AttemptService) score(ctx context.Context, a *model.Attempt, quiz *model.Quiz) ([]DataIntegrityWarning, bool) {
	_, span := tracing.StartSpan(ctx, "AttemptService.score", a.ID)
	defer span.End()
	start := time.Now()
	defer func() { monitoring.ScoringDuration.Observe(time.Since(start).Seconds()) }()

	cfg := quiz.ScoringConfig(s.defaultRounding, s.defaultPrecision)
	submittedAt := s.now()
	if a.SubmittedAt != nil {
		submittedAt = *a.SubmittedAt
	}

	graded := GradeAll(s.Grader, a.Answers)
	scored, outcome := s.Scoring.Compute(graded, cfg, submittedAt)
	perf := s.Analyzer.Analyze(scored, outcome.Score, a.TimeSpentSeconds, cfg)

	a.Answers = scored
	a.Score = outcome.Score
	a.Result.Passed = outcome.Passed
	a.Performance = perf.Performance
	a.SectionBreakdown = perf.SectionBreakdown
	a.DifficultyBreakdown = perf.DifficultyBreakdown
	a.TypeBreakdown = perf.TypeBreakdown

	for _, w := range outcome.Warnings {
		monitoring.DataIntegrityWarnings.Inc()
		logger.Log.Warn("Answer skipped during scoring",
			zap.String("attemptId", a.ID),
			zap.Uint("questionId", w.QuestionID),
			zap.String("reason", w.Reason))
	}

	pending := false
	for i := range scored {
		if scored[i].NeedsManual && !scored[i].ManuallyGraded {
			pending = true
			break
		}
	}
	return outcome.Warnings, pending
}

// ManualGrade applies reviewer scores to a submitted attempt and rescores
// it. The attempt becomes graded once no answer waits for review.
func (s *AttemptService) ManualGrade(ctx context.Context, id string, graderID uint, scores []ManualScore) (*SubmissionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.ManualGrade", id)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if len(scores) == 0 {
		err = util.InvalidArgument("no scores given")
		return nil, err
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quiz(ctx, current.QuizID)
	if err != nil {
		return nil, err
	}

	var warnings []DataIntegrityWarning
	a, err := s.mutate(ctx, id, func(a *model.Attempt) error {
		if a.State != model.AttemptSubmitted {
			return util.InvalidState(string(a.State), "only submitted attempts can be graded manually")
		}
		for _, sc := range scores {
			if sc.Score < 0 || sc.Score > 100 {
				return util.InvalidArgument(fmt.Sprintf("score for question %d must be within 0..100", sc.QuestionID))
			}
			idx := a.FindAnswer(sc.QuestionID)
			if idx < 0 {
				return util.UnknownQuestion(sc.QuestionID)
			}
			ans := &a.Answers[idx]
			v := sc.Score
			ans.PartialScore = &v
			ans.IsCorrect = v == 100
			ans.ManuallyGraded = true
			ans.NeedsManual = false
			ans.Feedback = sc.Feedback
		}
		ws, pending := s.score(ctx, a, quiz)
		warnings = ws
		if pending {
			return nil
		}
		return s.machine.Finalize(a, false, s.now())
	})
	if err != nil {
		return nil, err
	}

	if a.State == model.AttemptGraded {
		s.finished(events.AttemptGraded, a)
	}
	logger.Log.Info("Attempt graded manually",
		zap.String("attemptId", a.ID),
		zap.Uint("graderId", graderID),
		zap.Int("scores", len(scores)),
		zap.String("state", string(a.State)))
	return &SubmissionResult{Attempt: a, Warnings: warnings}, nil
}

// Disqualify ends an attempt for misconduct. Disqualifying an attempt twice
// is a no-op.
func (s *AttemptService) Disqualify(ctx context.Context, id, reason string) (*model.Attempt, error) {
	already := false
	a, err := s.mutate(ctx, id, func(a *model.Attempt) error {
		if a.State == model.AttemptDisqualified {
			already = true
			return nil
		}
		return s.machine.Disqualify(a, reason, s.now())
	})
	if err != nil {
		return nil, err
	}
	if !already {
		s.finished(events.AttemptDisqualified, a)
		logger.Log.Warn("Attempt disqualified", zap.String("attemptId", a.ID), zap.String("reason", reason))
	}
	return a, nil
}

// Expire abandons the attempt if its time is up. It reports whether the
// attempt changed; every state other than in_progress is left untouched.
func (s *AttemptService) Expire(ctx context.Context, id string) (bool, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if current.State != model.AttemptInProgress {
		return false, nil
	}
	quiz, err := s.quiz(ctx, current.QuizID)
	if err != nil {
		return false, err
	}
	return s.expire(ctx, id, quiz)
}

func (s *AttemptService) expire(ctx context.Context, id string, quiz *model.Quiz) (bool, error) {
	expired := false
	a, err := s.mutate(ctx, id, func(a *model.Attempt) error {
		now := s.now()
		expired = s.machine.Expire(a, quiz.Deadline(a.StartedAt, pausedSoFar(a, now)), now)
		return nil
	})
	if err != nil {
		return false, err
	}
	if expired {
		s.finished(events.AttemptAbandoned, a)
	}
	return expired, nil
}

// ExpireOverdue sweeps every in-progress attempt and abandons the overdue
// ones. It returns how many were abandoned.
func (s *AttemptService) ExpireOverdue(ctx context.Context) (int, error) {
	open, err := s.Store.ListInProgress(ctx)
	if err != nil {
		return 0, err
	}
	quizzes := make(map[uint]*model.Quiz)
	count := 0
	for _, sum := range open {
		quiz, ok := quizzes[sum.QuizID]
		if !ok {
			quiz, err = s.quiz(ctx, sum.QuizID)
			if err != nil {
				logger.Log.Warn("Expiry sweep skipped quiz", zap.Uint("quizId", sum.QuizID), zap.Error(err))
				continue
			}
			quizzes[sum.QuizID] = quiz
		}
		if quiz.DurationSeconds <= 0 {
			continue
		}
		expired, err := s.expire(ctx, sum.ID, quiz)
		if err != nil {
			logger.Log.Warn("Failed to expire attempt", zap.String("attemptId", sum.ID), zap.Error(err))
			continue
		}
		if expired {
			count++
		}
	}
	if count > 0 {
		logger.Log.Info("Expired overdue attempts", zap.Int("count", count))
	}
	return count, nil
}

func (s *AttemptService) finished(eventType string, a *model.Attempt) {
	monitoring.AttemptsFinished.WithLabelValues(string(a.State)).Inc()
	s.publish(eventType, a)
}

func (s *AttemptService) publish(eventType string, a *model.Attempt) {
	if err := s.Events.Publish(eventType, a.Summary()); err != nil {
		logger.Log.Warn("Failed to publish attempt event",
			zap.String("type", eventType),
			zap.String("attemptId", a.ID),
			zap.Error(err))
	}
}
