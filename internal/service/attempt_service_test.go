package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exam_prep_backend/internal/config"
	"exam_prep_backend/internal/model"
	"exam_prep_backend/internal/repository"
	"exam_prep_backend/internal/util"
	"exam_prep_backend/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var base = time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	svc     *AttemptService
	store   *repository.MemoryAttemptStore
	catalog *repository.MemoryQuizCatalog
	events  *events.Recorder
	clock   *fakeClock
}

func newHarness(t *testing.T, quizzes ...*model.Quiz) *harness {
	t.Helper()
	h := &harness{
		store:   repository.NewMemoryAttemptStore(),
		catalog: repository.NewMemoryQuizCatalog(),
		events:  &events.Recorder{},
		clock:   &fakeClock{t: base},
	}
	for _, q := range quizzes {
		h.catalog.Put(q)
	}
	h.svc = NewAttemptService(h.store, h.catalog, h.events,
		config.ScoringConfig{DefaultRounding: "round", DefaultPrecision: 2},
		WithAttemptClock(h.clock.Now))
	return h
}

func key(k model.AnswerKey) datatypes.JSONType[model.AnswerKey] {
	return datatypes.NewJSONType(k)
}

// choiceQuiz has two auto-graded 5 point questions; question 10 comes first.
func choiceQuiz() *model.Quiz {
	return &model.Quiz{
		BaseModel:    model.BaseModel{ID: 1},
		Title:        "Sets",
		PassingScore: 60,
		Questions: []model.QuizQuestion{
			{QuestionID: 11, Type: model.QuestionSingleChoice, Points: 5, Order: 2, Section: "basics",
				AnswerKey: key(model.AnswerKey{Choices: []string{"a"}})},
			{QuestionID: 10, Type: model.QuestionMultipleChoice, Points: 5, Order: 1, Section: "sets",
				AnswerKey: key(model.AnswerKey{Choices: []string{"a", "b"}})},
		},
	}
}

func essayQuiz() *model.Quiz {
	return &model.Quiz{
		BaseModel:     model.BaseModel{ID: 2},
		Title:         "Writing",
		PassingScore:  60,
		GradingMethod: model.GradingHybrid,
		Questions: []model.QuizQuestion{
			{QuestionID: 20, Type: model.QuestionEssay, Points: 10, Order: 1},
			{QuestionID: 21, Type: model.QuestionSingleChoice, Points: 10, Order: 2,
				AnswerKey: key(model.AnswerKey{Choices: []string{"c"}})},
		},
	}
}

func answer(p model.AnswerPayload) AnswerInput {
	return AnswerInput{Payload: model.NewPayload(p), TimeSpentSeconds: 20}
}

func assertKind(t *testing.T, err error, kind util.ErrorKind) *util.AttemptError {
	t.Helper()
	require.Error(t, err)
	var ae *util.AttemptError
	require.True(t, errors.As(err, &ae), "expected AttemptError, got %v", err)
	assert.Equal(t, kind, ae.Kind)
	return ae
}

func TestStartSnapshotsQuestionsInOrder(t *testing.T) {
	h := newHarness(t, choiceQuiz())
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, a.State)
	assert.Equal(t, 1, a.AttemptNumber)
	assert.Equal(t, base, a.StartedAt)
	require.Len(t, a.Answers, 2)
	assert.Equal(t, uint(10), a.Answers[0].QuestionID)
	assert.Equal(t, uint(11), a.Answers[1].QuestionID)
	assert.Equal(t, []string{"a", "b"}, a.Answers[0].Snapshot.AnswerKey.Choices)
	assert.Equal(t, []string{events.AttemptStarted}, h.events.Types())
}

func TestStartRejectsSecondActiveAttempt(t *testing.T) {
	h := newHarness(t, choiceQuiz())
	ctx := context.Background()

	_, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)

	_, err = h.svc.Start(ctx, 1, 100)
	assertKind(t, err, util.KindConflict)

	_, err = h.svc.Start(ctx, 1, 101)
	assert.NoError(t, err)
}

func TestStartConcurrentOnlyOneWins(t *testing.T) {
	h := newHarness(t, choiceQuiz())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Start(ctx, 1, 100)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, util.IsKind(err, util.KindConflict), "unexpected error %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestStartUnknownQuiz(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Start(context.Background(), 9, 100)
	assertKind(t, err, util.KindNotFound)
}

func TestStartBeforeWindowOpens(t *testing.T) {
	quiz := choiceQuiz()
	opens := base.Add(2 * time.Hour)
	quiz.AvailableFrom = &opens
	h := newHarness(t, quiz)

	_, err := h.svc.Start(context.Background(), 1, 100)
	ae := assertKind(t, err, util.KindPermissionDenied)
	require.NotNil(t, ae.AvailableAt)
	assert.Equal(t, opens, *ae.AvailableAt)
}

func TestStartAfterAttemptLimit(t *testing.T) {
	quiz := choiceQuiz()
	quiz.AttemptLimit = 1
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)

	_, err = h.svc.Start(ctx, 1, 100)
	assertKind(t, err, util.KindPermissionDenied)
}

func TestStartHonoursCooldown(t *testing.T) {
	quiz := choiceQuiz()
	quiz.CooldownSeconds = 3600
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	h.clock.Advance(10 * time.Minute)
	_, err = h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	_, err = h.svc.Start(ctx, 1, 100)
	ae := assertKind(t, err, util.KindPermissionDenied)
	require.NotNil(t, ae.AvailableAt)
	assert.Equal(t, base.Add(70*time.Minute), *ae.AvailableAt)

	h.clock.Advance(51 * time.Minute)
	second, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, second.AttemptNumber)
}

func TestRecordAnswerAndSubmit(t *testing.T) {
	h := newHarness(t, choiceQuiz())
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)

	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 10, answer(model.ChoicePayload{Selected: []string{"b", "a"}}))
	require.NoError(t, err)
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 11, answer(model.ChoicePayload{Selected: []string{"a"}}))
	require.NoError(t, err)
	updated, err := h.svc.RecordAnswer(ctx, a.ID, 100, 11, answer(model.ChoicePayload{Selected: []string{"c"}}))
	require.NoError(t, err)
	assert.Len(t, updated.Answers[1].History, 1)
	assert.Equal(t, 40, updated.Answers[1].TimeSpentSeconds)

	h.clock.Advance(5 * time.Minute)
	res, err := h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.False(t, res.Cached)

	got := res.Attempt
	assert.Equal(t, model.AttemptGraded, got.State)
	assert.Equal(t, model.EndReasonSubmitted, got.EndReason)
	assert.Nil(t, got.ActiveKey)
	assert.Equal(t, 300, got.TimeSpentSeconds)
	assert.Equal(t, 5.0, got.Score.Raw)
	assert.Equal(t, 50.0, got.Score.Percentage)
	assert.False(t, got.Result.Passed)
	assert.Equal(t, 1, got.Performance.Correct)
	assert.Equal(t, 1, got.Performance.Incorrect)
	require.NotNil(t, got.GradedAt)

	again, err := h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, got.Score, again.Attempt.Score)

	assert.Equal(t, []string{events.AttemptStarted, events.AttemptGraded}, h.events.Types())
}

func TestRecordAnswerValidation(t *testing.T) {
	h := newHarness(t, choiceQuiz())
	ctx := context.Background()
	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)

	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 99, answer(model.ChoicePayload{Selected: []string{"a"}}))
	assertKind(t, err, util.KindInvalidArgument)
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)

	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 10, answer(model.TextPayload{Text: "a"}))
	assertKind(t, err, util.KindInvalidArgument)

	bad := 150
	in := answer(model.ChoicePayload{Selected: []string{"a"}})
	in.Confidence = &bad
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 10, in)
	assertKind(t, err, util.KindInvalidArgument)

	_, err = h.svc.RecordAnswer(ctx, a.ID, 200, 10, answer(model.ChoicePayload{Selected: []string{"a"}}))
	assertKind(t, err, util.KindPermissionDenied)

	stored, err := h.store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, stored.Answers[0].Answered())
}

func TestRecordAnswerAfterSubmitIsRejected(t *testing.T) {
	h := newHarness(t, choiceQuiz())
	ctx := context.Background()
	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)

	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 10, answer(model.ChoicePayload{Selected: []string{"a"}}))
	assertKind(t, err, util.KindInvalidState)
}

func TestRecordAnswerPastDeadlineAbandons(t *testing.T) {
	quiz := choiceQuiz()
	quiz.DurationSeconds = 600
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	h.clock.Advance(11 * time.Minute)

	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 10, answer(model.ChoicePayload{Selected: []string{"a"}}))
	assertKind(t, err, util.KindInvalidState)

	stored, err := h.store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptAbandoned, stored.State)
	assert.Equal(t, model.EndReasonTimeout, stored.EndReason)
	assert.Nil(t, stored.ActiveKey)
	assert.Contains(t, h.events.Types(), events.AttemptAbandoned)
}

func TestPauseExtendsDeadline(t *testing.T) {
	quiz := choiceQuiz()
	quiz.DurationSeconds = 600
	quiz.AllowPause = true
	quiz.MaxPauses = 1
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	_, err = h.svc.Pause(ctx, a.ID, 100)
	require.NoError(t, err)

	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 10, answer(model.ChoicePayload{Selected: []string{"a"}}))
	assertKind(t, err, util.KindInvalidState)

	h.clock.Advance(5 * time.Minute)
	resumed, err := h.svc.Resume(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 300, resumed.PausedSeconds)

	_, err = h.svc.Pause(ctx, a.ID, 100)
	assertKind(t, err, util.KindPermissionDenied)

	h.clock.Advance(6 * time.Minute)
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 10, answer(model.ChoicePayload{Selected: []string{"a"}}))
	require.NoError(t, err)

	res, err := h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 420, res.Attempt.TimeSpentSeconds)
}

func TestPauseNotAllowed(t *testing.T) {
	h := newHarness(t, choiceQuiz())
	ctx := context.Background()
	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)

	_, err = h.svc.Pause(ctx, a.ID, 100)
	assertKind(t, err, util.KindPermissionDenied)
	_, err = h.svc.Resume(ctx, a.ID, 100)
	assertKind(t, err, util.KindInvalidState)
}

func TestSubmitAfterWindowClosed(t *testing.T) {
	quiz := choiceQuiz()
	closes := base.Add(30 * time.Minute)
	quiz.AvailableTo = &closes
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	_, err = h.svc.Submit(ctx, a.ID, 100)
	assertKind(t, err, util.KindPermissionDenied)

	stored, err := h.store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, stored.State)
}

func TestLateSubmissionPenalty(t *testing.T) {
	quiz := choiceQuiz()
	closes := base.Add(30 * time.Minute)
	quiz.AvailableTo = &closes
	quiz.AllowLateSubmission = true
	quiz.LatePenaltyPercentage = 10
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 10, answer(model.ChoicePayload{Selected: []string{"a", "b"}}))
	require.NoError(t, err)
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 11, answer(model.ChoicePayload{Selected: []string{"a"}}))
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	res, err := h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Attempt.Score.Raw)
	assert.InDelta(t, 1.0, res.Attempt.Score.Penalty, 1e-9)
	assert.InDelta(t, 9.0, res.Attempt.Score.Final, 1e-9)
	assert.Equal(t, 90.0, res.Attempt.Score.Percentage)
}

func TestSubmitUsesSnapshotNotLiveQuestion(t *testing.T) {
	quiz := choiceQuiz()
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 11, answer(model.ChoicePayload{Selected: []string{"a"}}))
	require.NoError(t, err)

	edited := choiceQuiz()
	edited.Questions[0].Points = 50
	edited.Questions[0].AnswerKey = key(model.AnswerKey{Choices: []string{"z"}})
	h.catalog.Put(edited)

	res, err := h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Attempt.Score.MaxScore)
	assert.Equal(t, 5.0, res.Attempt.Score.Raw)
}

func TestSubmitWarnsAboutRemovedQuestion(t *testing.T) {
	h := newHarness(t, choiceQuiz())
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 11, answer(model.ChoicePayload{Selected: []string{"a"}}))
	require.NoError(t, err)

	trimmed := choiceQuiz()
	trimmed.Questions = trimmed.Questions[:1]
	h.catalog.Put(trimmed)

	res, err := h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, uint(10), res.Warnings[0].QuestionID)
	assert.Equal(t, 100.0, res.Attempt.Score.Percentage)
	assert.Equal(t, model.AttemptGraded, res.Attempt.State)
}

func TestManualGradingFlow(t *testing.T) {
	h := newHarness(t, essayQuiz())
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 2, 100)
	require.NoError(t, err)
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 20, answer(model.TextPayload{Text: "an essay"}))
	require.NoError(t, err)
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 21, answer(model.ChoicePayload{Selected: []string{"c"}}))
	require.NoError(t, err)

	_, err = h.svc.ManualGrade(ctx, a.ID, 7, []ManualScore{{QuestionID: 20, Score: 80}})
	assertKind(t, err, util.KindInvalidState)

	res, err := h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptSubmitted, res.Attempt.State)
	assert.True(t, res.Attempt.Answers[0].NeedsManual)
	assert.Equal(t, 50.0, res.Attempt.Score.Percentage)

	cached, err := h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.True(t, cached.Cached)

	_, err = h.svc.ManualGrade(ctx, a.ID, 7, []ManualScore{{QuestionID: 20, Score: 120}})
	assertKind(t, err, util.KindInvalidArgument)
	_, err = h.svc.ManualGrade(ctx, a.ID, 7, []ManualScore{{QuestionID: 99, Score: 50}})
	assertKind(t, err, util.KindInvalidArgument)
	_, err = h.svc.ManualGrade(ctx, a.ID, 7, nil)
	assertKind(t, err, util.KindInvalidArgument)

	graded, err := h.svc.ManualGrade(ctx, a.ID, 7, []ManualScore{{QuestionID: 20, Score: 80, Feedback: "solid"}})
	require.NoError(t, err)
	got := graded.Attempt
	assert.Equal(t, model.AttemptGraded, got.State)
	assert.Equal(t, 18.0, got.Score.Raw)
	assert.Equal(t, 90.0, got.Score.Percentage)
	assert.True(t, got.Result.Passed)
	assert.Equal(t, "solid", got.Answers[0].Feedback)
	assert.True(t, got.Answers[0].ManuallyGraded)

	assert.Equal(t, []string{events.AttemptStarted, events.AttemptSubmitted, events.AttemptGraded}, h.events.Types())
}

func TestManualQuizAlwaysAwaitsReview(t *testing.T) {
	quiz := choiceQuiz()
	quiz.GradingMethod = model.GradingManual
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	res, err := h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptSubmitted, res.Attempt.State)

	graded, err := h.svc.ManualGrade(ctx, a.ID, 7, []ManualScore{{QuestionID: 10, Score: 100}})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptGraded, graded.Attempt.State)
	assert.Equal(t, 5.0, graded.Attempt.Score.Raw)
}

func TestDisqualifyIsIdempotent(t *testing.T) {
	h := newHarness(t, choiceQuiz())
	ctx := context.Background()
	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)

	dq, err := h.svc.Disqualify(ctx, a.ID, "impersonation")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptDisqualified, dq.State)
	assert.Equal(t, "impersonation", dq.DisqualifyReason)
	assert.Nil(t, dq.ActiveKey)

	_, err = h.svc.Disqualify(ctx, a.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, []string{events.AttemptStarted, events.AttemptDisqualified}, h.events.Types())

	_, err = h.svc.Submit(ctx, a.ID, 100)
	assertKind(t, err, util.KindInvalidState)
}

func TestGetChecksOwnership(t *testing.T) {
	h := newHarness(t, choiceQuiz())
	ctx := context.Background()
	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)

	_, err = h.svc.Get(ctx, a.ID, 100, model.Student)
	assert.NoError(t, err)
	_, err = h.svc.Get(ctx, a.ID, 200, model.Student)
	assertKind(t, err, util.KindPermissionDenied)
	_, err = h.svc.Get(ctx, a.ID, 200, model.Teacher)
	assert.NoError(t, err)
	_, err = h.svc.Get(ctx, "missing", 100, model.Student)
	assertKind(t, err, util.KindNotFound)
}

func TestExpireOverdue(t *testing.T) {
	timed := choiceQuiz()
	timed.ID = 3
	timed.DurationSeconds = 60
	h := newHarness(t, choiceQuiz(), timed)
	ctx := context.Background()

	late, err := h.svc.Start(ctx, 3, 100)
	require.NoError(t, err)
	open, err := h.svc.Start(ctx, 1, 101)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	n, err := h.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := h.store.FindByID(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptAbandoned, stored.State)
	stored, err = h.store.FindByID(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, stored.State)

	changed, err := h.svc.Expire(ctx, late.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = h.svc.Start(ctx, 3, 100)
	assert.NoError(t, err)
}

func TestSubmitPastTimeLimitAbandons(t *testing.T) {
	quiz := choiceQuiz()
	quiz.DurationSeconds = 600
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 10, answer(model.ChoicePayload{Selected: []string{"a", "b"}}))
	require.NoError(t, err)

	h.clock.Advance(3 * time.Hour)
	_, err = h.svc.Submit(ctx, a.ID, 100)
	assertKind(t, err, util.KindInvalidState)

	stored, err := h.store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptAbandoned, stored.State)
	assert.Equal(t, model.EndReasonTimeout, stored.EndReason)
	assert.Nil(t, stored.ActiveKey)
	assert.Nil(t, stored.SubmittedAt)
	assert.Zero(t, stored.Score.Percentage)
	assert.Equal(t, []string{events.AttemptStarted, events.AttemptAbandoned}, h.events.Types())
}

func TestSubmitWithinGraceIsScored(t *testing.T) {
	quiz := choiceQuiz()
	quiz.DurationSeconds = 600
	quiz.GraceSeconds = 60
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	h.clock.Advance(630 * time.Second)

	res, err := h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptGraded, res.Attempt.State)
	assert.Equal(t, 630, res.Attempt.TimeSpentSeconds)
}

func TestOpenPauseStopsExtendingDeadline(t *testing.T) {
	quiz := choiceQuiz()
	quiz.DurationSeconds = 600
	quiz.AllowPause = true
	quiz.MaxPauseSeconds = 120
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	paused, err := h.svc.Pause(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 120, paused.Pauses[0].LimitSeconds)

	h.clock.Advance(3 * time.Hour)
	n, err := h.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := h.store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptAbandoned, stored.State)
	assert.Equal(t, 120, stored.PausedSeconds)
	assert.False(t, stored.IsPaused())
}

func TestResumeCreditsAtMostPauseLimit(t *testing.T) {
	quiz := choiceQuiz()
	quiz.DurationSeconds = 3600
	quiz.AllowPause = true
	h := newHarness(t, quiz)
	h.svc.machine.PauseLimitSeconds = 300
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	_, err = h.svc.Pause(ctx, a.ID, 100)
	require.NoError(t, err)

	h.clock.Advance(20 * time.Minute)
	resumed, err := h.svc.Resume(ctx, a.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 300, resumed.PausedSeconds)
	assert.Equal(t, model.AttemptInProgress, resumed.State)
}

func TestResumePastDeadlineAbandons(t *testing.T) {
	quiz := choiceQuiz()
	quiz.DurationSeconds = 600
	quiz.AllowPause = true
	quiz.MaxPauseSeconds = 60
	h := newHarness(t, quiz)
	ctx := context.Background()

	a, err := h.svc.Start(ctx, 1, 100)
	require.NoError(t, err)
	_, err = h.svc.Pause(ctx, a.ID, 100)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	_, err = h.svc.Resume(ctx, a.ID, 100)
	assertKind(t, err, util.KindInvalidState)

	stored, err := h.store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptAbandoned, stored.State)
	assert.Equal(t, 60, stored.PausedSeconds)
}

func TestManualGradeUnknownQuestion(t *testing.T) {
	h := newHarness(t, essayQuiz())
	ctx := context.Background()
	a, err := h.svc.Start(ctx, 2, 100)
	require.NoError(t, err)
	_, err = h.svc.RecordAnswer(ctx, a.ID, 100, 20, answer(model.TextPayload{Text: "draft"}))
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, a.ID, 100)
	require.NoError(t, err)

	_, err = h.svc.ManualGrade(ctx, a.ID, 7, []ManualScore{{QuestionID: 99, Score: 50}})
	assertKind(t, err, util.KindInvalidArgument)
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)

	stored, err := h.store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptSubmitted, stored.State)
}
