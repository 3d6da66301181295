package service

import (
	"fmt"
	"time"

	"exam_prep_backend/internal/model"
	"exam_prep_backend/internal/util"
)

var transitions = map[model.AttemptState][]model.AttemptState{
	model.AttemptNotStarted: {model.AttemptInProgress, model.AttemptDisqualified},
	model.AttemptInProgress: {model.AttemptCompleted, model.AttemptAbandoned, model.AttemptDisqualified},
	model.AttemptCompleted:  {model.AttemptSubmitted, model.AttemptGraded, model.AttemptDisqualified},
	model.AttemptSubmitted:  {model.AttemptGraded, model.AttemptDisqualified},
}

func CanTransition(from, to model.AttemptState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AnswerInput is one recordAnswer call.
type AnswerInput struct {
	Payload          model.Payload `json:"payload"`
	TimeSpentSeconds int           `json:"timeSpentSeconds"`
	Flagged          *bool         `json:"flagged,omitempty"`
	Confidence       *int          `json:"confidence,omitempty"`
	HintUsed         bool          `json:"hintUsed"`
}

const defaultPauseLimitSeconds = 900

// AttemptStateMachine validates and applies lifecycle transitions on an
// attempt. It never touches storage; every rejection leaves the attempt as
// it was.
type AttemptStateMachine struct {
	// PauseLimitSeconds caps one pause when the quiz sets no limit.
	PauseLimitSeconds int
}

func (m AttemptStateMachine) pauseLimit(quiz *model.Quiz) int {
	if quiz.MaxPauseSeconds > 0 {
		return quiz.MaxPauseSeconds
	}
	if m.PauseLimitSeconds > 0 {
		return m.PauseLimitSeconds
	}
	return defaultPauseLimitSeconds
}

func (AttemptStateMachine) move(a *model.Attempt, to model.AttemptState) error {
	if !CanTransition(a.State, to) {
		return util.InvalidState(string(a.State), fmt.Sprintf("cannot move to %s", to))
	}
	a.State = to
	if to != model.AttemptInProgress {
		a.ActiveKey = nil
	}
	return nil
}

func (m AttemptStateMachine) Start(a *model.Attempt, now time.Time) error {
	if err := m.move(a, model.AttemptInProgress); err != nil {
		return err
	}
	key := model.ActiveKeyFor(a.UserID, a.QuizID)
	a.ActiveKey = &key
	a.StartedAt = now
	a.LastActivityAt = now
	return nil
}

func (AttemptStateMachine) RecordAnswer(a *model.Attempt, questionID uint, in AnswerInput, now time.Time) error {
	if a.State != model.AttemptInProgress {
		return util.InvalidState(string(a.State), "answers can only be recorded while in progress")
	}
	if a.IsPaused() {
		return util.InvalidState(string(a.State), "attempt is paused")
	}
	idx := a.FindAnswer(questionID)
	if idx < 0 {
		return util.UnknownQuestion(questionID)
	}
	ans := &a.Answers[idx]
	if v := in.Payload.Value; v != nil && v.Kind() != ans.Snapshot.Type.PayloadKind() {
		return util.InvalidArgument(fmt.Sprintf("question %d expects a %s payload, got %s", questionID, ans.Snapshot.Type.PayloadKind(), v.Kind()))
	}
	if in.Confidence != nil && (*in.Confidence < 0 || *in.Confidence > 100) {
		return util.InvalidArgument("confidence must be within 0..100")
	}
	if in.TimeSpentSeconds < 0 {
		return util.InvalidArgument("timeSpentSeconds must not be negative")
	}

	ans.Record(in.Payload, now)
	ans.TimeSpentSeconds += in.TimeSpentSeconds
	if in.Flagged != nil {
		ans.Flagged = *in.Flagged
	}
	if in.Confidence != nil {
		c := *in.Confidence
		ans.Confidence = &c
	}
	ans.HintUsed = ans.HintUsed || in.HintUsed
	a.LastActivityAt = now
	return nil
}

func (m AttemptStateMachine) Pause(a *model.Attempt, quiz *model.Quiz, now time.Time) error {
	if a.State != model.AttemptInProgress {
		return util.InvalidState(string(a.State), "only an in-progress attempt can be paused")
	}
	if !quiz.AllowPause {
		return util.Denied("this quiz does not allow pausing", nil)
	}
	if a.IsPaused() {
		return util.InvalidState(string(a.State), "attempt is already paused")
	}
	if quiz.MaxPauses > 0 && a.PauseCount >= quiz.MaxPauses {
		return util.Denied(fmt.Sprintf("pause limit of %d reached", quiz.MaxPauses), nil)
	}
	a.Pauses = append(a.Pauses, model.PauseInterval{PausedAt: now, LimitSeconds: m.pauseLimit(quiz)})
	a.PauseCount++
	a.LastActivityAt = now
	return nil
}

func (AttemptStateMachine) Resume(a *model.Attempt, now time.Time) error {
	if a.State != model.AttemptInProgress {
		return util.InvalidState(string(a.State), "only an in-progress attempt can be resumed")
	}
	if !a.IsPaused() {
		return util.InvalidState(string(a.State), "attempt is not paused")
	}
	closePause(a, now)
	a.LastActivityAt = now
	return nil
}

func closePause(a *model.Attempt, now time.Time) {
	if !a.IsPaused() {
		return
	}
	last := &a.Pauses[len(a.Pauses)-1]
	t := now
	last.ResumedAt = &t
	a.PausedSeconds += last.Credited(now)
}

// Complete closes the answering phase: in_progress → completed.
func (m AttemptStateMachine) Complete(a *model.Attempt, now time.Time) error {
	if a.State != model.AttemptInProgress {
		return util.InvalidState(string(a.State), "only an in-progress attempt can be submitted")
	}
	closePause(a, now)
	if err := m.move(a, model.AttemptCompleted); err != nil {
		return err
	}
	t := now
	a.SubmittedAt = &t
	a.EndedAt = &t
	a.EndReason = model.EndReasonSubmitted
	spent := int(now.Sub(a.StartedAt).Seconds()) - a.PausedSeconds
	if spent < 0 {
		spent = 0
	}
	a.TimeSpentSeconds = spent
	a.LastActivityAt = now
	return nil
}

// Finalize moves a scored attempt to graded, or to submitted when answers
// still wait for a reviewer.
func (m AttemptStateMachine) Finalize(a *model.Attempt, awaitingReview bool, now time.Time) error {
	if awaitingReview {
		return m.move(a, model.AttemptSubmitted)
	}
	if err := m.move(a, model.AttemptGraded); err != nil {
		return err
	}
	t := now
	a.GradedAt = &t
	return nil
}

func (m AttemptStateMachine) Disqualify(a *model.Attempt, reason string, now time.Time) error {
	if a.State.Terminal() {
		return util.InvalidState(string(a.State), "attempt already finished")
	}
	closePause(a, now)
	if err := m.move(a, model.AttemptDisqualified); err != nil {
		return err
	}
	t := now
	a.EndedAt = &t
	a.EndReason = model.EndReasonDisqualified
	a.DisqualifyReason = reason
	return nil
}

// Expire abandons an in-progress attempt whose deadline has passed. It
// reports whether anything changed; every other state is left alone.
func (m AttemptStateMachine) Expire(a *model.Attempt, deadline, now time.Time) bool {
	if a.State != model.AttemptInProgress || deadline.IsZero() || !now.After(deadline) {
		return false
	}
	closePause(a, now)
	_ = m.move(a, model.AttemptAbandoned)
	t := now
	a.EndedAt = &t
	a.EndReason = model.EndReasonTimeout
	return true
}
