package util

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrQuestionNotFound = errors.New("question not on attempt")

	// ErrActiveAttemptExists is returned by stores when the one-open-attempt
	// constraint rejects an insert.
	ErrActiveAttemptExists = errors.New("an attempt is already in progress")
)

// ErrorKind classifies rejections so callers can explain them without
// parsing messages.
type ErrorKind string

const (
	KindConflict         ErrorKind = "conflict"
	KindInvalidState     ErrorKind = "invalid_state"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindNotFound         ErrorKind = "not_found"
	KindInvalidArgument  ErrorKind = "invalid_argument"
)

// AttemptError is a rejected attempt operation. No mutation was applied.
type AttemptError struct {
	Kind        ErrorKind  `json:"kind"`
	State       string     `json:"state,omitempty"`
	Reason      string     `json:"reason"`
	AvailableAt *time.Time `json:"availableAt,omitempty"`
	Err         error      `json:"-"`
}

func (e *AttemptError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	if e.State != "" {
		msg += " (state " + e.State + ")"
	}
	if e.AvailableAt != nil {
		msg += " (available at " + e.AvailableAt.UTC().Format(time.RFC3339) + ")"
	}
	return msg
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

func Conflict(state, reason string) error {
	return &AttemptError{Kind: KindConflict, State: state, Reason: reason}
}

func InvalidState(state, reason string) error {
	return &AttemptError{Kind: KindInvalidState, State: state, Reason: reason}
}

func Denied(reason string, availableAt *time.Time) error {
	return &AttemptError{Kind: KindPermissionDenied, Reason: reason, AvailableAt: availableAt, Err: ErrPermissionDenied}
}

func NotFound(err error) error {
	return &AttemptError{Kind: KindNotFound, Reason: err.Error(), Err: err}
}

func InvalidArgument(reason string) error {
	return &AttemptError{Kind: KindInvalidArgument, Reason: reason}
}

// UnknownQuestion rejects a question id that has no answer slot on the attempt.
func UnknownQuestion(questionID uint) error {
	return &AttemptError{
		Kind:   KindInvalidArgument,
		Reason: fmt.Sprintf("question %d is not part of this attempt", questionID),
		Err:    ErrQuestionNotFound,
	}
}

// KindOf returns the kind of an AttemptError anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
