package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"exam_prep_backend/internal/config"
	"exam_prep_backend/internal/model"
	"exam_prep_backend/internal/util"
	"exam_prep_backend/pkg/logger"
	"exam_prep_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// ViolationLog is the append-only store of proctoring events. It is kept
// apart from attempts so ingestion never waits on answer writes.
type ViolationLog interface {
	Append(ctx context.Context, rec *model.ViolationRecord) error
	List(ctx context.Context, attemptID string) ([]model.ViolationRecord, error)
}

// Disqualifier ends an attempt for misconduct.
type Disqualifier interface {
	Disqualify(ctx context.Context, id, reason string) (*model.Attempt, error)
}

type ViolationInput struct {
	Type     model.ViolationType `json:"type" binding:"required"`
	Severity model.Severity      `json:"severity" binding:"required"`
	Detail   string              `json:"detail"`
}

type ViolationOutcome struct {
	Violation    model.ViolationRecord `json:"violation"`
	TrustScore   int                   `json:"trustScore"`
	Disqualified bool                  `json:"disqualified"`
}

// ProctoringPolicy decides when violations end an attempt.
type ProctoringPolicy struct {
	DisqualifyOnCritical bool
	TrustFloor           int // disqualify below this; 0 disables
}

func PolicyFromConfig(cfg config.ProctoringConfig) ProctoringPolicy {
	return ProctoringPolicy{DisqualifyOnCritical: cfg.DisqualifyOnCritical, TrustFloor: cfg.TrustFloor}
}

type ProctoringService struct {
	Log          ViolationLog
	Attempts     AttemptStore
	Disqualifier Disqualifier

	mu     sync.RWMutex
	policy ProctoringPolicy
	now    func() time.Time
}

func NewProctoringService(log ViolationLog, attempts AttemptStore, disqualifier Disqualifier, policy ProctoringPolicy) *ProctoringService {
	return &ProctoringService{
		Log:          log,
		Attempts:     attempts,
		Disqualifier: disqualifier,
		policy:       policy,
		now:          time.Now,
	}
}

// SetPolicy replaces the escalation policy; used on config reload.
func (s *ProctoringService) SetPolicy(p ProctoringPolicy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

func (s *ProctoringService) Policy() ProctoringPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func (s *ProctoringService) attempt(ctx context.Context, id string, userID uint, role model.UserRole) (*model.Attempt, error) {
	a, err := s.Attempts.FindByID(ctx, id)
	if errors.Is(err, util.ErrAttemptNotFound) {
		return nil, util.NotFound(err)
	}
	if err != nil {
		return nil, err
	}
	if !role.CanReview() && a.UserID != userID {
		return nil, util.Denied("attempt belongs to another user", nil)
	}
	return a, nil
}

// RecordViolation appends to the attempt's log whatever its state, then
// applies the escalation policy to attempts that are still open. Trust is
// computed from the log as read back after the append, so concurrent
// reports for one attempt never decide on a stale log.
func (s *ProctoringService) RecordViolation(ctx context.Context, attemptID string, userID uint, role model.UserRole, in ViolationInput) (*ViolationOutcome, error) {
	if !in.Type.Valid() {
		return nil, util.InvalidArgument(fmt.Sprintf("unknown violation type %q", in.Type))
	}
	if !in.Severity.Valid() {
		return nil, util.InvalidArgument(fmt.Sprintf("unknown severity %q", in.Severity))
	}
	a, err := s.attempt(ctx, attemptID, userID, role)
	if err != nil {
		return nil, err
	}

	rec := model.ViolationRecord{
		AttemptID:  attemptID,
		Type:       in.Type,
		Severity:   in.Severity,
		Detail:     in.Detail,
		OccurredAt: s.now(),
	}
	if err := s.Log.Append(ctx, &rec); err != nil {
		return nil, err
	}
	monitoring.ViolationsRecorded.WithLabelValues(string(in.Severity)).Inc()

	log, err := s.Log.List(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	trust := NewProctoringMonitor(attemptID, log).TrustScore()

	out := &ViolationOutcome{Violation: rec, TrustScore: trust}
	if a.State.Terminal() {
		return out, nil
	}

	policy := s.Policy()
	reason := ""
	switch {
	case policy.DisqualifyOnCritical && in.Severity == model.SeverityCritical:
		reason = fmt.Sprintf("critical violation: %s", in.Type)
	case policy.TrustFloor > 0 && trust < policy.TrustFloor:
		reason = fmt.Sprintf("trust score %d fell below %d", trust, policy.TrustFloor)
	}
	if reason == "" {
		return out, nil
	}
	if _, err := s.Disqualifier.Disqualify(ctx, attemptID, reason); err != nil {
		logger.Log.Error("Failed to disqualify attempt", zap.String("attemptId", attemptID), zap.Error(err))
		return out, nil
	}
	out.Disqualified = true
	return out, nil
}

func (s *ProctoringService) Report(ctx context.Context, attemptID string, userID uint, role model.UserRole) (*model.ProctoringReport, error) {
	if _, err := s.attempt(ctx, attemptID, userID, role); err != nil {
		return nil, err
	}
	log, err := s.Log.List(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return NewProctoringMonitor(attemptID, log).Report(), nil
}
