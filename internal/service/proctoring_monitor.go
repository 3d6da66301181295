package service

import (
	"sync"
	"time"

	"exam_prep_backend/internal/model"
)

const maxTrustScore = 100

// ComputeTrustScore is max(0, 100 - sum of severity weights).
func ComputeTrustScore(log []model.ViolationRecord) int {
	trust := maxTrustScore
	for _, v := range log {
		trust -= v.Severity.Weight()
	}
	if trust < 0 {
		return 0
	}
	return trust
}

// ProctoringMonitor owns one attempt's violation log. Appends are serialized
// by its own lock and never touch the attempt's answers.
type ProctoringMonitor struct {
	mu         sync.Mutex
	attemptID  string
	log        []model.ViolationRecord
	trustScore int
}

// NewProctoringMonitor rebuilds a monitor from an already persisted log.
func NewProctoringMonitor(attemptID string, existing []model.ViolationRecord) *ProctoringMonitor {
	m := &ProctoringMonitor{
		attemptID: attemptID,
		log:       append([]model.ViolationRecord(nil), existing...),
	}
	m.trustScore = ComputeTrustScore(m.log)
	return m
}

// RecordViolation always succeeds. It returns the appended record and the
// recomputed trust score.
func (m *ProctoringMonitor) RecordViolation(t model.ViolationType, severity model.Severity, detail string, at time.Time) (model.ViolationRecord, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := model.ViolationRecord{
		AttemptID:  m.attemptID,
		Type:       t,
		Severity:   severity,
		Detail:     detail,
		OccurredAt: at,
	}
	m.log = append(m.log, rec)
	m.trustScore = ComputeTrustScore(m.log)
	return rec, m.trustScore
}

func (m *ProctoringMonitor) TrustScore() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trustScore
}

func (m *ProctoringMonitor) Violations() []model.ViolationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ViolationRecord(nil), m.log...)
}

func (m *ProctoringMonitor) Report() *model.ProctoringReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySeverity := make(map[model.Severity]int)
	for _, v := range m.log {
		bySeverity[v.Severity]++
	}
	return &model.ProctoringReport{
		AttemptID:  m.attemptID,
		TrustScore: m.trustScore,
		Violations: append([]model.ViolationRecord{}, m.log...),
		BySeverity: bySeverity,
	}
}
