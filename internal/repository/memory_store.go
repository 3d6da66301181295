package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"exam_prep_backend/internal/model"
	"exam_prep_backend/internal/util"
)

// MemoryAttemptStore keeps attempts in process. A single mutex serializes
// every write, which stands in for the row lock and unique index of the
// SQL store.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]*model.Attempt
	now      func() time.Time
}

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{attempts: make(map[string]*model.Attempt), now: time.Now}
}

// cloneAttempt copies everything Mutate may change in place.
func cloneAttempt(a *model.Attempt) *model.Attempt {
	c := *a
	if a.ActiveKey != nil {
		k := *a.ActiveKey
		c.ActiveKey = &k
	}
	c.Pauses = append(c.Pauses[:0:0], a.Pauses...)
	c.Answers = make([]model.Answer, len(a.Answers))
	for i, ans := range a.Answers {
		ans.History = append(ans.History[:0:0], ans.History...)
		c.Answers[i] = ans
	}
	c.SectionBreakdown = append(c.SectionBreakdown[:0:0], a.SectionBreakdown...)
	c.DifficultyBreakdown = append(c.DifficultyBreakdown[:0:0], a.DifficultyBreakdown...)
	c.TypeBreakdown = append(c.TypeBreakdown[:0:0], a.TypeBreakdown...)
	return &c
}

func (s *MemoryAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = model.GenerateUUID()
	}
	if a.ActiveKey != nil {
		for _, other := range s.attempts {
			if other.ActiveKey != nil && *other.ActiveKey == *a.ActiveKey {
				return util.ErrActiveAttemptExists
			}
		}
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	s.attempts[a.ID] = cloneAttempt(a)
	return nil
}

func (s *MemoryAttemptStore) FindByID(_ context.Context, id string) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	return cloneAttempt(a), nil
}

func (s *MemoryAttemptStore) FindActive(_ context.Context, userID, quizID uint) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.ActiveKeyFor(userID, quizID)
	for _, a := range s.attempts {
		if a.ActiveKey != nil && *a.ActiveKey == key {
			return cloneAttempt(a), nil
		}
	}
	return nil, nil
}

// Mutate works on a copy and swaps it in only when fn succeeds.
func (s *MemoryAttemptStore) Mutate(_ context.Context, id string, fn func(a *model.Attempt) error) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.attempts[id]
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	working := cloneAttempt(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = s.now()
	s.attempts[id] = working
	return cloneAttempt(working), nil
}

func (s *MemoryAttemptStore) filter(keep func(a *model.Attempt) bool) []model.AttemptSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AttemptSummary
	for _, a := range s.attempts {
		if keep(a) {
			out = append(out, a.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryAttemptStore) ListUserQuizAttempts(_ context.Context, userID, quizID uint) ([]model.AttemptSummary, error) {
	return s.filter(func(a *model.Attempt) bool { return a.UserID == userID && a.QuizID == quizID }), nil
}

func (s *MemoryAttemptStore) ListInProgress(_ context.Context) ([]model.AttemptSummary, error) {
	return s.filter(func(a *model.Attempt) bool { return a.State == model.AttemptInProgress }), nil
}

func (s *MemoryAttemptStore) ListQuizAttempts(_ context.Context, quizID uint) ([]model.AttemptSummary, error) {
	return s.filter(func(a *model.Attempt) bool { return a.QuizID == quizID }), nil
}

func (s *MemoryAttemptStore) ListUserAttempts(_ context.Context, userID uint) ([]model.AttemptSummary, error) {
	return s.filter(func(a *model.Attempt) bool { return a.UserID == userID }), nil
}

func (s *MemoryAttemptStore) ListAttemptsForQuizzes(_ context.Context, quizIDs []uint) ([]model.AttemptSummary, error) {
	set := make(map[uint]struct{}, len(quizIDs))
	for _, id := range quizIDs {
		set[id] = struct{}{}
	}
	return s.filter(func(a *model.Attempt) bool {
		_, ok := set[a.QuizID]
		return ok
	}), nil
}

func (s *MemoryAttemptStore) UpdateRanking(_ context.Context, rankings []model.AttemptRanking, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rk := range rankings {
		a, ok := s.attempts[rk.AttemptID]
		if !ok {
			continue
		}
		rank, pct, ts := rk.Rank, rk.Percentile, at
		a.Result.Rank = &rank
		a.Result.Percentile = &pct
		a.Result.RankedAt = &ts
	}
	return nil
}

// MemoryQuizCatalog serves quizzes registered with Put.
type MemoryQuizCatalog struct {
	mu      sync.RWMutex
	quizzes map[uint]*model.Quiz
}

func NewMemoryQuizCatalog() *MemoryQuizCatalog {
	return &MemoryQuizCatalog{quizzes: make(map[uint]*model.Quiz)}
}

func (c *MemoryQuizCatalog) Put(q *model.Quiz) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *q
	cp.Questions = append([]model.QuizQuestion(nil), q.Questions...)
	c.quizzes[q.ID] = &cp
}

func (c *MemoryQuizCatalog) GetQuiz(_ context.Context, quizID uint) (*model.Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quizzes[quizID]
	if !ok {
		return nil, util.ErrQuizNotFound
	}
	cp := *q
	cp.Questions = append([]model.QuizQuestion(nil), q.Questions...)
	return &cp, nil
}

// MemoryViolationLog has its own lock, independent of the attempt store.
type MemoryViolationLog struct {
	mu     sync.Mutex
	nextID uint
	logs   map[string][]model.ViolationRecord
}

func NewMemoryViolationLog() *MemoryViolationLog {
	return &MemoryViolationLog{logs: make(map[string][]model.ViolationRecord)}
}

func (l *MemoryViolationLog) Append(_ context.Context, rec *model.ViolationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	rec.ID = l.nextID
	rec.CreatedAt = rec.OccurredAt
	l.logs[rec.AttemptID] = append(l.logs[rec.AttemptID], *rec)
	return nil
}

func (l *MemoryViolationLog) List(_ context.Context, attemptID string) ([]model.ViolationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.ViolationRecord(nil), l.logs[attemptID]...), nil
}
