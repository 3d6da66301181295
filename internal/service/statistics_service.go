package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"exam_prep_backend/internal/model"
	"exam_prep_backend/internal/util"
	"exam_prep_backend/pkg/logger"
	"exam_prep_backend/pkg/tracing"

	"go.uber.org/zap"
)

// StatisticsCache holds computed quiz statistics for a short time.
type StatisticsCache interface {
	GetQuizStatistics(ctx context.Context, quizID uint) (*model.QuizStatistics, error)
	SetQuizStatistics(ctx context.Context, stats *model.QuizStatistics, ttl time.Duration) error
	InvalidateQuiz(ctx context.Context, quizID uint) error
}

// RankingWriter stores rank and percentile back onto attempts.
type RankingWriter interface {
	UpdateRanking(ctx context.Context, rankings []model.AttemptRanking, at time.Time) error
}

type StatisticsService struct {
	Calculator *StatisticsCalculator
	Catalog    QuizCatalog
	Rankings   RankingWriter
	Cache      StatisticsCache // optional
	cacheTTL   atomic.Int64
	now        func() time.Time
}

func NewStatisticsService(calc *StatisticsCalculator, catalog QuizCatalog, rankings RankingWriter, cache StatisticsCache, ttl time.Duration) *StatisticsService {
	s := &StatisticsService{
		Calculator: calc,
		Catalog:    catalog,
		Rankings:   rankings,
		Cache:      cache,
		now:        time.Now,
	}
	s.SetCacheTTL(ttl)
	return s
}

// SetCacheTTL changes how long computed statistics stay cached. Zero
// disables writes to the cache.
func (s *StatisticsService) SetCacheTTL(ttl time.Duration) {
	s.cacheTTL.Store(int64(ttl))
}

func (s *StatisticsService) QuizStatistics(ctx context.Context, quizID uint) (*model.QuizStatistics, error) {
	ctx, span := tracing.StartSpan(ctx, "StatisticsService.QuizStatistics", "")
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if s.Cache != nil {
		if cached, cerr := s.Cache.GetQuizStatistics(ctx, quizID); cerr == nil && cached != nil {
			return cached, nil
		} else if cerr != nil {
			logger.Log.Warn("Statistics cache read failed", zap.Uint("quizId", quizID), zap.Error(cerr))
		}
	}

	quiz, err := s.Catalog.GetQuiz(ctx, quizID)
	if errors.Is(err, util.ErrQuizNotFound) {
		err = util.NotFound(err)
	}
	if err != nil {
		return nil, err
	}
	stats, err := s.Calculator.QuizStatistics(ctx, quizID, quiz.PassingScore)
	if err != nil {
		return nil, err
	}

	if ttl := time.Duration(s.cacheTTL.Load()); s.Cache != nil && ttl > 0 {
		if cerr := s.Cache.SetQuizStatistics(ctx, stats, ttl); cerr != nil {
			logger.Log.Warn("Statistics cache write failed", zap.Uint("quizId", quizID), zap.Error(cerr))
		}
	}
	return stats, nil
}

func (s *StatisticsService) StudentMetrics(ctx context.Context, userID uint) (*model.StudentAggregateMetrics, error) {
	ctx, span := tracing.StartSpan(ctx, "StatisticsService.StudentMetrics", "")
	m, err := s.Calculator.StudentMetrics(ctx, userID)
	tracing.EndSpan(span, err)
	return m, err
}

// RefreshRanking recomputes rank and percentile for every scored attempt of
// the quiz and writes them back.
func (s *StatisticsService) RefreshRanking(ctx context.Context, quizID uint) ([]model.AttemptRanking, error) {
	if _, err := s.Catalog.GetQuiz(ctx, quizID); err != nil {
		if errors.Is(err, util.ErrQuizNotFound) {
			return nil, util.NotFound(err)
		}
		return nil, err
	}
	rankings, err := s.Calculator.QuizRanking(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.Rankings.UpdateRanking(ctx, rankings, s.now()); err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.InvalidateQuiz(ctx, quizID); err != nil {
			logger.Log.Warn("Statistics cache invalidation failed", zap.Uint("quizId", quizID), zap.Error(err))
		}
	}
	logger.Log.Info("Quiz ranking refreshed", zap.Uint("quizId", quizID), zap.Int("ranked", len(rankings)))
	return rankings, nil
}
