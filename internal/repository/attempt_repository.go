package repository

import (
	"context"
	"errors"
	"time"

	"exam_prep_backend/internal/model"
	"exam_prep_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const summaryColumns = "id, quiz_id, user_id, attempt_number, state, score_percentage AS percentage, " +
	"result_passed AS passed, time_spent_seconds, started_at, submitted_at"

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// Create inserts a new attempt. The unique active key turns a concurrent
// second start into util.ErrActiveAttemptExists.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	err := r.DB.WithContext(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrActiveAttemptExists
	}
	return err
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindActive returns the in-progress attempt for (user, quiz), or nil.
func (r *AttemptRepository) FindActive(ctx context.Context, userID, quizID uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).
		Where("active_key = ?", model.ActiveKeyFor(userID, quizID)).
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Mutate runs fn on the attempt inside a transaction holding its row lock.
func (r *AttemptRepository) Mutate(ctx context.Context, id string, fn func(a *model.Attempt) error) (*model.Attempt, error) {
	var out model.Attempt
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&out, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrAttemptNotFound
			}
			return err
		}
		if err := fn(&out); err != nil {
			return err
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *AttemptRepository) ListUserQuizAttempts(ctx context.Context, userID, quizID uint) ([]model.AttemptSummary, error) {
	var out []model.AttemptSummary
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Select(summaryColumns).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("attempt_number ASC").
		Scan(&out).Error
	return out, err
}

func (r *AttemptRepository) ListInProgress(ctx context.Context) ([]model.AttemptSummary, error) {
	var out []model.AttemptSummary
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Select(summaryColumns).
		Where("state = ?", model.AttemptInProgress).
		Order("started_at ASC").
		Scan(&out).Error
	return out, err
}

func (r *AttemptRepository) ListQuizAttempts(ctx context.Context, quizID uint) ([]model.AttemptSummary, error) {
	var out []model.AttemptSummary
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Select(summaryColumns).
		Where("quiz_id = ?", quizID).
		Order("started_at ASC").
		Scan(&out).Error
	return out, err
}

func (r *AttemptRepository) ListUserAttempts(ctx context.Context, userID uint) ([]model.AttemptSummary, error) {
	var out []model.AttemptSummary
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Select(summaryColumns).
		Where("user_id = ?", userID).
		Order("started_at ASC").
		Scan(&out).Error
	return out, err
}

func (r *AttemptRepository) ListAttemptsForQuizzes(ctx context.Context, quizIDs []uint) ([]model.AttemptSummary, error) {
	if len(quizIDs) == 0 {
		return nil, nil
	}
	var out []model.AttemptSummary
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Select(summaryColumns).
		Where("quiz_id IN ?", quizIDs).
		Order("started_at ASC").
		Scan(&out).Error
	return out, err
}

// UpdateRanking writes only the ranking columns, so a concurrent answer or
// grading write is never overwritten.
func (r *AttemptRepository) UpdateRanking(ctx context.Context, rankings []model.AttemptRanking, at time.Time) error {
	if len(rankings) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rk := range rankings {
			err := tx.Model(&model.Attempt{}).
				Where("id = ?", rk.AttemptID).
				Updates(map[string]interface{}{
					"result_rank":       rk.Rank,
					"result_percentile": rk.Percentile,
					"result_ranked_at":  at,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
