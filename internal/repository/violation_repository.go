package repository

import (
	"context"

	"exam_prep_backend/internal/model"

	"gorm.io/gorm"
)

type ViolationRepository struct {
	DB *gorm.DB
}

func NewViolationRepository(db *gorm.DB) *ViolationRepository {
	return &ViolationRepository{DB: db}
}

func (r *ViolationRepository) Append(ctx context.Context, rec *model.ViolationRecord) error {
	return r.DB.WithContext(ctx).Create(rec).Error
}

func (r *ViolationRepository) List(ctx context.Context, attemptID string) ([]model.ViolationRecord, error) {
	var out []model.ViolationRecord
	err := r.DB.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("occurred_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
