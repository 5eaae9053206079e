package repository

import (
	"context"
	"time"

	"github.com/wfunc/water-vendor/internal/logger"
	"github.com/wfunc/water-vendor/internal/models"
	"gorm.io/gorm"
)

// CalibrationRecordRepository 校准历史仓储接口
type CalibrationRecordRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.CalibrationRecord) error
	Latest(ctx context.Context, kind string) (*models.CalibrationRecord, error)
	ListByKind(ctx context.Context, kind string, limit int) ([]*models.CalibrationRecord, error)
}

// calibrationRecordRepo 校准历史仓储实现
type calibrationRecordRepo struct {
	*BaseRepo
}

// NewCalibrationRecordRepository 创建校准历史仓储
func NewCalibrationRecordRepository(db *gorm.DB) CalibrationRecordRepository {
	return &calibrationRecordRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 记录一次校准动作
func (r *calibrationRecordRepo) Create(ctx context.Context, record *models.CalibrationRecord) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Create(record).Error
	logger.LogDatabaseOperation("create", "calibration_records", time.Since(start), err)
	return err
}

// Latest 最近一次指定类型的校准
func (r *calibrationRecordRepo) Latest(ctx context.Context, kind string) (*models.CalibrationRecord, error) {
	var record models.CalibrationRecord
	err := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("performed_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByKind 按类型列出校准历史
func (r *calibrationRecordRepo) ListByKind(ctx context.Context, kind string, limit int) ([]*models.CalibrationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []*models.CalibrationRecord
	err := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("performed_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
