package repository

import (
	"context"

	"github.com/wfunc/water-vendor/internal/models"
	"gorm.io/gorm"
)

// OperatorRepository 维护操作员仓储接口
type OperatorRepository interface {
	BaseRepository
	Create(ctx context.Context, operator *models.Operator) error
	FindByName(ctx context.Context, name string) (*models.Operator, error)
	UpdatePINHash(ctx context.Context, name, pinHash string) error
	SetActive(ctx context.Context, name string, active bool) error
}

// operatorRepo 维护操作员仓储实现
type operatorRepo struct {
	*BaseRepo
}

// NewOperatorRepository 创建维护操作员仓储
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建操作员
func (r *operatorRepo) Create(ctx context.Context, operator *models.Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

// FindByName 根据名称查找
func (r *operatorRepo) FindByName(ctx context.Context, name string) (*models.Operator, error) {
	var operator models.Operator
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&operator).Error
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

// UpdatePINHash 更新PIN散列
func (r *operatorRepo) UpdatePINHash(ctx context.Context, name, pinHash string) error {
	return r.db.WithContext(ctx).
		Model(&models.Operator{}).
		Where("name = ?", name).
		Update("pin_hash", pinHash).Error
}

// SetActive 启用/停用操作员
func (r *operatorRepo) SetActive(ctx context.Context, name string, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Operator{}).
		Where("name = ?", name).
		Update("active", active).Error
}
