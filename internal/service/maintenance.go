package service

import (
	"context"

	apperrors "github.com/wfunc/water-vendor/internal/errors"
	"github.com/wfunc/water-vendor/internal/models"
	"github.com/wfunc/water-vendor/internal/repository"
	"github.com/wfunc/water-vendor/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaintenanceService 维护服务：操作员PIN管理与校验
type MaintenanceService interface {
	SetPIN(ctx context.Context, name, pin string) error
	VerifyOperatorPIN(ctx context.Context, name, pin string) error
	// VerifyPIN 校验默认操作员的PIN（校准命令用）
	VerifyPIN(pin string) error
}

// 校准命令不带操作员名，默认记在admin名下
const defaultOperator = "admin"

// maintenanceService 维护服务实现
type maintenanceService struct {
	operatorRepo repository.OperatorRepository
	log          *zap.Logger
}

// NewMaintenanceService 创建维护服务
func NewMaintenanceService(operatorRepo repository.OperatorRepository, log *zap.Logger) MaintenanceService {
	return &maintenanceService{
		operatorRepo: operatorRepo,
		log:          log,
	}
}

// SetPIN 设置操作员PIN，不存在则创建
func (s *maintenanceService) SetPIN(ctx context.Context, name, pin string) error {
	if len(pin) < 4 {
		return apperrors.New(apperrors.ErrInvalidParam, "PIN至少4位")
	}

	hash, err := utils.HashPIN(pin)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrUnknown, "PIN哈希失败")
	}

	_, err = s.operatorRepo.FindByName(ctx, name)
	switch {
	case err == nil:
		if err := s.operatorRepo.UpdatePINHash(ctx, name, hash); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新PIN失败")
		}
	case err == gorm.ErrRecordNotFound:
		op := &models.Operator{Name: name, PINHash: hash, Active: true}
		if err := s.operatorRepo.Create(ctx, op); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建操作员失败")
		}
	default:
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询操作员失败")
	}

	s.log.Info("操作员PIN已更新", zap.String("operator", name))
	return nil
}

// VerifyOperatorPIN 校验指定操作员的PIN
func (s *maintenanceService) VerifyOperatorPIN(ctx context.Context, name, pin string) error {
	op, err := s.operatorRepo.FindByName(ctx, name)
	if err == gorm.ErrRecordNotFound {
		return apperrors.New(apperrors.ErrPINNotSet, "PIN未设置")
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询操作员失败")
	}
	if !op.Active {
		return apperrors.New(apperrors.ErrPermissionDenied, "操作员已停用")
	}

	ok, err := utils.VerifyPIN(pin, op.PINHash)
	if err != nil || !ok {
		s.log.Warn("PIN校验失败", zap.String("operator", name))
		return apperrors.New(apperrors.ErrPINInvalid, "PIN错误")
	}
	return nil
}

// VerifyPIN 校验默认操作员的PIN
func (s *maintenanceService) VerifyPIN(pin string) error {
	return s.VerifyOperatorPIN(context.Background(), defaultOperator, pin)
}
