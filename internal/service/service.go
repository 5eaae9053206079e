package service

import (
	"github.com/wfunc/water-vendor/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Maintenance MaintenanceService
	Reporting   ReportingService
	Journal     *DBJournal
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, deviceID string, log *zap.Logger) *Services {
	// 初始化仓储
	coinRepo := repository.NewCoinEventRepository(db)
	sessionRepo := repository.NewDispenseSessionRepository(db)
	calRepo := repository.NewCalibrationRecordRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	return &Services{
		Maintenance: NewMaintenanceService(operatorRepo, log),
		Reporting:   NewReportingService(coinRepo, sessionRepo, log),
		Journal:     NewDBJournal(deviceID, coinRepo, sessionRepo, calRepo, log),
	}
}
