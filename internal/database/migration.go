package database

import (
	"fmt"

	"github.com/wfunc/water-vendor/internal/logger"
	"github.com/wfunc/water-vendor/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 清理过期锁文件
	CleanupStaleLocks()

	// 获取迁移锁，避免多个进程同时迁移
	dbPath := getDBPath()
	if dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	// 定义需要迁移的模型
	migrationModels := []interface{}{
		// 交易流水
		&models.CoinEvent{},
		&models.DispenseSession{},

		// 校准历史
		&models.CalibrationRecord{},

		// 维护
		&models.Operator{},
	}

	for _, model := range migrationModels {
		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("迁移表结构失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err))
			return fmt.Errorf("迁移 %T 失败: %w", model, err)
		}
	}

	logger.Info("数据库表结构迁移完成", zap.Int("models", len(migrationModels)))
	return nil
}
