package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/water-vendor/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 为测试创建内存数据库
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// 内存数据库：更快，不需要文件系统，在所有环境中都能工作
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	if err := db.AutoMigrate(
		&models.CoinEvent{},
		&models.DispenseSession{},
		&models.CalibrationRecord{},
		&models.Operator{},
	); err != nil {
		t.Fatalf("测试数据库迁移失败: %v", err)
	}
	return db
}

// CreateTestCoinEvent 构造测试投币流水
func CreateTestCoinEvent(peso, pulses, creditML int, mode string, accepted bool) *models.CoinEvent {
	return &models.CoinEvent{
		DeviceID: "test-device",
		Peso:     peso,
		Pulses:   pulses,
		CreditML: creditML,
		Mode:     mode,
		Accepted: accepted,
		SeenAt:   time.Now(),
	}
}

// CreateTestDispenseSession 构造测试出水会话
func CreateTestDispenseSession(targetML int, trigger string) *models.DispenseSession {
	return &models.DispenseSession{
		SessionID: uuid.New().String(),
		DeviceID:  "test-device",
		TargetML:  targetML,
		Trigger:   trigger,
		Status:    "active",
		StartedAt: time.Now(),
	}
}
