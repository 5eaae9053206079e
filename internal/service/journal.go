package service

import (
	"context"
	"strings"
	"time"

	"github.com/wfunc/water-vendor/internal/models"
	"github.com/wfunc/water-vendor/internal/repository"
	"github.com/wfunc/water-vendor/internal/vending"
	"go.uber.org/zap"
)

// DBJournal 数据库流水记录
//
// 实现控制循环的Journal接口。落库失败只记日志，
// 绝不把错误传回出水流程。
type DBJournal struct {
	deviceID    string
	coinRepo    repository.CoinEventRepository
	sessionRepo repository.DispenseSessionRepository
	calRepo     repository.CalibrationRecordRepository
	log         *zap.Logger
}

// NewDBJournal 创建数据库流水记录
func NewDBJournal(deviceID string, coinRepo repository.CoinEventRepository, sessionRepo repository.DispenseSessionRepository, calRepo repository.CalibrationRecordRepository, log *zap.Logger) *DBJournal {
	return &DBJournal{
		deviceID:    deviceID,
		coinRepo:    coinRepo,
		sessionRepo: sessionRepo,
		calRepo:     calRepo,
		log:         log,
	}
}

// CloseStaleSessions 关闭异常断电遗留的进行中会话
func (j *DBJournal) CloseStaleSessions(ctx context.Context) (int64, error) {
	return j.sessionRepo.CloseStale(ctx)
}

// CoinSeen 记录一次投币
func (j *DBJournal) CoinSeen(peso, pulses, creditML int, mode vending.Mode, accepted bool) {
	event := &models.CoinEvent{
		DeviceID: j.deviceID,
		Peso:     peso,
		Pulses:   pulses,
		CreditML: creditML,
		Mode:     strings.ToLower(string(mode)),
		Accepted: accepted,
		SeenAt:   time.Now(),
	}
	if err := j.coinRepo.Create(context.Background(), event); err != nil {
		j.log.Error("投币流水落库失败", zap.Error(err))
	}
}

// SessionStarted 记录会话开始
func (j *DBJournal) SessionStarted(sessionID string, targetML int, targetPulses int64, trigger string) {
	session := &models.DispenseSession{
		SessionID:    sessionID,
		DeviceID:     j.deviceID,
		TargetML:     targetML,
		TargetPulses: targetPulses,
		Trigger:      trigger,
		Status:       "active",
		StartedAt:    time.Now(),
	}
	if err := j.sessionRepo.Create(context.Background(), session); err != nil {
		j.log.Error("出水会话落库失败",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// SessionDone 记录会话正常完成
func (j *DBJournal) SessionDone(sessionID string, dispensedML float64, pulses int64) {
	if err := j.sessionRepo.Complete(context.Background(), sessionID, dispensedML, pulses); err != nil {
		j.log.Error("会话完成状态落库失败",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// SessionStopped 记录会话提前终止
func (j *DBJournal) SessionStopped(sessionID string, dispensedML, refundedML float64, pulses int64) {
	if err := j.sessionRepo.StopEarly(context.Background(), sessionID, dispensedML, refundedML, pulses); err != nil {
		j.log.Error("会话终止状态落库失败",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// CalibrationSaved 记录一次校准动作
func (j *DBJournal) CalibrationSaved(kind string, cal *vending.Calibration) {
	record := &models.CalibrationRecord{
		DeviceID:       j.deviceID,
		Kind:           kind,
		Coin1Pulses:    cal.Coin1Pulses,
		Coin5Pulses:    cal.Coin5Pulses,
		Coin10Pulses:   cal.Coin10Pulses,
		PulsesPerLiter: cal.PulsesPerLiter,
		PerformedAt:    time.Now(),
	}
	if err := j.calRepo.Create(context.Background(), record); err != nil {
		j.log.Error("校准记录落库失败", zap.Error(err))
	}
}
