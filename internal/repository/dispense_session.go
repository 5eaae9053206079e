package repository

import (
	"context"
	"time"

	"github.com/wfunc/water-vendor/internal/logger"
	"github.com/wfunc/water-vendor/internal/models"
	"gorm.io/gorm"
)

// DispenseSessionRepository 出水会话仓储接口
type DispenseSessionRepository interface {
	BaseRepository
	Create(ctx context.Context, session *models.DispenseSession) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.DispenseSession, error)
	Complete(ctx context.Context, sessionID string, dispensedML float64, flowPulses int64) error
	StopEarly(ctx context.Context, sessionID string, dispensedML, refundedML float64, flowPulses int64) error
	ListRecent(ctx context.Context, p *Pagination) ([]*models.DispenseSession, error)
	FindOpen(ctx context.Context) ([]*models.DispenseSession, error)
	CloseStale(ctx context.Context) (int64, error)
	GetDispenseStatistics(ctx context.Context, startTime, endTime time.Time) (*DispenseStatistics, error)
}

// DispenseStatistics 出水统计
type DispenseStatistics struct {
	TotalSessions   int64   `json:"total_sessions"`
	DoneSessions    int64   `json:"done_sessions"`
	StoppedSessions int64   `json:"stopped_sessions"`
	TotalDispenseML float64 `json:"total_dispense_ml"`
	TotalRefundML   float64 `json:"total_refund_ml"`
}

// dispenseSessionRepo 出水会话仓储实现
type dispenseSessionRepo struct {
	*BaseRepo
}

// NewDispenseSessionRepository 创建出水会话仓储
func NewDispenseSessionRepository(db *gorm.DB) DispenseSessionRepository {
	return &dispenseSessionRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建出水会话
func (r *dispenseSessionRepo) Create(ctx context.Context, session *models.DispenseSession) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Create(session).Error
	logger.LogDatabaseOperation("create", "dispense_sessions", time.Since(start), err)
	return err
}

// FindBySessionID 根据会话ID查找
func (r *dispenseSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.DispenseSession, error) {
	var session models.DispenseSession
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Complete 正常完成会话
func (r *dispenseSessionRepo) Complete(ctx context.Context, sessionID string, dispensedML float64, flowPulses int64) error {
	start := time.Now()
	now := start
	err := r.db.WithContext(ctx).
		Model(&models.DispenseSession{}).
		Where("session_id = ? AND status = ?", sessionID, "active").
		Updates(map[string]interface{}{
			"status":       "done",
			"dispensed_ml": dispensedML,
			"flow_pulses":  flowPulses,
			"ended_at":     &now,
		}).Error
	logger.LogDatabaseOperation("update", "dispense_sessions", time.Since(start), err)
	return err
}

// StopEarly 提前终止会话并记录退还量
func (r *dispenseSessionRepo) StopEarly(ctx context.Context, sessionID string, dispensedML, refundedML float64, flowPulses int64) error {
	start := time.Now()
	now := start
	err := r.db.WithContext(ctx).
		Model(&models.DispenseSession{}).
		Where("session_id = ? AND status = ?", sessionID, "active").
		Updates(map[string]interface{}{
			"status":       "stopped",
			"dispensed_ml": dispensedML,
			"refunded_ml":  refundedML,
			"flow_pulses":  flowPulses,
			"ended_at":     &now,
		}).Error
	logger.LogDatabaseOperation("update", "dispense_sessions", time.Since(start), err)
	return err
}

// ListRecent 最近会话
func (r *dispenseSessionRepo) ListRecent(ctx context.Context, p *Pagination) ([]*models.DispenseSession, error) {
	var sessions []*models.DispenseSession
	query := r.db.WithContext(ctx).Model(&models.DispenseSession{})

	if err := query.Count(&p.Total).Error; err != nil {
		return nil, err
	}
	err := query.
		Order("started_at DESC").
		Scopes(Paginate(p)).
		Find(&sessions).Error
	return sessions, err
}

// FindOpen 进行中的会话
func (r *dispenseSessionRepo) FindOpen(ctx context.Context) ([]*models.DispenseSession, error) {
	var sessions []*models.DispenseSession
	err := r.db.WithContext(ctx).
		Where("status = ?", "active").
		Find(&sessions).Error
	return sessions, err
}

// CloseStale 关闭遗留的进行中会话（异常断电后启动时调用）
func (r *dispenseSessionRepo) CloseStale(ctx context.Context) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.DispenseSession{}).
		Where("status = ?", "active").
		Updates(map[string]interface{}{
			"status":   "stopped",
			"ended_at": &now,
		})
	return result.RowsAffected, result.Error
}

// GetDispenseStatistics 时间段内出水统计
func (r *dispenseSessionRepo) GetDispenseStatistics(ctx context.Context, startTime, endTime time.Time) (*DispenseStatistics, error) {
	stats := &DispenseStatistics{}
	base := r.db.WithContext(ctx).
		Model(&models.DispenseSession{}).
		Where("started_at BETWEEN ? AND ?", startTime, endTime)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalSessions).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", "done").
		Count(&stats.DoneSessions).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", "stopped").
		Count(&stats.StoppedSessions).Error; err != nil {
		return nil, err
	}

	row := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(dispensed_ml), 0), COALESCE(SUM(refunded_ml), 0)").
		Row()
	if err := row.Scan(&stats.TotalDispenseML, &stats.TotalRefundML); err != nil {
		return nil, err
	}
	return stats, nil
}
