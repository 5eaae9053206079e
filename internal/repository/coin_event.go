package repository

import (
	"context"
	"time"

	"github.com/wfunc/water-vendor/internal/logger"
	"github.com/wfunc/water-vendor/internal/models"
	"gorm.io/gorm"
)

// CoinEventRepository 投币流水仓储接口
type CoinEventRepository interface {
	BaseRepository
	Create(ctx context.Context, event *models.CoinEvent) error
	FindByID(ctx context.Context, id uint) (*models.CoinEvent, error)
	ListRecent(ctx context.Context, p *Pagination) ([]*models.CoinEvent, error)
	ListByMode(ctx context.Context, mode string, p *Pagination) ([]*models.CoinEvent, error)
	GetCoinStatistics(ctx context.Context, startTime, endTime time.Time) (*CoinStatistics, error)
}

// CoinStatistics 投币统计
type CoinStatistics struct {
	TotalCoins    int64 `json:"total_coins"`     // 投币总枚数
	AcceptedCoins int64 `json:"accepted_coins"`  // 识别成功枚数
	RejectedCoins int64 `json:"rejected_coins"`  // 拒绝枚数
	TotalPesos    int64 `json:"total_pesos"`     // 总金额（比索）
	TotalCreditML int64 `json:"total_credit_ml"` // 总兑换水量
}

// coinEventRepo 投币流水仓储实现
type coinEventRepo struct {
	*BaseRepo
}

// NewCoinEventRepository 创建投币流水仓储
func NewCoinEventRepository(db *gorm.DB) CoinEventRepository {
	return &coinEventRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建投币流水
func (r *coinEventRepo) Create(ctx context.Context, event *models.CoinEvent) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Create(event).Error
	logger.LogDatabaseOperation("create", "coin_events", time.Since(start), err)
	return err
}

// FindByID 根据ID查找
func (r *coinEventRepo) FindByID(ctx context.Context, id uint) (*models.CoinEvent, error) {
	var event models.CoinEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// ListRecent 最近投币流水
func (r *coinEventRepo) ListRecent(ctx context.Context, p *Pagination) ([]*models.CoinEvent, error) {
	var events []*models.CoinEvent
	query := r.db.WithContext(ctx).Model(&models.CoinEvent{})

	if err := query.Count(&p.Total).Error; err != nil {
		return nil, err
	}
	err := query.
		Order("seen_at DESC").
		Scopes(Paginate(p)).
		Find(&events).Error
	return events, err
}

// ListByMode 按模式过滤投币流水
func (r *coinEventRepo) ListByMode(ctx context.Context, mode string, p *Pagination) ([]*models.CoinEvent, error) {
	var events []*models.CoinEvent
	query := r.db.WithContext(ctx).
		Model(&models.CoinEvent{}).
		Where("mode = ?", mode)

	if err := query.Count(&p.Total).Error; err != nil {
		return nil, err
	}
	err := query.
		Order("seen_at DESC").
		Scopes(Paginate(p)).
		Find(&events).Error
	return events, err
}

// GetCoinStatistics 时间段内投币统计
func (r *coinEventRepo) GetCoinStatistics(ctx context.Context, startTime, endTime time.Time) (*CoinStatistics, error) {
	stats := &CoinStatistics{}
	base := r.db.WithContext(ctx).
		Model(&models.CoinEvent{}).
		Where("seen_at BETWEEN ? AND ?", startTime, endTime)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalCoins).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("accepted = ?", true).
		Count(&stats.AcceptedCoins).Error; err != nil {
		return nil, err
	}
	stats.RejectedCoins = stats.TotalCoins - stats.AcceptedCoins

	row := base.Session(&gorm.Session{}).
		Where("accepted = ?", true).
		Select("COALESCE(SUM(peso), 0), COALESCE(SUM(credit_ml), 0)").
		Row()
	if err := row.Scan(&stats.TotalPesos, &stats.TotalCreditML); err != nil {
		return nil, err
	}
	return stats, nil
}
