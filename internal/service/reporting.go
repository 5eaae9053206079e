package service

import (
	"context"
	"time"

	"github.com/wfunc/water-vendor/internal/repository"
	"go.uber.org/zap"
)

// DailySummary 单日经营汇总
type DailySummary struct {
	Date     string                         `json:"date"`
	Coins    *repository.CoinStatistics     `json:"coins"`
	Dispense *repository.DispenseStatistics `json:"dispense"`
}

// ReportingService 经营报表服务
type ReportingService interface {
	GetDailySummary(ctx context.Context, day time.Time) (*DailySummary, error)
}

// reportingService 经营报表服务实现
type reportingService struct {
	coinRepo    repository.CoinEventRepository
	sessionRepo repository.DispenseSessionRepository
	log         *zap.Logger
}

// NewReportingService 创建报表服务
func NewReportingService(coinRepo repository.CoinEventRepository, sessionRepo repository.DispenseSessionRepository, log *zap.Logger) ReportingService {
	return &reportingService{
		coinRepo:    coinRepo,
		sessionRepo: sessionRepo,
		log:         log,
	}
}

// GetDailySummary 按自然日汇总投币和出水
func (s *reportingService) GetDailySummary(ctx context.Context, day time.Time) (*DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	coins, err := s.coinRepo.GetCoinStatistics(ctx, start, end)
	if err != nil {
		return nil, err
	}
	dispense, err := s.sessionRepo.GetDispenseStatistics(ctx, start, end)
	if err != nil {
		return nil, err
	}

	return &DailySummary{
		Date:     start.Format("2006-01-02"),
		Coins:    coins,
		Dispense: dispense,
	}, nil
}
