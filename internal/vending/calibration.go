package vending

import (
	"context"

	"github.com/wfunc/water-vendor/internal/config"
	"github.com/wfunc/water-vendor/internal/logger"
	"github.com/wfunc/water-vendor/internal/storage"
	"go.uber.org/zap"
)

// Calibration 机器校准值
//
// 持久化在固定地址的常量存储里，布局沿用下位机的EEPROM地址，
// 工厂恢复只需清空存储即可回到默认值。
type Calibration struct {
	Coin1Pulses    int
	Coin5Pulses    int
	Coin10Pulses   int
	PulsesPerLiter float64
}

// LoadCalibration 从常量存储加载校准值
//
// 缺失的槽位回落到配置默认值；流量系数在加载时做合理性
// 校验，越界值视为存储损坏，丢弃并回落默认。
func LoadCalibration(ctx context.Context, store storage.Store, cfg *config.VendingConfig) *Calibration {
	log := logger.GetModuleLogger("vending")
	cal := &Calibration{
		Coin1Pulses:    cfg.Coins.Coin1Pulses,
		Coin5Pulses:    cfg.Coins.Coin5Pulses,
		Coin10Pulses:   cfg.Coins.Coin10Pulses,
		PulsesPerLiter: cfg.Calibration.DefaultPulsesPerLiter,
	}

	if v, err := store.GetInt(ctx, storage.AddrCoin1Pulses); err == nil && v > 0 {
		cal.Coin1Pulses = v
	}
	if v, err := store.GetInt(ctx, storage.AddrCoin5Pulses); err == nil && v > 0 {
		cal.Coin5Pulses = v
	}
	if v, err := store.GetInt(ctx, storage.AddrCoin10Pulses); err == nil && v > 0 {
		cal.Coin10Pulses = v
	}

	if v, err := store.GetFloat(ctx, storage.AddrPulsesPerLiter); err == nil {
		if v >= cfg.Calibration.MinPulsesPerLiter && v <= cfg.Calibration.MaxPulsesPerLiter {
			cal.PulsesPerLiter = v
		} else {
			log.Warn("流量系数越界，回落默认值",
				zap.Float64("stored", v),
				zap.Float64("default", cfg.Calibration.DefaultPulsesPerLiter))
		}
	}

	log.Info("校准值加载完成",
		zap.Int("coin1", cal.Coin1Pulses),
		zap.Int("coin5", cal.Coin5Pulses),
		zap.Int("coin10", cal.Coin10Pulses),
		zap.Float64("pulses_per_liter", cal.PulsesPerLiter))
	return cal
}

// SaveCoinSignatures 持久化投币脉冲签名
func (c *Calibration) SaveCoinSignatures(ctx context.Context, store storage.Store) error {
	if err := store.PutInt(ctx, storage.AddrCoin1Pulses, c.Coin1Pulses); err != nil {
		return err
	}
	if err := store.PutInt(ctx, storage.AddrCoin5Pulses, c.Coin5Pulses); err != nil {
		return err
	}
	return store.PutInt(ctx, storage.AddrCoin10Pulses, c.Coin10Pulses)
}

// SaveFlowFactor 持久化流量系数
//
// 保存观测到的原始值，合理性校验留到下次加载时做。
func (c *Calibration) SaveFlowFactor(ctx context.Context, store storage.Store) error {
	return store.PutFloat(ctx, storage.AddrPulsesPerLiter, c.PulsesPerLiter)
}

// Denominations 按当前签名构造面额表
func (c *Calibration) Denominations(coins *config.CoinConfig) [3]Denomination {
	return [3]Denomination{
		{Peso: 1, Pulses: c.Coin1Pulses, CreditML: coins.Coin1ML},
		{Peso: 5, Pulses: c.Coin5Pulses, CreditML: coins.Coin5ML},
		{Peso: 10, Pulses: c.Coin10Pulses, CreditML: coins.Coin10ML},
	}
}
