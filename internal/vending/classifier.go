package vending

import (
	"time"

	"github.com/wfunc/water-vendor/internal/config"
	"github.com/wfunc/water-vendor/internal/hardware"
	"github.com/wfunc/water-vendor/internal/logger"
	"go.uber.org/zap"
)

// Burst 一个完整的投币脉冲串
//
// Denom为nil表示脉冲数不匹配任何面额，这枚硬币被拒绝。
type Burst struct {
	Pulses int
	Denom  *Denomination
}

// Classifier 投币脉冲串识别器
//
// 计数器静默超过quiet窗口即认为一枚硬币的脉冲串结束，
// 按面额签名±容差匹配；1–10之外的脉冲数直接拒绝。
type Classifier struct {
	counter   *hardware.CoinCounter
	denoms    [3]Denomination
	tolerance int
	minPulses int
	maxPulses int
	quiet     time.Duration
	log       *zap.Logger
}

// NewClassifier 创建投币识别器
func NewClassifier(counter *hardware.CoinCounter, cfg *config.VendingConfig, cal *Calibration) *Classifier {
	return &Classifier{
		counter:   counter,
		denoms:    cal.Denominations(&cfg.Coins),
		tolerance: cfg.Coins.Tolerance,
		minPulses: cfg.Coins.MinPulses,
		maxPulses: cfg.Coins.MaxPulses,
		quiet:     cfg.CoinQuietTime,
		log:       logger.GetModuleLogger("vending"),
	}
}

// SetSignatures 校准后更新面额签名
func (c *Classifier) SetSignatures(cal *Calibration, coins *config.CoinConfig) {
	c.denoms = cal.Denominations(coins)
}

// Poll 检查脉冲串是否结束
//
// 每个控制周期调用一次。脉冲串未结束返回nil；
// 结束则清空计数器并返回识别结果。
func (c *Classifier) Poll(now time.Time) *Burst {
	n := c.counter.Count()
	if n == 0 {
		return nil
	}
	if now.Sub(c.counter.LastEdge()) < c.quiet {
		return nil
	}

	c.counter.Reset()
	return c.classify(n)
}

// classify 按签名匹配脉冲数
func (c *Classifier) classify(pulses int) *Burst {
	burst := &Burst{Pulses: pulses}

	if pulses < c.minPulses || pulses > c.maxPulses {
		c.log.Warn("脉冲数超出合理区间，拒绝",
			zap.Int("pulses", pulses),
			zap.Int("min", c.minPulses),
			zap.Int("max", c.maxPulses))
		return burst
	}

	for i := range c.denoms {
		d := &c.denoms[i]
		if abs(pulses-d.Pulses) <= c.tolerance {
			burst.Denom = d
			return burst
		}
	}

	c.log.Warn("脉冲数不匹配任何面额", zap.Int("pulses", pulses))
	return burst
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
