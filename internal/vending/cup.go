package vending

import (
	"github.com/wfunc/water-vendor/internal/config"
	"github.com/wfunc/water-vendor/internal/hardware"
)

// CupDetector 杯子存在检测
//
// 超声波单次读数抖动明显，存在状态要连续stableCount次
// 一致才生效切换，之前保持上一个稳定值。
type CupDetector struct {
	ranger      *hardware.UltrasonicRanger
	thresholdCM float64
	stableCount int

	lastRaw     bool
	consecutive int
	stable      bool
}

// NewCupDetector 创建杯子检测器
func NewCupDetector(ranger *hardware.UltrasonicRanger, cfg *config.HardwareConfig) *CupDetector {
	return &CupDetector{
		ranger:      ranger,
		thresholdCM: cfg.CupThresholdCM,
		stableCount: cfg.CupStableCount,
	}
}

// Sample 采样一次并返回稳定后的存在状态
func (d *CupDetector) Sample() bool {
	cm, ok := d.ranger.DistanceCM()
	raw := ok && cm > 0 && cm < d.thresholdCM

	if raw == d.lastRaw {
		d.consecutive++
	} else {
		d.consecutive = 1
		d.lastRaw = raw
	}

	if d.consecutive >= d.stableCount {
		d.stable = raw
	}
	return d.stable
}

// Present 最近一次稳定的存在状态（不触发采样）
func (d *CupDetector) Present() bool {
	return d.stable
}

// Reset 清空稳定状态（系统复位用）
func (d *CupDetector) Reset() {
	d.lastRaw = false
	d.consecutive = 0
	d.stable = false
}
