package vending

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/wfunc/water-vendor/internal/errors"
	"github.com/wfunc/water-vendor/internal/hardware"
	"github.com/wfunc/water-vendor/internal/logger"
	"go.uber.org/zap"
)

// Engine 出水引擎
//
// 目标水量换算为流量脉冲数执行，所有进度和结算都从脉冲
// 反算毫升，同一次会话内水量守恒不依赖换算精度。
// 流量计数器单调递增，会话只记基线做差值。
type Engine struct {
	flow          *hardware.FlowCounter
	pair          *hardware.ActuatorPair
	ppl           float64
	progressEvery time.Duration
	emit          func(string)
	log           *zap.Logger

	active       bool
	paused       bool
	startCount   int64
	targetPulses int64
	targetML     int
	lastProgress time.Time
}

// NewEngine 创建出水引擎
func NewEngine(flow *hardware.FlowCounter, pair *hardware.ActuatorPair, ppl float64, progressEvery time.Duration, emit func(string)) *Engine {
	return &Engine{
		flow:          flow,
		pair:          pair,
		ppl:           ppl,
		progressEvery: progressEvery,
		emit:          emit,
		log:           logger.GetModuleLogger("vending"),
	}
}

// SetPulsesPerLiter 更新流量系数（流量校准后）
func (e *Engine) SetPulsesPerLiter(ppl float64) {
	e.ppl = ppl
}

// PulsesPerLiter 当前流量系数
func (e *Engine) PulsesPerLiter() float64 {
	return e.ppl
}

// Active 是否有进行中的出水会话（含暂停）
func (e *Engine) Active() bool {
	return e.active
}

// Paused 会话是否处于暂停
func (e *Engine) Paused() bool {
	return e.paused
}

// SessionPulses 本次会话已累计的流量脉冲
func (e *Engine) SessionPulses() int64 {
	if !e.active {
		return 0
	}
	return e.flow.Count() - e.startCount
}

// targetFor 毫升换算为目标脉冲数
func (e *Engine) targetFor(ml int) int64 {
	p := int64(math.Round(float64(ml) / 1000.0 * e.ppl))
	if p < 1 {
		p = 1
	}
	return p
}

// pulsesToML 脉冲数反算为毫升
func (e *Engine) pulsesToML(pulses int64) float64 {
	return float64(pulses) / e.ppl * 1000.0
}

// Start 启动出水会话
func (e *Engine) Start(now time.Time, targetML int) error {
	if e.active {
		return apperrors.New(apperrors.ErrAlreadyDispensing, "已在出水中")
	}
	if targetML <= 0 {
		return apperrors.New(apperrors.ErrNoCredit, "水量余额为零")
	}
	if err := e.pair.Open(); err != nil {
		_ = e.pair.Close()
		return apperrors.Wrap(err, apperrors.ErrActuator, "打开出水通路失败")
	}

	e.active = true
	e.paused = false
	e.startCount = e.flow.Count()
	e.targetML = targetML
	e.targetPulses = e.targetFor(targetML)
	e.lastProgress = now

	e.emit(EventDispenseStart)
	e.emit(fmt.Sprintf("%s %d", EventDispenseTarget, targetML))
	e.log.Info("出水开始",
		zap.Int("target_ml", targetML),
		zap.Int64("target_pulses", e.targetPulses))
	return nil
}

// Tick 推进出水会话
//
// 达到目标返回done=true、实际出水毫升数和本次会话的脉冲数；
// 未达到时按节流间隔发进度事件。暂停期间不推进也不发进度。
func (e *Engine) Tick(now time.Time) (done bool, dispensedML float64, pulses int64) {
	if !e.active || e.paused {
		return false, 0, 0
	}

	pulses = e.flow.Count() - e.startCount
	if pulses >= e.targetPulses {
		_ = e.pair.Close()
		e.active = false
		dispensedML = e.pulsesToML(pulses)
		e.emit(fmt.Sprintf("%s %.1f", EventDispenseDone, dispensedML))
		e.log.Info("出水完成",
			zap.Int64("pulses", pulses),
			zap.Float64("dispensed_ml", dispensedML))
		return true, dispensedML, pulses
	}

	if now.Sub(e.lastProgress) >= e.progressEvery {
		e.lastProgress = now
		ml := e.pulsesToML(pulses)
		remaining := float64(e.targetML) - ml
		if remaining < 0 {
			remaining = 0
		}
		e.emit(fmt.Sprintf("%s ml=%.1f remaining=%.1f", EventDispenseProgress, ml, remaining))
	}
	return false, 0, 0
}

// Pause 暂停会话（取杯宽限期），关闭通路但保留会话
func (e *Engine) Pause() {
	if !e.active || e.paused {
		return
	}
	_ = e.pair.Close()
	e.paused = true
	e.log.Info("出水暂停", zap.Int64("pulses", e.SessionPulses()))
}

// Resume 恢复暂停中的会话
func (e *Engine) Resume(now time.Time) error {
	if !e.active || !e.paused {
		return apperrors.New(apperrors.ErrNotDispensing, "没有暂停中的会话")
	}
	if err := e.pair.Open(); err != nil {
		_ = e.pair.Close()
		return apperrors.Wrap(err, apperrors.ErrActuator, "恢复出水通路失败")
	}
	e.paused = false
	e.lastProgress = now
	return nil
}

// Stop 提前终止会话，返回实际出水毫升数和本次会话的脉冲数
func (e *Engine) Stop() (dispensedML float64, pulses int64, err error) {
	if !e.active {
		return 0, 0, apperrors.New(apperrors.ErrNotDispensing, "没有进行中的会话")
	}
	_ = e.pair.Close()
	pulses = e.flow.Count() - e.startCount
	e.active = false
	e.paused = false
	dispensedML = e.pulsesToML(pulses)
	e.log.Info("出水提前终止",
		zap.Int64("pulses", pulses),
		zap.Float64("dispensed_ml", dispensedML))
	return dispensedML, pulses, nil
}

// TargetML 本次会话的目标毫升数
func (e *Engine) TargetML() int {
	return e.targetML
}

// TargetPulses 本次会话的目标脉冲数
func (e *Engine) TargetPulses() int64 {
	return e.targetPulses
}
