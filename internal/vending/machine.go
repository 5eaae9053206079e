package vending

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/water-vendor/internal/config"
	"github.com/wfunc/water-vendor/internal/hardware"
	"github.com/wfunc/water-vendor/internal/logger"
	"github.com/wfunc/water-vendor/internal/storage"
	"go.uber.org/zap"
)

// Machine 售水机控制状态机
//
// 所有状态只被控制循环的单个协程读写，不加锁；
// 跨协程的只有硬件计数器里的原子量。
type Machine struct {
	ctx     context.Context
	cfg     *config.Config
	log     *zap.Logger
	channel hardware.LineChannel

	coins      *hardware.CoinCounter
	flow       *hardware.FlowCounter
	pair       *hardware.ActuatorPair
	classifier *Classifier
	cup        *CupDetector
	engine     *Engine

	store   storage.Store
	journal Journal
	pins    PINVerifier
	cal     *Calibration

	mode     Mode
	state    State
	creditML int
	latch    bool

	sessionID string
	trigger   string

	countdownLeft int
	countdownNext time.Time
	graceDeadline time.Time
	lastActivity  time.Time

	calStep      int
	calStepStart time.Time
	calPending   [3]int
}

// Deps 状态机依赖集合
type Deps struct {
	Channel hardware.LineChannel
	Coins   *hardware.CoinCounter
	Flow    *hardware.FlowCounter
	Pair    *hardware.ActuatorPair
	Ranger  *hardware.UltrasonicRanger
	Store   storage.Store
	Journal Journal
	Pins    PINVerifier
}

// NewMachine 创建状态机并加载校准值
func NewMachine(ctx context.Context, cfg *config.Config, deps Deps) *Machine {
	if deps.Journal == nil {
		deps.Journal = NopJournal{}
	}

	m := &Machine{
		ctx:     ctx,
		cfg:     cfg,
		log:     logger.GetModuleLogger("vending"),
		channel: deps.Channel,
		coins:   deps.Coins,
		flow:    deps.Flow,
		pair:    deps.Pair,
		store:   deps.Store,
		journal: deps.Journal,
		pins:    deps.Pins,
		mode:    ModeWater,
		state:   StateIdle,
	}

	m.cal = LoadCalibration(ctx, deps.Store, &cfg.Vending)
	m.classifier = NewClassifier(deps.Coins, &cfg.Vending, m.cal)
	m.cup = NewCupDetector(deps.Ranger, &cfg.Hardware)
	m.engine = NewEngine(deps.Flow, deps.Pair, m.cal.PulsesPerLiter, cfg.Vending.ProgressEvery, m.emit)
	m.lastActivity = time.Now()
	return m
}

// SetCupDetector 注入杯子检测器（带真实或模拟测距仪）
func (m *Machine) SetCupDetector(d *CupDetector) {
	m.cup = d
}

// emit 向上位机写出一行事件
func (m *Machine) emit(line string) {
	if err := m.channel.WriteLine(line); err != nil {
		m.log.Error("事件写出失败", zap.String("line", line), zap.Error(err))
	}
}

// emitError 写出错误行
func (m *Machine) emitError(msg string) {
	m.emit(fmt.Sprintf("%s: %s", EventError, msg))
}

// State 当前状态
func (m *Machine) State() State { return m.state }

// Mode 当前模式
func (m *Machine) Mode() Mode { return m.mode }

// CreditML 当前水量余额
func (m *Machine) CreditML() int { return m.creditML }

// Latched 杯子触发闩锁是否有效
func (m *Machine) Latched() bool { return m.latch }

// Calibration 当前校准值
func (m *Machine) Calibration() *Calibration { return m.cal }

// Tick 推进一个控制周期
//
// 固定顺序：投币识别、杯子状态、倒计时、出水、无操作复位。
// 校准态独占整个周期。
func (m *Machine) Tick(now time.Time) {
	switch m.state {
	case StateCoinCal:
		m.tickCoinCal(now)
		return
	case StateFlowCal:
		// 只等DONE命令，脉冲在计数器里自行累计
		return
	}

	m.pollCoins(now)
	m.sampleCup(now)
	m.tickCountdown(now)
	m.tickDispense(now)
	m.tickInactivity(now)
}

// pollCoins 处理识别完成的投币脉冲串
func (m *Machine) pollCoins(now time.Time) {
	burst := m.classifier.Poll(now)
	if burst == nil {
		return
	}
	m.lastActivity = now

	if burst.Denom == nil {
		m.emit(fmt.Sprintf("%s %d", EventCoinUnknown, burst.Pulses))
		m.journal.CoinSeen(0, burst.Pulses, 0, m.mode, false)
		return
	}

	d := burst.Denom
	m.emit(fmt.Sprintf("%s %d", EventCoinInserted, d.Peso))
	if m.mode == ModeCharge {
		m.emit(fmt.Sprintf("%s %d", EventCoinCharge, d.Peso))
		m.journal.CoinSeen(d.Peso, burst.Pulses, 0, m.mode, true)
		logger.LogVendEvent("coin_charge", "", map[string]interface{}{"peso": d.Peso})
		return
	}

	m.creditML += d.CreditML
	if m.state == StateIdle {
		// 新投币重新武装杯子触发
		m.latch = false
	}
	m.emit(fmt.Sprintf("%s %d", EventCoinWater, d.CreditML))
	m.journal.CoinSeen(d.Peso, burst.Pulses, d.CreditML, m.mode, true)
	logger.LogVendEvent("coin", "", map[string]interface{}{
		"peso": d.Peso, "credit_ml": m.creditML,
	})
}

// sampleCup 采样杯子状态并驱动状态迁移
func (m *Machine) sampleCup(now time.Time) {
	present := m.cup.Sample()
	if m.mode != ModeWater {
		return
	}

	switch m.state {
	case StateIdle:
		if present && m.creditML > 0 && !m.latch {
			m.beginCountdown(now)
		}
	case StateCountdown:
		if !present {
			m.emit(EventCountdownCancel)
			m.latch = false
			m.state = StateIdle
			m.log.Info("倒计时期间取杯，取消")
		}
	case StateDispensing:
		if !present {
			m.engine.Pause()
			m.state = StatePaused
			m.graceDeadline = now.Add(m.cfg.Vending.GracePeriod)
			m.emit(EventCupRemoved)
		}
	case StatePaused:
		if present {
			if err := m.engine.Resume(now); err != nil {
				m.emitError("恢复出水失败")
				m.settleEarly(now)
				return
			}
			m.state = StateDispensing
			m.emit(EventCupResumed)
		} else if now.After(m.graceDeadline) || now.Equal(m.graceDeadline) {
			m.log.Info("宽限期超时，提前结算")
			m.settleEarly(now)
		}
	}
}

// beginCountdown 放杯确认，进入倒计时
func (m *Machine) beginCountdown(now time.Time) {
	m.latch = true
	m.state = StateCountdown
	m.lastActivity = now
	m.countdownLeft = int(m.cfg.Vending.Countdown / time.Second)
	m.countdownNext = now.Add(time.Second)

	m.emit(EventCupDetected)
	m.emit(fmt.Sprintf("%s %d", EventCountdown, m.countdownLeft))
}

// tickCountdown 推进倒计时，每秒一个事件
func (m *Machine) tickCountdown(now time.Time) {
	if m.state != StateCountdown {
		return
	}
	if now.Before(m.countdownNext) {
		return
	}

	m.countdownLeft--
	m.countdownNext = m.countdownNext.Add(time.Second)
	if m.countdownLeft > 0 {
		m.emit(fmt.Sprintf("%s %d", EventCountdown, m.countdownLeft))
		return
	}

	m.emit(EventCountdownEnd)
	m.startDispense(now, "cup")
}

// startDispense 启动出水会话
func (m *Machine) startDispense(now time.Time, trigger string) {
	if err := m.engine.Start(now, m.creditML); err != nil {
		m.emitError(err.Error())
		m.state = StateIdle
		return
	}

	m.sessionID = uuid.New().String()
	m.trigger = trigger
	m.state = StateDispensing
	m.lastActivity = now
	m.journal.SessionStarted(m.sessionID, m.creditML, m.engine.TargetPulses(), trigger)
	logger.LogVendEvent("dispense_start", m.sessionID, map[string]interface{}{
		"target_ml": m.creditML, "trigger": trigger,
	})
}

// tickDispense 推进出水会话
func (m *Machine) tickDispense(now time.Time) {
	if m.state != StateDispensing {
		return
	}

	done, dispensed, pulses := m.engine.Tick(now)
	if !done {
		return
	}

	m.journal.SessionDone(m.sessionID, dispensed, pulses)
	logger.LogVendEvent("dispense_done", m.sessionID, map[string]interface{}{
		"dispensed_ml": dispensed,
	})

	m.creditML = 0
	m.latch = false
	m.sessionID = ""
	m.state = StateIdle
	m.lastActivity = now
}

// settleEarly 提前结算：终止会话并把剩余水量退回余额
func (m *Machine) settleEarly(now time.Time) {
	dispensed, pulses, err := m.engine.Stop()
	if err != nil {
		m.emitError(err.Error())
		return
	}

	remainder := float64(m.creditML) - dispensed
	if remainder < 0 {
		remainder = 0
	}

	m.journal.SessionStopped(m.sessionID, dispensed, remainder, pulses)
	logger.LogVendEvent("dispense_stopped", m.sessionID, map[string]interface{}{
		"dispensed_ml": dispensed, "refund_ml": remainder,
	})

	m.creditML = int(math.Round(remainder))
	m.latch = false
	m.sessionID = ""
	m.state = StateIdle
	m.lastActivity = now
	m.emit(fmt.Sprintf("%s %.1f", EventCreditLeft, remainder))
}

// tickInactivity 无操作超时复位
func (m *Machine) tickInactivity(now time.Time) {
	if m.state != StateIdle {
		return
	}
	if m.creditML == 0 && !m.latch {
		return
	}
	if now.Sub(m.lastActivity) >= m.cfg.Vending.InactivityTime {
		m.log.Info("无操作超时，复位",
			zap.Int("credit_ml", m.creditML))
		m.resetAll(now)
	}
}

// resetAll 复位全部业务状态，校准值保留
func (m *Machine) resetAll(now time.Time) {
	if m.engine.Active() {
		_, _, _ = m.engine.Stop()
	}
	_ = m.pair.Close()
	m.coins.Reset()
	m.cup.Reset()

	m.creditML = 0
	m.latch = false
	m.sessionID = ""
	m.state = StateIdle
	m.countdownLeft = 0
	m.lastActivity = now
	m.emit(EventSystemReset)
}

// tickCoinCal 推进投币签名校准
//
// 每个面额等一串脉冲，静默即记录；超时未投币则保留旧签名。
func (m *Machine) tickCoinCal(now time.Time) {
	peso := calPesos[m.calStep]

	n := m.coins.Count()
	if n > 0 && now.Sub(m.coins.LastEdge()) >= m.cfg.Vending.CoinQuietTime {
		m.coins.Reset()
		m.calPending[m.calStep] = n
		m.emit(fmt.Sprintf("%s %d %d", EventCalCoin, peso, n))
		m.advanceCal(now)
		return
	}

	if n == 0 && now.Sub(m.calStepStart) >= m.cfg.Vending.Calibration.CoinWaitTimeout {
		m.emit(fmt.Sprintf("%s %d", EventCalTimeout, peso))
		m.advanceCal(now)
	}
}

var calPesos = [3]int{1, 5, 10}

// advanceCal 进入下一个校准步骤，走完则持久化
func (m *Machine) advanceCal(now time.Time) {
	m.calStep++
	if m.calStep < len(calPesos) {
		m.coins.Reset()
		m.calStepStart = now
		m.emit(fmt.Sprintf("%s %d", EventCalPrompt, calPesos[m.calStep]))
		return
	}

	if m.calPending[0] > 0 {
		m.cal.Coin1Pulses = m.calPending[0]
	}
	if m.calPending[1] > 0 {
		m.cal.Coin5Pulses = m.calPending[1]
	}
	if m.calPending[2] > 0 {
		m.cal.Coin10Pulses = m.calPending[2]
	}

	if err := m.cal.SaveCoinSignatures(m.ctx, m.store); err != nil {
		m.log.Error("投币签名持久化失败", zap.Error(err))
		m.emitError("校准保存失败")
	}
	m.classifier.SetSignatures(m.cal, &m.cfg.Vending.Coins)
	m.journal.CalibrationSaved("coin", m.cal)

	m.emit(fmt.Sprintf("%s 1=%d 5=%d 10=%d", EventCalDone,
		m.cal.Coin1Pulses, m.cal.Coin5Pulses, m.cal.Coin10Pulses))
	m.state = StateIdle
	m.lastActivity = now
}
