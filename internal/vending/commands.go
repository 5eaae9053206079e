package vending

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/wfunc/water-vendor/internal/errors"
	"go.uber.org/zap"
)

// HandleCommand 处理上位机下发的一行命令
//
// 命令关键字大小写不敏感；未知命令回ERROR行，绝不静默丢弃。
func (m *Machine) HandleCommand(line string, now time.Time) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	m.lastActivity = now

	cmd := strings.ToUpper(fields[0])
	args := fields[1:]
	m.log.Debug("收到命令", zap.String("cmd", cmd), zap.Strings("args", args))

	switch cmd {
	case "MODE":
		m.cmdMode(args)
	case "START":
		m.cmdStart(now)
	case "STOP":
		m.cmdStop(now)
	case "ADD100":
		m.cmdAddCredit(100)
	case "ADD500":
		m.cmdAddCredit(500)
	case "STATUS":
		m.cmdStatus()
	case "RESET":
		m.resetAll(now)
	case "CAL":
		m.cmdCoinCal(args, now)
	case "FLOWCAL":
		m.cmdFlowCal(args, now)
	case "DONE":
		m.cmdFlowCalDone(now)
	default:
		m.emitError(fmt.Sprintf("未知命令 %s", cmd))
	}
}

// cmdMode 切换工作模式
func (m *Machine) cmdMode(args []string) {
	if len(args) != 1 {
		m.emitError("MODE需要参数 WATER|CHARGE")
		return
	}
	switch strings.ToUpper(args[0]) {
	case string(ModeWater):
		m.mode = ModeWater
	case string(ModeCharge):
		m.mode = ModeCharge
	default:
		m.emitError(fmt.Sprintf("无效模式 %s", args[0]))
		return
	}
	m.emit(fmt.Sprintf("%s %s", EventMode, m.mode))
	m.log.Info("模式切换", zap.String("mode", string(m.mode)))
}

// cmdStart 手动启动出水，跳过放杯和倒计时
func (m *Machine) cmdStart(now time.Time) {
	if m.mode != ModeWater {
		m.emitError("充电模式不能出水")
		return
	}
	if m.engine.Active() {
		m.emitError("已在出水中")
		return
	}
	if m.state != StateIdle {
		m.emitError("当前状态不能启动")
		return
	}
	if m.creditML <= 0 {
		m.emitError("水量余额为零")
		return
	}

	m.emit(EventManualStart)
	m.latch = true
	m.startDispense(now, "manual")
}

// cmdStop 手动终止出水，剩余水量退回余额
func (m *Machine) cmdStop(now time.Time) {
	if m.state != StateDispensing && m.state != StatePaused {
		m.emitError("没有进行中的出水")
		return
	}
	m.emit(EventManualStop)
	m.settleEarly(now)
}

// cmdAddCredit 免投币加水量（调试/促销）
func (m *Machine) cmdAddCredit(ml int) {
	if m.mode != ModeWater {
		m.emitError("充电模式不能加水量")
		return
	}
	m.creditML += ml
	if m.state == StateIdle {
		m.latch = false
	}
	m.emit(fmt.Sprintf("%s %d", EventAddedCredit, m.creditML))
}

// cmdStatus 输出诊断状态行
func (m *Machine) cmdStatus() {
	m.emit(fmt.Sprintf("STATUS_MODE %s", m.mode))
	m.emit(fmt.Sprintf("STATUS_STATE %s", m.state))
	m.emit(fmt.Sprintf("STATUS_CREDIT_ML %d", m.creditML))
	m.emit(fmt.Sprintf("STATUS_DISPENSING %s", yesNo(m.engine.Active() && !m.engine.Paused())))
	m.emit(fmt.Sprintf("STATUS_FLOW_PULSES %d", m.engine.SessionPulses()))
	m.emit(fmt.Sprintf("STATUS_CUP %s", yesNo(m.cup.Present())))
	m.emit(fmt.Sprintf("STATUS_LATCH %s", yesNo(m.latch)))
	m.emit(fmt.Sprintf("STATUS_PPL %.1f", m.engine.PulsesPerLiter()))
}

// checkPIN 维护命令的操作员PIN校验
func (m *Machine) checkPIN(args []string) bool {
	if !m.cfg.Maintenance.RequirePIN {
		return true
	}
	if m.pins == nil {
		m.emitError("PIN未配置")
		return false
	}
	if len(args) < 1 {
		m.emitError("需要PIN")
		return false
	}
	if err := m.pins.VerifyPIN(args[0]); err != nil {
		if apperrors.GetCode(err) == apperrors.ErrPINNotSet {
			m.emitError("PIN未设置")
		} else {
			m.emitError("PIN错误")
		}
		return false
	}
	return true
}

// cmdCoinCal 进入投币签名校准
func (m *Machine) cmdCoinCal(args []string, now time.Time) {
	if !m.checkPIN(args) {
		return
	}
	if m.state != StateIdle {
		m.emitError("当前状态不能校准")
		return
	}

	m.calStep = 0
	m.calPending = [3]int{}
	m.coins.Reset()
	m.calStepStart = now
	m.state = StateCoinCal
	m.emit(fmt.Sprintf("%s %d", EventCalPrompt, calPesos[0]))
	m.log.Info("进入投币签名校准")
}

// cmdFlowCal 进入流量校准：打开通路，等DONE命令
func (m *Machine) cmdFlowCal(args []string, now time.Time) {
	if !m.checkPIN(args) {
		return
	}
	if m.state != StateIdle {
		m.emitError("当前状态不能校准")
		return
	}

	m.flow.Reset()
	if err := m.pair.Open(); err != nil {
		m.emitError("打开出水通路失败")
		return
	}
	m.state = StateFlowCal
	m.emit(EventFlowCalStart)
	m.log.Info("进入流量校准")
}

// cmdFlowCalDone 结束流量校准，观测值作为新流量系数
func (m *Machine) cmdFlowCalDone(now time.Time) {
	if m.state != StateFlowCal {
		m.emitError("不在流量校准中")
		return
	}

	_ = m.pair.Close()
	observed := m.flow.Count()
	m.state = StateIdle
	m.lastActivity = now

	if observed < 1 {
		m.emitError("校准期间没有流量脉冲")
		m.log.Warn("流量校准失败，保留旧系数")
		return
	}

	// 保存原始观测值，合理性校验在下次加载时做
	m.cal.PulsesPerLiter = float64(observed)
	if err := m.cal.SaveFlowFactor(m.ctx, m.store); err != nil {
		m.log.Error("流量系数持久化失败", zap.Error(err))
		m.emitError("校准保存失败")
	}
	m.engine.SetPulsesPerLiter(m.cal.PulsesPerLiter)
	m.journal.CalibrationSaved("flow", m.cal)

	m.emit(fmt.Sprintf("%s %.0f", EventFlowCalDone, m.cal.PulsesPerLiter))
	m.log.Info("流量校准完成", zap.Float64("pulses_per_liter", m.cal.PulsesPerLiter))
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
