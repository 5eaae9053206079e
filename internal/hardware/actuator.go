package hardware

import (
	"github.com/wfunc/water-vendor/internal/logger"
	"go.uber.org/zap"
)

// ActuatorPair 泵+电磁阀组合
//
// 出水通路需要两者同时打开；任何一个失败都立即把两者都关掉，
// 绝不允许半开状态。
type ActuatorPair struct {
	Pump  Actuator
	Valve Actuator
}

// Open 打开出水通路
func (p *ActuatorPair) Open() error {
	if err := p.Pump.On(); err != nil {
		_ = p.Pump.Off()
		return err
	}
	if err := p.Valve.On(); err != nil {
		_ = p.Pump.Off()
		_ = p.Valve.Off()
		return err
	}
	return nil
}

// Close 关闭出水通路
//
// 两个执行器都尝试关闭，返回第一个错误。
func (p *ActuatorPair) Close() error {
	errPump := p.Pump.Off()
	errValve := p.Valve.Off()
	if errPump != nil {
		logger.GetModuleLogger("hardware").Error("关泵失败", zap.Error(errPump))
		return errPump
	}
	if errValve != nil {
		logger.GetModuleLogger("hardware").Error("关阀失败", zap.Error(errValve))
		return errValve
	}
	return nil
}

// IsOpen 通路是否处于打开状态
func (p *ActuatorPair) IsOpen() bool {
	return p.Pump.IsOn() && p.Valve.IsOn()
}
