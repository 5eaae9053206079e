package vending

// Journal 业务流水记录
//
// 控制循环只管调用，落库失败不能影响出水流程，
// 实现方自行吞掉并记日志。
type Journal interface {
	CoinSeen(peso, pulses, creditML int, mode Mode, accepted bool)
	SessionStarted(sessionID string, targetML int, targetPulses int64, trigger string)
	SessionDone(sessionID string, dispensedML float64, pulses int64)
	SessionStopped(sessionID string, dispensedML, refundedML float64, pulses int64)
	CalibrationSaved(kind string, cal *Calibration)
}

// NopJournal 空实现（测试和无数据库运行用）
type NopJournal struct{}

// CoinSeen 空实现
func (NopJournal) CoinSeen(peso, pulses, creditML int, mode Mode, accepted bool) {}

// SessionStarted 空实现
func (NopJournal) SessionStarted(sessionID string, targetML int, targetPulses int64, trigger string) {}

// SessionDone 空实现
func (NopJournal) SessionDone(sessionID string, dispensedML float64, pulses int64) {}

// SessionStopped 空实现
func (NopJournal) SessionStopped(sessionID string, dispensedML, refundedML float64, pulses int64) {}

// CalibrationSaved 空实现
func (NopJournal) CalibrationSaved(kind string, cal *Calibration) {}

// PINVerifier 操作员PIN校验
type PINVerifier interface {
	VerifyPIN(pin string) error
}
