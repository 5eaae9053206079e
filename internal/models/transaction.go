package models

import "time"

// CoinEvent 投币流水表
type CoinEvent struct {
	BaseModel
	DeviceID string    `gorm:"size:100;index" json:"device_id"`
	Peso     int       `gorm:"not null" json:"peso"`               // 面额（比索）
	Pulses   int       `gorm:"not null" json:"pulses"`             // 识别到的脉冲数
	CreditML int       `json:"credit_ml"`                          // 兑换毫升数（WATER模式）
	Mode     string    `gorm:"size:20;not null;index" json:"mode"` // water, charge
	Accepted bool      `gorm:"index" json:"accepted"`              // 是否匹配到面额
	SeenAt   time.Time `gorm:"index" json:"seen_at"`
}

// DispenseSession 出水会话表
type DispenseSession struct {
	BaseModel
	SessionID    string     `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	DeviceID     string     `gorm:"size:100;index" json:"device_id"`
	TargetML     int        `gorm:"not null" json:"target_ml"`          // 会话开始时的余额
	DispensedML  float64    `json:"dispensed_ml"`                       // 实际出水量
	RefundedML   float64    `json:"refunded_ml"`                        // 提前停止时的退还量
	TargetPulses int64      `json:"target_pulses"`                      // 目标流量脉冲数
	FlowPulses   int64      `json:"flow_pulses"`                        // 实际流量脉冲数
	Trigger      string     `gorm:"size:20" json:"trigger"`             // cup, manual
	Status       string     `gorm:"size:20;default:'active';index" json:"status"` // active, done, stopped
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// IsOpen 会话是否仍在进行
func (s *DispenseSession) IsOpen() bool {
	return s.Status == "active"
}
