package models

import "time"

// CalibrationRecord 校准历史表
//
// 当前生效的校准值保存在定值存储中（见 storage 包），
// 这里只记录每次校准动作的审计流水。
type CalibrationRecord struct {
	BaseModel
	DeviceID       string    `gorm:"size:100;index" json:"device_id"`
	Kind           string    `gorm:"size:20;not null;index" json:"kind"` // coin, flow
	Coin1Pulses    int       `json:"coin1_pulses"`
	Coin5Pulses    int       `json:"coin5_pulses"`
	Coin10Pulses   int       `json:"coin10_pulses"`
	PulsesPerLiter float64   `json:"pulses_per_liter"`
	PerformedAt    time.Time `json:"performed_at"`
}
