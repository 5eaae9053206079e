package models

// Operator 维护操作员表
type Operator struct {
	BaseModel
	Name    string `gorm:"uniqueIndex;size:50;not null" json:"name"`
	PINHash string `gorm:"size:255;not null" json:"-"` // argon2id散列
	Active  bool   `gorm:"default:true" json:"active"`
}
