package model

import (
	"time"
)

// Payment 付款流水，只追加不修改
type Payment struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	Plan      string    `gorm:"size:20" json:"plan"`
	Amount    int64     `gorm:"not null" json:"amount"` // 分
	Period    string    `gorm:"size:10;not null;index" json:"period"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Payment) TableName() string {
	return "payments"
}
