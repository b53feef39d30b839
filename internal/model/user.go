package model

import (
	"time"
)

type User struct {
	ID                   int64      `gorm:"primaryKey" json:"id"`
	Username             string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Name                 string     `gorm:"size:150" json:"name"`
	Email                string     `gorm:"size:150;uniqueIndex;not null" json:"email"`
	PasswordHash         string     `gorm:"column:password;size:255;not null" json:"-"`
	Plan                 string     `gorm:"size:20;default:basic" json:"plan"`
	UpgradeMethod        string     `gorm:"size:50" json:"upgrade_method"`
	PaypalSubscriptionID *string    `gorm:"size:100" json:"-"`
	StripeSubscriptionID *string    `gorm:"size:100" json:"-"`
	PlanExpiresAt        *time.Time `json:"plan_expires_at,omitempty"`
	PlanCancelled        bool       `gorm:"default:false" json:"plan_cancelled"`
	IsAdmin              bool       `gorm:"default:false" json:"is_admin"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
