package model

import (
	"time"
)

const (
	DataTypeURL     = "url"
	DataTypeText    = "text"
	DataTypeEmail   = "email"
	DataTypePhone   = "phone"
	DataTypeSMS     = "sms"
	DataTypeContact = "contact"
)

type QRCode struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	PublicID    *string   `gorm:"size:32;uniqueIndex" json:"public_id"`
	UserID      *int64    `gorm:"index" json:"user_id,omitempty"`
	Payload     string    `gorm:"type:text;not null" json:"payload"`
	DataType    string    `gorm:"size:20;default:url" json:"data_type"`
	Description string    `gorm:"size:200" json:"description"`
	PNGPath     string    `gorm:"column:png_path;size:300" json:"-"`
	JPGPath     string    `gorm:"column:jpg_path;size:300" json:"-"`
	SVGPath     string    `gorm:"column:svg_path;size:300" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (QRCode) TableName() string {
	return "qr_codes"
}

// Paths 三个文件路径
func (q *QRCode) Paths() []string {
	return []string{q.PNGPath, q.JPGPath, q.SVGPath}
}

// PublicIDValue 公开 ID，未回填时为空串
func (q *QRCode) PublicIDValue() string {
	if q.PublicID == nil {
		return ""
	}
	return *q.PublicID
}

// OwnedBy 是否属于指定用户
func (q *QRCode) OwnedBy(userID int64) bool {
	return q.UserID != nil && *q.UserID == userID
}
