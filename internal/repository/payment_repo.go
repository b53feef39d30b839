package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

// Append 追加一条付款流水
func (r *PaymentRepository) Append(payment *model.Payment) error {
	return r.db.Create(payment).Error
}

// GetLatestByUser 用户最近一笔付款
func (r *PaymentRepository) GetLatestByUser(userID int64) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) ListByUser(userID int64) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&payments).Error
	return payments, err
}
