package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/internal/model"
)

type QRCodeRepository struct {
	db *gorm.DB
}

func NewQRCodeRepository(db *gorm.DB) *QRCodeRepository {
	return &QRCodeRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *QRCodeRepository) WithTx(tx *gorm.DB) *QRCodeRepository {
	return &QRCodeRepository{db: tx}
}

func (r *QRCodeRepository) Create(code *model.QRCode) error {
	return r.db.Create(code).Error
}

func (r *QRCodeRepository) GetByPublicID(publicID string) (*model.QRCode, error) {
	var code model.QRCode
	err := r.db.Where("public_id = ?", publicID).First(&code).Error
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *QRCodeRepository) ExistsByPublicID(publicID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.QRCode{}).Where("public_id = ?", publicID).Count(&count).Error
	return count > 0, err
}

// ListByUserOldestFirst 按创建顺序列出用户的二维码，时间相同时按主键
func (r *QRCodeRepository) ListByUserOldestFirst(userID int64) ([]*model.QRCode, error) {
	var codes []*model.QRCode
	err := r.db.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&codes).Error
	return codes, err
}

// ListByUser 按创建时间倒序列出用户的二维码
func (r *QRCodeRepository) ListByUser(userID int64) ([]*model.QRCode, error) {
	var codes []*model.QRCode
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&codes).Error
	return codes, err
}

// ListAll 遍历所有二维码（一致性清理使用）
func (r *QRCodeRepository) ListAll() ([]*model.QRCode, error) {
	var codes []*model.QRCode
	err := r.db.Order("id ASC").Find(&codes).Error
	return codes, err
}

func (r *QRCodeRepository) Update(code *model.QRCode) error {
	return r.db.Save(code).Error
}

func (r *QRCodeRepository) Delete(id int64) error {
	return r.db.Delete(&model.QRCode{}, id).Error
}

func (r *QRCodeRepository) DeleteByUser(userID int64) error {
	return r.db.Where("user_id = ?", userID).Delete(&model.QRCode{}).Error
}

func (r *QRCodeRepository) CountByUser(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.QRCode{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// CountByUsers 批量统计各用户的二维码数量
func (r *QRCodeRepository) CountByUsers() (map[int64]int64, error) {
	var rows []struct {
		UserID int64
		Total  int64
	}
	err := r.db.Model(&model.QRCode{}).
		Select("user_id, COUNT(*) AS total").
		Where("user_id IS NOT NULL").
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Total
	}
	return counts, nil
}
