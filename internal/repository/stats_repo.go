package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/internal/model"
)

// StatsRepository 管理后台只读聚合查询
type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// CountUsersBetween [start, end) 区间内注册的用户数
func (r *StatsRepository) CountUsersBetween(start, end time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	return count, err
}

// CountQRCodesBetween [start, end) 区间内生成的二维码数
func (r *StatsRepository) CountQRCodesBetween(start, end time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.QRCode{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	return count, err
}

// SumRevenueSince since 之后的收入（分）
func (r *StatsRepository) SumRevenueSince(since time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&model.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("created_at >= ?", since).
		Scan(&total).Error
	return total, err
}

// SumRevenue 总收入（分）
func (r *StatsRepository) SumRevenue() (int64, error) {
	var total int64
	err := r.db.Model(&model.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// CountPaymentsSince since 之后指定周期的付款笔数
func (r *StatsRepository) CountPaymentsSince(period string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.Payment{}).
		Where("period = ? AND created_at >= ?", period, since).
		Count(&count).Error
	return count, err
}

func (r *StatsRepository) CountUsers() (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).Count(&count).Error
	return count, err
}

func (r *StatsRepository) CountQRCodes() (int64, error) {
	var count int64
	err := r.db.Model(&model.QRCode{}).Count(&count).Error
	return count, err
}

// CountActiveSubscriptions 非最低等级、未取消且未到期的用户数
func (r *StatsRepository) CountActiveSubscriptions(lowestTier string, now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).
		Where("plan <> ? AND plan_cancelled = ? AND plan_expires_at > ?", lowestTier, false, now).
		Count(&count).Error
	return count, err
}

// PlanCounts 各套餐用户数
func (r *StatsRepository) PlanCounts() (map[string]int64, error) {
	var rows []struct {
		Plan  string
		Total int64
	}
	err := r.db.Model(&model.User{}).
		Select("plan, COUNT(*) AS total").
		Group("plan").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Plan] = row.Total
	}
	return counts, nil
}
