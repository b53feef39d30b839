package service

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/pkg/storage"
	"github.com/qs3c/qrcode_go_server/internal/plan"
	"github.com/qs3c/qrcode_go_server/internal/repository"
)

var ErrQuotaExceeded = errors.New("二维码数量已达到当前套餐上限")

type QuotaService struct {
	qrcodeRepo *repository.QRCodeRepository
	store      *storage.LocalStore
	catalog    *plan.Catalog
	metrics    *metrics.Metrics
}

func NewQuotaService(
	qrcodeRepo *repository.QRCodeRepository,
	store *storage.LocalStore,
	catalog *plan.Catalog,
	m *metrics.Metrics,
) *QuotaService {
	return &QuotaService{
		qrcodeRepo: qrcodeRepo,
		store:      store,
		catalog:    catalog,
		metrics:    m,
	}
}

// Enforce 超出套餐上限时从最早的二维码开始删除，返回删除数量
func (s *QuotaService) Enforce(ctx context.Context, user *model.User) (int, error) {
	limit, unlimited := s.catalog.Limit(user.Plan)
	if unlimited {
		return 0, nil
	}

	codes, err := s.qrcodeRepo.ListByUserOldestFirst(user.ID)
	if err != nil {
		return 0, err
	}

	excess := len(codes) - limit
	if excess <= 0 {
		return 0, nil
	}

	removed := 0
	for _, code := range codes[:excess] {
		s.store.Remove(code.Paths()...)
		if err := s.qrcodeRepo.Delete(code.ID); err != nil {
			s.metrics.AddQRCodesDeleted("quota", removed)
			return removed, err
		}
		removed++
	}

	s.metrics.AddQRCodesDeleted("quota", removed)
	log.WithFields(log.Fields{
		"user_id": user.ID,
		"plan":    user.Plan,
		"limit":   limit,
		"removed": removed,
	}).Info("Purged qr codes over plan limit")

	return removed, nil
}

// CheckCreate 创建前检查是否还有剩余数量
func (s *QuotaService) CheckCreate(user *model.User) error {
	limit, unlimited := s.catalog.Limit(user.Plan)
	if unlimited {
		return nil
	}

	count, err := s.qrcodeRepo.CountByUser(user.ID)
	if err != nil {
		return err
	}
	if count >= int64(limit) {
		return ErrQuotaExceeded
	}
	return nil
}

// GetQuotaInfo 获取用户配额信息
func (s *QuotaService) GetQuotaInfo(user *model.User) (*dto.QuotaInfo, error) {
	count, err := s.qrcodeRepo.CountByUser(user.ID)
	if err != nil {
		return nil, err
	}
	return s.buildQuotaInfo(user.Plan, count), nil
}

func (s *QuotaService) buildQuotaInfo(planName string, used int64) *dto.QuotaInfo {
	limit, unlimited := s.catalog.Limit(planName)
	info := &dto.QuotaInfo{
		Plan:      planName,
		Limit:     limit,
		Used:      used,
		Unlimited: unlimited,
	}
	if unlimited {
		info.Limit = -1
		info.Remaining = -1
		return info
	}

	remaining := int64(limit) - used
	if remaining < 0 {
		remaining = 0
	}
	info.Remaining = remaining
	return info
}
