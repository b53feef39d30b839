package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/pkg/publicid"
	"github.com/qs3c/qrcode_go_server/internal/pkg/qrrender"
	"github.com/qs3c/qrcode_go_server/internal/pkg/storage"
	"github.com/qs3c/qrcode_go_server/internal/plan"
	"github.com/qs3c/qrcode_go_server/internal/repository"
)

const publicIDAttempts = 5

var (
	ErrQRCodeNotFound    = errors.New("二维码不存在")
	ErrQRCodePermission  = errors.New("无权操作该二维码")
	ErrDeleteTooEarly    = errors.New("二维码创建未满保留期，暂不能删除")
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
	ErrInvalidStyle      = errors.New("颜色或样式无效")
	ErrArtifactMissing   = errors.New("二维码文件不存在")
	ErrPublicIDExhausted = errors.New("无法生成唯一的二维码 ID")
)

// ArtifactFile 可下载的二维码文件
type ArtifactFile struct {
	Path        string
	Filename    string
	ContentType string
}

type QRCodeService struct {
	db         *gorm.DB
	qrcodeRepo *repository.QRCodeRepository
	quota      *QuotaService
	store      *storage.LocalStore
	renderer   *qrrender.Renderer
	catalog    *plan.Catalog
	publicURL  string
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewQRCodeService(
	db *gorm.DB,
	qrcodeRepo *repository.QRCodeRepository,
	quota *QuotaService,
	store *storage.LocalStore,
	renderer *qrrender.Renderer,
	catalog *plan.Catalog,
	publicURL string,
	m *metrics.Metrics,
) *QRCodeService {
	return &QRCodeService{
		db:         db,
		qrcodeRepo: qrcodeRepo,
		quota:      quota,
		store:      store,
		renderer:   renderer,
		catalog:    catalog,
		publicURL:  strings.TrimRight(publicURL, "/"),
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock 替换时间来源
func (s *QRCodeService) SetClock(now func() time.Time) {
	s.now = now
}

// Link 二维码中编码的公开访问地址
func (s *QRCodeService) Link(publicID string) string {
	return s.publicURL + "/qr/" + publicID
}

// Create 生成二维码；文件写入失败时回滚记录
func (s *QRCodeService) Create(ctx context.Context, user *model.User, req *dto.CreateQRCodeRequest) (*dto.QRCodeInfo, error) {
	payload, err := BuildPayload(req)
	if err != nil {
		return nil, err
	}

	style, err := qrrender.ParseStyle(req.Color, req.Background, req.Style, req.Gradient, req.GradientColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStyle, err)
	}

	if err := s.quota.CheckCreate(user); err != nil {
		return nil, err
	}

	publicID, err := s.newPublicID()
	if err != nil {
		return nil, err
	}

	artifacts, err := s.renderer.Render(s.Link(publicID), style)
	if err != nil {
		return nil, err
	}

	dataType := req.DataType
	if dataType == "" {
		dataType = model.DataTypeURL
	}
	userID := user.ID
	code := &model.QRCode{
		PublicID:    &publicID,
		UserID:      &userID,
		Payload:     payload,
		DataType:    dataType,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   s.now(),
	}

	var saved storage.Paths
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.qrcodeRepo.WithTx(tx)
		if err := repo.Create(code); err != nil {
			return err
		}

		paths, err := s.store.Save(user.ID, publicID, &storage.Files{
			PNG: artifacts.PNG,
			JPG: artifacts.JPG,
			SVG: artifacts.SVG,
		})
		if err != nil {
			return err
		}
		saved = paths

		code.PNGPath = paths.PNG
		code.JPGPath = paths.JPG
		code.SVGPath = paths.SVG
		return repo.Update(code)
	})
	if err != nil {
		if saved.PNG != "" {
			s.store.Remove(saved.All()...)
		}
		log.WithError(err).WithFields(log.Fields{
			"user_id":   user.ID,
			"public_id": publicID,
		}).Error("Failed to create qr code")
		return nil, err
	}

	s.metrics.IncQRCodesCreated()
	return s.toInfo(code), nil
}

// List 当前用户的二维码，最新的在前
func (s *QRCodeService) List(user *model.User) (*dto.QRCodeListResponse, error) {
	codes, err := s.qrcodeRepo.ListByUser(user.ID)
	if err != nil {
		return nil, err
	}

	resp := &dto.QRCodeListResponse{
		Items: make([]*dto.QRCodeInfo, 0, len(codes)),
		Quota: s.quota.buildQuotaInfo(user.Plan, int64(len(codes))),
	}
	for _, code := range codes {
		resp.Items = append(resp.Items, s.toInfo(code))
	}
	return resp, nil
}

// PublicView 扫码后展示的内容
func (s *QRCodeService) PublicView(publicID string) (*dto.QRCodePublicView, error) {
	code, err := s.get(publicID)
	if err != nil {
		return nil, err
	}

	view := &dto.QRCodePublicView{
		PublicID:    code.PublicIDValue(),
		DataType:    code.DataType,
		Payload:     code.Payload,
		Description: code.Description,
	}
	if code.DataType == model.DataTypeContact {
		view.Contact = ParseContact(code.Payload)
	}
	return view, nil
}

// Preview 公开的 PNG 预览
func (s *QRCodeService) Preview(publicID string) (*ArtifactFile, error) {
	code, err := s.get(publicID)
	if err != nil {
		return nil, err
	}
	return s.artifact(code, storage.ExtPNG)
}

// Download 下载指定格式，仅限所有者
func (s *QRCodeService) Download(user *model.User, publicID, format string) (*ArtifactFile, error) {
	code, err := s.get(publicID)
	if err != nil {
		return nil, err
	}
	if !code.OwnedBy(user.ID) {
		return nil, ErrQRCodePermission
	}

	switch strings.ToLower(format) {
	case "png":
		return s.artifact(code, storage.ExtPNG)
	case "jpg", "jpeg":
		return s.artifact(code, storage.ExtJPG)
	case "svg":
		return s.artifact(code, storage.ExtSVG)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Delete 所有者删除，需满足最短保留期
func (s *QRCodeService) Delete(ctx context.Context, user *model.User, publicID string) error {
	code, err := s.get(publicID)
	if err != nil {
		return err
	}
	if !code.OwnedBy(user.ID) {
		return ErrQRCodePermission
	}
	if s.now().Sub(code.CreatedAt) < s.catalog.DeleteRetention() {
		return ErrDeleteTooEarly
	}
	return s.Remove(code, "owner")
}

// Remove 删除文件和记录，不检查保留期
func (s *QRCodeService) Remove(code *model.QRCode, reason string) error {
	s.store.Remove(code.Paths()...)
	if err := s.qrcodeRepo.Delete(code.ID); err != nil {
		return err
	}
	s.metrics.AddQRCodesDeleted(reason, 1)
	return nil
}

// ToInfo 转换为接口返回结构
func (s *QRCodeService) ToInfo(code *model.QRCode) *dto.QRCodeInfo {
	return s.toInfo(code)
}

func (s *QRCodeService) get(publicID string) (*model.QRCode, error) {
	code, err := s.qrcodeRepo.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQRCodeNotFound
		}
		return nil, err
	}
	return code, nil
}

func (s *QRCodeService) artifact(code *model.QRCode, ext string) (*ArtifactFile, error) {
	var path string
	switch ext {
	case storage.ExtPNG:
		path = code.PNGPath
	case storage.ExtJPG:
		path = code.JPGPath
	case storage.ExtSVG:
		path = code.SVGPath
	}
	if !s.store.AllExist(path) {
		return nil, ErrArtifactMissing
	}
	return &ArtifactFile{
		Path:        path,
		Filename:    "qrcode-" + code.PublicIDValue() + ext,
		ContentType: storage.ContentType(path),
	}, nil
}

func (s *QRCodeService) newPublicID() (string, error) {
	for i := 0; i < publicIDAttempts; i++ {
		id, err := publicid.New(s.catalog.PublicIDLength())
		if err != nil {
			return "", err
		}
		exists, err := s.qrcodeRepo.ExistsByPublicID(id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", ErrPublicIDExhausted
}

func (s *QRCodeService) toInfo(code *model.QRCode) *dto.QRCodeInfo {
	publicID := code.PublicIDValue()
	info := &dto.QRCodeInfo{
		PublicID:    publicID,
		DataType:    code.DataType,
		Payload:     code.Payload,
		Description: code.Description,
		Link:        s.Link(publicID),
		CreatedAt:   formatTime(code.CreatedAt),
		DeletableAt: formatTime(code.CreatedAt.Add(s.catalog.DeleteRetention())),
	}

	if url := s.store.MirrorURL(code.PNGPath); url != "" {
		info.MirrorURLs = map[string]string{
			"png": url,
			"jpg": s.store.MirrorURL(code.JPGPath),
			"svg": s.store.MirrorURL(code.SVGPath),
		}
	}
	return info
}
