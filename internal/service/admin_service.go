package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/pkg/storage"
	"github.com/qs3c/qrcode_go_server/internal/plan"
	"github.com/qs3c/qrcode_go_server/internal/repository"
)

const statsHours = 24

var ErrDeleteSelf = errors.New("不能删除当前登录的管理员账号")

type AdminService struct {
	db         *gorm.DB
	userRepo   *repository.UserRepository
	qrcodeRepo *repository.QRCodeRepository
	statsRepo  *repository.StatsRepository
	statsCache *repository.StatsCache
	qrcodes    *QRCodeService
	quota      *QuotaService
	store      *storage.LocalStore
	catalog    *plan.Catalog
	dbFile     string
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewAdminService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	qrcodeRepo *repository.QRCodeRepository,
	statsRepo *repository.StatsRepository,
	statsCache *repository.StatsCache,
	qrcodes *QRCodeService,
	quota *QuotaService,
	store *storage.LocalStore,
	catalog *plan.Catalog,
	dbFile string,
	m *metrics.Metrics,
) *AdminService {
	return &AdminService{
		db:         db,
		userRepo:   userRepo,
		qrcodeRepo: qrcodeRepo,
		statsRepo:  statsRepo,
		statsCache: statsCache,
		qrcodes:    qrcodes,
		quota:      quota,
		store:      store,
		catalog:    catalog,
		dbFile:     dbFile,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock 替换时间来源
func (s *AdminService) SetClock(now func() time.Time) {
	s.now = now
}

// PromoteBootstrapAdmins 启动时将配置中的用户名设为管理员
func (s *AdminService) PromoteBootstrapAdmins(usernames []string) (int64, error) {
	var names []string
	for _, n := range usernames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return 0, nil
	}
	return s.userRepo.PromoteAdmins(names)
}

// ListUsers 所有用户及其二维码数量
func (s *AdminService) ListUsers() (*dto.AdminUserListResponse, error) {
	users, err := s.userRepo.List()
	if err != nil {
		return nil, err
	}
	counts, err := s.qrcodeRepo.CountByUsers()
	if err != nil {
		return nil, err
	}

	resp := &dto.AdminUserListResponse{Users: make([]*dto.AdminUserInfo, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, &dto.AdminUserInfo{
			UserInfo:    *buildUserInfo(u),
			QRCodeCount: counts[u.ID],
		})
		resp.TotalQRCodes += counts[u.ID]
	}
	return resp, nil
}

// UpdateUser 管理员编辑用户，套餐变化后执行配额检查
func (s *AdminService) UpdateUser(ctx context.Context, userID int64, req *dto.AdminUpdateUserRequest) (*dto.AdminUserInfo, error) {
	user, err := s.getUser(userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username != user.Username {
			exists, err := s.userRepo.ExistsByUsernameExcept(username, user.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, ErrUsernameExists
			}
			user.Username = username
		}
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != user.Email {
			exists, err := s.userRepo.ExistsByEmailExcept(email, user.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, ErrEmailExists
			}
			user.Email = email
		}
	}
	if req.Plan != nil {
		if !s.catalog.Known(*req.Plan) {
			return nil, ErrUnknownPlan
		}
		user.Plan = *req.Plan
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.UpgradeMethod != nil {
		user.UpgradeMethod = strings.TrimSpace(*req.UpgradeMethod)
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	if _, err := s.quota.Enforce(ctx, user); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)

	count, err := s.qrcodeRepo.CountByUser(user.ID)
	if err != nil {
		return nil, err
	}
	return &dto.AdminUserInfo{UserInfo: *buildUserInfo(user), QRCodeCount: count}, nil
}

// DeleteUser 删除用户及其全部二维码，付款流水保留
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return ErrDeleteSelf
	}
	user, err := s.getUser(userID)
	if err != nil {
		return err
	}

	codes, err := s.qrcodeRepo.ListByUser(user.ID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.qrcodeRepo.WithTx(tx).DeleteByUser(user.ID); err != nil {
			return err
		}
		return s.userRepo.WithTx(tx).Delete(user.ID)
	})
	if err != nil {
		return err
	}

	for _, code := range codes {
		s.store.Remove(code.Paths()...)
	}
	if err := os.Remove(s.store.UserDir(user.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("user_id", user.ID).Debug("User dir not removed")
	}

	s.metrics.AddQRCodesDeleted("account", len(codes))
	log.WithFields(log.Fields{
		"user_id":  user.ID,
		"username": user.Username,
		"qrcodes":  len(codes),
		"actor_id": actorID,
	}).Info("User deleted by admin")

	s.invalidateStats(ctx)
	return nil
}

// ListUserCodes 指定用户的二维码
func (s *AdminService) ListUserCodes(userID int64) ([]*dto.QRCodeInfo, error) {
	if _, err := s.getUser(userID); err != nil {
		return nil, err
	}
	codes, err := s.qrcodeRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.QRCodeInfo, 0, len(codes))
	for _, code := range codes {
		items = append(items, s.qrcodes.ToInfo(code))
	}
	return items, nil
}

// DeleteCode 管理员删除二维码，不受保留期限制
func (s *AdminService) DeleteCode(ctx context.Context, publicID string) error {
	code, err := s.qrcodeRepo.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQRCodeNotFound
		}
		return err
	}
	if err := s.qrcodes.Remove(code, "admin"); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

// Stats 最近 24 小时按小时统计以及本月和累计数据
func (s *AdminService) Stats(ctx context.Context) (*dto.AdminStats, error) {
	if s.statsCache != nil {
		cached, err := s.statsCache.Get(ctx)
		if err != nil {
			log.WithError(err).Warn("Failed to read stats cache")
		} else if cached != nil {
			return cached, nil
		}
	}

	now := s.now()
	stats := &dto.AdminStats{
		Hourly:      make([]dto.HourlyBucket, 0, statsHours),
		GeneratedAt: formatTime(now),
	}

	first := now.Truncate(time.Hour).Add(-(statsHours - 1) * time.Hour)
	for i := 0; i < statsHours; i++ {
		start := first.Add(time.Duration(i) * time.Hour)
		end := start.Add(time.Hour)
		users, err := s.statsRepo.CountUsersBetween(start, end)
		if err != nil {
			return nil, err
		}
		codes, err := s.statsRepo.CountQRCodesBetween(start, end)
		if err != nil {
			return nil, err
		}
		stats.Hourly = append(stats.Hourly, dto.HourlyBucket{
			Hour:    formatTime(start),
			Users:   users,
			QRCodes: codes,
		})
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var err error
	if stats.RevenueThisMonth, err = s.statsRepo.SumRevenueSince(monthStart); err != nil {
		return nil, err
	}
	if stats.MonthlySubsThisMonth, err = s.statsRepo.CountPaymentsSince(string(plan.PeriodMonth), monthStart); err != nil {
		return nil, err
	}
	if stats.YearlySubsThisMonth, err = s.statsRepo.CountPaymentsSince(string(plan.PeriodYear), monthStart); err != nil {
		return nil, err
	}
	if stats.TotalUsers, err = s.statsRepo.CountUsers(); err != nil {
		return nil, err
	}
	if stats.TotalQRCodes, err = s.statsRepo.CountQRCodes(); err != nil {
		return nil, err
	}
	if stats.TotalRevenue, err = s.statsRepo.SumRevenue(); err != nil {
		return nil, err
	}
	if stats.ActiveSubscriptions, err = s.statsRepo.CountActiveSubscriptions(s.catalog.Lowest(), now); err != nil {
		return nil, err
	}
	if stats.PlanCounts, err = s.statsRepo.PlanCounts(); err != nil {
		return nil, err
	}

	if s.statsCache != nil {
		if err := s.statsCache.Set(ctx, stats); err != nil {
			log.WithError(err).Warn("Failed to write stats cache")
		}
	}
	return stats, nil
}

// Permissions 存储目录、用户目录和数据库文件的读写权限
func (s *AdminService) Permissions() []dto.PathPermission {
	paths := []string{s.store.Root()}
	dirs, err := s.store.UserDirs()
	if err != nil {
		log.WithError(err).Warn("Failed to list user dirs")
	}
	paths = append(paths, dirs...)
	if s.dbFile != "" {
		paths = append(paths, s.dbFile)
	}

	report := make([]dto.PathPermission, 0, len(paths))
	for _, p := range paths {
		report = append(report, CheckPath(p))
	}
	return report
}

// CheckPath 使用 access(2) 检查当前进程对路径的读写权限
func CheckPath(path string) dto.PathPermission {
	perm := dto.PathPermission{Path: path}
	if _, err := os.Stat(path); err != nil {
		return perm
	}
	perm.Exists = true
	perm.Readable = unix.Access(path, unix.R_OK) == nil
	perm.Writable = unix.Access(path, unix.W_OK) == nil
	return perm
}

func (s *AdminService) getUser(userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AdminService) invalidateStats(ctx context.Context) {
	if s.statsCache == nil {
		return
	}
	if err := s.statsCache.Invalidate(ctx); err != nil {
		log.WithError(err).Warn("Failed to invalidate stats cache")
	}
}
