package service

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/repository"
)

type UserService struct {
	userRepo     *repository.UserRepository
	quotaService *QuotaService
}

func NewUserService(userRepo *repository.UserRepository, quotaService *QuotaService) *UserService {
	return &UserService{
		userRepo:     userRepo,
		quotaService: quotaService,
	}
}

// GetProfile 获取用户详情
func (s *UserService) GetProfile(user *model.User) (*dto.UserInfo, error) {
	return s.buildUserInfoWithQuota(user)
}

// UpdateProfile 更新用户信息
func (s *UserService) UpdateProfile(userID int64, req *dto.UpdateProfileRequest) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// 检查用户名是否已被占用
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

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}

	if req.Password != nil && *req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hashed)
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	return s.buildUserInfoWithQuota(user)
}

func (s *UserService) buildUserInfoWithQuota(user *model.User) (*dto.UserInfo, error) {
	info := buildUserInfo(user)

	quota, err := s.quotaService.GetQuotaInfo(user)
	if err != nil {
		return nil, err
	}
	info.QuotaInfo = quota

	return info, nil
}
