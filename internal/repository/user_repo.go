package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List 按注册时间倒序列出所有用户
func (r *UserRepository) List() ([]*model.User, error) {
	var users []*model.User
	err := r.db.Order("created_at DESC, id DESC").Find(&users).Error
	return users, err
}

func (r *UserRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) Delete(id int64) error {
	return r.db.Delete(&model.User{}, id).Error
}

// PromoteAdmins 按用户名授予管理员权限，返回受影响行数
func (r *UserRepository) PromoteAdmins(usernames []string) (int64, error) {
	if len(usernames) == 0 {
		return 0, nil
	}
	res := r.db.Model(&model.User{}).
		Where("username IN ? AND is_admin = ?", usernames, false).
		Update("is_admin", true)
	return res.RowsAffected, res.Error
}

func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// ExistsByEmailExcept 排除指定用户后邮箱是否已被使用
func (r *UserRepository) ExistsByEmailExcept(email string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("email = ? AND id <> ?", email, excludeID).Count(&count).Error
	return count > 0, err
}

// ExistsByUsernameExcept 排除指定用户后用户名是否已被使用
func (r *UserRepository) ExistsByUsernameExcept(username string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("username = ? AND id <> ?", username, excludeID).Count(&count).Error
	return count > 0, err
}
