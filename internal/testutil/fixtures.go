package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/internal/model"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := nextSeq()
	user := &model.User{
		Username:     fmt.Sprintf("testuser_%d", n),
		Name:         "Test User",
		Email:        fmt.Sprintf("test_%d@example.com", n),
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuvwxyz123456", // bcrypt hash placeholder
		Plan:         "basic",
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithPasswordHash 设置密码哈希
func WithPasswordHash(hash string) func(*model.User) {
	return func(u *model.User) {
		u.PasswordHash = hash
	}
}

// WithPlan 设置套餐及到期时间
func WithPlan(plan string, expiresAt *time.Time) func(*model.User) {
	return func(u *model.User) {
		u.Plan = plan
		u.PlanExpiresAt = expiresAt
	}
}

// WithCancelled 设置为已取消
func WithCancelled() func(*model.User) {
	return func(u *model.User) {
		u.PlanCancelled = true
		u.UpgradeMethod = "cancelled"
	}
}

// WithStripeSubscription 设置 Stripe 订阅
func WithStripeSubscription(id string) func(*model.User) {
	return func(u *model.User) {
		u.StripeSubscriptionID = &id
	}
}

// WithPaypalSubscription 设置 PayPal 订阅
func WithPaypalSubscription(id string) func(*model.User) {
	return func(u *model.User) {
		u.PaypalSubscriptionID = &id
	}
}

// WithAdmin 设置为管理员
func WithAdmin() func(*model.User) {
	return func(u *model.User) {
		u.IsAdmin = true
	}
}

// WithCreatedAt 设置注册时间
func WithCreatedAt(at time.Time) func(*model.User) {
	return func(u *model.User) {
		u.CreatedAt = at
	}
}

// TestQRCode 创建测试二维码记录；root 非空时同时写入三个文件
func TestQRCode(t *testing.T, db *gorm.DB, userID int64, root string, opts ...func(*model.QRCode)) *model.QRCode {
	t.Helper()

	n := nextSeq()
	publicID := fmt.Sprintf("t%07d", n)
	code := &model.QRCode{
		PublicID: &publicID,
		UserID:   &userID,
		Payload:  fmt.Sprintf("https://example.com/%d", n),
		DataType: model.DataTypeURL,
	}
	if root != "" {
		dir := filepath.Join(root, fmt.Sprintf("%d", userID))
		code.PNGPath = filepath.Join(dir, publicID+".png")
		code.JPGPath = filepath.Join(dir, publicID+".jpg")
		code.SVGPath = filepath.Join(dir, publicID+".svg")
	}

	for _, opt := range opts {
		opt(code)
	}

	if root != "" {
		for _, p := range code.Paths() {
			WriteFile(t, p, "artifact")
		}
	}

	if err := db.Create(code).Error; err != nil {
		t.Fatalf("Failed to create test qr code: %v", err)
	}

	return code
}

// WithQRCodeCreatedAt 设置二维码创建时间
func WithQRCodeCreatedAt(at time.Time) func(*model.QRCode) {
	return func(q *model.QRCode) {
		q.CreatedAt = at
	}
}

// WithPayload 设置内容
func WithPayload(dataType, payload string) func(*model.QRCode) {
	return func(q *model.QRCode) {
		q.DataType = dataType
		q.Payload = payload
	}
}

// TestPayment 追加测试流水
func TestPayment(t *testing.T, db *gorm.DB, userID int64, amount int64, period string, at time.Time) *model.Payment {
	t.Helper()

	payment := &model.Payment{
		UserID:    userID,
		Amount:    amount,
		Period:    period,
		CreatedAt: at,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("Failed to create test payment: %v", err)
	}

	return payment
}

// WriteFile 写入测试文件，自动创建目录
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
}

// AgeTree 把目录下所有文件的修改时间往前调
func AgeTree(t *testing.T, root string, by time.Duration) {
	t.Helper()

	at := time.Now().Add(-by)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return os.Chtimes(path, at, at)
	})
	if err != nil {
		t.Fatalf("Failed to age files: %v", err)
	}
}

// FileExists 文件是否存在
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
