package dto

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Name     string `json:"name" binding:"max=150"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	UserID int64 `json:"user_id"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user"`
}

// UserInfo 用户信息（返回给前端）
type UserInfo struct {
	ID            int64               `json:"id"`
	Username      string              `json:"username"`
	Name          string              `json:"name"`
	Email         string              `json:"email"`
	Plan          string              `json:"plan"`
	UpgradeMethod string              `json:"upgrade_method,omitempty"`
	PlanExpiresAt string              `json:"plan_expires_at,omitempty"`
	PlanCancelled bool                `json:"plan_cancelled"`
	IsAdmin       bool                `json:"is_admin,omitempty"`
	QuotaInfo     *QuotaInfo          `json:"quota_info,omitempty"`
	Subscription  *SubscriptionStatus `json:"subscription,omitempty"`
	CreatedAt     string              `json:"created_at,omitempty"`
}

// QuotaInfo 二维码数量配额
type QuotaInfo struct {
	Plan      string `json:"plan"`
	Limit     int    `json:"limit"` // -1 表示不限
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"` // -1 表示不限
	Unlimited bool   `json:"unlimited"`
}

// UpdateProfileRequest 更新用户信息请求
type UpdateProfileRequest struct {
	Username *string `json:"username,omitempty" binding:"omitempty,min=3,max=50"`
	Name     *string `json:"name,omitempty" binding:"omitempty,max=150"`
	Email    *string `json:"email,omitempty" binding:"omitempty,email"`
	Password *string `json:"password,omitempty" binding:"omitempty,min=8,max=72"`
}
