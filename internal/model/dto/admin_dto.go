package dto

// AdminUserInfo 管理后台用户行
type AdminUserInfo struct {
	UserInfo
	QRCodeCount int64 `json:"qrcode_count"`
}

// AdminUserListResponse 用户列表
type AdminUserListResponse struct {
	Users        []*AdminUserInfo `json:"users"`
	TotalQRCodes int64            `json:"total_qrcodes"`
}

// AdminUpdateUserRequest 管理员编辑用户
type AdminUpdateUserRequest struct {
	Username      *string `json:"username,omitempty" binding:"omitempty,min=3,max=50"`
	Name          *string `json:"name,omitempty" binding:"omitempty,max=150"`
	Email         *string `json:"email,omitempty" binding:"omitempty,email"`
	Plan          *string `json:"plan,omitempty"`
	UpgradeMethod *string `json:"upgrade_method,omitempty" binding:"omitempty,max=50"`
	IsAdmin       *bool   `json:"is_admin,omitempty"`
}

// HourlyBucket 按小时统计
type HourlyBucket struct {
	Hour    string `json:"hour"`
	Users   int64  `json:"users"`
	QRCodes int64  `json:"qrcodes"`
}

// AdminStats 管理后台统计
type AdminStats struct {
	Hourly               []HourlyBucket   `json:"hourly"`
	RevenueThisMonth     int64            `json:"revenue_this_month"`
	MonthlySubsThisMonth int64            `json:"monthly_subscriptions_this_month"`
	YearlySubsThisMonth  int64            `json:"yearly_subscriptions_this_month"`
	TotalUsers           int64            `json:"total_users"`
	TotalQRCodes         int64            `json:"total_qrcodes"`
	TotalRevenue         int64            `json:"total_revenue"`
	ActiveSubscriptions  int64            `json:"active_subscriptions"`
	PlanCounts           map[string]int64 `json:"plan_counts"`
	GeneratedAt          string           `json:"generated_at"`
}

// PathPermission 路径读写权限
type PathPermission struct {
	Path     string `json:"path"`
	Exists   bool   `json:"exists"`
	Readable bool   `json:"readable"`
	Writable bool   `json:"writable"`
}
