package dto

// TierInfo 套餐等级信息
type TierInfo struct {
	Name         string `json:"name"`
	Limit        int    `json:"limit"`
	Unlimited    bool   `json:"unlimited"`
	MonthlyPrice int64  `json:"monthly_price"`
	YearlyPrice  int64  `json:"yearly_price"`
}

// PlanCatalogResponse 套餐目录
type PlanCatalogResponse struct {
	Currency string      `json:"currency"`
	Tiers    []*TierInfo `json:"tiers"`
}

// SubscriptionStatus 当前订阅状态
type SubscriptionStatus struct {
	Plan             string     `json:"plan"`
	UpgradeMethod    string     `json:"upgrade_method,omitempty"`
	PlanExpiresAt    string     `json:"plan_expires_at,omitempty"`
	PlanCancelled    bool       `json:"plan_cancelled"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	NextChargeAt     string     `json:"next_charge_at,omitempty"`
	CanStartNewPlan  bool       `json:"can_start_new_plan"`
	Quota            *QuotaInfo `json:"quota"`
}

// PromoCodeRequest 优惠码升级请求
type PromoCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// CheckoutRequest 发起支付请求
type CheckoutRequest struct {
	Plan   string `json:"plan" binding:"required"`
	Period string `json:"period" binding:"required,oneof=month year"`
}

// CheckoutResponse 支付会话
type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Amount      int64  `json:"amount"`
	Credit      int64  `json:"credit"`
	Currency    string `json:"currency"`
	Completed   bool   `json:"completed"` // 抵扣后无需支付时直接生效
}

// CompleteCheckoutRequest 支付完成回调
type CompleteCheckoutRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}
