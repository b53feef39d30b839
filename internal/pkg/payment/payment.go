package payment

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured   = errors.New("payment gateway is not configured")
	ErrSessionNotFound = errors.New("checkout session not found")
)

// CheckoutRequest 创建订阅结账会话的参数
type CheckoutRequest struct {
	Tier          string
	Period        string // month / year
	Amount        int64  // 分，已扣除抵扣
	Currency      string
	CustomerEmail string
	ReferenceID   string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession 结账会话
type CheckoutSession struct {
	ID             string
	URL            string
	SubscriptionID string
	Completed      bool
}

// Gateway 结账式支付网关
type Gateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	RetrieveCheckout(ctx context.Context, sessionID string) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// Canceller 只支持取消订阅的网关
type Canceller interface {
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
