package payment

import (
	"context"
	"fmt"
	"sync"
)

// FakeGateway 内存实现，用于本地开发和测试
type FakeGateway struct {
	mu        sync.Mutex
	seq       int
	sessions  map[string]*CheckoutSession
	Requests  []CheckoutRequest
	Cancelled []string

	CreateErr   error
	RetrieveErr error
	CancelErr   error
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{sessions: make(map[string]*CheckoutSession)}
}

func (f *FakeGateway) Name() string {
	return GatewayStripe
}

func (f *FakeGateway) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.seq++
	s := &CheckoutSession{
		ID:  fmt.Sprintf("cs_test_%d", f.seq),
		URL: fmt.Sprintf("https://checkout.example.com/cs_test_%d", f.seq),
	}
	f.sessions[s.ID] = s
	f.Requests = append(f.Requests, *req)
	out := *s
	return &out, nil
}

func (f *FakeGateway) RetrieveCheckout(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RetrieveErr != nil {
		return nil, f.RetrieveErr
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

func (f *FakeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cancelled = append(f.Cancelled, subscriptionID)
	return f.CancelErr
}

// Complete 模拟用户支付完成
func (f *FakeGateway) Complete(sessionID, subscriptionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok {
		s.Completed = true
		s.SubscriptionID = subscriptionID
	}
}
