package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	checkoutKeyPrefix  = "qrcode:checkout:"
	DefaultCheckoutTTL = 24 * time.Hour
)

var ErrCheckoutNotFound = errors.New("pending checkout not found")

// PendingCheckout 已创建但尚未完成的支付会话
type PendingCheckout struct {
	SessionID           string    `json:"session_id"`
	UserID              int64     `json:"user_id"`
	Plan                string    `json:"plan"`
	Period              string    `json:"period"`
	Amount              int64     `json:"amount"`
	Credit              int64     `json:"credit"`
	ReplacedStripeSubID string    `json:"replaced_stripe_sub_id,omitempty"`
	ReplacedPaypalSubID string    `json:"replaced_paypal_sub_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// CheckoutStore 以 Redis 保存待完成的支付会话
type CheckoutStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCheckoutStore(rdb *redis.Client, ttl time.Duration) *CheckoutStore {
	if ttl <= 0 {
		ttl = DefaultCheckoutTTL
	}
	return &CheckoutStore{rdb: rdb, ttl: ttl}
}

func (s *CheckoutStore) key(sessionID string) string {
	return checkoutKeyPrefix + sessionID
}

// Save 保存会话
func (s *CheckoutStore) Save(ctx context.Context, pc *PendingCheckout) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout: %w", err)
	}
	return s.rdb.Set(ctx, s.key(pc.SessionID), data, s.ttl).Err()
}

// Get 读取会话
func (s *CheckoutStore) Get(ctx context.Context, sessionID string) (*PendingCheckout, error) {
	data, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}

	var pc PendingCheckout
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout: %w", err)
	}
	return &pc, nil
}

// Delete 删除会话，会话不存在时返回 false
func (s *CheckoutStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.key(sessionID)).Result()
	return n > 0, err
}
