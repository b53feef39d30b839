package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/qs3c/qrcode_go_server/config"
)

const GatewayPayPal = "paypal"

// PayPalClient 只负责取消 PayPal 订阅
type PayPalClient struct {
	baseURL string
	creds   *clientcredentials.Config
}

func NewPayPalClient(cfg *config.PayPalConfig) *PayPalClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	c := &PayPalClient{baseURL: base}
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		c.creds = &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
	}
	return c
}

func (c *PayPalClient) Configured() bool {
	return c.creds != nil
}

// CancelSubscription 先用 client credentials 换取令牌，再调用取消接口
func (c *PayPalClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if c.creds == nil || subscriptionID == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"reason": "User cancellation"})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v1/billing/subscriptions/%s/cancel", c.baseURL, url.PathEscape(subscriptionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.creds.Client(ctx).Do(req)
	if err != nil {
		return fmt.Errorf("paypal cancel subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("paypal cancel subscription: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
