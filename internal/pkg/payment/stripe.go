package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/qs3c/qrcode_go_server/config"
)

const GatewayStripe = "stripe"

// StripeGateway Stripe Checkout 订阅
type StripeGateway struct {
	api        *client.API
	successURL string
	cancelURL  string
}

// NewStripeGateway 未配置密钥时返回的网关所有调用都报 ErrNotConfigured
func NewStripeGateway(cfg *config.StripeConfig) *StripeGateway {
	g := &StripeGateway{
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
	if cfg.SecretKey != "" {
		g.api = client.New(cfg.SecretKey, nil)
	}
	return g
}

func (g *StripeGateway) Name() string {
	return GatewayStripe
}

func (g *StripeGateway) Configured() bool {
	return g.api != nil
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if g.api == nil {
		return nil, ErrNotConfigured
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = g.successURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = g.cancelURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%s plan", req.Tier)),
					},
					UnitAmount: stripe.Int64(req.Amount),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(req.Period),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ReferenceID)
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout: %w", err)
	}
	return toSession(s), nil
}

func (g *StripeGateway) RetrieveCheckout(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if g.api == nil {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe retrieve checkout: %w", err)
	}
	return toSession(s), nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if g.api == nil || subscriptionID == "" {
		return nil
	}
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := g.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

func toSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:        s.ID,
		URL:       s.URL,
		Completed: s.Status == stripe.CheckoutSessionStatusComplete,
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}
