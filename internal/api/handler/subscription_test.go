package handler

import (
	"errors"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
	"github.com/qs3c/qrcode_go_server/internal/testutil"
)

func subscriptionRouter(tc *testContext, user *model.User) *gin.Engine {
	handler := NewSubscriptionHandler(tc.Subs)

	router := gin.New()
	router.GET("/plans", handler.Plans)
	authed := router.Group("/subscription", mockAccount(user))
	authed.GET("", handler.Status)
	authed.POST("/promo", handler.ApplyPromo)
	authed.POST("/checkout", handler.Checkout)
	authed.POST("/checkout/complete", handler.CompleteCheckout)
	authed.POST("/cancel", handler.Cancel)
	return router
}

func TestSubscriptionHandler_Plans(t *testing.T) {
	tc := setupTestContext(t)
	router := subscriptionRouter(tc, &model.User{})

	resp := parseResponse(t, performRequest(router, "GET", "/plans", nil))
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := dataMap(t, resp)
	assert.Equal(t, "eur", data["currency"])
	tiers := data["tiers"].([]interface{})
	require.Len(t, tiers, 5)
	pro := tiers[2].(map[string]interface{})
	assert.Equal(t, "pro", pro["name"])
	assert.Equal(t, float64(199), pro["monthly_price"])
	assert.Equal(t, float64(1672), pro["yearly_price"])
}

func TestSubscriptionHandler_Promo(t *testing.T) {
	tc := setupTestContext(t)
	user := testutil.TestUser(t, tc.DB)
	router := subscriptionRouter(tc, user)

	resp := parseResponse(t, performRequest(router, "POST", "/subscription/promo", map[string]string{"code": "WRONG"}))
	assert.Equal(t, response.CodeParamError, resp.Code)

	resp = parseResponse(t, performRequest(router, "POST", "/subscription/promo", map[string]string{"code": "2025PREMIUM"}))
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, "premium", dataMap(t, resp)["plan"])

	// 套餐有效期内不能再次使用优惠码
	resp = parseResponse(t, performRequest(router, "POST", "/subscription/promo", map[string]string{"code": "2025PRO"}))
	assert.Equal(t, response.CodeNotEligible, resp.Code)
}

func TestSubscriptionHandler_CheckoutFlow(t *testing.T) {
	tc := setupTestContext(t)
	user := testutil.TestUser(t, tc.DB)
	router := subscriptionRouter(tc, user)

	resp := parseResponse(t, performRequest(router, "POST", "/subscription/checkout", map[string]string{"plan": "starter", "period": "week"}))
	assert.Equal(t, response.CodeParamError, resp.Code)

	resp = parseResponse(t, performRequest(router, "POST", "/subscription/checkout", map[string]string{"plan": "starter", "period": "month"}))
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, float64(99), data["amount"])
	sessionID := data["session_id"].(string)
	assert.NotEmpty(t, data["checkout_url"])

	resp = parseResponse(t, performRequest(router, "POST", "/subscription/checkout/complete", map[string]string{"session_id": sessionID}))
	assert.Equal(t, response.CodeParamError, resp.Code)

	tc.Gateway.Complete(sessionID, "sub_123")
	resp = parseResponse(t, performRequest(router, "POST", "/subscription/checkout/complete", map[string]string{"session_id": sessionID}))
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, "starter", dataMap(t, resp)["plan"])

	resp = parseResponse(t, performRequest(router, "POST", "/subscription/checkout/complete", map[string]string{"session_id": sessionID}))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestSubscriptionHandler_CheckoutGatewayDown(t *testing.T) {
	tc := setupTestContext(t)
	user := testutil.TestUser(t, tc.DB)
	router := subscriptionRouter(tc, user)
	tc.Gateway.CreateErr = errors.New("unreachable")

	resp := parseResponse(t, performRequest(router, "POST", "/subscription/checkout", map[string]string{"plan": "pro", "period": "year"}))
	assert.Equal(t, response.CodeGatewayError, resp.Code)
	assert.NotContains(t, resp.Message, "unreachable")
}

func TestSubscriptionHandler_Cancel(t *testing.T) {
	tc := setupTestContext(t)
	expires := time.Now().UTC().Add(72 * time.Hour)
	user := testutil.TestUser(t, tc.DB, testutil.WithPlan("pro", &expires), testutil.WithStripeSubscription("sub_9"))
	router := subscriptionRouter(tc, user)

	resp := parseResponse(t, performRequest(router, "POST", "/subscription/cancel", nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, true, data["plan_cancelled"])
	assert.Equal(t, "pro", data["plan"])
	assert.Nil(t, data["next_charge_at"])
	assert.Equal(t, []string{"sub_9"}, tc.Gateway.Cancelled)

	basic := testutil.TestUser(t, tc.DB)
	resp = parseResponse(t, performRequest(subscriptionRouter(tc, basic), "POST", "/subscription/cancel", nil))
	assert.Equal(t, response.CodeParamError, resp.Code)
}
