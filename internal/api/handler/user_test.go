package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
	"github.com/qs3c/qrcode_go_server/internal/testutil"
)

func TestUserHandler_GetProfile_Success(t *testing.T) {
	tc := setupTestContext(t)
	handler := NewUserHandler(tc.Users, tc.Subs)

	expires := time.Now().UTC().Add(48 * time.Hour)
	user := testutil.TestUser(t, tc.DB, testutil.WithUsername("profileuser"), testutil.WithPlan("starter", &expires))

	router := gin.New()
	router.Use(mockAccount(user))
	router.GET("/profile", handler.GetProfile)

	w := performRequest(router, "GET", "/profile", nil)
	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := dataMap(t, resp)
	assert.Equal(t, "profileuser", data["username"])

	quota := data["quota_info"].(map[string]interface{})
	assert.Equal(t, float64(5), quota["limit"])

	sub := data["subscription"].(map[string]interface{})
	assert.Equal(t, "starter", sub["plan"])
	assert.Equal(t, false, sub["can_start_new_plan"])
	assert.NotEmpty(t, sub["next_charge_at"])
	assert.Greater(t, sub["remaining_seconds"].(float64), float64(0))
}

func TestUserHandler_GetProfile_Unauthorized(t *testing.T) {
	tc := setupTestContext(t)
	handler := NewUserHandler(tc.Users, tc.Subs)

	router := gin.New()
	router.GET("/profile", handler.GetProfile)

	w := performRequest(router, "GET", "/profile", nil)
	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	tc := setupTestContext(t)
	handler := NewUserHandler(tc.Users, tc.Subs)

	testutil.TestUser(t, tc.DB, testutil.WithUsername("taken"))
	user := testutil.TestUser(t, tc.DB, testutil.WithUsername("myuser"))

	router := gin.New()
	router.Use(mockAccount(user))
	router.PUT("/profile", handler.UpdateProfile)

	w := performRequest(router, "PUT", "/profile", map[string]string{"name": "New Name"})
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, "New Name", dataMap(t, resp)["name"])

	w = performRequest(router, "PUT", "/profile", map[string]string{"username": "taken"})
	resp = parseResponse(t, w)
	assert.Equal(t, response.CodeParamError, resp.Code)

	w = performRequest(router, "PUT", "/profile", map[string]string{"email": "not-an-email"})
	resp = parseResponse(t, w)
	assert.Equal(t, response.CodeParamError, resp.Code)
}
