package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/qrcode_go_server/config"
	"github.com/qs3c/qrcode_go_server/internal/api/handler"
	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/pkg/payment"
	"github.com/qs3c/qrcode_go_server/internal/pkg/qrrender"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
	"github.com/qs3c/qrcode_go_server/internal/pkg/storage"
	"github.com/qs3c/qrcode_go_server/internal/plan"
	"github.com/qs3c/qrcode_go_server/internal/repository"
	"github.com/qs3c/qrcode_go_server/internal/service"
	"github.com/qs3c/qrcode_go_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupEngine(t *testing.T) *gin.Engine {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	rdb, _ := testutil.SetupTestRedis(t)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test", PublicURL: "http://qr.test"},
		JWT:    config.JWTConfig{Secret: "router-secret", ExpireHours: 24},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://app.test"}},
	}
	catalog, err := plan.NewCatalog(config.DefaultPlans())
	require.NoError(t, err)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	m := metrics.New()

	userRepo := repository.NewUserRepository(db)
	qrcodeRepo := repository.NewQRCodeRepository(db)
	quota := service.NewQuotaService(qrcodeRepo, store, catalog, m)
	authService := service.NewAuthService(userRepo, catalog, cfg)
	subs := service.NewSubscriptionService(
		db, userRepo, repository.NewPaymentRepository(db),
		repository.NewCheckoutStore(rdb, time.Hour),
		quota, catalog, payment.NewFakeGateway(), nil, m,
	)
	qrcodes := service.NewQRCodeService(db, qrcodeRepo, quota, store, qrrender.NewRenderer(200), catalog, cfg.Server.PublicURL, m)
	admin := service.NewAdminService(
		db, userRepo, qrcodeRepo,
		repository.NewStatsRepository(db),
		repository.NewStatsCache(rdb, time.Minute),
		qrcodes, quota, store, catalog, "", m,
	)

	router := NewRouter(
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(service.NewUserService(userRepo, quota), subs),
		handler.NewSubscriptionHandler(subs),
		handler.NewQRCodeHandler(qrcodes),
		handler.NewAdminHandler(admin, service.NewSweepService(qrcodeRepo, store, m)),
		handler.NewHealthHandler(db, rdb),
		authService,
		subs,
		m,
		cfg,
	)
	return router.Setup()
}

func call(t *testing.T, engine *gin.Engine, method, path, token string, body interface{}) response.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRouter_AccountFlow(t *testing.T) {
	engine := setupEngine(t)

	resp := call(t, engine, "POST", "/api/v1/auth/register", "", map[string]string{
		"username": "ada",
		"email":    "ada@example.com",
		"password": "password123",
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = call(t, engine, "POST", "/api/v1/auth/login", "", map[string]string{
		"username": "ada",
		"password": "password123",
	})
	require.Equal(t, response.CodeSuccess, resp.Code)
	token := resp.Data.(map[string]interface{})["token"].(string)

	resp = call(t, engine, "GET", "/api/v1/user/profile", "", nil)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)

	resp = call(t, engine, "POST", "/api/v1/subscription/promo", token, map[string]string{"code": "2025PRO"})
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = call(t, engine, "GET", "/api/v1/subscription", token, nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	status := resp.Data.(map[string]interface{})
	assert.Equal(t, "pro", status["plan"])
	assert.Equal(t, "code:2025PRO", status["upgrade_method"])

	resp = call(t, engine, "POST", "/api/v1/qrcodes", token, map[string]string{"data_type": "url", "content": "https://example.com"})
	require.Equal(t, response.CodeSuccess, resp.Code)
	publicID := resp.Data.(map[string]interface{})["public_id"].(string)

	resp = call(t, engine, "GET", "/qr/"+publicID, "", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, "https://example.com", resp.Data.(map[string]interface{})["payload"])

	resp = call(t, engine, "GET", "/api/v1/admin/users", token, nil)
	assert.Equal(t, response.CodePermissionDenied, resp.Code)
}

func TestRouter_PublicEndpoints(t *testing.T) {
	engine := setupEngine(t)

	resp := call(t, engine, "GET", "/api/v1/plans", "", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "qrcode_http_requests_total"))

	req := httptest.NewRequest("OPTIONS", "/api/v1/plans", nil)
	req.Header.Set("Origin", "http://app.test")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.test", w.Header().Get("Access-Control-Allow-Origin"))
}
