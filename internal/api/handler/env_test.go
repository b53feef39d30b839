package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/config"
	"github.com/qs3c/qrcode_go_server/internal/api/middleware"
	"github.com/qs3c/qrcode_go_server/internal/model"
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

type testContext struct {
	DB      *gorm.DB
	Store   *storage.LocalStore
	Gateway *payment.FakeGateway

	Auth    *service.AuthService
	Users   *service.UserService
	Subs    *service.SubscriptionService
	QRCodes *service.QRCodeService
	Admin   *service.AdminService
	Sweep   *service.SweepService
}

func setupTestContext(t *testing.T) *testContext {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	rdb, _ := testutil.SetupTestRedis(t)

	catalog, err := plan.NewCatalog(config.DefaultPlans())
	require.NoError(t, err)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret-key", ExpireHours: 24}}
	userRepo := repository.NewUserRepository(db)
	qrcodeRepo := repository.NewQRCodeRepository(db)
	gateway := payment.NewFakeGateway()

	quota := service.NewQuotaService(qrcodeRepo, store, catalog, nil)
	subs := service.NewSubscriptionService(
		db, userRepo, repository.NewPaymentRepository(db),
		repository.NewCheckoutStore(rdb, time.Hour),
		quota, catalog, gateway, nil, nil,
	)
	qrcodes := service.NewQRCodeService(db, qrcodeRepo, quota, store, qrrender.NewRenderer(200), catalog, "http://qr.test", nil)

	return &testContext{
		DB:      db,
		Store:   store,
		Gateway: gateway,
		Auth:    service.NewAuthService(userRepo, catalog, cfg),
		Users:   service.NewUserService(userRepo, quota),
		Subs:    subs,
		QRCodes: qrcodes,
		Admin: service.NewAdminService(
			db, userRepo, qrcodeRepo,
			repository.NewStatsRepository(db),
			repository.NewStatsCache(rdb, time.Minute),
			qrcodes, quota, store, catalog, "", nil,
		),
		Sweep: service.NewSweepService(qrcodeRepo, store, nil),
	}
}

// mockAccount 跳过 JWT，直接注入当前用户
func mockAccount(user *model.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, user.ID)
		c.Set(middleware.AccountKey, user)
		c.Next()
	}
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return data
}
