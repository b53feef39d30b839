package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/config"
	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/pkg/payment"
	"github.com/qs3c/qrcode_go_server/internal/pkg/qrrender"
	"github.com/qs3c/qrcode_go_server/internal/pkg/storage"
	"github.com/qs3c/qrcode_go_server/internal/plan"
	"github.com/qs3c/qrcode_go_server/internal/repository"
	"github.com/qs3c/qrcode_go_server/internal/testutil"
)

const testPublicURL = "http://qr.test"

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingCanceller struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (c *recordingCanceller) CancelSubscription(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
	return c.err
}

type testEnv struct {
	db      *gorm.DB
	rdb     *redis.Client
	store   *storage.LocalStore
	catalog *plan.Catalog
	gateway *payment.FakeGateway
	paypal  *recordingCanceller
	metrics *metrics.Metrics
	now     time.Time

	userRepo    *repository.UserRepository
	qrcodeRepo  *repository.QRCodeRepository
	paymentRepo *repository.PaymentRepository

	quota   *QuotaService
	subs    *SubscriptionService
	qrcodes *QRCodeService
	admin   *AdminService
	sweep   *SweepService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	rdb, _ := testutil.SetupTestRedis(t)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	catalog, err := plan.NewCatalog(config.DefaultPlans())
	require.NoError(t, err)

	e := &testEnv{
		db:          db,
		rdb:         rdb,
		store:       store,
		catalog:     catalog,
		gateway:     payment.NewFakeGateway(),
		paypal:      &recordingCanceller{},
		metrics:     metrics.New(),
		now:         testNow,
		userRepo:    repository.NewUserRepository(db),
		qrcodeRepo:  repository.NewQRCodeRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
	}
	clock := func() time.Time { return e.now }

	e.quota = NewQuotaService(e.qrcodeRepo, store, catalog, e.metrics)
	e.subs = NewSubscriptionService(
		db, e.userRepo, e.paymentRepo,
		repository.NewCheckoutStore(rdb, 0),
		e.quota, catalog, e.gateway, e.paypal, e.metrics,
	)
	e.subs.SetClock(clock)

	e.qrcodes = NewQRCodeService(db, e.qrcodeRepo, e.quota, store, qrrender.NewRenderer(200), catalog, testPublicURL+"/", e.metrics)
	e.qrcodes.SetClock(clock)

	e.admin = NewAdminService(
		db, e.userRepo, e.qrcodeRepo,
		repository.NewStatsRepository(db),
		repository.NewStatsCache(rdb, time.Minute),
		e.qrcodes, e.quota, store, catalog, "", e.metrics,
	)
	e.admin.SetClock(clock)

	e.sweep = NewSweepService(e.qrcodeRepo, store, e.metrics)
	return e
}

// seedCodes 按时间顺序创建 n 个带文件的二维码
func (e *testEnv) seedCodes(t *testing.T, userID int64, n int) []*model.QRCode {
	t.Helper()

	codes := make([]*model.QRCode, 0, n)
	for i := 0; i < n; i++ {
		at := e.now.Add(-time.Duration(n-i) * time.Hour)
		codes = append(codes, testutil.TestQRCode(t, e.db, userID, e.store.Root(), testutil.WithQRCodeCreatedAt(at)))
	}
	return codes
}

func (e *testEnv) reload(t *testing.T, userID int64) *model.User {
	t.Helper()

	user, err := e.userRepo.GetByID(userID)
	require.NoError(t, err)
	return user
}

func (e *testEnv) remainingIDs(t *testing.T, userID int64) []string {
	t.Helper()

	codes, err := e.qrcodeRepo.ListByUserOldestFirst(userID)
	require.NoError(t, err)
	ids := make([]string, 0, len(codes))
	for _, c := range codes {
		ids = append(ids, c.PublicIDValue())
	}
	return ids
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func ids(codes []*model.QRCode) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, c.PublicIDValue())
	}
	return out
}

func day(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
