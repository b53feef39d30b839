package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/qs3c/qrcode_go_server/config"
	"github.com/qs3c/qrcode_go_server/internal/api"
	"github.com/qs3c/qrcode_go_server/internal/api/handler"
	"github.com/qs3c/qrcode_go_server/internal/database"
	"github.com/qs3c/qrcode_go_server/internal/pkg/cron"
	"github.com/qs3c/qrcode_go_server/internal/pkg/logger"
	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/pkg/oss"
	"github.com/qs3c/qrcode_go_server/internal/pkg/payment"
	"github.com/qs3c/qrcode_go_server/internal/pkg/qrrender"
	"github.com/qs3c/qrcode_go_server/internal/pkg/storage"
	"github.com/qs3c/qrcode_go_server/internal/plan"
	"github.com/qs3c/qrcode_go_server/internal/repository"
	"github.com/qs3c/qrcode_go_server/internal/service"
)

const (
	checkoutTTL   = 24 * time.Hour
	statsCacheTTL = 60 * time.Second
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Setup(cfg.Log); err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}

	catalog, err := plan.NewCatalog(cfg.Plans)
	if err != nil {
		log.Fatalf("Invalid plan catalog: %v", err)
	}

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.Migrate(db, cfg.Plans.PublicIDLength); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Info("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Info("Redis connected")

	// 文件存储，可选 OSS 镜像
	store, err := storage.NewLocalStore(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	if cfg.OSS.Enabled {
		client, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Fatalf("Failed to create OSS client: %v", err)
		}
		store.SetMirror(client)
		log.WithField("bucket", cfg.OSS.BucketName).Info("OSS mirror enabled")
	}

	// 支付网关
	stripeGateway := payment.NewStripeGateway(&cfg.Stripe)
	if !stripeGateway.Configured() {
		log.Warn("Stripe secret key not set, checkout will be unavailable")
	}
	var paypal payment.Canceller
	if client := payment.NewPayPalClient(&cfg.PayPal); client.Configured() {
		paypal = client
	}

	m := metrics.New()

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	qrcodeRepo := repository.NewQRCodeRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// 初始化 Service
	quotaService := service.NewQuotaService(qrcodeRepo, store, catalog, m)
	authService := service.NewAuthService(userRepo, catalog, cfg)
	userService := service.NewUserService(userRepo, quotaService)
	subscriptionService := service.NewSubscriptionService(
		db, userRepo, paymentRepo,
		repository.NewCheckoutStore(rdb, checkoutTTL),
		quotaService, catalog, stripeGateway, paypal, m,
	)
	qrcodeService := service.NewQRCodeService(
		db, qrcodeRepo, quotaService, store,
		qrrender.NewRenderer(cfg.Storage.MaxPixels),
		catalog, cfg.Server.PublicURL, m,
	)
	adminService := service.NewAdminService(
		db, userRepo, qrcodeRepo,
		repository.NewStatsRepository(db),
		repository.NewStatsCache(rdb, statsCacheTTL),
		qrcodeService, quotaService, store, catalog,
		sqliteFile(&cfg.Database), m,
	)
	sweepService := service.NewSweepService(qrcodeRepo, store, m)

	// 启动检查
	if n, err := adminService.PromoteBootstrapAdmins(cfg.Admin.BootstrapUsernames); err != nil {
		log.WithError(err).Error("Failed to promote bootstrap admins")
	} else if n > 0 {
		log.WithField("count", n).Info("Bootstrap admins promoted")
	}
	for _, p := range adminService.Permissions() {
		if !p.Exists || !p.Readable || !p.Writable {
			log.WithFields(log.Fields{
				"path":     p.Path,
				"exists":   p.Exists,
				"readable": p.Readable,
				"writable": p.Writable,
			}).Warn("Insufficient permissions")
		}
	}
	if _, err := sweepService.RunAtStartup(context.Background(), false); err != nil {
		log.WithError(err).Error("Startup sweep failed")
	}

	var reconciler cron.Reconciler
	if cfg.Maintenance.NightlyReconcile {
		reconciler = subscriptionService
	}
	cronService := cron.NewService(
		sweepService, reconciler,
		time.Duration(cfg.Maintenance.SweepIntervalMinutes)*time.Minute,
	)
	cronService.Start()

	// 初始化 Router
	router := api.NewRouter(
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(userService, subscriptionService),
		handler.NewSubscriptionHandler(subscriptionService),
		handler.NewQRCodeHandler(qrcodeService),
		handler.NewAdminHandler(adminService, sweepService),
		handler.NewHealthHandler(db, rdb),
		authService,
		subscriptionService,
		m,
		cfg,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	cronService.Stop()
	_ = rdb.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Server exited")
}

// sqliteFile sqlite 数据库文件路径，其他驱动返回空
func sqliteFile(cfg *config.DatabaseConfig) string {
	if cfg.Driver != "" && cfg.Driver != database.DriverSQLite {
		return ""
	}
	if cfg.DSN == "" || cfg.DSN == ":memory:" {
		return ""
	}
	return cfg.DSN
}
