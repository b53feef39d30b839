package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/qs3c/qrcode_go_server/config"
	"github.com/qs3c/qrcode_go_server/internal/database"
	"github.com/qs3c/qrcode_go_server/internal/pkg/logger"
	"github.com/qs3c/qrcode_go_server/internal/pkg/oss"
	"github.com/qs3c/qrcode_go_server/internal/pkg/storage"
	"github.com/qs3c/qrcode_go_server/internal/repository"
	"github.com/qs3c/qrcode_go_server/internal/service"
	"github.com/qs3c/qrcode_go_server/internal/worker"
)

var (
	dryRun = flag.Bool("dry-run", false, "Report orphans without deleting anything")
	mirror = flag.Bool("mirror", false, "Re-upload all qr code files to OSS after the sweep")
)

func main() {
	flag.Parse()

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

	log.WithField("dry_run", *dryRun).Info("Starting cleanup task")

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	store, err := storage.NewLocalStore(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	qrcodeRepo := repository.NewQRCodeRepository(db)
	report, err := service.NewSweepService(qrcodeRepo, store, nil).Run(ctx, *dryRun)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	printSummary(report)

	if *mirror && !*dryRun {
		if !cfg.OSS.Enabled {
			log.Fatal("OSS is not enabled, cannot re-upload")
		}
		client, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Fatalf("Failed to create OSS client: %v", err)
		}
		store.SetMirror(client)

		if _, err := worker.NewReuploader(qrcodeRepo, store).Run(ctx); err != nil {
			log.Fatalf("Re-upload failed: %v", err)
		}
	}
}

func printSummary(report *service.SweepReport) {
	line := strings.Repeat("=", 60)
	fmt.Println(line)
	fmt.Println("Cleanup Summary")
	fmt.Println(line)
	fmt.Printf("Records removed: %d\n", len(report.RecordsRemoved))
	for _, id := range report.RecordsRemoved {
		fmt.Printf("  - %s\n", id)
	}
	fmt.Printf("Files removed: %d\n", len(report.FilesRemoved))
	for _, p := range report.FilesRemoved {
		fmt.Printf("  - %s\n", p)
	}
	if report.FilesSkipped > 0 {
		fmt.Printf("Files skipped (modified in the last %s): %d\n", service.OrphanGrace, report.FilesSkipped)
	}
	fmt.Printf("Freed space: %s\n", formatSize(report.BytesFreed))
	if report.DryRun {
		fmt.Println("DRY RUN MODE - nothing was deleted, run with -dry-run=false to apply")
	}
	fmt.Println(line)
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
