package service

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/pkg/storage"
	"github.com/qs3c/qrcode_go_server/internal/repository"
)

// OrphanGrace 服务运行期间，比这更新的未引用文件可能属于尚未提交的创建请求
const OrphanGrace = 5 * time.Minute

// SweepReport 一致性清理结果
type SweepReport struct {
	DryRun         bool     `json:"dry_run"`
	RecordsRemoved []string `json:"records_removed"` // 缺少文件的二维码 public id
	FilesRemoved   []string `json:"files_removed"`   // 没有记录引用的文件
	FilesSkipped   int      `json:"files_skipped"`   // 宽限期内未处理的文件
	BytesFreed     int64    `json:"bytes_freed"`
}

// SweepService 清理记录与文件不一致的二维码
type SweepService struct {
	qrcodeRepo *repository.QRCodeRepository
	store      *storage.LocalStore
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewSweepService(qrcodeRepo *repository.QRCodeRepository, store *storage.LocalStore, m *metrics.Metrics) *SweepService {
	return &SweepService{
		qrcodeRepo: qrcodeRepo,
		store:      store,
		metrics:    m,
		now:        time.Now,
	}
}

// SetClock 测试用
func (s *SweepService) SetClock(now func() time.Time) {
	s.now = now
}

// Run 服务运行期间的清理，跳过宽限期内写入的文件；dryRun 时只报告
func (s *SweepService) Run(ctx context.Context, dryRun bool) (*SweepReport, error) {
	return s.run(ctx, dryRun, OrphanGrace)
}

// RunAtStartup 开始接收请求之前的清理，不设宽限期
func (s *SweepService) RunAtStartup(ctx context.Context, dryRun bool) (*SweepReport, error) {
	return s.run(ctx, dryRun, 0)
}

// run 先删除文件不全的记录，再删除没有记录引用的文件
func (s *SweepService) run(ctx context.Context, dryRun bool, grace time.Duration) (*SweepReport, error) {
	report := &SweepReport{DryRun: dryRun}
	cutoff := s.now().Add(-grace)

	codes, err := s.qrcodeRepo.ListAll()
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]struct{}, len(codes)*3)
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !s.store.AllExist(code.Paths()...) {
			report.RecordsRemoved = append(report.RecordsRemoved, code.PublicIDValue())
			if !dryRun {
				if err := s.qrcodeRepo.Delete(code.ID); err != nil {
					return nil, err
				}
			}
			continue
		}

		for _, p := range code.Paths() {
			referenced[normalize(p)] = struct{}{}
		}
	}

	var orphans []string
	err = s.store.Walk(func(path string, info fs.FileInfo) error {
		if _, ok := referenced[normalize(path)]; ok {
			return nil
		}
		if grace > 0 && info.ModTime().After(cutoff) {
			report.FilesSkipped++
			return nil
		}
		orphans = append(orphans, path)
		report.BytesFreed += info.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, path := range orphans {
		if dryRun {
			report.FilesRemoved = append(report.FilesRemoved, path)
			continue
		}
		if err := os.Remove(path); err != nil {
			log.WithError(err).WithField("path", path).Warn("Failed to remove orphan file")
			continue
		}
		report.FilesRemoved = append(report.FilesRemoved, path)
	}

	if !dryRun {
		s.metrics.AddOrphansRemoved("record", len(report.RecordsRemoved))
		s.metrics.AddOrphansRemoved("file", len(report.FilesRemoved))
	}

	log.WithFields(log.Fields{
		"dry_run":         dryRun,
		"records_removed": len(report.RecordsRemoved),
		"files_removed":   len(report.FilesRemoved),
		"files_skipped":   report.FilesSkipped,
		"bytes_freed":     report.BytesFreed,
	}).Info("Orphan sweep finished")

	return report, nil
}

func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
