package cron

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/qs3c/qrcode_go_server/internal/service"
)

// Sweeper 文件与记录一致性清理
type Sweeper interface {
	Run(ctx context.Context, dryRun bool) (*service.SweepReport, error)
}

// Reconciler 批量处理已到期的套餐
type Reconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

type Service struct {
	sweeper       Sweeper
	reconciler    Reconciler
	sweepInterval time.Duration
	now           func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService sweepInterval <= 0 时不启动定时清理
func NewService(sweeper Sweeper, reconciler Reconciler, sweepInterval time.Duration) *Service {
	return &Service{
		sweeper:       sweeper,
		reconciler:    reconciler,
		sweepInterval: sweepInterval,
		now:           func() time.Time { return time.Now().UTC() },
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	if s.reconciler != nil {
		s.wg.Add(1)
		go s.runDailyReconcile()
	}
	if s.sweeper != nil && s.sweepInterval > 0 {
		s.wg.Add(1)
		go s.runSweep()
	}
	log.WithField("sweep_interval", s.sweepInterval).Info("Cron service started (plan expiry + orphan sweep)")
}

// Stop 停止定时任务并等待正在执行的任务结束
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	log.Info("Cron service stopped")
}

// runDailyReconcile 每天 UTC 零点回退已取消且到期的套餐
func (s *Service) runDailyReconcile() {
	defer s.wg.Done()

	timer := time.NewTimer(untilMidnight(s.now()))
	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.reconcileExpired()
			timer.Reset(untilMidnight(s.now()))
		}
	}
}

func (s *Service) reconcileExpired() {
	ctx, cancel := s.taskContext()
	defer cancel()

	n, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to reconcile expired plans")
		return
	}
	if n > 0 {
		log.WithField("reverted", n).Info("Expired plans reverted")
	}
}

// runSweep 按间隔执行一致性清理
func (s *Service) runSweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	ctx, cancel := s.taskContext()
	defer cancel()

	if _, err := s.sweeper.Run(ctx, false); err != nil {
		log.WithError(err).Error("Scheduled sweep failed")
	}
}

// taskContext 停止时取消正在执行的任务
func (s *Service) taskContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func untilMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return next.Sub(now)
}
