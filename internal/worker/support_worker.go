package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ripple-community/pebs-api/internal/observability"
	"github.com/ripple-community/pebs-api/internal/service"
	"go.uber.org/zap"
)

// SupportWorker periodically scans for members needing community support.
type SupportWorker struct {
	svc      *service.SupportScanService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSupportWorker constructs a worker with a default hourly interval.
func NewSupportWorker(svc *service.SupportScanService) *SupportWorker {
	return &SupportWorker{
		svc:      svc,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the scan interval.
func (w *SupportWorker) WithInterval(interval time.Duration) *SupportWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs the scan at the configured interval.
func (w *SupportWorker) Start(ctx context.Context) {
	zap.L().Info("support worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("support worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("support worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *SupportWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SupportWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *SupportWorker) runOnce(ctx context.Context) {
	if err := w.svc.Run(ctx); err != nil {
		observability.IncrementWorkerRun("support_scan", "failed")
		zap.L().Error("support scan failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("support_scan", "success")
}
