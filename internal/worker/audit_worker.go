package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ripple-community/pebs-api/internal/observability"
	"github.com/ripple-community/pebs-api/internal/service"
	"go.uber.org/zap"
)

// AuditWorker runs periodic ledger audits.
type AuditWorker struct {
	svc      *service.LedgerAuditService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewAuditWorker constructs a worker with a default daily interval.
func NewAuditWorker(svc *service.LedgerAuditService) *AuditWorker {
	return &AuditWorker{
		svc:      svc,
		interval: 24 * time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *AuditWorker) WithInterval(interval time.Duration) *AuditWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs the audit at the configured interval.
func (w *AuditWorker) Start(ctx context.Context) {
	zap.L().Info("audit worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("audit worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("audit worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *AuditWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *AuditWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *AuditWorker) runOnce(ctx context.Context) {
	if err := w.svc.Run(ctx); err != nil {
		observability.IncrementWorkerRun("ledger_audit", "failed")
		zap.L().Error("ledger audit run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("ledger_audit", "success")
}
