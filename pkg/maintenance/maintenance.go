// Package maintenance runs the scheduled store sweep: it recounts token
// records and refreshes the exported gauge so operators can watch the
// collection grow.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/store"
)

const defaultCron = "*/15 * * * *"

// Start starts the sweep scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.MaintenanceConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("maintenance_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid maintenance cron expression: %s", cfg.Cron)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr)
	logger.Info("maintenance_scheduler_started", "cron", cronExpr)
	return cancel, nil
}

// runScheduler computes the next cron tick and sleeps until it, so full
// cron syntax is supported without polling.
func runScheduler(ctx context.Context, cronExpr string) {
	for {
		next, err := gronx.NextTick(cronExpr, false)
		if err != nil {
			logger.Error("maintenance_next_tick_failed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		RunOnce()
	}
}

// RunOnce performs a single sweep.
func RunOnce() {
	n, err := store.RefreshRecordGauge()
	if err != nil {
		logger.Error("maintenance_sweep_failed", "error", err)
		return
	}
	logger.Info("maintenance_sweep", "token_records", n)
}
