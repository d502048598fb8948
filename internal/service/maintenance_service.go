package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/draftwise/draftwise-api/internal/repository"
)

// MaintenanceService periodically sweeps expired cache entries and idle
// rate windows so the database does not accumulate dead rows.
type MaintenanceService struct {
	logger   *slog.Logger
	repos    *repository.Repositories
	interval time.Duration
	idleAge  time.Duration

	now func() time.Time
}

// NewMaintenanceService creates the background sweeper.
func NewMaintenanceService(logger *slog.Logger, repos *repository.Repositories, interval, idleAge time.Duration) *MaintenanceService {
	return &MaintenanceService{
		logger:   logger,
		repos:    repos,
		interval: interval,
		idleAge:  idleAge,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
// One sweep runs immediately at startup.
func (m *MaintenanceService) Run(ctx context.Context) {
	m.logger.Info("maintenance sweeper started",
		"interval", m.interval.String(),
		"idle_window_age", m.idleAge.String(),
	)

	m.Sweep(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("maintenance sweeper stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one maintenance pass. Failures are logged and do not stop
// the sweeper.
func (m *MaintenanceService) Sweep(ctx context.Context) {
	now := m.now()

	expired, err := m.repos.Cache.DeleteExpired(ctx, now)
	if err != nil {
		m.logger.Error("cache sweep failed", "error", err)
	}

	idle, err := m.repos.RateWindows.DeleteIdle(ctx, now.Add(-m.idleAge))
	if err != nil {
		m.logger.Error("rate window sweep failed", "error", err)
	}

	if expired > 0 || idle > 0 {
		m.logger.Info("maintenance sweep completed",
			"expired_cache_entries", expired,
			"idle_rate_windows", idle,
		)
	}
}
