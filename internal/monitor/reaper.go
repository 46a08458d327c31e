package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/storage"
)

// reapInterval is how often retention is enforced
const reapInterval = time.Hour

// Reaper periodically evicts history and activity log records older than
// the configured retention windows. Cutoffs are computed from the wall
// clock at each invocation.
type Reaper struct {
	cfg   *config.Manager
	store storage.Store
}

// NewReaper creates a retention reaper
func NewReaper(cfg *config.Manager, store storage.Store) *Reaper {
	return &Reaper{cfg: cfg, store: store}
}

// Run enforces retention hourly until ctx is cancelled
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

// reap runs one eviction pass. Storage failures are logged and the next
// pass retries; a failed eviction never takes anything else down.
func (r *Reaper) reap(ctx context.Context) {
	settings := r.cfg.Settings()
	now := time.Now()

	telemetryCutoff := now.Add(-time.Duration(settings.TelemetryRetentionHours) * time.Hour)
	removed, err := r.store.DeleteTelemetryBefore(ctx, telemetryCutoff)
	if err != nil {
		log.Error().Err(err).Msg("Telemetry eviction failed")
	} else if removed > 0 {
		log.Info().
			Int64("removed", removed).
			Int("retention_hours", settings.TelemetryRetentionHours).
			Msg("Evicted telemetry history")
	}

	logCutoff := now.Add(-time.Duration(settings.LogRetentionHours) * time.Hour)
	removed, err = r.store.DeleteActivityLogsBefore(ctx, logCutoff)
	if err != nil {
		log.Error().Err(err).Msg("Activity log eviction failed")
	} else if removed > 0 {
		log.Info().
			Int64("removed", removed).
			Int("retention_hours", settings.LogRetentionHours).
			Msg("Evicted activity logs")
	}
}
