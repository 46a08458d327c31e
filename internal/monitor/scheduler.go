package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/storage"
	"github.com/mattwynharris/Meshcore-Dashboard/pkg/meshcore"
)

// GatewayClient is the companion transport consumed by the engine
type GatewayClient interface {
	Reconfigure(host string, port int)
	RefreshContacts(ctx context.Context) error
	GetStatus(ctx context.Context, repeater config.RepeaterSettings) (*meshcore.Status, *meshcore.Contact, error)
	SendPing(ctx context.Context, repeater config.RepeaterSettings) (time.Duration, error)
}

// SnapshotPublisher receives the full state snapshot after every
// repeater update
type SnapshotPublisher interface {
	Publish(snapshot models.Snapshot)
}

// EventPublisher receives engine events for external integration.
// Optional; a nil publisher disables it.
type EventPublisher interface {
	PublishSample(sample *models.TelemetrySample)
	PublishState(state models.RepeaterState)
}

// Scheduler drives the poll cycle: every configured repeater is visited
// once per poll interval, spaced by the stagger delay so the shared
// companion link never sees back-to-back status requests. Polls are
// strictly sequential; a second poll is never issued while one is
// outstanding.
type Scheduler struct {
	cfg     *config.Manager
	gw      GatewayClient
	table   *StateTable
	store   storage.Store
	hub     SnapshotPublisher
	events  EventPublisher

	// liveness seen at last publish, for edge-triggered state events
	published map[string]models.Liveness
}

// NewScheduler creates a poll scheduler
func NewScheduler(cfg *config.Manager, gw GatewayClient, table *StateTable, store storage.Store, hub SnapshotPublisher, events EventPublisher) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		gw:        gw,
		table:     table,
		store:     store,
		hub:       hub,
		events:    events,
		published: make(map[string]models.Liveness),
	}
}

// Run executes poll cycles until ctx is cancelled. Settings changes are
// picked up at the next cycle boundary; kept repeaters carry their state
// across boundaries untouched. The in-flight gateway call always
// finishes or times out before the loop exits.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Msg("Poll scheduler started")

	for {
		settings := s.cfg.Settings()

		s.gw.Reconfigure(settings.CompanionHost, settings.CompanionPort)
		s.table.SetStaleThreshold(settings.StaleThreshold())
		s.table.SyncConfigured(settings.Repeaters)

		// 新订阅者连接时立即可见当前状态
		s.hub.Publish(s.table.Snapshot())

		cycleStart := time.Now()
		s.runCycle(ctx, settings)
		if ctx.Err() != nil {
			log.Info().Msg("Poll scheduler stopped")
			return
		}

		elapsed := time.Since(cycleStart)
		remaining := settings.PollInterval() - elapsed
		if remaining > 0 {
			log.Info().
				Dur("elapsed", elapsed).
				Dur("next_in", remaining).
				Msg("Poll cycle complete")

			select {
			case <-ctx.Done():
				log.Info().Msg("Poll scheduler stopped")
				return
			case <-s.cfg.Changes():
				// Start the next cycle immediately with fresh settings
			case <-time.After(remaining):
			}
		}
	}
}

// runCycle polls every repeater once, in configuration order
func (s *Scheduler) runCycle(ctx context.Context, settings config.Settings) {
	if len(settings.Repeaters) == 0 {
		return
	}

	refreshCtx, cancel := context.WithTimeout(ctx, settings.PollTimeout())
	err := s.gw.RefreshContacts(refreshCtx)
	cancel()
	if err != nil {
		// Polls below still run against the cached contact table
		log.Warn().Err(err).Msg("Contact refresh failed")
	}

	for i, repeater := range settings.Repeaters {
		if ctx.Err() != nil {
			return
		}

		s.pollOne(ctx, settings, repeater, i)

		if i < len(settings.Repeaters)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(settings.StaggerDelay()):
			}
		}
	}
}

// pollOne issues one status poll and applies the outcome. Every failure
// is recoverable: it is logged, recorded in the state table, and the
// cycle moves on.
func (s *Scheduler) pollOne(ctx context.Context, settings config.Settings, repeater config.RepeaterSettings, index int) {
	log.Info().
		Str("repeater", repeater.Name).
		Int("index", index+1).
		Int("total", len(settings.Repeaters)).
		Msg("Polling repeater")

	callCtx, cancel := context.WithTimeout(ctx, settings.PollTimeout())
	status, contact, err := s.gw.GetStatus(callCtx, repeater)
	cancel()

	if err != nil {
		log.Warn().
			Err(err).
			Str("repeater", repeater.Name).
			Msg("Poll failed")
		s.table.ApplyFailure(repeater.PublicKey, err.Error())
		s.publishUpdate(repeater.PublicKey)
		return
	}

	sample := buildSample(repeater, status, contact)
	s.table.ApplySample(repeater.PublicKey, sample, sample.HopCount, routePath(contact))

	if insertErr := s.store.InsertTelemetry(ctx, sample); insertErr != nil {
		// 存储失败不能中断轮询周期
		log.Error().
			Err(insertErr).
			Str("repeater", repeater.Name).
			Msg("History append failed")
	}

	if s.events != nil {
		s.events.PublishSample(sample)
	}

	log.Info().
		Str("repeater", repeater.Name).
		Int("battery_mv", sample.BatteryMilliVolts).
		Int("rssi", sample.RSSI).
		Float64("snr", sample.SNR).
		Msg("Poll succeeded")

	s.publishUpdate(repeater.PublicKey)
}

// publishUpdate pushes a fresh snapshot to subscribers and emits a state
// transition event when a repeater's liveness changed
func (s *Scheduler) publishUpdate(pubkey string) {
	snapshot := s.table.Snapshot()
	s.hub.Publish(snapshot)

	if s.events == nil {
		return
	}

	state, exists := s.table.Get(pubkey)
	if !exists {
		return
	}

	if s.published[pubkey] != state.Liveness {
		s.published[pubkey] = state.Liveness
		s.events.PublishState(state)
	}
}

// buildSample converts a status reply into an immutable telemetry sample
func buildSample(repeater config.RepeaterSettings, status *meshcore.Status, contact *meshcore.Contact) *models.TelemetrySample {
	sample := &models.TelemetrySample{
		PublicKey:         repeater.PublicKey,
		Name:              repeater.Name,
		Timestamp:         time.Now().Unix(),
		BatteryMilliVolts: int(status.BatteryMilliVolts),
		BatteryVolts:      float64(status.BatteryMilliVolts) / 1000.0,
		RSSI:              int(status.LastRSSI),
		SNR:               status.LastSNR,
		NoiseFloor:        int(status.NoiseFloor),
		UptimeSeconds:     int64(status.UptimeSeconds),
		PacketsReceived:   int64(status.PacketsReceived),
		PacketsSent:       int64(status.PacketsSent),
	}

	if contact != nil {
		hops := contact.Hops()
		if hops < 0 {
			hops = 0 // flood routing counts as direct
		}
		sample.HopCount = &hops
	}

	return sample
}

// routePath renders the contact's stored route for display
func routePath(contact *meshcore.Contact) string {
	if contact == nil {
		return ""
	}
	return contact.RoutePath()
}
