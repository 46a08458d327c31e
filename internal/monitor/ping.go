package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

// CooldownPeriod is the fixed per-repeater spacing between on-demand
// probes, independent of the poll interval
const CooldownPeriod = 30 * time.Second

// ErrUnknownRepeater indicates a ping for a pubkey that is not configured
var ErrUnknownRepeater = errors.New("unknown repeater")

// cooldownEntry tracks one repeater's probe window. An in-flight probe
// counts as cooling: a repeater has at most one outstanding or
// cooling-down probe at a time.
type cooldownEntry struct {
	expiresAt time.Time
	inFlight  bool
	last      *models.PingResult
}

// PingCoordinator serves operator-triggered liveness probes with a
// server-side cooldown, so every connected dashboard sees the same
// cooldown state.
type PingCoordinator struct {
	cfg   *config.Manager
	gw    GatewayClient
	table *StateTable
	hub   SnapshotPublisher

	mu      sync.Mutex
	entries map[string]*cooldownEntry
}

// NewPingCoordinator creates a ping coordinator
func NewPingCoordinator(cfg *config.Manager, gw GatewayClient, table *StateTable, hub SnapshotPublisher) *PingCoordinator {
	return &PingCoordinator{
		cfg:     cfg,
		gw:      gw,
		table:   table,
		hub:     hub,
		entries: make(map[string]*cooldownEntry),
	}
}

// Ping issues an immediate probe for one repeater. When a cooldown is
// active it returns the cooldown status without touching the gateway and
// no error. Gateway failures come back as a failed PingResult, not an
// error; ErrUnknownRepeater is the only error case.
func (p *PingCoordinator) Ping(ctx context.Context, pubkey string) (*models.PingResult, *models.CooldownStatus, error) {
	repeater, found := p.findRepeater(pubkey)
	if !found {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownRepeater, pubkey)
	}

	now := time.Now()

	p.mu.Lock()
	entry, exists := p.entries[repeater.PublicKey]
	if exists && (entry.inFlight || now.Before(entry.expiresAt)) {
		status := &models.CooldownStatus{
			PublicKey:        repeater.PublicKey,
			ExpiresAt:        entry.expiresAt,
			RemainingSeconds: int(time.Until(entry.expiresAt).Round(time.Second) / time.Second),
			LastResult:       entry.last,
		}
		if status.RemainingSeconds < 0 {
			status.RemainingSeconds = 0
		}
		p.mu.Unlock()
		return nil, status, nil
	}

	// Arm the cooldown before releasing the lock so a concurrent ping
	// for the same repeater is rejected while this one is in flight.
	entry = &cooldownEntry{
		expiresAt: now.Add(CooldownPeriod),
		inFlight:  true,
	}
	if exists {
		entry.last = p.entries[repeater.PublicKey].last
	}
	p.entries[repeater.PublicKey] = entry
	p.mu.Unlock()

	result := p.probe(ctx, repeater)

	p.mu.Lock()
	entry.inFlight = false
	entry.last = result
	p.mu.Unlock()

	return result, nil, nil
}

// probe performs the actual gateway exchange
func (p *PingCoordinator) probe(ctx context.Context, repeater config.RepeaterSettings) *models.PingResult {
	settings := p.cfg.Settings()

	callCtx, cancel := context.WithTimeout(ctx, settings.PingTimeout())
	latency, err := p.gw.SendPing(callCtx, repeater)
	cancel()

	result := &models.PingResult{
		PublicKey: repeater.PublicKey,
		At:        time.Now(),
	}

	if err != nil {
		result.FailReason = err.Error()
		log.Warn().
			Err(err).
			Str("repeater", repeater.Name).
			Msg("Ping failed")
		return result
	}

	result.OK = true
	result.LatencyMS = latency.Milliseconds()

	// A successful probe is evidence of liveness, but never telemetry:
	// it touches last-seen and goes nowhere near the history store.
	p.table.MarkSeen(repeater.PublicKey, result.At)
	p.hub.Publish(p.table.Snapshot())

	log.Info().
		Str("repeater", repeater.Name).
		Int64("latency_ms", result.LatencyMS).
		Msg("Ping succeeded")

	return result
}

// findRepeater resolves a pubkey (full or prefix) against the configured
// repeater list
func (p *PingCoordinator) findRepeater(pubkey string) (config.RepeaterSettings, bool) {
	if pubkey == "" {
		return config.RepeaterSettings{}, false
	}

	pubkey = strings.ToLower(pubkey)
	for _, r := range p.cfg.Settings().Repeaters {
		configured := strings.ToLower(r.PublicKey)
		if strings.HasPrefix(configured, pubkey) || strings.HasPrefix(pubkey, configured) {
			return r, true
		}
	}

	return config.RepeaterSettings{}, false
}
