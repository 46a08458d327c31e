package monitor

import (
	"sync"
	"time"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

// repeaterEntry is the mutable per-repeater record. Only the poll
// scheduler and a successful ping mutate entries; everything else reads
// snapshots.
type repeaterEntry struct {
	pubkey    string
	name      string
	sample    *models.TelemetrySample
	lastSeen  time.Time
	lastError string
	hopCount  *int
	routePath string
}

// StateTable holds the authoritative current view of all configured
// repeaters, in configuration order. Liveness is recomputed lazily at
// read time as a pure function of time since last success, so a silent
// repeater flips to offline even when no new poll attempt has run yet.
type StateTable struct {
	mu             sync.RWMutex
	order          []string
	entries        map[string]*repeaterEntry
	staleThreshold time.Duration
}

// NewStateTable creates an empty state table
func NewStateTable(staleThreshold time.Duration) *StateTable {
	return &StateTable{
		entries:        make(map[string]*repeaterEntry),
		staleThreshold: staleThreshold,
	}
}

// SetStaleThreshold installs a new staleness threshold. Applied by the
// scheduler at cycle boundaries when settings change.
func (t *StateTable) SetStaleThreshold(d time.Duration) {
	t.mu.Lock()
	t.staleThreshold = d
	t.mu.Unlock()
}

// SyncConfigured reconciles the table with the configured repeater list:
// new repeaters are added with unknown state, removed ones dropped,
// renamed ones updated. Kept repeaters retain their state untouched, and
// the table order follows the configuration order.
func (t *StateTable) SyncConfigured(repeaters []config.RepeaterSettings) {
	t.mu.Lock()
	defer t.mu.Unlock()

	order := make([]string, 0, len(repeaters))
	configured := make(map[string]bool, len(repeaters))

	for _, r := range repeaters {
		configured[r.PublicKey] = true
		order = append(order, r.PublicKey)

		if entry, exists := t.entries[r.PublicKey]; exists {
			entry.name = r.Name
			continue
		}
		t.entries[r.PublicKey] = &repeaterEntry{pubkey: r.PublicKey, name: r.Name}
	}

	for pubkey := range t.entries {
		if !configured[pubkey] {
			delete(t.entries, pubkey)
		}
	}

	t.order = order
}

// ApplySample records a successful poll: latest telemetry, routing info
// and last-seen all advance atomically.
func (t *StateTable) ApplySample(pubkey string, sample *models.TelemetrySample, hopCount *int, routePath string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.entries[pubkey]
	if !exists {
		return
	}

	entry.sample = sample
	entry.lastSeen = sample.Time()
	entry.lastError = ""
	entry.hopCount = hopCount
	entry.routePath = routePath
}

// ApplyFailure records a failed poll attempt. Liveness is untouched: a
// single dropped poll must not flap the indicator while the repeater is
// still within the stale threshold.
func (t *StateTable) ApplyFailure(pubkey string, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.entries[pubkey]
	if !exists {
		return
	}

	entry.lastError = reason
}

// MarkSeen advances last-seen after a successful interactive ping. A
// probe answer is itself evidence of liveness, but carries no telemetry.
func (t *StateTable) MarkSeen(pubkey string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.entries[pubkey]
	if !exists {
		return
	}

	if at.After(entry.lastSeen) {
		entry.lastSeen = at
		entry.lastError = ""
	}
}

// Get returns the current state of one repeater
func (t *StateTable) Get(pubkey string) (models.RepeaterState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, exists := t.entries[pubkey]
	if !exists {
		return models.RepeaterState{}, false
	}

	return t.render(entry, time.Now()), true
}

// Snapshot returns the full current view in configuration order
func (t *StateTable) Snapshot() models.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	snapshot := models.Snapshot{
		TakenAt:   now,
		Repeaters: make([]models.RepeaterState, 0, len(t.order)),
	}

	for _, pubkey := range t.order {
		if entry, exists := t.entries[pubkey]; exists {
			snapshot.Repeaters = append(snapshot.Repeaters, t.render(entry, now))
		}
	}

	return snapshot
}

// render builds an immutable state record. Caller holds at least a read lock.
func (t *StateTable) render(entry *repeaterEntry, now time.Time) models.RepeaterState {
	state := models.RepeaterState{
		PublicKey: entry.pubkey,
		Name:      entry.name,
		Liveness:  models.LivenessUnknown,
		LastError: entry.lastError,
		Sample:    entry.sample,
		HopCount:  entry.hopCount,
		RoutePath: entry.routePath,
	}

	if len(entry.pubkey) >= 12 {
		state.PubkeyShort = entry.pubkey[:12]
	} else {
		state.PubkeyShort = entry.pubkey
	}

	if !entry.lastSeen.IsZero() {
		seen := entry.lastSeen
		state.LastSeenAt = &seen

		if now.Sub(entry.lastSeen) < t.staleThreshold {
			state.Liveness = models.LivenessOnline
			state.Online = true
		} else {
			state.Liveness = models.LivenessOffline
		}
	}

	return state
}
