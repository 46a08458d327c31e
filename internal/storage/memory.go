package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

// MemoryStore implements Store in process memory. It backs the service
// when no database DSN is configured and is the store used in tests.
// Samples per repeater are kept in insertion order, which the scheduler
// guarantees is timestamp order.
type MemoryStore struct {
	mu        sync.RWMutex
	telemetry map[string][]*models.TelemetrySample
	activity  []*models.ActivityLog
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		telemetry: make(map[string][]*models.TelemetrySample),
	}
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

// InsertTelemetry appends one sample
func (s *MemoryStore) InsertTelemetry(ctx context.Context, sample *models.TelemetrySample) error {
	cp := *sample

	s.mu.Lock()
	defer s.mu.Unlock()

	s.telemetry[sample.PublicKey] = append(s.telemetry[sample.PublicKey], &cp)
	return nil
}

// ListTelemetry returns samples since the given time, ascending by timestamp
func (s *MemoryStore) ListTelemetry(ctx context.Context, pubkey string, since time.Time) ([]*models.TelemetrySample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.TelemetrySample, 0)
	for _, sample := range s.telemetry[pubkey] {
		if sample.Timestamp > since.Unix() {
			cp := *sample
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// DeleteTelemetryBefore evicts samples strictly older than the cutoff
func (s *MemoryStore) DeleteTelemetryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for pubkey, samples := range s.telemetry {
		kept := samples[:0]
		for _, sample := range samples {
			if sample.Timestamp < cutoff.Unix() {
				removed++
				continue
			}
			kept = append(kept, sample)
		}
		s.telemetry[pubkey] = kept
	}

	return removed, nil
}

// InsertActivityLog records one log entry
func (s *MemoryStore) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	cp := *entry
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.activity = append(s.activity, &cp)
	return nil
}

// ListActivityLogs returns recent entries, newest first
func (s *MemoryStore) ListActivityLogs(ctx context.Context, filters ActivityLogFilters, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = 500
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ActivityLog, 0)
	for _, entry := range s.activity {
		if entry.Timestamp <= filters.Since.Unix() {
			continue
		}
		if filters.Level != nil && entry.Level != *filters.Level {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(entry.Message), strings.ToLower(filters.Search)) {
			continue
		}
		cp := *entry
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// DeleteActivityLogsBefore evicts entries strictly older than the cutoff
func (s *MemoryStore) DeleteActivityLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	kept := s.activity[:0]
	for _, entry := range s.activity {
		if entry.Timestamp < cutoff.Unix() {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	s.activity = kept

	return removed, nil
}
