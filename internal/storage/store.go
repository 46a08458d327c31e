package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

// Common errors
var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidData = errors.New("invalid data")
)

// StorageError wraps an unrecoverable persistence failure. The poll
// scheduler and the request path log these and keep going; they never
// abort on one.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ActivityLogFilters represents filters for activity log queries
type ActivityLogFilters struct {
	Since  time.Time
	Level  *models.LogLevel
	Search string
}

// Store defines the history storage interface
type Store interface {
	// Telemetry history
	InsertTelemetry(ctx context.Context, sample *models.TelemetrySample) error
	ListTelemetry(ctx context.Context, pubkey string, since time.Time) ([]*models.TelemetrySample, error)
	DeleteTelemetryBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Activity log
	InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error
	ListActivityLogs(ctx context.Context, filters ActivityLogFilters, limit int) ([]*models.ActivityLog, error)
	DeleteActivityLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close the store
	Close() error
}
