package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

// ActivityHook is a zerolog hook that mirrors log records into the
// activity_log store so the dashboard log viewer can show poll, ping and
// eviction events. Insert failures are swallowed: logging must never be
// able to take the logger down.
type ActivityHook struct {
	store    Store
	minLevel zerolog.Level
}

// NewActivityHook creates a hook mirroring records at or above minLevel
func NewActivityHook(store Store, minLevel zerolog.Level) *ActivityHook {
	return &ActivityHook{store: store, minLevel: minLevel}
}

// Run implements zerolog.Hook
func (h *ActivityHook) Run(e *zerolog.Event, level zerolog.Level, message string) {
	if level < h.minLevel || level == zerolog.NoLevel || message == "" {
		return
	}

	entry := &models.ActivityLog{
		Timestamp: time.Now().Unix(),
		Level:     hookLevel(level),
		Source:    "dashboard-server",
		Message:   message,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = h.store.InsertActivityLog(ctx, entry)
}

func hookLevel(level zerolog.Level) models.LogLevel {
	switch {
	case level >= zerolog.ErrorLevel:
		return models.LogLevelError
	case level == zerolog.WarnLevel:
		return models.LogLevelWarn
	case level == zerolog.InfoLevel:
		return models.LogLevelInfo
	default:
		return models.LogLevelDebug
	}
}
