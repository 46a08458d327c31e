package models

import (
	"time"

	"github.com/google/uuid"
)

// LogLevel represents activity log severity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARNING"
	LogLevelError LogLevel = "ERROR"
)

// ActivityLog represents one structured log entry captured for the
// dashboard log viewer: every poll attempt, ping attempt and eviction
// run lands here.
type ActivityLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Timestamp int64     `json:"ts" db:"timestamp"` // epoch seconds
	Level     LogLevel  `json:"level" db:"level"`
	Source    string    `json:"source" db:"source"`
	Message   string    `json:"message" db:"message"`
}

// Time returns the entry timestamp as time.Time
func (l *ActivityLog) Time() time.Time {
	return time.Unix(l.Timestamp, 0)
}
