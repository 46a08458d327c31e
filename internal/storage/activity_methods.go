package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

// ========== Activity Log Methods ==========

// InsertActivityLog records one log entry
func (s *PostgresStore) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO activity_log (id, timestamp, level, source, message)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Timestamp, string(entry.Level), entry.Source, entry.Message)
	if err != nil {
		return &StorageError{Op: "insert activity log", Err: err}
	}

	return nil
}

// ListActivityLogs returns recent entries, newest first
func (s *PostgresStore) ListActivityLogs(ctx context.Context, filters ActivityLogFilters, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT id, timestamp, level, source, message
		FROM activity_log
		WHERE timestamp > $1`
	args := []interface{}{filters.Since.Unix()}

	if filters.Level != nil {
		args = append(args, string(*filters.Level))
		query += fmt.Sprintf(" AND level = $%d", len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		query += fmt.Sprintf(" AND message ILIKE $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "list activity logs", Err: err}
	}
	defer rows.Close()

	entries := make([]*models.ActivityLog, 0)
	for rows.Next() {
		entry := &models.ActivityLog{}
		var level string

		if err := rows.Scan(&entry.ID, &entry.Timestamp, &level, &entry.Source, &entry.Message); err != nil {
			return nil, &StorageError{Op: "scan activity log", Err: err}
		}

		entry.Level = models.LogLevel(level)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list activity logs", Err: err}
	}

	return entries, nil
}

// DeleteActivityLogsBefore evicts entries strictly older than the cutoff
func (s *PostgresStore) DeleteActivityLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM activity_log WHERE timestamp < $1", cutoff.Unix())
	if err != nil {
		return 0, &StorageError{Op: "delete activity logs", Err: err}
	}

	return result.RowsAffected()
}
