package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

// ========== Telemetry Methods ==========

// InsertTelemetry appends one sample to the history
func (s *PostgresStore) InsertTelemetry(ctx context.Context, sample *models.TelemetrySample) error {
	query := `
		INSERT INTO telemetry_log (
			timestamp, pubkey, name, battery_mv, battery_voltage,
			rssi, snr, noise_floor, uptime_seconds,
			packets_recv, packets_sent, hop_count
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	var hops sql.NullInt32
	if sample.HopCount != nil {
		hops = sql.NullInt32{Int32: int32(*sample.HopCount), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		sample.Timestamp, sample.PublicKey, sample.Name,
		sample.BatteryMilliVolts, sample.BatteryVolts,
		sample.RSSI, sample.SNR, sample.NoiseFloor, sample.UptimeSeconds,
		sample.PacketsReceived, sample.PacketsSent, hops,
	)

	if err != nil {
		return &StorageError{Op: "insert telemetry", Err: err}
	}

	return nil
}

// ListTelemetry returns samples for a repeater since the given time,
// ascending by timestamp. No rows yields an empty slice, not an error.
func (s *PostgresStore) ListTelemetry(ctx context.Context, pubkey string, since time.Time) ([]*models.TelemetrySample, error) {
	query := `
		SELECT timestamp, pubkey, name, battery_mv, battery_voltage,
		       rssi, snr, noise_floor, uptime_seconds,
		       packets_recv, packets_sent, hop_count
		FROM telemetry_log
		WHERE pubkey = $1 AND timestamp > $2
		ORDER BY timestamp`

	rows, err := s.db.QueryContext(ctx, query, pubkey, since.Unix())
	if err != nil {
		return nil, &StorageError{Op: "list telemetry", Err: err}
	}
	defer rows.Close()

	samples := make([]*models.TelemetrySample, 0)
	for rows.Next() {
		sample := &models.TelemetrySample{}
		var hops sql.NullInt32

		if err := rows.Scan(
			&sample.Timestamp, &sample.PublicKey, &sample.Name,
			&sample.BatteryMilliVolts, &sample.BatteryVolts,
			&sample.RSSI, &sample.SNR, &sample.NoiseFloor, &sample.UptimeSeconds,
			&sample.PacketsReceived, &sample.PacketsSent, &hops,
		); err != nil {
			return nil, &StorageError{Op: "scan telemetry", Err: err}
		}

		if hops.Valid {
			h := int(hops.Int32)
			sample.HopCount = &h
		}

		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list telemetry", Err: err}
	}

	return samples, nil
}

// DeleteTelemetryBefore evicts samples strictly older than the cutoff.
// A sample at exactly the cutoff is retained.
func (s *PostgresStore) DeleteTelemetryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM telemetry_log WHERE timestamp < $1", cutoff.Unix())
	if err != nil {
		return 0, &StorageError{Op: "delete telemetry", Err: err}
	}

	return result.RowsAffected()
}
