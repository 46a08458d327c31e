package models

import (
	"time"
)

// TelemetrySample represents one poll result for a repeater. A sample is
// immutable once recorded; history rows are only ever inserted or evicted
// in bulk by age.
type TelemetrySample struct {
	PublicKey string `json:"pubkey" db:"pubkey"`
	Name      string `json:"name" db:"name"`
	Timestamp int64  `json:"ts" db:"timestamp"` // capture time, epoch seconds

	BatteryMilliVolts int     `json:"batteryMv" db:"battery_mv"` // <=0 means unknown
	BatteryVolts      float64 `json:"batteryV" db:"battery_voltage"`
	RSSI              int     `json:"rssi" db:"rssi"` // dBm, 0 means unknown
	SNR               float64 `json:"snr" db:"snr"`   // dB, 0 means unknown
	NoiseFloor        int     `json:"noiseFloor" db:"noise_floor"`
	UptimeSeconds     int64   `json:"uptime" db:"uptime_seconds"`

	PacketsReceived int64 `json:"packetsRecv" db:"packets_recv"`
	PacketsSent     int64 `json:"packetsSent" db:"packets_sent"`

	// HopCount is nil when the companion has never heard the repeater;
	// 0 is a legitimate direct/flood contact.
	HopCount *int `json:"hopCount,omitempty" db:"hop_count"`
}

// Time returns the capture timestamp as time.Time
func (s *TelemetrySample) Time() time.Time {
	return time.Unix(s.Timestamp, 0)
}
