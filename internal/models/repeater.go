package models

import (
	"time"
)

// Liveness classifies a repeater's current reachability
type Liveness string

const (
	// LivenessUnknown means the repeater has never been successfully polled
	LivenessUnknown Liveness = "unknown"
	LivenessOnline  Liveness = "online"
	LivenessOffline Liveness = "offline"
)

// RepeaterState represents the current view of a single repeater. It is
// built by the state table and is immutable once handed out.
type RepeaterState struct {
	PublicKey   string `json:"pubkey"`
	PubkeyShort string `json:"pubkeyShort"`
	Name        string `json:"name"`

	Liveness Liveness `json:"liveness"`
	// Online is kept alongside Liveness for the dashboard cards, which
	// only distinguish green from grey.
	Online bool `json:"online"`

	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
	LastError  string     `json:"lastError,omitempty"`

	// Latest telemetry, absent until the first successful poll
	Sample *TelemetrySample `json:"sample,omitempty"`

	// Routing as reported by the companion contact table
	HopCount  *int   `json:"hopCount,omitempty"` // nil = never heard, 0 = direct
	RoutePath string `json:"routePath,omitempty"`
}

// Snapshot is a full, self-contained rendering of all repeaters in
// configuration order, suitable for both queries and live push.
type Snapshot struct {
	TakenAt   time.Time       `json:"takenAt"`
	Repeaters []RepeaterState `json:"repeaters"`
}
