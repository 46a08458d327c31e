package models

import (
	"time"
)

// PingResult represents the outcome of an on-demand liveness probe
type PingResult struct {
	PublicKey  string    `json:"pubkey"`
	OK         bool      `json:"ok"`
	LatencyMS  int64     `json:"latencyMs,omitempty"`
	FailReason string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// CooldownStatus describes an active per-repeater ping cooldown. It is the
// authoritative server-side state; dashboard countdown timers only render it.
type CooldownStatus struct {
	PublicKey        string      `json:"pubkey"`
	ExpiresAt        time.Time   `json:"expiresAt"`
	RemainingSeconds int         `json:"remainingSeconds"`
	LastResult       *PingResult `json:"lastResult,omitempty"`
}
