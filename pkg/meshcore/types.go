package meshcore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// PublicKey represents a 32-byte repeater identity key
type PublicKey [32]byte

// String returns hex string representation
func (k PublicKey) String() string {
	return hex.EncodeToString(k[:])
}

// Short returns the abbreviated form shown on dashboard cards
func (k PublicKey) Short() string {
	return k.String()[:12]
}

// MarshalJSON implements json.Marshaler
func (k PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (k *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParsePublicKey(s)
	if err != nil {
		return err
	}

	*k = parsed
	return nil
}

// ParsePublicKey parses a full 64-character hex public key
func ParsePublicKey(s string) (PublicKey, error) {
	var key PublicKey

	b, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("invalid public key hex: %w", err)
	}

	if len(b) != 32 {
		return key, fmt.Errorf("invalid public key length: %d", len(b))
	}

	copy(key[:], b)
	return key, nil
}

// MatchesPrefix reports whether the key matches a hex prefix. Operators
// often configure only the leading bytes of a repeater key, and companion
// firmware versions differ in how much of the key they report, so matching
// works in both directions.
func (k PublicKey) MatchesPrefix(prefix string) bool {
	if prefix == "" {
		return false
	}
	full := k.String()
	prefix = strings.ToLower(prefix)
	return strings.HasPrefix(full, prefix) || strings.HasPrefix(prefix, full)
}

// Contact represents a mesh node known to the companion device
type Contact struct {
	PublicKey  PublicKey `json:"publicKey"`
	Name       string    `json:"name"`
	OutPathLen int8      `json:"outPathLen"` // -1 = flood routing, no stored path
	OutPath    []byte    `json:"outPath,omitempty"`
	LastAdvert uint32    `json:"lastAdvert,omitempty"` // epoch seconds of last advert heard
}

// Hops returns the hop count of the stored route, or -1 for flood
func (c *Contact) Hops() int {
	if c.OutPathLen < 0 {
		return -1
	}
	return int(c.OutPathLen)
}

// RoutePath renders the stored path as "4d > 3c > ee"
func (c *Contact) RoutePath() string {
	if c.OutPathLen <= 0 || len(c.OutPath) == 0 {
		return ""
	}

	parts := make([]string, 0, len(c.OutPath))
	for _, b := range c.OutPath {
		parts = append(parts, fmt.Sprintf("%02x", b))
	}
	return strings.Join(parts, " > ")
}

// ParsePath parses a comma-separated hex path like "4d,3c,ee"
func ParsePath(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	path := make([]byte, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		b, err := hex.DecodeString(p)
		if err != nil || len(b) != 1 {
			return nil, fmt.Errorf("invalid path hop %q", p)
		}
		path = append(path, b[0])
	}

	if len(path) > MaxPathLen {
		return nil, fmt.Errorf("path too long: %d hops (max %d)", len(path), MaxPathLen)
	}

	return path, nil
}

// Status represents a repeater status reply
type Status struct {
	BatteryMilliVolts uint16  `json:"batteryMv"`
	UptimeSeconds     uint32  `json:"uptimeSeconds"`
	LastRSSI          int16   `json:"lastRssi"`
	LastSNR           float64 `json:"lastSnr"` // dB, quarter-dB resolution on the wire
	NoiseFloor        int16   `json:"noiseFloor"`
	PacketsReceived   uint32  `json:"packetsReceived"`
	PacketsSent       uint32  `json:"packetsSent"`
}
