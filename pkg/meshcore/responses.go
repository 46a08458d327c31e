package meshcore

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// DeviceError represents an error reply from the companion firmware
type DeviceError struct {
	Code byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("companion error code 0x%02x", e.Code)
}

// ParseContacts parses a RespContacts payload
func ParseContacts(payload []byte) ([]Contact, error) {
	if len(payload) < 3 || payload[0] != RespContacts {
		return nil, ErrShortPayload
	}

	count := binary.LittleEndian.Uint16(payload[1:3])
	contacts := make([]Contact, 0, count)
	off := 3

	for i := 0; i < int(count); i++ {
		// pubkey[32] + name[32] + pathLen[1]
		if len(payload) < off+65 {
			return nil, ErrShortPayload
		}

		var c Contact
		copy(c.PublicKey[:], payload[off:off+32])
		off += 32

		c.Name = strings.TrimRight(string(payload[off:off+32]), "\x00")
		off += 32

		c.OutPathLen = int8(payload[off])
		off++

		if c.OutPathLen > 0 {
			n := int(c.OutPathLen)
			if n > MaxPathLen || len(payload) < off+n {
				return nil, ErrShortPayload
			}
			c.OutPath = append([]byte(nil), payload[off:off+n]...)
			off += n
		}

		if len(payload) < off+4 {
			return nil, ErrShortPayload
		}
		c.LastAdvert = binary.LittleEndian.Uint32(payload[off : off+4])
		off += 4

		contacts = append(contacts, c)
	}

	return contacts, nil
}

// EncodeContacts encodes a contact table reply. Used by the companion
// simulator and by tests.
func EncodeContacts(contacts []Contact) []byte {
	payload := []byte{RespContacts, 0, 0}
	binary.LittleEndian.PutUint16(payload[1:3], uint16(len(contacts)))

	for _, c := range contacts {
		payload = append(payload, c.PublicKey[:]...)

		var name [32]byte
		copy(name[:], c.Name)
		payload = append(payload, name[:]...)

		payload = append(payload, byte(c.OutPathLen))
		if c.OutPathLen > 0 {
			payload = append(payload, c.OutPath[:c.OutPathLen]...)
		}

		var advert [4]byte
		binary.LittleEndian.PutUint32(advert[:], c.LastAdvert)
		payload = append(payload, advert[:]...)
	}

	return payload
}

// statusPayloadLen is code + bat(2) + uptime(4) + rssi(2) + snr(1) +
// noise(2) + recv(4) + sent(4)
const statusPayloadLen = 20

// ParseStatus parses a RespStatus payload
func ParseStatus(payload []byte) (*Status, error) {
	if len(payload) < statusPayloadLen || payload[0] != RespStatus {
		return nil, ErrShortPayload
	}

	s := &Status{
		BatteryMilliVolts: binary.LittleEndian.Uint16(payload[1:3]),
		UptimeSeconds:     binary.LittleEndian.Uint32(payload[3:7]),
		LastRSSI:          int16(binary.LittleEndian.Uint16(payload[7:9])),
		LastSNR:           float64(int8(payload[9])) / 4.0, // 线路上为 1/4 dB
		NoiseFloor:        int16(binary.LittleEndian.Uint16(payload[10:12])),
		PacketsReceived:   binary.LittleEndian.Uint32(payload[12:16]),
		PacketsSent:       binary.LittleEndian.Uint32(payload[16:20]),
	}

	return s, nil
}

// EncodeStatus encodes a status reply. Used by the companion simulator
// and by tests.
func EncodeStatus(s *Status) []byte {
	payload := make([]byte, statusPayloadLen)
	payload[0] = RespStatus
	binary.LittleEndian.PutUint16(payload[1:3], s.BatteryMilliVolts)
	binary.LittleEndian.PutUint32(payload[3:7], s.UptimeSeconds)
	binary.LittleEndian.PutUint16(payload[7:9], uint16(s.LastRSSI))
	payload[9] = byte(int8(s.LastSNR * 4))
	binary.LittleEndian.PutUint16(payload[10:12], uint16(s.NoiseFloor))
	binary.LittleEndian.PutUint32(payload[12:16], s.PacketsReceived)
	binary.LittleEndian.PutUint32(payload[16:20], s.PacketsSent)
	return payload
}

// ParseResponse classifies a reply payload and returns the decoded value:
// []Contact, *Status, or nil for a bare OK.
func ParseResponse(payload []byte) (interface{}, error) {
	if len(payload) == 0 {
		return nil, ErrShortPayload
	}

	switch payload[0] {
	case RespOK:
		return nil, nil
	case RespErr:
		if len(payload) < 2 {
			return nil, ErrShortPayload
		}
		return nil, &DeviceError{Code: payload[1]}
	case RespContacts:
		return ParseContacts(payload)
	case RespStatus:
		return ParseStatus(payload)
	default:
		return nil, fmt.Errorf("meshcore: unknown response code 0x%02x", payload[0])
	}
}
