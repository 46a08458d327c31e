package meshcore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// 帧格式: 2字节大端长度前缀 + payload, payload[0] 为命令/响应码
const (
	// MaxFrameSize bounds a single companion frame. The companion firmware
	// never produces frames beyond a few KB; anything larger means the
	// stream is out of sync.
	MaxFrameSize = 8192

	// MaxPathLen is the longest route a contact can carry
	MaxPathLen = 64
)

// 命令码 (host -> companion)
const (
	CmdGetContacts   = 0x04
	CmdSendLogin     = 0x1a
	CmdStatusRequest = 0x1b
	CmdSetPath       = 0x21
	CmdResetPath     = 0x22
)

// 响应码 (companion -> host)
const (
	RespOK       = 0x00
	RespErr      = 0x01
	RespContacts = 0x02
	RespStatus   = 0x03
)

var (
	// ErrFrameTooLarge indicates a length prefix beyond MaxFrameSize
	ErrFrameTooLarge = errors.New("meshcore: frame too large")

	// ErrShortPayload indicates a truncated frame payload
	ErrShortPayload = errors.New("meshcore: short payload")
)

// WriteFrame writes a length-prefixed frame
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(payload)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}

	return nil
}

// ReadFrame reads a single length-prefixed frame
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint16(hdr[:])
	if size == 0 {
		return nil, ErrShortPayload
	}
	if int(size) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	return payload, nil
}
