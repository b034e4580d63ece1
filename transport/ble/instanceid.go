package ble

import (
	"encoding/binary"

	"github.com/hapctl/hapctl/haperr"
)

// DecodeInstanceID parses the little-endian u16 value of the HAP
// instance-id descriptor.
func DecodeInstanceID(raw []byte) (uint16, error) {
	if len(raw) < 2 {
		return 0, haperr.NewProtocolError("ble", "instance-id descriptor: need 2 bytes, got %d", len(raw))
	}
	return binary.LittleEndian.Uint16(raw), nil
}
