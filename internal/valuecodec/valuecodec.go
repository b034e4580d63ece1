// Package valuecodec converts between HAP's named characteristic value
// formats (bool, uint8/16/32/64, int32, float, string, tlv8, data) and
// their little-endian wire representation, mirroring the format-code
// table that internal/device/descriptor_known_types.go maintains for
// generic GATT presentation-format descriptors.
package valuecodec

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/hapctl/hapctl/haperr"
)

// Format names a HAP characteristic value format.
type Format string

const (
	FormatBool   Format = "bool"
	FormatUint8  Format = "uint8"
	FormatUint16 Format = "uint16"
	FormatUint32 Format = "uint32"
	FormatUint64 Format = "uint64"
	FormatInt32  Format = "int"
	FormatFloat  Format = "float"
	FormatString Format = "string"
	FormatTLV8   Format = "tlv8"
	FormatData   Format = "data"
)

// CompatMode selects between the 64-bit-correct codec and a mode that
// reproduces a historical controller defect where the high 32 bits of a
// uint64 value were always encoded as zero, for interop testing against
// accessories/controllers that expect that behavior.
type CompatMode int

const (
	Strict CompatMode = iota
	LegacyHighWordZero
)

// Encode renders v (a Go value matching format) as little-endian bytes.
func Encode(format Format, v interface{}, mode CompatMode) ([]byte, error) {
	switch format {
	case FormatBool:
		b, ok := v.(bool)
		if !ok {
			return nil, haperr.NewUsageError("valuecodec: expected bool, got %T", v)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case FormatUint8:
		n, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		return []byte{byte(n)}, nil
	case FormatUint16:
		n, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(n))
		return buf, nil
	case FormatUint32:
		n, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(n))
		return buf, nil
	case FormatUint64:
		n, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		if mode == LegacyHighWordZero {
			binary.LittleEndian.PutUint32(buf[0:4], uint32(n))
			binary.LittleEndian.PutUint32(buf[4:8], 0)
		} else {
			binary.LittleEndian.PutUint64(buf, n)
		}
		return buf, nil
	case FormatInt32:
		n, ok := v.(int32)
		if !ok {
			n64, err := toInt64(v)
			if err != nil {
				return nil, err
			}
			n = int32(n64)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(n))
		return buf, nil
	case FormatFloat:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(f)))
		return buf, nil
	case FormatString:
		s, ok := v.(string)
		if !ok {
			return nil, haperr.NewUsageError("valuecodec: expected string, got %T", v)
		}
		return []byte(s), nil
	case FormatTLV8, FormatData:
		b, ok := v.([]byte)
		if !ok {
			return nil, haperr.NewUsageError("valuecodec: expected []byte, got %T", v)
		}
		return b, nil
	default:
		return nil, haperr.NewUsageError("valuecodec: unknown format %q", format)
	}
}

// Decode parses raw little-endian bytes into a Go value matching format.
func Decode(format Format, raw []byte, mode CompatMode) (interface{}, error) {
	switch format {
	case FormatBool:
		if len(raw) == 0 {
			return false, nil
		}
		return raw[0] != 0, nil
	case FormatUint8:
		if len(raw) < 1 {
			return nil, haperr.NewProtocolError("valuecodec", "uint8: need 1 byte, got %d", len(raw))
		}
		return uint8(raw[0]), nil
	case FormatUint16:
		if len(raw) < 2 {
			return nil, haperr.NewProtocolError("valuecodec", "uint16: need 2 bytes, got %d", len(raw))
		}
		return binary.LittleEndian.Uint16(raw), nil
	case FormatUint32:
		if len(raw) < 4 {
			return nil, haperr.NewProtocolError("valuecodec", "uint32: need 4 bytes, got %d", len(raw))
		}
		return binary.LittleEndian.Uint32(raw), nil
	case FormatUint64:
		if len(raw) < 8 {
			return nil, haperr.NewProtocolError("valuecodec", "uint64: need 8 bytes, got %d", len(raw))
		}
		if mode == LegacyHighWordZero {
			return uint64(binary.LittleEndian.Uint32(raw[0:4])), nil
		}
		return binary.LittleEndian.Uint64(raw), nil
	case FormatInt32:
		if len(raw) < 4 {
			return nil, haperr.NewProtocolError("valuecodec", "int32: need 4 bytes, got %d", len(raw))
		}
		return int32(binary.LittleEndian.Uint32(raw)), nil
	case FormatFloat:
		if len(raw) < 4 {
			return nil, haperr.NewProtocolError("valuecodec", "float: need 4 bytes, got %d", len(raw))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw))), nil
	case FormatString:
		return string(raw), nil
	case FormatTLV8, FormatData:
		return append([]byte(nil), raw...), nil
	default:
		return nil, haperr.NewUsageError("valuecodec: unknown format %q", format)
	}
}

// EncodeDataBase64 renders raw bytes as the base64 string HAP's JSON
// transport uses for "data" and "tlv8" formatted values.
func EncodeDataBase64(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeDataBase64 parses a base64 string back into raw bytes.
func DecodeDataBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, haperr.NewProtocolError("valuecodec", "invalid base64: %v", err)
	}
	return b, nil
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	default:
		return 0, haperr.NewUsageError("valuecodec: expected integer, got %T", v)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, haperr.NewUsageError("valuecodec: expected integer, got %T", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, haperr.NewUsageError("valuecodec: expected number, got %T", v)
	}
}
