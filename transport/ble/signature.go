package ble

import (
	"encoding/binary"

	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/tlv8"
	"github.com/hapctl/hapctl/internal/valuecodec"
)

// Sub-TLV tags carried inside a characteristic-signature-read response
// body ("the response TLV may contain characteristic
// properties, user description, presentation format, valid range, step,
// valid values list, and valid values range"). HAP enumerates these
// logical fields without assigning wire tag numbers; this package
// assigns them sequentially in a fixed order, consistent with how
// pairing/tags.go's TagSessionID documents its own package-local
// extension tag.
const (
	sigTagProperties       byte = 0x01
	sigTagUserDescription  byte = 0x02
	sigTagPresentationFmt  byte = 0x03
	sigTagValidRange       byte = 0x04
	sigTagStep             byte = 0x05
	sigTagValidValues      byte = 0x06
	sigTagValidValuesRange byte = 0x07
)

// Property bits carried in sigTagProperties (u16 LE), the characteristic
// properties bitmask a signature-read response describes.
const (
	PropertyRead                   uint16 = 1 << 0
	PropertyWrite                 uint16 = 1 << 1
	PropertyAdditionalAuth         uint16 = 1 << 2
	PropertyTimedWrite              uint16 = 1 << 3
	PropertySecureRead             uint16 = 1 << 4
	PropertySecureWrite            uint16 = 1 << 5
	PropertyNotifyEvent            uint16 = 1 << 6
	PropertyNotifyDisconnected     uint16 = 1 << 7
	PropertyNotifyBroadcast        uint16 = 1 << 8
)

// btSigFormat maps BT-SIG presentation-format codes to HAP's named
// value.Format ('s format-code table).
var btSigFormat = map[byte]valuecodec.Format{
	0x01: valuecodec.FormatBool,
	0x04: valuecodec.FormatUint8,
	0x06: valuecodec.FormatUint16,
	0x08: valuecodec.FormatUint32,
	0x0A: valuecodec.FormatUint64,
	0x10: valuecodec.FormatInt32,
	0x14: valuecodec.FormatFloat,
	0x19: valuecodec.FormatString,
	0x1B: valuecodec.FormatData,
}

// FormatFromBTSIG resolves a BT-SIG format code to its HAP format name,
// returning ok=false for a code HAP never uses.
func FormatFromBTSIG(code byte) (valuecodec.Format, bool) {
	f, ok := btSigFormat[code]
	return f, ok
}

// btSigUnit maps BT-SIG GATT unit codes to the HAP unit string an
// accessory database entry's "unit" field carries.
var btSigUnit = map[uint16]string{
	0x2700: "",
	0x2703: "percentage",
	0x272F: "arcdegrees",
	0x2705: "celsius",
	0x2731: "lux",
	0x2703 + 1: "seconds",
}

// UnitFromBTSIG resolves a BT-SIG unit code to its HAP unit string,
// returning "" for unitless or unrecognized codes.
func UnitFromBTSIG(code uint16) string {
	return btSigUnit[code]
}

// PresentationFormat is the decoded format/unit/namespace sub-TLV of a
// characteristic-signature-read response.
type PresentationFormat struct {
	Format   valuecodec.Format
	Unit     string
	Exponent int8
}

// ValueRange is one (min, max) pair; a characteristic's valid-values-range
// field may carry several; an open question resolved here to preserve
// all pairs rather than slicing to the first.
type ValueRange struct {
	Min []byte
	Max []byte
}

// Signature is the fully decoded body of a characteristic-signature-read
// response.
type Signature struct {
	Properties       uint16
	HasProperties    bool
	UserDescription  string
	Format           *PresentationFormat
	ValidRange       *ValueRange
	Step             []byte
	ValidValues      [][]byte
	ValidValuesRange []ValueRange
}

// ParseSignature decodes a characteristic-signature-read response body
// into its optional sub-fields.
func ParseSignature(body []byte) (*Signature, error) {
	v, err := tlv8.Decode(body)
	if err != nil {
		return nil, err
	}
	sig := &Signature{}

	if raw, ok := v.Get(sigTagProperties); ok {
		if len(raw) < 2 {
			return nil, haperr.NewProtocolError("ble", "signature: properties field too short")
		}
		sig.Properties = binary.LittleEndian.Uint16(raw)
		sig.HasProperties = true
	}
	if raw, ok := v.Get(sigTagUserDescription); ok {
		sig.UserDescription = string(raw)
	}
	if raw, ok := v.Get(sigTagPresentationFmt); ok {
		if len(raw) < 7 {
			return nil, haperr.NewProtocolError("ble", "signature: presentation format field too short")
		}
		format, ok := FormatFromBTSIG(raw[0])
		if !ok {
			return nil, haperr.NewProtocolError("ble", "signature: unknown BT-SIG format code 0x%02x", raw[0])
		}
		unitCode := binary.LittleEndian.Uint16(raw[2:4])
		sig.Format = &PresentationFormat{
			Format:   format,
			Unit:     UnitFromBTSIG(unitCode),
			Exponent: int8(raw[1]),
		}
	}
	if raw, ok := v.Get(sigTagValidRange); ok {
		half := len(raw) / 2
		sig.ValidRange = &ValueRange{Min: raw[:half], Max: raw[half:]}
	}
	if raw, ok := v.Get(sigTagStep); ok {
		sig.Step = raw
	}
	if raw, ok := v.Get(sigTagValidValues); ok {
		for _, b := range raw {
			sig.ValidValues = append(sig.ValidValues, []byte{b})
		}
	}
	if raw, ok := v.Get(sigTagValidValuesRange); ok {
		// Preserve every (min, max) pair in the buffer: slicing to only
		// the first pair would silently drop accessory-declared ranges.
		elemLen := len(raw)
		if n, ok2 := inferRangeElemLen(v, raw); ok2 {
			elemLen = n
		}
		if elemLen > 0 {
			for off := 0; off+2*elemLen <= len(raw); off += 2 * elemLen {
				sig.ValidValuesRange = append(sig.ValidValuesRange, ValueRange{
					Min: raw[off : off+elemLen],
					Max: raw[off+elemLen : off+2*elemLen],
				})
			}
		}
	}
	return sig, nil
}

// inferRangeElemLen sizes each element of valid-values-range from the
// characteristic's own presentation format, when known, so a multi-pair
// buffer can be split correctly instead of guessed at a fixed width.
func inferRangeElemLen(v tlv8.Values, raw []byte) (int, bool) {
	if pf, ok := v.Get(sigTagPresentationFmt); ok && len(pf) >= 1 {
		switch pf[0] {
		case 0x04:
			return 1, true
		case 0x06:
			return 2, true
		case 0x08, 0x10, 0x14:
			return 4, true
		case 0x0A:
			return 8, true
		}
	}
	return 0, false
}
