// Package tlv8 implements the tag-length-value encoding used on every HAP
// pairing and characteristic-signature exchange: a flat sequence of
// {tag byte, length byte, value} records where a logical value longer than
// 255 bytes is split across consecutive same-tag records ("coalescing" on
// decode, "chunking" on encode), and repeated structures are separated by
// a zero-length record of tag 0xFF.
package tlv8

import (
	"github.com/hapctl/hapctl/haperr"
)

// SeparatorTag marks the boundary between repeated item groups (e.g.
// between successive pairings in a List-Pairings response).
const SeparatorTag = 0xFF

// maxChunk is the largest value length a single TLV8 record may carry;
// longer values are split into multiple consecutive records of the same tag.
const maxChunk = 255

// Entry is one decoded logical value: a tag and its fully-coalesced bytes.
type Entry struct {
	Tag   byte
	Value []byte
}

// Values is an ordered, possibly-repeating collection of decoded entries.
// Repeated tags are preserved in order so callers building a List can
// recover each member's sub-TLV stream.
type Values []Entry

// Get returns the first entry with the given tag.
func (v Values) Get(tag byte) ([]byte, bool) {
	for _, e := range v {
		if e.Tag == tag {
			return e.Value, true
		}
	}
	return nil, false
}

// GetByte returns the first byte of tag's value.
func (v Values) GetByte(tag byte) (byte, bool) {
	b, ok := v.Get(tag)
	if !ok || len(b) == 0 {
		return 0, false
	}
	return b[0], true
}

// GetAll returns every entry matching tag, in order.
func (v Values) GetAll(tag byte) [][]byte {
	var out [][]byte
	for _, e := range v {
		if e.Tag == tag {
			out = append(out, e.Value)
		}
	}
	return out
}

// Encoder builds an ordered TLV8 byte stream.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Add appends tag/value, chunking value into 255-byte records as needed.
// A zero-length value is still written as one record (length 0).
func (e *Encoder) Add(tag byte, value []byte) *Encoder {
	if len(value) == 0 {
		e.buf = append(e.buf, tag, 0)
		return e
	}
	for off := 0; off < len(value); off += maxChunk {
		end := off + maxChunk
		if end > len(value) {
			end = len(value)
		}
		chunk := value[off:end]
		e.buf = append(e.buf, tag, byte(len(chunk)))
		e.buf = append(e.buf, chunk...)
	}
	return e
}

// AddByte appends a single-byte value.
func (e *Encoder) AddByte(tag byte, v byte) *Encoder {
	return e.Add(tag, []byte{v})
}

// Separator appends the zero-length list-item separator record.
func (e *Encoder) Separator() *Encoder {
	e.buf = append(e.buf, SeparatorTag, 0)
	return e
}

// Bytes returns the encoded stream.
func (e *Encoder) Bytes() []byte { return e.buf }

// Decode parses a flat TLV8 stream into coalesced Values. Any two
// consecutive records sharing a tag merge into one logical entry;
// chunking is only ever broken by a different intervening tag (or the
// 0xFF separator, which is itself just another tag to this loop).
func Decode(data []byte) (Values, error) {
	var out Values
	i := 0
	for i < len(data) {
		if i+2 > len(data) {
			return nil, haperr.NewProtocolError("tlv8", "truncated header at offset %d", i)
		}
		tag := data[i]
		length := int(data[i+1])
		i += 2
		if i+length > len(data) {
			return nil, haperr.NewProtocolError("tlv8", "truncated value at offset %d (need %d bytes)", i, length)
		}
		value := data[i : i+length]
		i += length

		if n := len(out); n > 0 && out[n-1].Tag == tag {
			out[n-1].Value = append(out[n-1].Value, value...)
		} else {
			out = append(out, Entry{Tag: tag, Value: append([]byte(nil), value...)})
		}
	}
	return out, nil
}

// SplitSeparated splits a decoded Values stream on SeparatorTag records
// into groups, dropping the separators themselves. Used for decoding
// List-Pairings/getAccessories-style repeated sub-TLV groups.
func SplitSeparated(v Values) []Values {
	var groups []Values
	var cur Values
	for _, e := range v {
		if e.Tag == SeparatorTag && len(e.Value) == 0 {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, e)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}
