package ble

import "github.com/hapctl/hapctl/haperr"

// MaxFragmentSize is the largest physical BLE frame HAP permits after
// encryption ("BLE MTU limits frames to ≤496 bytes").
const MaxFragmentSize = 496

// aeadOverhead is the ChaCha20-Poly1305 tag size added to every
// independently-encrypted fragment (no AAD).
const aeadOverhead = 16

// continuationHeaderLen is the 2-byte header ("0x80, TID") every
// fragment after the first carries.
const continuationHeaderLen = 2

// PlaintextFragmentLimit returns the largest plaintext fragment size
// that still fits MaxFragmentSize once framed; secure selects whether
// the fragment will subsequently be ChaCha20-Poly1305-sealed.
func PlaintextFragmentLimit(secure bool) int {
	if secure {
		return MaxFragmentSize - aeadOverhead
	}
	return MaxFragmentSize
}

// Fragment splits a logical PDU (as produced by Request.Encode) into
// physical fragments no larger than limit: the first fragment retains
// the PDU's own 5-byte header, every subsequent fragment is prefixed
// with the 2-byte continuation header.
func Fragment(pdu []byte, tid byte, limit int) [][]byte {
	if len(pdu) <= limit {
		return [][]byte{pdu}
	}
	fragments := [][]byte{pdu[:limit]}
	rest := pdu[limit:]
	chunk := limit - continuationHeaderLen
	for len(rest) > 0 {
		n := chunk
		if n > len(rest) {
			n = len(rest)
		}
		frag := make([]byte, 0, continuationHeaderLen+n)
		frag = append(frag, byte(ControlContinuation), tid)
		frag = append(frag, rest[:n]...)
		fragments = append(fragments, frag)
		rest = rest[n:]
	}
	return fragments
}

// Reassembler accumulates response-PDU fragments until the accessory's
// declared body length is satisfied, handling both a single-frame
// response (no continuation) and a multi-fragment one.
type Reassembler struct {
	started  bool
	control  byte
	tid      byte
	status   byte
	declared int
	body     []byte
}

// NewReassembler returns an empty Reassembler for one response PDU.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed adds one physical fragment (already decrypted, if the session is
// secure). It returns the completed Response once enough fragments have
// arrived to satisfy the declared body length, or ok=false if more
// fragments are still expected.
func (r *Reassembler) Feed(frag []byte) (resp Response, ok bool, err error) {
	if !r.started {
		if len(frag) < responseHeaderLen {
			return Response{}, false, haperr.NewProtocolError("ble", "response header truncated: %d bytes", len(frag))
		}
		r.started = true
		r.control = frag[0]
		r.tid = frag[1]
		r.status = frag[2]
		r.declared = int(frag[3]) | int(frag[4])<<8
		r.body = append(r.body, frag[responseHeaderLen:]...)
	} else {
		if len(frag) < continuationHeaderLen {
			return Response{}, false, haperr.NewProtocolError("ble", "continuation fragment truncated: %d bytes", len(frag))
		}
		if frag[1] != r.tid {
			return Response{}, false, haperr.NewProtocolError("ble", "continuation fragment tid mismatch: want %d, got %d", r.tid, frag[1])
		}
		r.body = append(r.body, frag[continuationHeaderLen:]...)
	}

	if len(r.body) > r.declared {
		return Response{}, false, haperr.NewProtocolError("ble", "response body overran declared length %d", r.declared)
	}
	if len(r.body) < r.declared {
		return Response{}, false, nil
	}
	return Response{
		ControlField: r.control,
		TID:          r.tid,
		Status:       r.status,
		Body:         r.body,
	}, true, nil
}
