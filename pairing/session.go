package pairing

import (
	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/tlv8"
	"github.com/hapctl/hapctl/pairing/srp"
)

// Session holds the transient, process-lived cryptographic scratch state
// for one client instance (PairingSession): the Pair-Setup SRP
// exchange in progress, the Pair-Verify/Pair-Resume Curve25519 exchange,
// and the derived session keys once a verify or resume completes.
type Session struct {
	// Pair-Setup scratch, set in BuildSetupM3 / consumed through
	// ParseSetupM6, then left to be discarded by the caller.
	srp *srp.Client

	// Pair-Verify/Resume scratch.
	verifyPriv       [32]byte
	verifyPub        [32]byte
	sharedSecret     []byte
	setupSessionKey  []byte
	verifySessionKey []byte
	resumeSessionID  []byte

	// Final session keys, set only after a successful Pair-Verify M4 or
	// Pair-Resume M2.
	AccessoryToControllerKey [32]byte
	ControllerToAccessoryKey [32]byte
	haveSessionKeys          bool
}

// NewSession returns an empty pairing scratch state for one client.
func NewSession() *Session {
	return &Session{}
}

// HaveSessionKeys reports whether a Pair-Verify or Pair-Resume has
// derived live session keys on this Session.
func (s *Session) HaveSessionKeys() bool {
	return s.haveSessionKeys
}

// CanResume reports whether a prior Pair-Verify on this Session produced
// a resume session id usable for Pair-Resume ("canResume()").
func (s *Session) CanResume() bool {
	return len(s.resumeSessionID) == 8 && len(s.sharedSecret) > 0
}

// ResumeSessionID returns the 8-byte session id from the last successful
// Pair-Verify, for Pair-Resume's M1.
func (s *Session) ResumeSessionID() []byte {
	return append([]byte(nil), s.resumeSessionID...)
}

// deriveControlKeys computes the final per-direction session keys from
// the current shared secret via HKDF-SHA-512 with salt "Control-Salt"
// , used after both Pair-Verify M4 and Pair-Resume M2.
func (s *Session) deriveControlKeys() error {
	a2c, err := hkdfSHA512(s.sharedSecret, []byte("Control-Salt"), []byte("Control-Read-Encryption-Key"), 32)
	if err != nil {
		return err
	}
	c2a, err := hkdfSHA512(s.sharedSecret, []byte("Control-Salt"), []byte("Control-Write-Encryption-Key"), 32)
	if err != nil {
		return err
	}
	copy(s.AccessoryToControllerKey[:], a2c)
	copy(s.ControllerToAccessoryKey[:], c2a)
	s.haveSessionKeys = true
	return nil
}

// checkState decodes v's state/error tags and fails unless it carries
// exactly the expected state with no kTLVError tag ("Every
// parsed inbound TLV is rejected unless it carries the expected state
// and lacks an kError tag").
func checkState(v tlv8.Values, want State) error {
	if code, ok := v.GetByte(TagError); ok {
		return haperr.NewAccessoryError(int(code), ErrorCode(code).String())
	}
	got, ok := v.GetByte(TagState)
	if !ok {
		return haperr.NewProtocolError("pairing", "response missing state tag")
	}
	if State(got) != want {
		return haperr.NewProtocolError("pairing", "expected state %d, got %d", want, got)
	}
	return nil
}

func decodeAndCheck(data []byte, want State) (tlv8.Values, error) {
	v, err := tlv8.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := checkState(v, want); err != nil {
		return nil, err
	}
	return v, nil
}
