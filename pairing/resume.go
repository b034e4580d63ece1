package pairing

import (
	"golang.org/x/crypto/curve25519"

	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/tlv8"
)

// BuildResumeM1 builds the Pair-Resume M1 request from a Session that
// previously completed a full Pair-Verify ("Pair-Resume
// reuses the prior verify's session id instead of paying SRP again").
// Callers must check s.CanResume() first; where resume is unavailable or
// rejected, the caller runs a full Pair-Verify from BuildVerifyM1 instead.
func BuildResumeM1(s *Session) ([]byte, error) {
	if !s.CanResume() {
		return nil, haperr.NewUsageError("pair-resume: no resumable session; call Pair-Verify first")
	}
	pub, priv, err := generateCurve25519Keypair()
	if err != nil {
		return nil, err
	}
	s.verifyPub = pub
	s.verifyPriv = priv

	e := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM1)).
		Add(TagPublicKey, pub[:]).
		Add(TagSessionID, s.ResumeSessionID())
	return e.Bytes(), nil
}

// ParseResumeM2 decrypts and authenticates the accessory's M2 response,
// deriving fresh control keys without repeating SRP or Ed25519 signing.
// A decrypt or tag failure here means the accessory didn't accept the
// resume and the caller must fall back to a full Pair-Verify ("Resume failure falls back to Pair-Verify, never surfaced as fatal").
func ParseResumeM2(s *Session, data []byte, accessoryPublic []byte) error {
	v, err := decodeAndCheck(data, StateM2)
	if err != nil {
		return err
	}
	encryptedData, ok := v.Get(TagEncryptedData)
	if !ok {
		return haperr.NewProtocolError("pair-resume", "M2 missing encrypted data")
	}

	shared, err := curve25519.X25519(s.verifyPriv[:], accessoryPublic)
	if err != nil {
		return haperr.NewProtocolError("pair-resume", "curve25519 ecdh: %v", err)
	}
	s.sharedSecret = shared

	resumeKey, err := hkdfSHA512(shared, []byte("Pair-Resume-Encrypt-Salt"), []byte("Pair-Resume-Encrypt-Info"), 32)
	if err != nil {
		return err
	}

	decrypted, err := chachaOpen(resumeKey, nonceResumeM2, nil, encryptedData)
	if err != nil {
		return err
	}
	if _, err := tlv8.Decode(decrypted); err != nil {
		return err
	}

	newResumeID, err := hkdfSHA512(shared, []byte("Pair-Verify-Resume-Salt"), []byte("Pair-Verify-Resume-Info"), 8)
	if err != nil {
		return err
	}
	s.resumeSessionID = newResumeID

	return s.deriveControlKeys()
}
