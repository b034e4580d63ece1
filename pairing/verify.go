package pairing

import (
	"crypto/ed25519"

	"golang.org/x/crypto/curve25519"

	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/tlv8"
)

// BuildVerifyM1 generates a fresh ephemeral Curve25519 keypair on s and
// builds the Pair-Verify M1 request.
func BuildVerifyM1(s *Session) ([]byte, error) {
	pub, priv, err := generateCurve25519Keypair()
	if err != nil {
		return nil, err
	}
	s.verifyPub = pub
	s.verifyPriv = priv
	e := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM1)).
		Add(TagPublicKey, pub[:])
	return e.Bytes(), nil
}

// ParseVerifyM2 computes the ECDH shared secret against the accessory's
// M2 public key, derives the verify-phase scratch keys, decrypts the
// inner TLV and verifies the accessory's long-term signature binds its
// own public key to pubC.
func ParseVerifyM2(s *Session, data []byte, accessoryPairingID []byte, accessoryLTPK ed25519.PublicKey) error {
	v, err := decodeAndCheck(data, StateM2)
	if err != nil {
		return err
	}
	pubA, ok := v.Get(TagPublicKey)
	if !ok {
		return haperr.NewProtocolError("pair-verify", "M2 missing public key")
	}
	encryptedData, ok := v.Get(TagEncryptedData)
	if !ok {
		return haperr.NewProtocolError("pair-verify", "M2 missing encrypted data")
	}

	shared, err := curve25519.X25519(s.verifyPriv[:], pubA)
	if err != nil {
		return haperr.NewProtocolError("pair-verify", "curve25519 ecdh: %v", err)
	}
	s.sharedSecret = shared

	verifySessionKey, err := hkdfSHA512(shared, []byte("Pair-Verify-Encrypt-Salt"), []byte("Pair-Verify-Encrypt-Info"), 32)
	if err != nil {
		return err
	}
	resumeSessionID, err := hkdfSHA512(shared, []byte("Pair-Verify-Resume-Salt"), []byte("Pair-Verify-Resume-Info"), 8)
	if err != nil {
		return err
	}
	s.verifySessionKey = verifySessionKey
	s.resumeSessionID = resumeSessionID

	decrypted, err := chachaOpen(verifySessionKey, nonceVerifyM2, nil, encryptedData)
	if err != nil {
		return err
	}
	inner, err := tlv8.Decode(decrypted)
	if err != nil {
		return err
	}
	innerID, ok := inner.Get(TagIdentifier)
	if !ok {
		return haperr.NewProtocolError("pair-verify", "M2 inner TLV missing identifier")
	}
	if string(innerID) != string(accessoryPairingID) {
		return haperr.NewProtocolError("pair-verify", "M2 identifier does not match stored accessory pairing id")
	}
	signature, ok := inner.Get(TagSignature)
	if !ok {
		return haperr.NewProtocolError("pair-verify", "M2 inner TLV missing signature")
	}

	info := append(append([]byte{}, pubA...), accessoryPairingID...)
	info = append(info, s.verifyPub[:]...)
	if !ed25519.Verify(accessoryLTPK, info, signature) {
		return haperr.NewProtocolError("pair-verify", "accessory signature verification failed")
	}
	return nil
}

// BuildVerifyM3 signs pubC||controllerPairingID||pubA with the
// controller's long-term key and builds the encrypted M3 response.
func BuildVerifyM3(s *Session, controllerPairingID string, controllerLTSK ed25519.PrivateKey, accessoryPublic []byte) ([]byte, error) {
	info := append(append([]byte{}, s.verifyPub[:]...), []byte(controllerPairingID)...)
	info = append(info, accessoryPublic...)
	signature := ed25519.Sign(controllerLTSK, info)

	inner := tlv8.NewEncoder().
		Add(TagIdentifier, []byte(controllerPairingID)).
		Add(TagSignature, signature).
		Bytes()

	encrypted, err := chachaSeal(s.verifySessionKey, nonceVerifyM3, nil, inner)
	if err != nil {
		return nil, err
	}

	e := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM3)).
		Add(TagEncryptedData, encrypted)
	return e.Bytes(), nil
}

// ParseVerifyM4 confirms the accessory's M4 and derives the final
// per-direction session keys.
func ParseVerifyM4(s *Session, data []byte) error {
	if _, err := decodeAndCheck(data, StateM4); err != nil {
		return err
	}
	return s.deriveControlKeys()
}
