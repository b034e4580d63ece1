package ble

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/hapctl/hapctl/haperr"
)

// Session seals and opens the individual fragments of a BLE connection
// once Pair-Verify has completed, mirroring transport/ip.SecureConn's
// ChaCha20-Poly1305 framing but without AAD and with each fragment
// encrypted independently.
type Session struct {
	a2c      [32]byte
	c2a      [32]byte
	a2cCount uint64
	c2aCount uint64
	secure   bool
}

// NewSession returns a Session with encryption disabled; requests and
// responses pass through Seal/Open unmodified until EnableEncryption.
func NewSession() *Session {
	return &Session{}
}

// EnableEncryption switches the session into its post-Pair-Verify
// secure phase with fresh, independent per-direction counters.
func (s *Session) EnableEncryption(accessoryToController, controllerToAccessory [32]byte) {
	s.a2c = accessoryToController
	s.c2a = controllerToAccessory
	s.a2cCount = 0
	s.c2aCount = 0
	s.secure = true
}

// IsSecure reports whether EnableEncryption has been called.
func (s *Session) IsSecure() bool { return s.secure }

func fragmentNonce(counter uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.LittleEndian.PutUint64(nonce[4:], counter)
	return nonce
}

// SealFragment encrypts one outbound plaintext fragment under the
// controller-to-accessory key, advancing its counter. It is a
// passthrough before EnableEncryption.
func (s *Session) SealFragment(plaintext []byte) ([]byte, error) {
	if !s.secure {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.New(s.c2a[:])
	if err != nil {
		return nil, haperr.NewTransportError("ble: chacha20poly1305 init", err)
	}
	sealed := aead.Seal(nil, fragmentNonce(s.c2aCount), plaintext, nil)
	s.c2aCount++
	return sealed, nil
}

// OpenFragment decrypts one inbound fragment under the
// accessory-to-controller key, advancing its counter only on success. It
// is a passthrough before EnableEncryption.
func (s *Session) OpenFragment(ciphertext []byte) ([]byte, error) {
	if !s.secure {
		return ciphertext, nil
	}
	aead, err := chacha20poly1305.New(s.a2c[:])
	if err != nil {
		return nil, haperr.NewTransportError("ble: chacha20poly1305 init", err)
	}
	plaintext, err := aead.Open(nil, fragmentNonce(s.a2cCount), ciphertext, nil)
	if err != nil {
		return nil, haperr.NewProtocolError("ble", "fragment decryption failed: %v", err)
	}
	s.a2cCount++
	return plaintext, nil
}
