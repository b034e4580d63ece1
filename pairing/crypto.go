package pairing

import (
	"crypto/rand"
	"crypto/sha512"
	"io"
	"regexp"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/hapctl/hapctl/haperr"
)

// pinPattern is the setup-code shape required before any network
// activity: "031-45-154".
var pinPattern = regexp.MustCompile(`^\d{3}-\d{2}-\d{3}$`)

// ValidatePIN rejects malformed setup codes before a Pair-Setup starts.
func ValidatePIN(pin string) error {
	if !pinPattern.MatchString(pin) {
		return haperr.NewUsageError("pairing: pin must match NNN-NN-NNN, got %q", pin)
	}
	return nil
}

// hkdfSHA512 derives length bytes via HKDF-SHA-512(secret, salt, info),
// the single key-derivation primitive every pairing step, M5 onward,
// reuses with a different salt/info pair.
func hkdfSHA512(secret, salt, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha512.New, secret, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, haperr.NewProtocolError("pairing", "hkdf derive failed: %v", err)
	}
	return out, nil
}

// generateCurve25519Keypair returns a fresh ephemeral X25519 keypair for
// Pair-Verify/Pair-Resume's M1.
func generateCurve25519Keypair() (pub, priv [32]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, priv[:]); err != nil {
		return pub, priv, haperr.NewTransportError("pairing rand", err)
	}
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, priv, haperr.NewProtocolError("pairing", "curve25519 basepoint mult: %v", err)
	}
	copy(pub[:], p)
	return pub, priv, nil
}

// chachaSeal encrypts plaintext under key with the fixed 12-byte nonce
// and optional AAD, appending the 16-byte authentication tag.
func chachaSeal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, haperr.NewProtocolError("pairing", "chacha20poly1305 init: %v", err)
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// chachaOpen decrypts and authenticates ciphertext (which includes its
// trailing 16-byte tag) under key with the fixed nonce and optional AAD.
func chachaOpen(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, haperr.NewProtocolError("pairing", "chacha20poly1305 init: %v", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, haperr.NewProtocolError("pairing", "decryption failed: %v", err)
	}
	return plaintext, nil
}

// Fixed 12-byte nonces for each encrypted pairing message :
// 4 zero bytes followed by the 8-byte ASCII message tag.
var (
	nonceSetupM5  = []byte("\x00\x00\x00\x00PS-Msg05")
	nonceSetupM6  = []byte("\x00\x00\x00\x00PS-Msg06")
	nonceVerifyM2 = []byte("\x00\x00\x00\x00PV-Msg02")
	nonceVerifyM3 = []byte("\x00\x00\x00\x00PV-Msg03")
	nonceResumeM1 = []byte("\x00\x00\x00\x00PR-Msg01")
	nonceResumeM2 = []byte("\x00\x00\x00\x00PR-Msg02")
)
