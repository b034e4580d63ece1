package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePIN(t *testing.T) {
	assert.NoError(t, ValidatePIN("031-45-154"))
	assert.Error(t, ValidatePIN("03145154"))
	assert.Error(t, ValidatePIN("031-451-54"))
	assert.Error(t, ValidatePIN(""))
}

func TestChachaSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	nonce := []byte("\x00\x00\x00\x00PS-Msg05")
	plaintext := []byte("hap controller pairing test payload")

	sealed, err := chachaSeal(key, nonce, nil, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := chachaOpen(key, nonce, nil, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestChachaOpenRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, 32)
	nonce := []byte("\x00\x00\x00\x00PV-Msg02")
	sealed, err := chachaSeal(key, nonce, nil, []byte("hello"))
	require.NoError(t, err)
	sealed[0] ^= 0xFF

	_, err = chachaOpen(key, nonce, nil, sealed)
	assert.Error(t, err)
}

func TestHkdfSHA512IsDeterministic(t *testing.T) {
	secret := []byte("shared-secret")
	salt := []byte("Pair-Setup-Encrypt-Salt")
	info := []byte("Pair-Setup-Encrypt-Info")

	a, err := hkdfSHA512(secret, salt, info, 32)
	require.NoError(t, err)
	b, err := hkdfSHA512(secret, salt, info, 32)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := hkdfSHA512(secret, []byte("different-salt"), info, 32)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerateCurve25519KeypairProducesUsableKeys(t *testing.T) {
	pubA, privA, err := generateCurve25519Keypair()
	require.NoError(t, err)
	pubB, privB, err := generateCurve25519Keypair()
	require.NoError(t, err)
	assert.NotEqual(t, pubA, pubB)

	_ = privA
	_ = privB
}
