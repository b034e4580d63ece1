package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPlaintextPassthroughBeforeEncryption(t *testing.T) {
	s := NewSession()
	assert.False(t, s.IsSecure())

	sealed, err := s.SealFragment([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), sealed)
}

func TestSessionSealOpenRoundTrip(t *testing.T) {
	a2c, c2a := NewSession(), NewSession()
	var keyA2C, keyC2A [32]byte
	for i := range keyA2C {
		keyA2C[i] = byte(i)
		keyC2A[i] = byte(255 - i)
	}
	a2c.EnableEncryption(keyA2C, keyC2A)
	c2a.EnableEncryption(keyA2C, keyC2A)
	assert.True(t, a2c.IsSecure())

	sealed, err := a2c.SealFragment([]byte("request fragment"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("request fragment"), sealed)

	plain, err := c2a.OpenFragment(sealed)
	require.NoError(t, err)
	assert.Equal(t, "request fragment", string(plain))
}

func TestSessionOpenFragmentWrongCounterFails(t *testing.T) {
	a2c, c2a := NewSession(), NewSession()
	var key [32]byte
	a2c.EnableEncryption(key, key)
	c2a.EnableEncryption(key, key)

	sealed, err := a2c.SealFragment([]byte("first"))
	require.NoError(t, err)
	// Desync the reader's counter before it ever reads this fragment.
	c2a.a2cCount = 5

	_, err = c2a.OpenFragment(sealed)
	require.Error(t, err)
}

func TestSessionCountersAdvanceIndependently(t *testing.T) {
	s := NewSession()
	var key [32]byte
	s.EnableEncryption(key, key)

	_, err := s.SealFragment([]byte("a"))
	require.NoError(t, err)
	_, err = s.SealFragment([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s.c2aCount)
	assert.Equal(t, uint64(0), s.a2cCount)
}
