package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInstanceID(t *testing.T) {
	id, err := DecodeInstanceID([]byte{0x0A, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint16(10), id)
}

func TestDecodeInstanceIDTooShort(t *testing.T) {
	_, err := DecodeInstanceID([]byte{0x01})
	require.Error(t, err)
}

func TestStatusName(t *testing.T) {
	assert.Equal(t, "success", StatusName(StatusSuccess))
	assert.Equal(t, "invalid-instance-id", StatusName(StatusInvalidInstanceID))
	assert.Equal(t, "unrecognized", StatusName(0xFE))
}
