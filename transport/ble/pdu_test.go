package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCharacteristicWriteRequestExactBytes(t *testing.T) {
	// Write request for iid 0x000A carrying the single byte 0x01.
	got := BuildCharacteristicWriteRequest(0x42, 0x000A, []byte{0x01, 0x01, 0x01})
	want := []byte{0x00, 0x02, 0x42, 0x0A, 0x00, 0x03, 0x00, 0x01, 0x01, 0x01}
	assert.Equal(t, want, got)
}

func TestBuildSignatureReadRequestHasNoBody(t *testing.T) {
	got := BuildSignatureReadRequest(0x01, 0x0005)
	assert.Equal(t, []byte{0x00, byte(OpcodeSignatureRead), 0x01, 0x05, 0x00}, got)
}

func TestReassemblerSingleFragmentResponse(t *testing.T) {
	r := NewReassembler()
	frag := []byte{0x02, 0x42, 0x00, 0x05, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	resp, ok, err := r.Feed(frag)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(0x42), resp.TID)
	assert.Equal(t, byte(0), resp.Status)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, resp.Body)
}

func TestReassemblerMultiFragmentResponse(t *testing.T) {
	r := NewReassembler()
	first := []byte{0x02, 0x42, 0x00, 0x06, 0x00, 0x01, 0x02, 0x03, 0x04}
	_, ok, err := r.Feed(first)
	require.NoError(t, err)
	require.False(t, ok)

	second := []byte{byte(ControlContinuation), 0x42, 0x05, 0x06}
	resp, ok, err := r.Feed(second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, resp.Body)
}

func TestReassemblerTIDMismatchFails(t *testing.T) {
	r := NewReassembler()
	first := []byte{0x02, 0x42, 0x00, 0x04, 0x00, 0x01, 0x02}
	_, _, err := r.Feed(first)
	require.NoError(t, err)

	second := []byte{byte(ControlContinuation), 0x99, 0x03, 0x04}
	_, _, err = r.Feed(second)
	require.Error(t, err)
}

func TestReassemblerOverrunFails(t *testing.T) {
	r := NewReassembler()
	first := []byte{0x02, 0x42, 0x00, 0x01, 0x00, 0x01, 0x02, 0x03}
	_, _, err := r.Feed(first)
	require.Error(t, err)
}

func TestFragmentSplitsAtLimit(t *testing.T) {
	pdu := make([]byte, 20)
	for i := range pdu {
		pdu[i] = byte(i)
	}
	frags := Fragment(pdu, 0x07, 8)
	require.Len(t, frags, 3)
	assert.Len(t, frags[0], 8)
	assert.Equal(t, pdu[:8], frags[0])
	assert.Equal(t, byte(ControlContinuation), frags[1][0])
	assert.Equal(t, byte(0x07), frags[1][1])
}

func TestFragmentNoSplitWhenWithinLimit(t *testing.T) {
	pdu := []byte{1, 2, 3}
	frags := Fragment(pdu, 0x01, 10)
	require.Len(t, frags, 1)
	assert.Equal(t, pdu, frags[0])
}
