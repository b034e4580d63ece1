package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataHexRoundTrip(t *testing.T) {
	identity, err := GenerateControllerIdentity()
	require.NoError(t, err)

	d := &Data{
		AccessoryPairingID:  []byte("AA:BB:CC:DD:EE:FF"),
		AccessoryLTPK:       identity.LTPK,
		ControllerPairingID: identity.PairingID,
		ControllerLTSK:      identity.LTSK,
		ControllerLTPK:      identity.LTPK,
	}
	require.True(t, d.IsComplete())

	h := d.ToHex()
	back, err := DataFromHex(h)
	require.NoError(t, err)
	assert.Equal(t, d.AccessoryPairingID, back.AccessoryPairingID)
	assert.Equal(t, d.ControllerPairingID, back.ControllerPairingID)
	assert.True(t, back.IsComplete())
}

func TestDataFromHexRejectsBadHex(t *testing.T) {
	_, err := DataFromHex(HexData{AccessoryPairingID: "not-hex"})
	assert.Error(t, err)
}

func TestIsCompleteNilReceiver(t *testing.T) {
	var d *Data
	assert.False(t, d.IsComplete())
}
