package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hapctl/hapctl/internal/tlv8"
)

func TestAddPairingBuildParse(t *testing.T) {
	identity, err := GenerateControllerIdentity()
	require.NoError(t, err)

	m1 := BuildAddPairingM1(identity.PairingID, identity.LTPK, PermissionAdmin)
	v, err := tlv8.Decode(m1)
	require.NoError(t, err)
	method, _ := v.GetByte(TagMethod)
	assert.Equal(t, byte(MethodAddPairing), method)
	perm, _ := v.GetByte(TagPermissions)
	assert.Equal(t, byte(PermissionAdmin), perm)

	m2 := tlv8.NewEncoder().AddByte(TagState, byte(StateM2)).Bytes()
	assert.NoError(t, ParseAddPairingM2(m2))
}

func TestRemovePairingBuildParse(t *testing.T) {
	m1 := BuildRemovePairingM1("some-controller-id")
	v, err := tlv8.Decode(m1)
	require.NoError(t, err)
	method, _ := v.GetByte(TagMethod)
	assert.Equal(t, byte(MethodRemovePairing), method)
	id, ok := v.Get(TagIdentifier)
	require.True(t, ok)
	assert.Equal(t, "some-controller-id", string(id))

	m2 := tlv8.NewEncoder().AddByte(TagState, byte(StateM2)).Bytes()
	assert.NoError(t, ParseRemovePairingM2(m2))
}

func TestListPairingsBuildParse(t *testing.T) {
	m1 := BuildListPairingsM1()
	v, err := tlv8.Decode(m1)
	require.NoError(t, err)
	method, _ := v.GetByte(TagMethod)
	assert.Equal(t, byte(MethodListPairings), method)

	first, err := GenerateControllerIdentity()
	require.NoError(t, err)
	second, err := GenerateControllerIdentity()
	require.NoError(t, err)

	m2 := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM2)).
		Add(TagIdentifier, []byte(first.PairingID)).
		Add(TagPublicKey, first.LTPK).
		AddByte(TagPermissions, byte(PermissionAdmin)).
		Separator().
		Add(TagIdentifier, []byte(second.PairingID)).
		Add(TagPublicKey, second.LTPK).
		AddByte(TagPermissions, byte(PermissionUser)).
		Bytes()

	entries, err := ParseListPairingsM2(m2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.PairingID, entries[0].PairingID)
	assert.Equal(t, PermissionAdmin, entries[0].Permission)
	assert.Equal(t, second.PairingID, entries[1].PairingID)
	assert.Equal(t, PermissionUser, entries[1].Permission)
}

func TestListPairingsSingleEntry(t *testing.T) {
	identity, err := GenerateControllerIdentity()
	require.NoError(t, err)
	m2 := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM2)).
		Add(TagIdentifier, []byte(identity.PairingID)).
		Add(TagPublicKey, identity.LTPK).
		AddByte(TagPermissions, byte(PermissionUser)).
		Bytes()

	entries, err := ParseListPairingsM2(m2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, identity.PairingID, entries[0].PairingID)
}

func TestListPairingsSurfacesAccessoryError(t *testing.T) {
	errResp := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM2)).
		AddByte(TagError, byte(ErrorUnavailable)).
		Bytes()
	_, err := ParseListPairingsM2(errResp)
	assert.Error(t, err)
}
