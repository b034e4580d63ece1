package pairing

import (
	"crypto/ed25519"

	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/tlv8"
)

// Add/Remove/List-Pairings run inside an already-established secure
// session; unlike Pair-Setup/Verify/Resume, their TLV
// bodies carry no inner encryption layer of their own.

// BuildAddPairingM1 builds an Add-Pairing request for a new controller
// identity with the given permission.
func BuildAddPairingM1(controllerPairingID string, controllerLTPK ed25519.PublicKey, perm Permission) []byte {
	e := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM1)).
		AddByte(TagMethod, byte(MethodAddPairing)).
		Add(TagIdentifier, []byte(controllerPairingID)).
		Add(TagPublicKey, controllerLTPK).
		AddByte(TagPermissions, byte(perm))
	return e.Bytes()
}

// ParseAddPairingM2 confirms the accessory accepted an Add-Pairing request.
func ParseAddPairingM2(data []byte) error {
	_, err := decodeAndCheck(data, StateM2)
	return err
}

// BuildRemovePairingM1 builds a Remove-Pairing request revoking the
// named controller's pairing.
func BuildRemovePairingM1(controllerPairingID string) []byte {
	e := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM1)).
		AddByte(TagMethod, byte(MethodRemovePairing)).
		Add(TagIdentifier, []byte(controllerPairingID))
	return e.Bytes()
}

// ParseRemovePairingM2 confirms the accessory accepted a Remove-Pairing
// request. A controller that removes its own pairing must treat any
// transport failure on this exchange as success.
func ParseRemovePairingM2(data []byte) error {
	_, err := decodeAndCheck(data, StateM2)
	return err
}

// BuildListPairingsM1 builds a List-Pairings request.
func BuildListPairingsM1() []byte {
	e := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM1)).
		AddByte(TagMethod, byte(MethodListPairings))
	return e.Bytes()
}

// PairingListEntry is one controller entry returned by List-Pairings.
type PairingListEntry struct {
	PairingID  string
	LTPK       ed25519.PublicKey
	Permission Permission
}

// ParseListPairingsM2 parses the accessory's M2 response into the
// separator-delimited list of pairing entries ("successive
// entries are separated by a zero-length kTLVType_Separator").
func ParseListPairingsM2(data []byte) ([]PairingListEntry, error) {
	v, err := decodeAndCheck(data, StateM2)
	if err != nil {
		return nil, err
	}
	groups := tlv8.SplitSeparated(v)
	entries := make([]PairingListEntry, 0, len(groups))
	for _, g := range groups {
		id, ok := g.Get(TagIdentifier)
		if !ok {
			continue
		}
		ltpk, ok := g.Get(TagPublicKey)
		if !ok {
			return nil, haperr.NewProtocolError("list-pairings", "entry missing public key")
		}
		perm, _ := g.GetByte(TagPermissions)
		entries = append(entries, PairingListEntry{
			PairingID:  string(id),
			LTPK:       ed25519.PublicKey(ltpk),
			Permission: Permission(perm),
		})
	}
	return entries, nil
}
