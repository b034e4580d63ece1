package pairing

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/hapctl/hapctl/haperr"
)

// Data is the immutable, caller-persisted identity material a completed
// Pair-Setup produces (PairingData). All five fields are
// present together or absent together.
type Data struct {
	AccessoryPairingID   []byte
	AccessoryLTPK        ed25519.PublicKey
	ControllerPairingID  string
	ControllerLTSK       ed25519.PrivateKey
	ControllerLTPK       ed25519.PublicKey
}

// IsComplete reports whether every field required to run authenticated
// operations (Pair-Verify and beyond) is populated.
func (d *Data) IsComplete() bool {
	return d != nil &&
		len(d.AccessoryPairingID) > 0 &&
		len(d.AccessoryLTPK) > 0 &&
		d.ControllerPairingID != "" &&
		len(d.ControllerLTSK) > 0 &&
		len(d.ControllerLTPK) > 0
}

// HexData is the five-hex-string persisted form of a completed pairing:
// the only representation this package ever hands to or accepts from a
// caller for storage, since the core itself never touches a file.
type HexData struct {
	AccessoryPairingID  string `json:"accessoryPairingId"`
	AccessoryLTPK       string `json:"accessoryLTPK"`
	ControllerPairingID string `json:"controllerPairingId"`
	ControllerLTSK      string `json:"controllerLTSK"`
	ControllerLTPK      string `json:"controllerLTPK"`
}

// ToHex renders d as the five hex strings a caller persists.
func (d *Data) ToHex() HexData {
	if d == nil {
		return HexData{}
	}
	return HexData{
		AccessoryPairingID:  hex.EncodeToString(d.AccessoryPairingID),
		AccessoryLTPK:       hex.EncodeToString(d.AccessoryLTPK),
		ControllerPairingID: d.ControllerPairingID,
		ControllerLTSK:      hex.EncodeToString(d.ControllerLTSK),
		ControllerLTPK:      hex.EncodeToString(d.ControllerLTPK),
	}
}

// DataFromHex parses the persisted hex-string form back into Data.
func DataFromHex(h HexData) (*Data, error) {
	accessoryID, err := hex.DecodeString(h.AccessoryPairingID)
	if err != nil {
		return nil, haperr.NewUsageError("pairing: invalid accessoryPairingId hex: %v", err)
	}
	accessoryLTPK, err := hex.DecodeString(h.AccessoryLTPK)
	if err != nil {
		return nil, haperr.NewUsageError("pairing: invalid accessoryLTPK hex: %v", err)
	}
	controllerLTSK, err := hex.DecodeString(h.ControllerLTSK)
	if err != nil {
		return nil, haperr.NewUsageError("pairing: invalid controllerLTSK hex: %v", err)
	}
	controllerLTPK, err := hex.DecodeString(h.ControllerLTPK)
	if err != nil {
		return nil, haperr.NewUsageError("pairing: invalid controllerLTPK hex: %v", err)
	}
	return &Data{
		AccessoryPairingID:  accessoryID,
		AccessoryLTPK:       accessoryLTPK,
		ControllerPairingID: h.ControllerPairingID,
		ControllerLTSK:      controllerLTSK,
		ControllerLTPK:      controllerLTPK,
	}, nil
}
