package pairing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/tlv8"
	"github.com/hapctl/hapctl/pairing/srp"
)

// BuildSetupM1 builds the Pair-Setup M1 request.
func BuildSetupM1(method Method, flags uint32) []byte {
	e := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM1)).
		AddByte(TagMethod, byte(method))
	if flags != 0 {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, flags)
		e.Add(TagFlags, buf)
	}
	return e.Bytes()
}

// ParseSetupM2 parses the accessory's M2 response, returning its SRP
// salt and public key.
func ParseSetupM2(data []byte) (serverPublic, salt []byte, err error) {
	v, err := decodeAndCheck(data, StateM2)
	if err != nil {
		return nil, nil, err
	}
	serverPublic, ok := v.Get(TagPublicKey)
	if !ok {
		return nil, nil, haperr.NewProtocolError("pair-setup", "M2 missing public key")
	}
	salt, ok = v.Get(TagSalt)
	if !ok {
		return nil, nil, haperr.NewProtocolError("pair-setup", "M2 missing salt")
	}
	return serverPublic, salt, nil
}

// BuildSetupM3 starts the SRP-6a exchange for pin against the
// accessory-supplied salt/public key and builds the M3 request
// carrying the controller's public ephemeral and proof.
func BuildSetupM3(s *Session, pin string, salt, serverPublic []byte) ([]byte, error) {
	if err := ValidatePIN(pin); err != nil {
		return nil, err
	}
	client, err := srp.NewClient(pin, salt, serverPublic)
	if err != nil {
		return nil, haperr.NewProtocolError("pair-setup", "srp: %v", err)
	}
	s.srp = client
	e := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM3)).
		Add(TagPublicKey, client.PublicKey()).
		Add(TagProof, client.ClientProof())
	return e.Bytes(), nil
}

// ParseSetupM4 verifies the accessory's SRP proof from M4.
func ParseSetupM4(s *Session, data []byte) error {
	if s.srp == nil {
		return haperr.NewUsageError("pair-setup: finishPairing called without startPairing")
	}
	v, err := decodeAndCheck(data, StateM4)
	if err != nil {
		return err
	}
	proof, ok := v.Get(TagProof)
	if !ok {
		return haperr.NewProtocolError("pair-setup", "M4 missing proof")
	}
	return s.srp.VerifyServerProof(proof)
}

// ControllerIdentity is a freshly generated controller long-term identity:
// a 36-byte ASCII UUID pairing id plus an Ed25519 keypair.
type ControllerIdentity struct {
	PairingID string
	LTPK      ed25519.PublicKey
	LTSK      ed25519.PrivateKey
}

// GenerateControllerIdentity generates a new controller long-term
// identity for M5: an Ed25519 controller long-term keypair generated
// from 32 random bytes.
func GenerateControllerIdentity() (ControllerIdentity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return ControllerIdentity{}, haperr.NewTransportError("pair-setup: generate ed25519 key", err)
	}
	return ControllerIdentity{
		PairingID: uuid.NewString(),
		LTPK:      pub,
		LTSK:      priv,
	}, nil
}

// BuildSetupM5 builds M5: the encrypted {Identifier, PublicKey, Signature}
// proving the controller's new long-term identity, bound to the SRP
// session key. The setup encryption key is stashed on s
// for ParseSetupM6 to decrypt the matching M6 response.
func BuildSetupM5(s *Session, identity ControllerIdentity) ([]byte, error) {
	if s.srp == nil {
		return nil, haperr.NewUsageError("pair-setup: finishPairing called without startPairing")
	}
	srpKey := s.srp.SessionKey()

	iosDeviceX, err := hkdfSHA512(srpKey, []byte("Pair-Setup-Controller-Sign-Salt"), []byte("Pair-Setup-Controller-Sign-Info"), 32)
	if err != nil {
		return nil, err
	}
	info := append(append([]byte{}, iosDeviceX...), []byte(identity.PairingID)...)
	info = append(info, identity.LTPK...)
	signature := ed25519.Sign(identity.LTSK, info)

	inner := tlv8.NewEncoder().
		Add(TagIdentifier, []byte(identity.PairingID)).
		Add(TagPublicKey, identity.LTPK).
		Add(TagSignature, signature).
		Bytes()

	setupSessionKey, err := hkdfSHA512(srpKey, []byte("Pair-Setup-Encrypt-Salt"), []byte("Pair-Setup-Encrypt-Info"), 32)
	if err != nil {
		return nil, err
	}
	s.setupSessionKey = setupSessionKey

	encrypted, err := chachaSeal(setupSessionKey, nonceSetupM5, nil, inner)
	if err != nil {
		return nil, err
	}

	e := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM5)).
		Add(TagEncryptedData, encrypted)
	return e.Bytes(), nil
}

// ParseSetupM6 decrypts the accessory's M6 response and verifies its
// long-term-identity signature, returning the completed PairingData.
func ParseSetupM6(s *Session, data []byte, identity ControllerIdentity) (*Data, error) {
	if s.srp == nil || s.setupSessionKey == nil {
		return nil, haperr.NewUsageError("pair-setup: finishPairing called without startPairing")
	}
	v, err := decodeAndCheck(data, StateM6)
	if err != nil {
		return nil, err
	}
	encrypted, ok := v.Get(TagEncryptedData)
	if !ok {
		return nil, haperr.NewProtocolError("pair-setup", "M6 missing encrypted data")
	}
	decrypted, err := chachaOpen(s.setupSessionKey, nonceSetupM6, nil, encrypted)
	if err != nil {
		return nil, err
	}
	inner, err := tlv8.Decode(decrypted)
	if err != nil {
		return nil, err
	}
	accessoryPairingID, ok := inner.Get(TagIdentifier)
	if !ok {
		return nil, haperr.NewProtocolError("pair-setup", "M6 inner TLV missing identifier")
	}
	accessoryLTPK, ok := inner.Get(TagPublicKey)
	if !ok {
		return nil, haperr.NewProtocolError("pair-setup", "M6 inner TLV missing public key")
	}
	signature, ok := inner.Get(TagSignature)
	if !ok {
		return nil, haperr.NewProtocolError("pair-setup", "M6 inner TLV missing signature")
	}

	accessoryX, err := hkdfSHA512(s.srp.SessionKey(), []byte("Pair-Setup-Accessory-Sign-Salt"), []byte("Pair-Setup-Accessory-Sign-Info"), 32)
	if err != nil {
		return nil, err
	}
	info := append(append([]byte{}, accessoryX...), accessoryPairingID...)
	info = append(info, accessoryLTPK...)
	if !ed25519.Verify(ed25519.PublicKey(accessoryLTPK), info, signature) {
		return nil, haperr.NewProtocolError("pair-setup", "accessory long-term signature verification failed")
	}

	return &Data{
		AccessoryPairingID:  accessoryPairingID,
		AccessoryLTPK:       ed25519.PublicKey(accessoryLTPK),
		ControllerPairingID: identity.PairingID,
		ControllerLTSK:      identity.LTSK,
		ControllerLTPK:      identity.LTPK,
	}, nil
}
