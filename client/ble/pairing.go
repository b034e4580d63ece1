package ble

import (
	"context"

	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/device"
	"github.com/hapctl/hapctl/internal/hapuuid"
	"github.com/hapctl/hapctl/internal/tlv8"
	"github.com/hapctl/hapctl/pairing"
	hapble "github.com/hapctl/hapctl/transport/ble"
)

// instanceID reads char's instance-id descriptor, the per-characteristic
// u16 every HAP PDU addresses by.
func instanceID(char device.Characteristic) (uint16, error) {
	for _, d := range char.GetDescriptors() {
		if hapuuid.IsInstanceIDDescriptor(d.UUID()) {
			return hapble.DecodeInstanceID(d.Value())
		}
	}
	return 0, haperr.NewProtocolError("ble", "characteristic %s has no instance-id descriptor", char.UUID())
}

// writeTLV performs a characteristic-write PDU carrying a TLV8 body and
// returns the reassembled, status-checked response body.
func (c *Client) writeTLV(char device.Characteristic, iid uint16, body []byte) ([]byte, error) {
	resp, err := c.transact(char, hapble.Request{Opcode: hapble.OpcodeCharacteristicWrite, IID: iid, Body: body})
	if err != nil {
		return nil, err
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Identify writes 1 to the identify characteristic; succeeds only on an
// unpaired accessory.
func (c *Client) Identify(ctx context.Context) error {
	_, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		char, err := c.charByName(ctx, "accessory-information", "identify")
		if err != nil {
			return nil, err
		}
		iid, err := instanceID(char)
		if err != nil {
			return nil, err
		}
		_, err = c.writeTLV(char, iid, []byte{1})
		return nil, err
	})
	return err
}

// GetPairingMethod reads the pairing-features characteristic, a single
// byte bitmask describing which Pair-Setup methods the accessory
// supports ("getPairingMethod (BLE-only)").
func (c *Client) GetPairingMethod(ctx context.Context) (byte, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		char, err := c.charByName(ctx, "pairing", "pairing-features")
		if err != nil {
			return nil, err
		}
		iid, err := instanceID(char)
		if err != nil {
			return nil, err
		}
		resp, err := c.transact(char, hapble.Request{Opcode: hapble.OpcodeCharacteristicRead, IID: iid})
		if err != nil {
			return nil, err
		}
		if err := statusError(resp); err != nil {
			return nil, err
		}
		if len(resp.Body) == 0 {
			return byte(0), nil
		}
		return resp.Body[0], nil
	})
	if err != nil {
		return 0, err
	}
	return v.(byte), nil
}

// SetupSession is the scratch state a Pair-Setup handshake carries
// between StartPairing and FinishPairing, mirroring client/ip's type of
// the same name.
type SetupSession struct {
	char         device.Characteristic
	iid          uint16
	session      *pairing.Session
	method       pairing.Method
	flags        uint32
	serverPublic []byte
	salt         []byte
}

// StartPairing begins a Pair-Setup handshake over the pair-setup
// characteristic, carrying it through M1/M2.
func (c *Client) StartPairing(ctx context.Context, method pairing.Method, flags uint32) (*SetupSession, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		char, err := c.charByName(ctx, "pairing", "pair-setup")
		if err != nil {
			return nil, err
		}
		iid, err := instanceID(char)
		if err != nil {
			return nil, err
		}
		session := pairing.NewSession()
		m1 := pairing.BuildSetupM1(method, flags)
		body, err := c.writeTLV(char, iid, m1)
		if err != nil {
			return nil, err
		}
		serverPublic, salt, err := pairing.ParseSetupM2(body)
		if err != nil {
			return nil, err
		}
		return &SetupSession{
			char:         char,
			iid:          iid,
			session:      session,
			method:       method,
			flags:        flags,
			serverPublic: serverPublic,
			salt:         salt,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SetupSession), nil
}

// FinishPairing completes M3-M6 against pin, persisting the resulting
// pairing.Data on the client.
func (c *Client) FinishPairing(ctx context.Context, setup *SetupSession, pin string) (*pairing.Data, error) {
	if setup == nil {
		return nil, haperr.NewUsageError("ble: finishPairing called without startPairing")
	}
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		m3, err := pairing.BuildSetupM3(setup.session, pin, setup.salt, setup.serverPublic)
		if err != nil {
			return nil, err
		}
		body, err := c.writeTLV(setup.char, setup.iid, m3)
		if err != nil {
			return nil, err
		}
		if err := pairing.ParseSetupM4(setup.session, body); err != nil {
			return nil, err
		}

		if setup.flags&pairing.FlagTransient != 0 && setup.flags&pairing.FlagSplit == 0 {
			return (*pairing.Data)(nil), nil
		}

		identity, err := pairing.GenerateControllerIdentity()
		if err != nil {
			return nil, err
		}
		m5, err := pairing.BuildSetupM5(setup.session, identity)
		if err != nil {
			return nil, err
		}
		body, err = c.writeTLV(setup.char, setup.iid, m5)
		if err != nil {
			return nil, err
		}
		data, err := pairing.ParseSetupM6(setup.session, body, identity)
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	data, _ := v.(*pairing.Data)
	if data != nil {
		c.mu.Lock()
		c.pairingData = data
		c.mu.Unlock()
	}
	return data, nil
}

// PairSetup is the convenience composition of StartPairing+FinishPairing.
func (c *Client) PairSetup(ctx context.Context, pin string, method pairing.Method, flags uint32) (*pairing.Data, error) {
	setup, err := c.StartPairing(ctx, method, flags)
	if err != nil {
		return nil, err
	}
	return c.FinishPairing(ctx, setup, pin)
}

// ensureVerified resolves the pair-verify characteristic and its
// instance id, then runs Pair-Resume (falling back to full Pair-Verify)
// if the session is not already secure.
func (c *Client) ensureVerified(ctx context.Context) error {
	c.mu.Lock()
	secure := c.bleSession.IsSecure()
	pd := c.pairingData
	c.mu.Unlock()
	if secure {
		return nil
	}
	if pd == nil || !pd.IsComplete() {
		return haperr.NewUsageError("ble: no pairing data present; call pairSetup first")
	}

	char, err := c.charByName(ctx, "pairing", "pair-verify")
	if err != nil {
		return err
	}
	iid, err := instanceID(char)
	if err != nil {
		return err
	}
	return c.verify(char, iid)
}

// verify runs Pair-Verify (or Pair-Resume, with fallback) through the
// client's dedicated pairing queue, preventing a re-entrant call from
// deadlocking against the primary queue.
func (c *Client) verify(char device.Characteristic, iid uint16) error {
	_, err := c.pairingQueue.Submit(c.ctx, func(ctx context.Context) (interface{}, error) {
		c.mu.Lock()
		pd := c.pairingData
		session := c.session
		c.mu.Unlock()

		if session.CanResume() {
			if err := c.resume(char, iid, session); err == nil {
				c.bleSession.EnableEncryption(session.AccessoryToControllerKey, session.ControllerToAccessoryKey)
				return nil, nil
			}
			c.log.Warn("ble: pair-resume failed, falling back to full pair-verify")
			session = pairing.NewSession()
			c.mu.Lock()
			c.session = session
			c.mu.Unlock()
		}

		m1, err := pairing.BuildVerifyM1(session)
		if err != nil {
			return nil, err
		}
		body, err := c.writeTLV(char, iid, m1)
		if err != nil {
			return nil, err
		}
		if err := pairing.ParseVerifyM2(session, body, pd.AccessoryPairingID, pd.AccessoryLTPK); err != nil {
			return nil, err
		}
		v2, err := tlv8.Decode(body)
		if err != nil {
			return nil, err
		}
		pubA, _ := v2.Get(pairing.TagPublicKey)

		m3, err := pairing.BuildVerifyM3(session, pd.ControllerPairingID, pd.ControllerLTSK, pubA)
		if err != nil {
			return nil, err
		}
		body, err = c.writeTLV(char, iid, m3)
		if err != nil {
			return nil, err
		}
		if err := pairing.ParseVerifyM4(session, body); err != nil {
			return nil, err
		}
		c.bleSession.EnableEncryption(session.AccessoryToControllerKey, session.ControllerToAccessoryKey)
		return nil, nil
	})
	return err
}

// resume attempts Pair-Resume over char/iid, extracting the accessory's
// public key from M2 before handing it to pairing.ParseResumeM2, the
// same caller contract pairing/resume_test.go exercises.
func (c *Client) resume(char device.Characteristic, iid uint16, session *pairing.Session) error {
	m1, err := pairing.BuildResumeM1(session)
	if err != nil {
		return err
	}
	body, err := c.writeTLV(char, iid, m1)
	if err != nil {
		return err
	}
	v, err := tlv8.Decode(body)
	if err != nil {
		return err
	}
	accPub, ok := v.Get(pairing.TagPublicKey)
	if !ok {
		return haperr.NewProtocolError("ble", "pair-resume M2 missing public key")
	}
	return pairing.ParseResumeM2(session, body, accPub)
}

// AddPairing authorizes a new controller identity.
func (c *Client) AddPairing(ctx context.Context, identifier string, publicKey []byte, isAdmin bool) error {
	_, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		if err := c.ensureVerified(ctx); err != nil {
			return nil, err
		}
		char, err := c.charByName(ctx, "pairing", "pairing-pairings")
		if err != nil {
			return nil, err
		}
		iid, err := instanceID(char)
		if err != nil {
			return nil, err
		}
		perm := pairing.PermissionUser
		if isAdmin {
			perm = pairing.PermissionAdmin
		}
		m1 := pairing.BuildAddPairingM1(identifier, publicKey, perm)
		body, err := c.writeTLV(char, iid, m1)
		if err != nil {
			return nil, err
		}
		return nil, pairing.ParseAddPairingM2(body)
	})
	return err
}

// RemovePairing revokes a controller identity.
func (c *Client) RemovePairing(ctx context.Context, identifier string) error {
	_, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		if err := c.ensureVerified(ctx); err != nil {
			return nil, err
		}
		char, err := c.charByName(ctx, "pairing", "pairing-pairings")
		if err != nil {
			return nil, err
		}
		iid, err := instanceID(char)
		if err != nil {
			return nil, err
		}
		m1 := pairing.BuildRemovePairingM1(identifier)
		body, err := c.writeTLV(char, iid, m1)
		if err != nil {
			return nil, err
		}
		return nil, pairing.ParseRemovePairingM2(body)
	})
	return err
}

// ListPairings lists all controller pairings.
func (c *Client) ListPairings(ctx context.Context) ([]pairing.PairingListEntry, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		if err := c.ensureVerified(ctx); err != nil {
			return nil, err
		}
		char, err := c.charByName(ctx, "pairing", "pairing-pairings")
		if err != nil {
			return nil, err
		}
		iid, err := instanceID(char)
		if err != nil {
			return nil, err
		}
		m1 := pairing.BuildListPairingsM1()
		body, err := c.writeTLV(char, iid, m1)
		if err != nil {
			return nil, err
		}
		return pairing.ParseListPairingsM2(body)
	})
	if err != nil {
		return nil, err
	}
	return v.([]pairing.PairingListEntry), nil
}
