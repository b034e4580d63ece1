// Package ip implements the IP-transport HAP client (, C8):
// identify/pair/list/add/remove/getAccessories/get/set/subscribe/
// unsubscribe over HTTP/1.1 framed per transport/ip.
package ip

import (
	"context"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/opqueue"
	"github.com/hapctl/hapctl/internal/tlv8"
	"github.com/hapctl/hapctl/pairing"
	hapip "github.com/hapctl/hapctl/transport/ip"
)

// Client is one IP-transport HAP controller session against a single
// accessory address. All operations run through its primary queue,
// guaranteeing at most one concurrent transport operation.
type Client struct {
	addr string
	opts ClientOptions
	log  *logrus.Logger

	queue        *opqueue.Queue
	pairingQueue *opqueue.Queue
	ctx          context.Context
	cancel       context.CancelFunc

	mu          sync.Mutex
	pairingData *pairing.Data
	session     *pairing.Session

	defaultConn *conn
	subConn     *conn

	subscribed       map[client_target]bool
	eventLoopRunning bool
	eventCb          func(aid, iid int, value []byte)
	disconnectCb     func(targets []client_target)

	pendingSetup *SetupSession
}

// client_target is the unexported (aid,iid) pair used internally for the
// subscribed-set; client.CharacteristicTarget is the public equivalent.
type client_target struct{ aid, iid int }

// New returns a Client for the accessory at addr ("host:port"). existing
// is the prior PairingData to resume authenticated operations with, or
// nil for an unpaired accessory (only Identify/StartPairing/FinishPairing
// may be called until a Pair-Setup completes).
func New(addr string, existing *pairing.Data, opts ClientOptions) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	log := opts.logger()
	return &Client{
		addr:         addr,
		opts:         opts,
		log:          log,
		queue:        opqueue.New(ctx, "ip-client-"+addr, log),
		pairingQueue: opqueue.New(ctx, "ip-client-pairing-"+addr, log),
		ctx:          ctx,
		cancel:       cancel,
		pairingData:  existing,
		session:      pairing.NewSession(),
		subscribed:   make(map[client_target]bool),
	}
}

// Close tears down any open connections and stops the client's queues.
func (c *Client) Close() {
	c.mu.Lock()
	if c.defaultConn != nil {
		c.defaultConn.close()
		c.defaultConn = nil
	}
	if c.subConn != nil {
		c.subConn.close()
		c.subConn = nil
	}
	c.mu.Unlock()
	c.cancel()
	c.queue.Close()
	c.pairingQueue.Close()
}

// GetLongTermData returns the client's current PairingData, or nil if
// no Pair-Setup has completed (getLongTermData).
func (c *Client) GetLongTermData() *pairing.Data {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pairingData
}

// CanResume reports whether the client's last Pair-Verify left a
// resumable session.
func (c *Client) CanResume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.CanResume()
}

// Identify sends an unauthenticated identify request. It only succeeds
// on an unpaired accessory.
func (c *Client) Identify(ctx context.Context) error {
	_, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		conn, err := dial(ctx, c.addr, c.opts.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		defer conn.close()
		resp, body, err := conn.post(hapip.PathIdentify, "", nil, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		return nil, statusError(resp, body)
	})
	return err
}

// StartPairing begins a Pair-Setup handshake, dialing a fresh connection
// and carrying it through M1/M2. The returned SetupSession must be
// passed to FinishPairing to complete M3-M6 ("startPairing(method,
// flags) -> pairingData; finishPairing(pairingData, pin)"; here the
// intermediate "pairingData" is the in-progress
// handshake scratch, distinct from the final pairing.Data identity
// FinishPairing returns).
func (c *Client) StartPairing(ctx context.Context, method pairing.Method, flags uint32) (*SetupSession, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		cn, err := dial(ctx, c.addr, c.opts.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		m1 := pairing.BuildSetupM1(method, flags)
		resp, body, err := cn.post(hapip.PathPairSetup, hapip.ContentTypeTLV8, m1, c.opts.RequestTimeout)
		if err != nil {
			cn.close()
			return nil, err
		}
		if err := statusError(resp, body); err != nil {
			cn.close()
			return nil, err
		}
		session := pairing.NewSession()
		serverPublic, salt, err := pairing.ParseSetupM2(body)
		if err != nil {
			cn.close()
			return nil, err
		}
		return &SetupSession{
			conn:         cn,
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

// SetupSession is the scratch state a Pair-Setup handshake carries
// between StartPairing and FinishPairing: the still-open connection and
// the accessory's SRP salt/public key from M2.
type SetupSession struct {
	conn         *conn
	session      *pairing.Session
	method       pairing.Method
	flags        uint32
	serverPublic []byte
	salt         []byte
}

// FinishPairing completes M3-M6 against pin, persisting the resulting
// pairing.Data on the client (so GetLongTermData and every authenticated
// operation see it) and closing the handshake connection.
func (c *Client) FinishPairing(ctx context.Context, setup *SetupSession, pin string) (*pairing.Data, error) {
	if setup == nil {
		return nil, haperr.NewUsageError("ip: finishPairing called without startPairing")
	}
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		defer setup.conn.close()

		m3, err := pairing.BuildSetupM3(setup.session, pin, setup.salt, setup.serverPublic)
		if err != nil {
			return nil, err
		}
		resp, body, err := setup.conn.post(hapip.PathPairSetup, hapip.ContentTypeTLV8, m3, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp, body); err != nil {
			return nil, err
		}
		if err := pairing.ParseSetupM4(setup.session, body); err != nil {
			return nil, err
		}

		if setup.flags&pairing.FlagTransient != 0 && setup.flags&pairing.FlagSplit == 0 {
			// Transient-only pairing: authenticated session without a
			// long-term identity exchange.
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
		resp, body, err = setup.conn.post(hapip.PathPairSetup, hapip.ContentTypeTLV8, m5, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp, body); err != nil {
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

func statusError(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return haperr.NewAccessoryError(resp.StatusCode, string(body))
}

// ensureVerified returns an encrypted, Pair-Verified connection for an
// authenticated operation: the reused default connection when
// UsePersistentConnections is set, otherwise a fresh one. Pair-Resume is
// attempted first when available, falling back to a full Pair-Verify on
// failure.
func (c *Client) ensureVerified(ctx context.Context) (*conn, error) {
	c.mu.Lock()
	pd := c.pairingData
	c.mu.Unlock()
	if pd == nil || !pd.IsComplete() {
		return nil, haperr.NewUsageError("ip: no pairing data present; call pairSetup first")
	}

	c.mu.Lock()
	if c.opts.UsePersistentConnections && c.defaultConn != nil {
		cn := c.defaultConn
		c.mu.Unlock()
		return cn, nil
	}
	c.mu.Unlock()

	cn, err := dial(ctx, c.addr, c.opts.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	if err := c.verify(ctx, cn); err != nil {
		cn.close()
		return nil, err
	}

	if c.opts.UsePersistentConnections {
		c.mu.Lock()
		c.defaultConn = cn
		c.mu.Unlock()
	}
	return cn, nil
}

// verify runs Pair-Verify (or Pair-Resume, with fallback) over cn through
// the client's dedicated pairing queue, preventing a re-entrant call from
// deadlocking against the primary queue.
func (c *Client) verify(ctx context.Context, cn *conn) error {
	_, err := c.pairingQueue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		c.mu.Lock()
		pd := c.pairingData
		session := c.session
		c.mu.Unlock()

		if session.CanResume() {
			if err := c.resume(cn, session); err == nil {
				cn.secure.EnableEncryption(session.AccessoryToControllerKey, session.ControllerToAccessoryKey)
				return nil, nil
			}
			c.log.Warn("ip: pair-resume failed, falling back to full pair-verify")
			session = pairing.NewSession()
			c.mu.Lock()
			c.session = session
			c.mu.Unlock()
		}

		m1, err := pairing.BuildVerifyM1(session)
		if err != nil {
			return nil, err
		}
		resp, body, err := cn.post(hapip.PathPairVerify, hapip.ContentTypeTLV8, m1, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp, body); err != nil {
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
		resp, body, err = cn.post(hapip.PathPairVerify, hapip.ContentTypeTLV8, m3, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp, body); err != nil {
			return nil, err
		}
		if err := pairing.ParseVerifyM4(session, body); err != nil {
			return nil, err
		}
		cn.secure.EnableEncryption(session.AccessoryToControllerKey, session.ControllerToAccessoryKey)
		return nil, nil
	})
	return err
}

func (c *Client) resume(cn *conn, session *pairing.Session) error {
	m1, err := pairing.BuildResumeM1(session)
	if err != nil {
		return err
	}
	resp, body, err := cn.post(hapip.PathPairVerify, hapip.ContentTypeTLV8, m1, c.opts.RequestTimeout)
	if err != nil {
		return err
	}
	if err := statusError(resp, body); err != nil {
		return err
	}
	v, err := tlv8.Decode(body)
	if err != nil {
		return err
	}
	accPub, ok := v.Get(pairing.TagPublicKey)
	if !ok {
		return haperr.NewProtocolError("ip", "pair-resume M2 missing public key")
	}
	return pairing.ParseResumeM2(session, body, accPub)
}

// AddPairing authorizes a new controller identity.
func (c *Client) AddPairing(ctx context.Context, identifier string, publicKey []byte, isAdmin bool) error {
	_, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		cn, err := c.ensureVerified(ctx)
		if err != nil {
			return nil, err
		}
		defer c.releaseIfTransient(cn)
		perm := pairing.PermissionUser
		if isAdmin {
			perm = pairing.PermissionAdmin
		}
		body := pairing.BuildAddPairingM1(identifier, publicKey, perm)
		resp, respBody, err := cn.post(hapip.PathPairings, hapip.ContentTypeTLV8, body, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp, respBody); err != nil {
			return nil, err
		}
		return nil, pairing.ParseAddPairingM2(respBody)
	})
	return err
}

// RemovePairing revokes a controller identity.
func (c *Client) RemovePairing(ctx context.Context, identifier string) error {
	_, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		cn, err := c.ensureVerified(ctx)
		if err != nil {
			return nil, err
		}
		defer c.releaseIfTransient(cn)
		body := pairing.BuildRemovePairingM1(identifier)
		resp, respBody, err := cn.post(hapip.PathPairings, hapip.ContentTypeTLV8, body, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp, respBody); err != nil {
			return nil, err
		}
		return nil, pairing.ParseRemovePairingM2(respBody)
	})
	return err
}

// ListPairings enumerates every controller paired with the accessory.
func (c *Client) ListPairings(ctx context.Context) ([]pairing.PairingListEntry, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		cn, err := c.ensureVerified(ctx)
		if err != nil {
			return nil, err
		}
		defer c.releaseIfTransient(cn)
		body := pairing.BuildListPairingsM1()
		resp, respBody, err := cn.post(hapip.PathPairings, hapip.ContentTypeTLV8, body, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp, respBody); err != nil {
			return nil, err
		}
		return pairing.ParseListPairingsM2(respBody)
	})
	if err != nil {
		return nil, err
	}
	return v.([]pairing.PairingListEntry), nil
}

// releaseIfTransient closes cn when it was dialed just for this one
// operation (connection reuse disabled), so a one-shot handshake doesn't
// leak a socket.
func (c *Client) releaseIfTransient(cn *conn) {
	if !c.opts.UsePersistentConnections {
		cn.close()
	}
}
