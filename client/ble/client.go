// Package ble implements the BLE-transport HAP client (, C9):
// client/ip's identify/pair/list/add/remove/getAccessories/get/set
// surface, carried over GATT PDUs framed per transport/ble instead of
// HTTP. It has no subscribe/unsubscribe operations: it does not
// subscribe to GATT indications and delivers no characteristic events.
package ble

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/device"
	goble "github.com/hapctl/hapctl/internal/device/go-ble"
	"github.com/hapctl/hapctl/internal/opqueue"
	"github.com/hapctl/hapctl/pairing"
	hapble "github.com/hapctl/hapctl/transport/ble"
)

// Client is one BLE-transport HAP controller session against a single
// peripheral address. All operations run through its primary queue; a
// separate pairing queue runs the embedded Pair-Verify/Resume an
// authenticated operation triggers, avoiding re-entrant deadlock against
// the primary queue.
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
	bleSession  *hapble.Session
	tid         byte

	device *goble.BLEDevice
	conn   device.Connection

	iidIndex map[int]device.Characteristic

	subscribed   map[subTarget]bool
	eventCb      func(aid, iid int, value []byte)
	disconnectCb func(targets []subTarget)

	pendingSetup *SetupSession
}

// subTarget is the unexported (aid,iid) pair used internally for the
// subscribed-set; aid defaults to 1 for the single-accessory case BLE
// peripherals (non-bridges) always present.
type subTarget struct{ aid, iid int }

// New returns a Client for the peripheral at addr (its BLE address).
// existing is the prior PairingData to resume authenticated operations
// with, or nil for an unpaired accessory.
func New(addr string, existing *pairing.Data, opts ClientOptions) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	log := opts.logger()
	return &Client{
		addr:         addr,
		opts:         opts,
		log:          log,
		queue:        opqueue.New(ctx, "ble-client-"+addr, log),
		pairingQueue: opqueue.New(ctx, "ble-client-pairing-"+addr, log),
		ctx:          ctx,
		cancel:       cancel,
		pairingData:  existing,
		session:      pairing.NewSession(),
		bleSession:   hapble.NewSession(),
		device:       goble.NewBLEDeviceWithAddress(addr, log),
		subscribed:   make(map[subTarget]bool),
	}
}

// Close disconnects the peripheral and stops the client's queues.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = c.device.Disconnect()
	}
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

// ensureConnected establishes the GATT connection if not already
// connected, caching it for the life of the Client ("a
// single persistent BLE connection may hold any number of
// subscriptions").
func (c *Client) ensureConnected(ctx context.Context) (device.Connection, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		return conn, nil
	}

	if err := c.device.Connect(ctx, &device.ConnectOptions{
		Address:        c.addr,
		ConnectTimeout: c.opts.connectTimeout(),
	}); err != nil {
		return nil, haperr.NewTransportError("ble: connect", err)
	}
	conn = c.device.GetConnection()
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

// charByName resolves a known HAP service/characteristic pair (e.g.
// "pairing"/"pair-setup") to its live GATT characteristic.
func (c *Client) charByName(ctx context.Context, service, characteristic string) (device.Characteristic, error) {
	conn, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	for _, svc := range conn.Services() {
		if svc.KnownName() != service {
			continue
		}
		for _, ch := range svc.GetCharacteristics() {
			if ch.KnownName() == characteristic {
				return ch, nil
			}
		}
	}
	return nil, haperr.NewProtocolError("ble", "characteristic %s/%s not found on peripheral", service, characteristic)
}
