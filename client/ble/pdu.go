package ble

import (
	"time"

	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/device"
	hapble "github.com/hapctl/hapctl/transport/ble"
)

// transact performs one complete HAP PDU request/response exchange
// against a single GATT characteristic: fragment and seal the request,
// write each fragment (HAP-BLE addresses the request to the target
// characteristic's own value), then read and reassemble the response
// from the same characteristic.
func (c *Client) transact(char device.Characteristic, req hapble.Request) (hapble.Response, error) {
	req.TID = c.nextTID()
	pdu := req.Encode()
	limit := hapble.PlaintextFragmentLimit(c.bleSession.IsSecure())
	fragments := hapble.Fragment(pdu, req.TID, limit)

	for _, frag := range fragments {
		sealed, err := c.bleSession.SealFragment(frag)
		if err != nil {
			return hapble.Response{}, err
		}
		if err := char.Write(sealed, true, c.opts.timeout()); err != nil {
			return hapble.Response{}, haperr.NewTransportError("ble: write fragment", err)
		}
	}

	reassembler := hapble.NewReassembler()
	deadline := time.Now().Add(c.opts.timeout())
	for {
		if time.Now().After(deadline) {
			return hapble.Response{}, haperr.ErrTimeout
		}
		raw, err := char.Read(c.opts.timeout())
		if err != nil {
			return hapble.Response{}, haperr.NewTransportError("ble: read fragment", err)
		}
		plain, err := c.bleSession.OpenFragment(raw)
		if err != nil {
			return hapble.Response{}, err
		}
		resp, ok, err := reassembler.Feed(plain)
		if err != nil {
			return hapble.Response{}, err
		}
		if ok {
			if resp.TID != req.TID {
				return hapble.Response{}, haperr.NewProtocolError("ble", "response tid mismatch: want %d, got %d", req.TID, resp.TID)
			}
			return resp, nil
		}
	}
}

// nextTID returns the next transaction id, wrapping at 256 (the TID is
// a single byte on the wire).
func (c *Client) nextTID() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tid++
	return c.tid
}

// statusError converts a non-success HAP-BLE response status into an
// AccessoryError ("HAP BLE status codes").
func statusError(resp hapble.Response) error {
	if resp.Status == hapble.StatusSuccess {
		return nil
	}
	return haperr.NewAccessoryError(int(resp.Status), hapble.StatusName(resp.Status))
}
