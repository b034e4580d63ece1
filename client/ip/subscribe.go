package ip

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/hapctl/hapctl/client"
	"github.com/hapctl/hapctl/haperr"
	hapip "github.com/hapctl/hapctl/transport/ip"
)

// OnEvent registers the callback invoked for every value pushed over an
// active subscription. Replaces any previous callback.
func (c *Client) OnEvent(cb func(aid, iid int, value json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventCb = func(aid, iid int, value []byte) {
		cb(aid, iid, value)
	}
}

// OnDisconnect registers the callback invoked when the subscription
// connection drops, carrying the formerly subscribed set ("eventDisconnect").
func (c *Client) OnDisconnect(cb func(targets []client.CharacteristicTarget)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = func(raw []client_target) {
		out := make([]client.CharacteristicTarget, len(raw))
		for i, t := range raw {
			out[i] = client.CharacteristicTarget{AID: t.aid, IID: t.iid}
		}
		cb(out)
	}
}

// GetSubscribedCharacteristics returns the currently subscribed targets.
func (c *Client) GetSubscribedCharacteristics() []client.CharacteristicTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]client.CharacteristicTarget, 0, len(c.subscribed))
	for t := range c.subscribed {
		out = append(out, client.CharacteristicTarget{AID: t.aid, IID: t.iid})
	}
	return out
}

// subscriptionConn returns the connection event frames are read from:
// the default connection when SubscriptionsUseSameConnection is set,
// otherwise a dedicated connection kept open for the life of the
// subscription.
func (c *Client) subscriptionConn(ctx context.Context) (*conn, error) {
	c.mu.Lock()
	if c.opts.SubscriptionsUseSameConnection {
		cn := c.defaultConn
		c.mu.Unlock()
		if cn != nil {
			return cn, nil
		}
		return c.ensureVerified(ctx)
	}
	cn := c.subConn
	c.mu.Unlock()
	if cn != nil {
		return cn, nil
	}
	nc, err := c.ensureVerified(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	shared := nc == c.defaultConn
	c.mu.Unlock()
	if shared {
		if nc, err = dial(ctx, c.addr, c.opts.ConnectTimeout); err != nil {
			return nil, err
		}
		if err = c.verify(ctx, nc); err != nil {
			nc.close()
			return nil, err
		}
	}
	c.mu.Lock()
	c.subConn = nc
	c.mu.Unlock()
	return nc, nil
}

// SubscribeCharacteristics subscribes to events on targets not already
// subscribed, deduplicating against the current subscribed set ("Deduplication"), and starts the event reader loop if it is
// not already running.
func (c *Client) SubscribeCharacteristics(ctx context.Context, targets []client.CharacteristicTarget) error {
	_, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		c.mu.Lock()
		fresh := make([]client.CharacteristicTarget, 0, len(targets))
		for _, t := range targets {
			key := client_target{t.AID, t.IID}
			if !c.subscribed[key] {
				fresh = append(fresh, t)
			}
		}
		c.mu.Unlock()
		if len(fresh) == 0 {
			return nil, nil
		}

		cn, err := c.subscriptionConn(ctx)
		if err != nil {
			return nil, err
		}

		writes := make([]client.CharacteristicEventWrite, len(fresh))
		for i, t := range fresh {
			writes[i] = client.CharacteristicEventWrite{CharacteristicTarget: t, EV: true}
		}
		payload, err := json.Marshal(struct {
			Characteristics []client.CharacteristicEventWrite `json:"characteristics"`
		}{writes})
		if err != nil {
			return nil, haperr.NewUsageError("ip: subscribeCharacteristics: %v", err)
		}

		resp, body, err := cn.put(hapip.PathCharacteristics, hapip.ContentTypeJSON, payload, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusNoContent && resp.StatusCode != 207 {
			return nil, statusError(resp, body)
		}

		c.mu.Lock()
		for _, t := range fresh {
			c.subscribed[client_target{t.AID, t.IID}] = true
		}
		started := c.eventLoopRunning
		c.eventLoopRunning = true
		c.mu.Unlock()

		if !started {
			go c.runEventLoop(cn)
		}
		return nil, nil
	})
	return err
}

// UnsubscribeCharacteristics unsubscribes from targets, or every
// currently subscribed target if targets is nil.
func (c *Client) UnsubscribeCharacteristics(ctx context.Context, targets []client.CharacteristicTarget) error {
	_, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		c.mu.Lock()
		if targets == nil {
			for t := range c.subscribed {
				targets = append(targets, client.CharacteristicTarget{AID: t.aid, IID: t.iid})
			}
		}
		var remove []client.CharacteristicTarget
		for _, t := range targets {
			key := client_target{t.AID, t.IID}
			if c.subscribed[key] {
				remove = append(remove, t)
			}
		}
		c.mu.Unlock()
		if len(remove) == 0 {
			return nil, nil
		}

		cn, err := c.subscriptionConn(ctx)
		if err != nil {
			return nil, err
		}

		writes := make([]client.CharacteristicEventWrite, len(remove))
		for i, t := range remove {
			writes[i] = client.CharacteristicEventWrite{CharacteristicTarget: t, EV: false}
		}
		payload, err := json.Marshal(struct {
			Characteristics []client.CharacteristicEventWrite `json:"characteristics"`
		}{writes})
		if err != nil {
			return nil, haperr.NewUsageError("ip: unsubscribeCharacteristics: %v", err)
		}

		resp, body, err := cn.put(hapip.PathCharacteristics, hapip.ContentTypeJSON, payload, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusNoContent && resp.StatusCode != 207 {
			return nil, statusError(resp, body)
		}

		c.mu.Lock()
		for _, t := range remove {
			delete(c.subscribed, client_target{t.AID, t.IID})
		}
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

// runEventLoop reads EVENT/1.0 200 OK frames from cn until it errors or
// closes, dispatching each characteristic's new value to the registered
// callback and, on exit, emitting the eventDisconnect signal with the
// set subscribed at the time of the drop.
func (c *Client) runEventLoop(cn *conn) {
	for {
		isEvent, err := hapip.IsEventFrame(cn.br)
		if err != nil {
			c.handleEventLoopExit()
			return
		}
		if !isEvent {
			// A non-event frame arriving here means the subscription
			// connection was handed an ordinary request/response pair
			// out from under the event loop; nothing left to do but
			// stop rather than busy-loop re-peeking the same bytes.
			c.log.Warn("ip: non-event frame on subscription connection, stopping event loop")
			c.handleEventLoopExit()
			return
		}
		body, err := hapip.ReadEventFrame(cn.br)
		if err != nil {
			if err == io.EOF {
				c.handleEventLoopExit()
				return
			}
			c.log.WithError(err).Warn("ip: malformed event frame")
			continue
		}
		c.dispatchEvent(body)
	}
}

func (c *Client) dispatchEvent(body []byte) {
	var wrapper struct {
		Characteristics []client.CharacteristicEvent `json:"characteristics"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		c.log.WithError(err).Warn("ip: invalid event body")
		return
	}
	c.mu.Lock()
	cb := c.eventCb
	c.mu.Unlock()
	if cb == nil {
		return
	}
	for _, ch := range wrapper.Characteristics {
		raw, err := json.Marshal(ch.Value)
		if err != nil {
			continue
		}
		cb(ch.AID, ch.IID, raw)
	}
}

func (c *Client) handleEventLoopExit() {
	c.mu.Lock()
	c.eventLoopRunning = false
	var dropped []client_target
	for t := range c.subscribed {
		dropped = append(dropped, t)
		delete(c.subscribed, t)
	}
	if c.subConn != nil {
		c.subConn.close()
		c.subConn = nil
	}
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil && len(dropped) > 0 {
		cb(dropped)
	}
}
