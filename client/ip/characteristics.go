package ip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hapctl/hapctl/client"
	"github.com/hapctl/hapctl/haperr"
	hapip "github.com/hapctl/hapctl/transport/ip"
)

// GetAccessories retrieves and parses the accessory database: a single
// JSON GET against /accessories.
func (c *Client) GetAccessories(ctx context.Context) (*client.AccessoryDatabase, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		cn, err := c.ensureVerified(ctx)
		if err != nil {
			return nil, err
		}
		defer c.releaseIfTransient(cn)

		resp, body, err := cn.get(hapip.PathAccessories, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp, body); err != nil {
			return nil, err
		}
		var db client.AccessoryDatabase
		if err := json.Unmarshal(body, &db); err != nil {
			return nil, haperr.NewProtocolError("ip", "getAccessories: invalid JSON body: %v", err)
		}
		return &db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*client.AccessoryDatabase), nil
}

// idList renders a.b,c.d ids for the "?id=" query parameter.
func idList(targets []client.CharacteristicTarget) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = fmt.Sprintf("%d.%d", t.AID, t.IID)
	}
	return strings.Join(parts, ",")
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// GetCharacteristics reads one or more characteristics by (aid,iid),
// optionally requesting metadata/permissions/type/event-state alongside
// the value ("?id=...&meta=...&perms=...&type=...&ev=...").
func (c *Client) GetCharacteristics(ctx context.Context, targets []client.CharacteristicTarget, opts client.GetOptions) ([]client.Characteristic, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		cn, err := c.ensureVerified(ctx)
		if err != nil {
			return nil, err
		}
		defer c.releaseIfTransient(cn)

		q := "?id=" + idList(targets)
		if opts.Meta {
			q += "&meta=" + boolFlag(true)
		}
		if opts.Perms {
			q += "&perms=" + boolFlag(true)
		}
		if opts.Type {
			q += "&type=" + boolFlag(true)
		}
		if opts.EV {
			q += "&ev=" + boolFlag(true)
		}

		resp, body, err := cn.get(hapip.PathCharacteristics+q, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		// A 207 multi-status body still carries a usable characteristics
		// array, one entry per target, some possibly error-only; only
		// 4xx/5xx outside that range is a hard AccessoryError.
		if resp.StatusCode != http.StatusOK && resp.StatusCode != 207 {
			return nil, statusError(resp, body)
		}
		var wrapper struct {
			Characteristics []client.Characteristic `json:"characteristics"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, haperr.NewProtocolError("ip", "getCharacteristics: invalid JSON body: %v", err)
		}
		return wrapper.Characteristics, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]client.Characteristic), nil
}

// setResult is the decoded body of a setCharacteristics response: either
// empty (204, every write accepted) or the per-target status array a 207
// multi-status carries.
type setResult struct {
	Characteristics []client.CharacteristicStatus `json:"characteristics,omitempty"`
}

// SetCharacteristics writes one or more characteristic values: a PUT
// JSON body, each entry a bare value or the richer
// {value,authData,remote,r} object form.
func (c *Client) SetCharacteristics(ctx context.Context, values []client.CharacteristicWrite) ([]client.CharacteristicStatus, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		cn, err := c.ensureVerified(ctx)
		if err != nil {
			return nil, err
		}
		defer c.releaseIfTransient(cn)

		payload, err := json.Marshal(struct {
			Characteristics []client.CharacteristicWrite `json:"characteristics"`
		}{values})
		if err != nil {
			return nil, haperr.NewUsageError("ip: setCharacteristics: %v", err)
		}

		resp, body, err := cn.put(hapip.PathCharacteristics, hapip.ContentTypeJSON, payload, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		switch resp.StatusCode {
		case http.StatusNoContent:
			return nil, nil
		case 207:
			var result setResult
			if err := json.Unmarshal(body, &result); err != nil {
				return nil, haperr.NewProtocolError("ip", "setCharacteristics: invalid multi-status body: %v", err)
			}
			return result.Characteristics, nil
		default:
			return nil, statusError(resp, body)
		}
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.([]client.CharacteristicStatus), nil
}
