package ble

import (
	"context"

	"github.com/hapctl/hapctl/client"
	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/internal/device"
	"github.com/hapctl/hapctl/internal/hapuuid"
	"github.com/hapctl/hapctl/internal/valuecodec"
	hapble "github.com/hapctl/hapctl/transport/ble"
)

// nonDataServices are the HAP-internal services GetAccessories excludes
// from the returned database ("every non-pairing
// non-protocol characteristic's signature and value").
var nonDataServices = map[string]bool{
	"pairing":              true,
	"protocol-information": true,
}

// discover walks every GATT service/characteristic on the peripheral,
// resolving each one's HAP instance id and signature, and populates the
// client's iid index for subsequent getCharacteristics/setCharacteristics
// calls (getAccessories).
func (c *Client) discover(ctx context.Context) (*client.AccessoryDatabase, error) {
	conn, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[int]device.Characteristic)
	acc := client.Accessory{AID: 1}

	for _, svc := range conn.Services() {
		if nonDataServices[svc.KnownName()] {
			continue
		}

		service := client.Service{Type: svc.UUID()}
		var serviceInstanceChar device.Characteristic
		for _, ch := range svc.GetCharacteristics() {
			if hapuuid.IsServiceInstanceCharacteristic(ch.UUID()) {
				serviceInstanceChar = ch
				break
			}
		}
		if serviceInstanceChar != nil {
			if iid, err := instanceID(serviceInstanceChar); err == nil {
				service.IID = int(iid)
			}
		}

		for _, ch := range svc.GetCharacteristics() {
			if hapuuid.IsServiceInstanceCharacteristic(ch.UUID()) {
				continue
			}
			iid, err := instanceID(ch)
			if err != nil {
				// Tolerate a characteristic missing its instance-id
				// descriptor by omitting it from the database ("Local recovery").
				c.log.WithError(err).Debug("ble: skipping characteristic without instance id")
				continue
			}
			index[int(iid)] = ch

			decoded, err := c.readOne(ch, iid, client.GetOptions{Meta: true, Perms: true})
			if err != nil {
				c.log.WithError(err).Warn("ble: failed to read characteristic during discovery")
				continue
			}
			service.Characteristics = append(service.Characteristics, decoded)
		}
		acc.Services = append(acc.Services, service)
	}

	c.mu.Lock()
	c.iidIndex = index
	c.mu.Unlock()

	return &client.AccessoryDatabase{Accessories: []client.Accessory{acc}}, nil
}

// GetAccessories discovers the full accessory database.
func (c *Client) GetAccessories(ctx context.Context) (*client.AccessoryDatabase, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		return c.discover(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*client.AccessoryDatabase), nil
}

// ensureIndex discovers the database if it has not been built yet, so
// getCharacteristics/setCharacteristics can resolve a bare iid without
// requiring a prior explicit getAccessories call.
func (c *Client) ensureIndex(ctx context.Context) error {
	c.mu.Lock()
	empty := len(c.iidIndex) == 0
	c.mu.Unlock()
	if !empty {
		return nil
	}
	_, err := c.discover(ctx)
	return err
}

func (c *Client) charForIID(iid int) (device.Characteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.iidIndex[iid]
	if !ok {
		return nil, haperr.NewProtocolError("ble", "unknown characteristic iid %d", iid)
	}
	return ch, nil
}

// readOne performs a signature read (when any metadata flag is set) and
// a value read for one characteristic, assembling a client.Characteristic
// ("BLE: per-characteristic signature read (if any meta
// flag), then value read").
func (c *Client) readOne(ch device.Characteristic, iid uint16, opts client.GetOptions) (client.Characteristic, error) {
	out := client.Characteristic{IID: int(iid)}

	var format valuecodec.Format = valuecodec.FormatData
	if opts.Meta || opts.Perms || opts.Type {
		resp, err := c.transact(ch, hapble.Request{Opcode: hapble.OpcodeSignatureRead, IID: iid})
		if err != nil {
			return out, err
		}
		if err := statusError(resp); err != nil {
			return out, err
		}
		sig, err := hapble.ParseSignature(resp.Body)
		if err != nil {
			return out, err
		}
		if sig.Format != nil {
			format = sig.Format.Format
			out.Format = string(sig.Format.Format)
			out.Unit = sig.Format.Unit
		}
		if sig.HasProperties {
			out.Perms = permsFromProperties(sig.Properties)
		}
		if sig.ValidRange != nil {
			if min, err := valuecodec.Decode(format, sig.ValidRange.Min, valuecodec.Strict); err == nil {
				out.MinValue = min
			}
			if max, err := valuecodec.Decode(format, sig.ValidRange.Max, valuecodec.Strict); err == nil {
				out.MaxValue = max
			}
		}
		for _, r := range sig.ValidValuesRange {
			min, err := valuecodec.Decode(format, r.Min, valuecodec.Strict)
			if err != nil {
				continue
			}
			max, err := valuecodec.Decode(format, r.Max, valuecodec.Strict)
			if err != nil {
				continue
			}
			out.ValidValuesRange = append(out.ValidValuesRange, toInt(min), toInt(max))
		}
		for _, vv := range sig.ValidValues {
			v, err := valuecodec.Decode(format, vv, valuecodec.Strict)
			if err != nil {
				continue
			}
			out.ValidValues = append(out.ValidValues, toInt(v))
		}
	}

	resp, err := c.transact(ch, hapble.Request{Opcode: hapble.OpcodeCharacteristicRead, IID: iid})
	if err != nil {
		return out, err
	}
	if err := statusError(resp); err != nil {
		return out, err
	}
	value, err := valuecodec.Decode(format, resp.Body, valuecodec.Strict)
	if err != nil {
		return out, err
	}
	out.Value = value
	return out, nil
}

// toInt narrows a decoded numeric value (valuecodec.Decode returns bool,
// uint8, uint16, uint32, uint64, int32, float64, string or []byte
// depending on format) to an int for the
// database's valid-values/valid-values-range integer lists.
func toInt(v interface{}) int {
	switch n := v.(type) {
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	case int32:
		return int(n)
	case float64:
		return int(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// permsFromProperties maps the signature-read properties bitmask to the
// HAP permission-string set a JSON database entry carries.
func permsFromProperties(props uint16) []string {
	var perms []string
	if props&hapble.PropertyRead != 0 {
		perms = append(perms, client.PermPairedRead)
	}
	if props&hapble.PropertyWrite != 0 {
		perms = append(perms, client.PermPairedWrite)
	}
	if props&(hapble.PropertyNotifyEvent|hapble.PropertyNotifyDisconnected|hapble.PropertyNotifyBroadcast) != 0 {
		perms = append(perms, client.PermEvents)
	}
	if props&hapble.PropertyAdditionalAuth != 0 {
		perms = append(perms, client.PermAdditionalAuth)
	}
	if props&hapble.PropertyTimedWrite != 0 {
		perms = append(perms, client.PermTimedWrite)
	}
	return perms
}

// GetCharacteristics reads one or more characteristics by iid.
func (c *Client) GetCharacteristics(ctx context.Context, targets []client.CharacteristicTarget, opts client.GetOptions) ([]client.Characteristic, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		if err := c.ensureVerified(ctx); err != nil {
			return nil, err
		}
		if err := c.ensureIndex(ctx); err != nil {
			return nil, err
		}
		out := make([]client.Characteristic, 0, len(targets))
		for _, t := range targets {
			ch, err := c.charForIID(t.IID)
			if err != nil {
				return nil, err
			}
			decoded, err := c.readOne(ch, uint16(t.IID), opts)
			if err != nil {
				return nil, err
			}
			out = append(out, decoded)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]client.Characteristic), nil
}

// SetCharacteristics writes one or more characteristic values, one write
// PDU per entry (setCharacteristics).
func (c *Client) SetCharacteristics(ctx context.Context, values []client.CharacteristicWrite) ([]client.CharacteristicStatus, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		if err := c.ensureVerified(ctx); err != nil {
			return nil, err
		}
		if err := c.ensureIndex(ctx); err != nil {
			return nil, err
		}
		results := make([]client.CharacteristicStatus, 0, len(values))
		for _, val := range values {
			ch, err := c.charForIID(val.IID)
			if err != nil {
				return nil, err
			}
			format, err := c.formatOf(ch, uint16(val.IID))
			if err != nil {
				return nil, err
			}
			wire, err := valuecodec.Encode(format, val.Value, valuecodec.Strict)
			if err != nil {
				return nil, err
			}
			resp, err := c.transact(ch, hapble.Request{Opcode: hapble.OpcodeCharacteristicWrite, IID: uint16(val.IID), Body: wire})
			if err != nil {
				return nil, err
			}
			results = append(results, client.CharacteristicStatus{AID: val.AID, IID: val.IID, Status: int(resp.Status)})
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]client.CharacteristicStatus), nil
}

// formatOf resolves a characteristic's format through a signature read;
// formats are not cached, so every call performs a new signature read.
func (c *Client) formatOf(ch device.Characteristic, iid uint16) (valuecodec.Format, error) {
	resp, err := c.transact(ch, hapble.Request{Opcode: hapble.OpcodeSignatureRead, IID: iid})
	if err != nil {
		return "", err
	}
	if err := statusError(resp); err != nil {
		return "", err
	}
	sig, err := hapble.ParseSignature(resp.Body)
	if err != nil {
		return "", err
	}
	if sig.Format == nil {
		return valuecodec.FormatData, nil
	}
	return sig.Format.Format, nil
}
