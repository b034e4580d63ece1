package ip

import (
	"context"
	"encoding/json"

	"github.com/hapctl/hapctl/haperr"
	hapip "github.com/hapctl/hapctl/transport/ip"
)

// resourceRequest is the body of a POST /resource call: a snapshot
// request sized to (width,height), optionally scoped to one accessory
// of a bridge.
type resourceRequest struct {
	ImageWidth  int  `json:"image-width"`
	ImageHeight int  `json:"image-height"`
	AID         *int `json:"aid,omitempty"`
}

// GetImage fetches a camera snapshot resized to width x height, scoped
// to aid when non-nil (getImage). The response body is the
// raw image bytes; content type is left to the caller to trust from the
// accessory's advertised camera capability.
func (c *Client) GetImage(ctx context.Context, width, height int, aid *int) ([]byte, error) {
	v, err := c.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		cn, err := c.ensureVerified(ctx)
		if err != nil {
			return nil, err
		}
		defer c.releaseIfTransient(cn)

		payload, err := json.Marshal(resourceRequest{ImageWidth: width, ImageHeight: height, AID: aid})
		if err != nil {
			return nil, haperr.NewUsageError("ip: getImage: %v", err)
		}

		resp, body, err := cn.post(hapip.PathResource, hapip.ContentTypeJSON, payload, c.opts.RequestTimeout)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp, body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
