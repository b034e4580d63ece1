package ip

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/hapctl/hapctl/haperr"
	"github.com/hapctl/hapctl/transport/ip"
)

// conn pairs a SecureConn with the buffered reader net/http's response
// parser needs, so a persistent connection can read more than one
// response without losing any bytes buffered between calls.
type conn struct {
	secure *ip.SecureConn
	raw    net.Conn
	br     *bufio.Reader
}

func dial(ctx context.Context, addr string, timeout time.Duration) (*conn, error) {
	d := net.Dialer{}
	if timeout > 0 {
		d.Timeout = timeout
	}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, haperr.NewTransportError("ip: dial", err)
	}
	sc := ip.NewSecureConn(nc)
	return &conn{secure: sc, raw: nc, br: bufio.NewReader(sc)}, nil
}

func (c *conn) close() {
	_ = c.raw.Close()
}

// roundTrip writes req over the connection and reads its response body,
// optionally bounding the wait with a per-request timeout.
func (c *conn) roundTrip(req *http.Request, timeout time.Duration) (*http.Response, []byte, error) {
	if timeout > 0 {
		_ = c.raw.SetDeadline(time.Now().Add(timeout))
		defer func() { _ = c.raw.SetDeadline(time.Time{}) }()
	}
	if err := ip.WriteRequest(c.secure, req); err != nil {
		return nil, nil, err
	}
	return ip.ReadResponse(c.br, req)
}

// post builds and sends a POST request with the given content type and
// body, returning the raw response and decoded body bytes.
func (c *conn) post(path, contentType string, body []byte, timeout time.Duration) (*http.Response, []byte, error) {
	req, err := ip.BuildRequest(http.MethodPost, path, contentType, body)
	if err != nil {
		return nil, nil, err
	}
	return c.roundTrip(req, timeout)
}

func (c *conn) get(path string, timeout time.Duration) (*http.Response, []byte, error) {
	req, err := ip.BuildRequest(http.MethodGet, path, "", nil)
	if err != nil {
		return nil, nil, err
	}
	return c.roundTrip(req, timeout)
}

func (c *conn) put(path, contentType string, body []byte, timeout time.Duration) (*http.Response, []byte, error) {
	req, err := ip.BuildRequest(http.MethodPut, path, contentType, body)
	if err != nil {
		return nil, nil, err
	}
	return c.roundTrip(req, timeout)
}
