package ip

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/hapctl/hapctl/haperr"
)

// HAP IP paths.
const (
	PathIdentify      = "/identify"
	PathPairSetup     = "/pair-setup"
	PathPairVerify    = "/pair-verify"
	PathPairings      = "/pairings"
	PathAccessories   = "/accessories"
	PathCharacteristics = "/characteristics"
	PathResource      = "/resource"
)

// Content types HAP's IP transport exchanges.
const (
	ContentTypeJSON = "application/hap+json"
	ContentTypeTLV8 = "application/pairing+tlv8"
)

// BuildRequest constructs an HTTP/1.1 request for path with the given
// method, content type, and body, ready to be written to a SecureConn.
func BuildRequest(method, path, contentType string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, "http://hap"+path, reader)
	if err != nil {
		return nil, haperr.NewTransportError("ip: build request", err)
	}
	req.Host = ""
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if len(body) > 0 {
		req.ContentLength = int64(len(body))
	}
	return req, nil
}

// WriteRequest writes req to conn.
func WriteRequest(conn io.Writer, req *http.Request) error {
	if err := req.Write(conn); err != nil {
		return haperr.NewTransportError("ip: write request", err)
	}
	return nil
}

// ReadResponse reads and fully buffers an HTTP response from r (the
// request it answers need not be supplied; HAP responses never depend
// on request method for body-presence rules HAP actually uses).
func ReadResponse(r *bufio.Reader, req *http.Request) (*http.Response, []byte, error) {
	resp, err := http.ReadResponse(r, req)
	if err != nil {
		return nil, nil, haperr.NewTransportError("ip: read response", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, haperr.NewTransportError("ip: read response body", err)
	}
	return resp, body, nil
}

// RetryAfter computes how long a caller should wait before retrying an
// operation that failed with the given AccessoryError code, per the
// accessory's implied backoff for Busy/TimedOut responses. A zero
// duration means no backoff is implied.
func RetryAfter(code int) time.Duration {
	switch code {
	case StatusBusy:
		return 500 * time.Millisecond
	case StatusTimedOut:
		return time.Second
	default:
		return 0
	}
}
