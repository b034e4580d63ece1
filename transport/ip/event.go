package ip

import (
	"bufio"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/hapctl/hapctl/haperr"
)

// eventStatusLine is the single status line every HAP event frame begins
// with; unlike a response it carries no request to pair against, so it
// needs its own reader instead of net/http's.
const eventStatusLine = "EVENT/1.0 200 OK"

// IsEventFrame peeks at r without consuming it, reporting whether the
// next frame is an EVENT frame rather than an ordinary HTTP response.
// Both share a connection once a subscription is active ,
// so the reader must distinguish them before committing to either parser.
func IsEventFrame(r *bufio.Reader) (bool, error) {
	peek, err := r.Peek(len(eventStatusLine))
	if err != nil {
		if err == io.EOF {
			return false, haperr.NewTransportError("ip: peek event frame", io.ErrUnexpectedEOF)
		}
		return false, haperr.NewTransportError("ip: peek event frame", err)
	}
	return string(peek) == eventStatusLine, nil
}

// ReadEventFrame reads one EVENT/1.0 200 OK frame: the status line,
// standard HTTP-style headers, and a JSON body sized by Content-Length.
func ReadEventFrame(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, haperr.NewTransportError("ip: read event status line", err)
	}
	if strings.TrimRight(line, "\r\n") != eventStatusLine {
		return nil, haperr.NewProtocolError("ip", "unexpected event status line %q", line)
	}

	tp := textproto.NewReader(r)
	hdr, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, haperr.NewTransportError("ip: read event headers", err)
	}

	n, _ := strconv.Atoi(hdr.Get("Content-Length"))
	if n == 0 {
		return nil, nil
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, haperr.NewTransportError("ip: read event body", err)
	}
	return body, nil
}
