package ip

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEventFrameTrueForEventStatusLine(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("EVENT/1.0 200 OK\r\nContent-Type: application/hap+json\r\nContent-Length: 2\r\n\r\n{}"))
	ok, err := IsEventFrame(r)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsEventFrameFalseForOrdinaryResponse(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\n{}"))
	ok, err := IsEventFrame(r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsEventFrameErrorsOnEOF(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString(""))
	_, err := IsEventFrame(r)
	require.Error(t, err)
}

func TestReadEventFrameParsesStatusLineHeadersAndBody(t *testing.T) {
	body := `{"characteristics":[{}]}`
	raw := "EVENT/1.0 200 OK\r\nContent-Type: application/hap+json\r\nContent-Length: " +
		itoaLen(len(body)) + "\r\n\r\n" + body

	r := bufio.NewReader(bytes.NewBufferString(raw))
	got, err := ReadEventFrame(r)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestReadEventFrameRejectsWrongStatusLine(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	_, err := ReadEventFrame(r)
	require.Error(t, err)
}

func itoaLen(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
