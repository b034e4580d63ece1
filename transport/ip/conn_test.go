package ip

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConns() (*SecureConn, *SecureConn, func()) {
	a, b := net.Pipe()
	return NewSecureConn(a), NewSecureConn(b), func() {
		_ = a.Close()
		_ = b.Close()
	}
}

func TestSecureConnPlaintextPassthrough(t *testing.T) {
	client, server, closeAll := pipeConns()
	defer closeAll()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 5)
		n, err := server.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(buf[:n]))
	}()

	_, err := client.Write([]byte("hello"))
	require.NoError(t, err)
	<-done
}

func TestSecureConnEncryptedRoundTrip(t *testing.T) {
	client, server, closeAll := pipeConns()
	defer closeAll()

	var a2c, c2a [32]byte
	for i := range a2c {
		a2c[i] = byte(i)
		c2a[i] = byte(i + 1)
	}
	// client writes controller->accessory, server reads accessory<-controller,
	// so the server's a2c key must match the client's c2a key and vice versa.
	client.EnableEncryption(a2c, c2a)
	server.EnableEncryption(c2a, a2c)

	assert.True(t, client.IsSecure())
	assert.True(t, server.IsSecure())

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 13)
		n, err := server.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "hello, world!", string(buf[:n]))
	}()

	n, err := client.Write([]byte("hello, world!"))
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	<-done

	assert.Equal(t, uint64(1), client.c2aCount)
	assert.Equal(t, uint64(1), server.a2cCount)
}

func TestSecureConnSplitsLargeWritesIntoChunks(t *testing.T) {
	client, server, closeAll := pipeConns()
	defer closeAll()

	var key [32]byte
	client.EnableEncryption(key, key)
	server.EnableEncryption(key, key)

	payload := make([]byte, maxChunk+100)
	for i := range payload {
		payload[i] = byte(i)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		got := make([]byte, 0, len(payload))
		buf := make([]byte, 4096)
		for len(got) < len(payload) {
			n, err := server.Read(buf)
			require.NoError(t, err)
			got = append(got, buf[:n]...)
		}
		assert.Equal(t, payload, got)
	}()

	_, err := client.Write(payload)
	require.NoError(t, err)
	<-done

	// two chunks: maxChunk and the 100-byte remainder, so the counter
	// advances twice for one logical Write.
	assert.Equal(t, uint64(2), client.c2aCount)
}

func TestSecureConnWrongCounterFailsDecryption(t *testing.T) {
	client, server, closeAll := pipeConns()
	defer closeAll()

	var key [32]byte
	client.EnableEncryption(key, key)
	server.EnableEncryption(key, key)

	// Advance the server's read counter past the client's write counter,
	// desynchronizing the nonces the two sides expect.
	server.a2cCount = 5

	done := make(chan error)
	go func() {
		buf := make([]byte, 16)
		_, err := server.Read(buf)
		done <- err
	}()

	_, err := client.Write([]byte("desynced"))
	require.NoError(t, err)
	err = <-done
	require.Error(t, err)
}
