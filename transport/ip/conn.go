// Package ip implements HAP's IP transport framing : a
// plaintext HTTP/1.1 phase before Pair-Verify completes, then
// length-prefixed ChaCha20-Poly1305 framing over the same net.Conn for
// every byte exchanged afterward.
package ip

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/hapctl/hapctl/haperr"
)

// maxChunk is the largest plaintext slice sealed into a single outbound
// frame; larger writes are split across multiple frames.
const maxChunk = 1024

// SecureConn wraps a net.Conn, transparently framing every Read/Write
// through ChaCha20-Poly1305 once EnableEncryption has been called.
// Before that it is a plain passthrough, so the same net/http
// request/response marshaling works unmodified across both phases.
type SecureConn struct {
	net.Conn

	mu       sync.Mutex
	secure   bool
	a2c      [32]byte
	c2a      [32]byte
	a2cCount uint64
	c2aCount uint64

	readBuf []byte // leftover decrypted plaintext not yet consumed by Read
}

// NewSecureConn wraps conn for plaintext use until EnableEncryption is called.
func NewSecureConn(conn net.Conn) *SecureConn {
	return &SecureConn{Conn: conn}
}

// EnableEncryption switches the connection into its post-Pair-Verify
// secure phase. The two directions' counters are local to this
// connection and start at zero.
func (s *SecureConn) EnableEncryption(accessoryToController, controllerToAccessory [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a2c = accessoryToController
	s.c2a = controllerToAccessory
	s.a2cCount = 0
	s.c2aCount = 0
	s.secure = true
}

// IsSecure reports whether EnableEncryption has been called.
func (s *SecureConn) IsSecure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secure
}

func frameNonce(counter uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.LittleEndian.PutUint64(nonce[4:], counter)
	return nonce
}

// Write seals p into one or more length-prefixed frames and writes them
// to the underlying connection. Before EnableEncryption it writes p
// unmodified.
func (s *SecureConn) Write(p []byte) (int, error) {
	s.mu.Lock()
	secure := s.secure
	s.mu.Unlock()
	if !secure {
		return s.Conn.Write(p)
	}

	total := 0
	for off := 0; off < len(p); off += maxChunk {
		end := off + maxChunk
		if end > len(p) {
			end = len(p)
		}
		chunk := p[off:end]

		s.mu.Lock()
		aead, err := chacha20poly1305.New(s.c2a[:])
		if err != nil {
			s.mu.Unlock()
			return total, haperr.NewTransportError("ip: chacha20poly1305 init", err)
		}
		aad := make([]byte, 2)
		binary.LittleEndian.PutUint16(aad, uint16(len(chunk)))
		nonce := frameNonce(s.c2aCount)
		sealed := aead.Seal(nil, nonce, chunk, aad)
		s.c2aCount++
		s.mu.Unlock()

		frame := append(aad, sealed...)
		if _, err := s.Conn.Write(frame); err != nil {
			return total, haperr.NewTransportError("ip: write frame", err)
		}
		total += len(chunk)
	}
	return total, nil
}

// Read fills p from decrypted frame payloads, buffering any excess
// plaintext between calls. Before EnableEncryption it reads directly
// from the underlying connection.
func (s *SecureConn) Read(p []byte) (int, error) {
	s.mu.Lock()
	secure := s.secure
	s.mu.Unlock()
	if !secure {
		return s.Conn.Read(p)
	}

	if len(s.readBuf) == 0 {
		plaintext, err := s.readFrame()
		if err != nil {
			return 0, err
		}
		s.readBuf = plaintext
	}
	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	return n, nil
}

func (s *SecureConn) readFrame() ([]byte, error) {
	aad := make([]byte, 2)
	if _, err := io.ReadFull(s.Conn, aad); err != nil {
		return nil, haperr.NewTransportError("ip: read frame length", err)
	}
	length := binary.LittleEndian.Uint16(aad)

	ciphertext := make([]byte, int(length)+chacha20poly1305.Overhead)
	if _, err := io.ReadFull(s.Conn, ciphertext); err != nil {
		return nil, haperr.NewTransportError("ip: read frame body", err)
	}

	s.mu.Lock()
	aead, err := chacha20poly1305.New(s.a2c[:])
	if err != nil {
		s.mu.Unlock()
		return nil, haperr.NewTransportError("ip: chacha20poly1305 init", err)
	}
	nonce := frameNonce(s.a2cCount)
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		s.mu.Unlock()
		return nil, haperr.NewProtocolError("ip", "frame decryption failed: %v", err)
	}
	s.a2cCount++
	s.mu.Unlock()

	return plaintext, nil
}
