// Package srp implements the client side of SRP-6a over the 3072-bit
// group and SHA-512 hash HAP's Pair-Setup step mandates (RFC 5054 group
// 5054-3072, identity fixed to "Pair-Setup"). The API shape (an opaque
// client, a begin step, a proof-generate step, a proof-verify step) is
// grounded on the Tomsons-go-srp package structure (SRP/ClientBegin/
// Verifier); the arithmetic itself is reimplemented directly on
// math/big and crypto/sha512 because that package's BLAKE2b hash and
// M = H(K,A,B,I,s,N,g) proof construction are not the RFC-5054-style
// M = H(H(N) xor H(g), H(I), s, A, B, K) construction HAP requires.
package srp

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"math/big"

	"github.com/hapctl/hapctl/haperr"
)

// Identity is the fixed username HAP's SRP exchange authenticates,
// regardless of which accessory or controller is pairing.
const Identity = "Pair-Setup"

// Client holds one SRP-6a client exchange in progress.
type Client struct {
	n *big.Int
	g *big.Int
	k *big.Int

	a *big.Int // client's secret ephemeral
	A *big.Int // client's public ephemeral

	pin  string
	salt []byte

	B *big.Int // server's public ephemeral, set by NewClient
	u *big.Int
	x *big.Int
	S *big.Int
	K []byte // session key = H(S)
}

// NewClient starts a client exchange for the given setup PIN and the
// salt/server-public-key the accessory provided in M2. pin is the
// 8-digit (with dashes) setup code as ASCII text.
func NewClient(pin string, salt []byte, serverPublic []byte) (*Client, error) {
	c := &Client{
		n:    group3072N(),
		g:    group3072G(),
		pin:  pin,
		salt: salt,
	}
	c.k = c.hashPadded(c.n, c.g)

	a, err := randExponent(c.n)
	if err != nil {
		return nil, err
	}
	c.a = a
	c.A = new(big.Int).Exp(c.g, c.a, c.n)

	B := new(big.Int).SetBytes(serverPublic)
	if new(big.Int).Mod(B, c.n).Sign() == 0 {
		return nil, haperr.NewProtocolError("srp", "server public key B is a multiple of N")
	}
	c.B = B

	c.u = c.hashPadded(c.A, c.B)
	if c.u.Sign() == 0 {
		return nil, haperr.NewProtocolError("srp", "scrambling parameter u is zero")
	}

	x, err := c.computeX()
	if err != nil {
		return nil, err
	}
	c.x = x

	c.S = c.computePremasterSecret()
	c.K = hash(c.S.Bytes())
	return c, nil
}

// PublicKey returns the client's public ephemeral A, the value sent to
// the accessory in M3.
func (c *Client) PublicKey() []byte {
	return c.A.Bytes()
}

// ClientProof computes M1, the client's proof of the shared key, sent to
// the accessory in M3.
func (c *Client) ClientProof() []byte {
	hN := hash(c.n.Bytes())
	hG := hash(c.g.Bytes())
	xored := make([]byte, len(hN))
	for i := range hN {
		xored[i] = hN[i] ^ hG[i]
	}
	hI := hash([]byte(Identity))

	h := sha512.New()
	h.Write(xored)
	h.Write(hI)
	h.Write(c.salt)
	h.Write(c.A.Bytes())
	h.Write(c.B.Bytes())
	h.Write(c.K)
	return h.Sum(nil)
}

// VerifyServerProof checks M2 (the accessory's proof of the shared key,
// from M4) against the locally computed session key.
func (c *Client) VerifyServerProof(serverProof []byte) error {
	h := sha512.New()
	h.Write(c.A.Bytes())
	h.Write(c.ClientProof())
	h.Write(c.K)
	expected := h.Sum(nil)

	if subtle.ConstantTimeCompare(expected, serverProof) != 1 {
		return haperr.NewProtocolError("srp", "server proof M2 did not match")
	}
	return nil
}

// SessionKey returns the raw shared secret K = H(S), the input to the
// Pair-Setup HKDF step.
func (c *Client) SessionKey() []byte {
	return append([]byte(nil), c.K...)
}

func (c *Client) computeX() (*big.Int, error) {
	inner := sha512.New()
	inner.Write([]byte(Identity))
	inner.Write([]byte(":"))
	inner.Write([]byte(c.pin))
	innerHash := inner.Sum(nil)

	outer := sha512.New()
	outer.Write(c.salt)
	outer.Write(innerHash)
	return new(big.Int).SetBytes(outer.Sum(nil)), nil
}

func (c *Client) computePremasterSecret() *big.Int {
	// S = (B - k*g^x) ^ (a + u*x) mod N
	gx := new(big.Int).Exp(c.g, c.x, c.n)
	kgx := new(big.Int).Mul(c.k, gx)
	kgx.Mod(kgx, c.n)

	base := new(big.Int).Sub(c.B, kgx)
	base.Mod(base, c.n)
	if base.Sign() < 0 {
		base.Add(base, c.n)
	}

	ux := new(big.Int).Mul(c.u, c.x)
	exp := new(big.Int).Add(c.a, ux)

	return new(big.Int).Exp(base, exp, c.n)
}

// hashPadded hashes a and b each zero-padded to the byte length of N,
// per RFC 5054's padding convention for k and u.
func (c *Client) hashPadded(a, b *big.Int) *big.Int {
	nLen := (c.n.BitLen() + 7) / 8
	h := sha512.New()
	h.Write(padTo(a.Bytes(), nLen))
	h.Write(padTo(b.Bytes(), nLen))
	return new(big.Int).SetBytes(h.Sum(nil))
}

func padTo(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

func hash(parts ...[]byte) []byte {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// randExponent returns a random value in [1, n).
func randExponent(n *big.Int) (*big.Int, error) {
	limit := new(big.Int).Sub(n, big.NewInt(1))
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, haperr.NewTransportError("srp rand", err)
	}
	return v.Add(v, big.NewInt(1)), nil
}

// GenerateVerifier computes the SRP password verifier v = g^x mod N for
// a given salt and pin, as used by test doubles acting as the accessory
// side of a Pair-Setup exchange.
func GenerateVerifier(pin string, salt []byte) []byte {
	n := group3072N()
	g := group3072G()

	inner := sha512.New()
	inner.Write([]byte(Identity))
	inner.Write([]byte(":"))
	inner.Write([]byte(pin))
	innerHash := inner.Sum(nil)

	outer := sha512.New()
	outer.Write(salt)
	outer.Write(innerHash)
	x := new(big.Int).SetBytes(outer.Sum(nil))

	v := new(big.Int).Exp(g, x, n)
	return v.Bytes()
}
