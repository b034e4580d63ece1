package srp

import (
	"crypto/rand"
	"crypto/sha512"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup3072NIs3072Bits(t *testing.T) {
	n := group3072N()
	assert.Equal(t, 3072, n.BitLen())
}

// hashPadded mirrors Client.hashPadded for the simulated server side.
func hashPadded(n, a, b *big.Int) *big.Int {
	nLen := (n.BitLen() + 7) / 8
	h := sha512.New()
	h.Write(padTo(a.Bytes(), nLen))
	h.Write(padTo(b.Bytes(), nLen))
	return new(big.Int).SetBytes(h.Sum(nil))
}

func TestClientServerHandshakeAgreesOnSessionKey(t *testing.T) {
	pin := "031-45-154"
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	verifier := GenerateVerifier(pin, salt)

	n := group3072N()
	g := group3072G()

	limit := new(big.Int).Sub(n, big.NewInt(1))
	b, err := rand.Int(rand.Reader, limit)
	require.NoError(t, err)
	b.Add(b, big.NewInt(1))

	v := new(big.Int).SetBytes(verifier)
	k := hashPadded(n, n, g)

	// B = (k*v + g^b) mod N
	kv := new(big.Int).Mul(k, v)
	gb := new(big.Int).Exp(g, b, n)
	B := new(big.Int).Add(kv, gb)
	B.Mod(B, n)

	client, err := NewClient(pin, salt, B.Bytes())
	require.NoError(t, err)

	A := new(big.Int).SetBytes(client.PublicKey())
	u := hashPadded(n, A, B)
	require.NotEqual(t, 0, u.Sign())

	// S = (A * v^u) ^ b mod N
	vu := new(big.Int).Exp(v, u, n)
	Avu := new(big.Int).Mul(A, vu)
	Avu.Mod(Avu, n)
	S := new(big.Int).Exp(Avu, b, n)
	serverK := sha512.Sum512(S.Bytes())

	assert.Equal(t, serverK[:], client.SessionKey())

	clientProof := client.ClientProof()
	h := sha512.New()
	h.Write(A.Bytes())
	h.Write(clientProof)
	h.Write(serverK[:])
	serverProof := h.Sum(nil)
	require.NoError(t, client.VerifyServerProof(serverProof))
}

func TestVerifyServerProofRejectsWrongProof(t *testing.T) {
	pin := "031-45-154"
	salt := []byte("fixed-test-salt-")
	serverPublic := GenerateVerifier(pin, salt)
	client, err := NewClient(pin, salt, serverPublic)
	require.NoError(t, err)

	err = client.VerifyServerProof([]byte("not-a-valid-proof"))
	assert.Error(t, err)
}

func TestNewClientRejectsServerPublicMultipleOfN(t *testing.T) {
	_, err := NewClient("031-45-154", []byte("salt"), group3072N().Bytes())
	assert.Error(t, err)
}
