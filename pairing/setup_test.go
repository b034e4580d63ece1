package pairing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hapctl/hapctl/internal/tlv8"
	"github.com/hapctl/hapctl/pairing/srp"
)

// RFC 5054 group 5054-3072, duplicated here (rather than imported, since
// the production value lives unexported in package srp) so this test can
// play the accessory side of a Pair-Setup exchange end to end.
const testGroupNHex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
	"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
	"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
	"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
	"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
	"3995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D04507A33" +
	"A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7" +
	"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864" +
	"D87602733EC86A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E2" +
	"08E24FA074E5AB3143DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF"

func testGroup(t *testing.T) (*big.Int, *big.Int) {
	t.Helper()
	n, ok := new(big.Int).SetString(testGroupNHex, 16)
	require.True(t, ok)
	g := big.NewInt(5)
	return n, g
}

func testHashPadded(n, a, b *big.Int) *big.Int {
	nLen := (n.BitLen() + 7) / 8
	h := sha512.New()
	pad := func(x []byte) []byte {
		if len(x) >= nLen {
			return x
		}
		out := make([]byte, nLen)
		copy(out[nLen-len(x):], x)
		return out
	}
	h.Write(pad(a.Bytes()))
	h.Write(pad(b.Bytes()))
	return new(big.Int).SetBytes(h.Sum(nil))
}

// accessorySetup simulates the accessory side of a full Pair-Setup
// exchange against a fresh ControllerIdentity, so BuildSetupM1 through
// ParseSetupM6 can be exercised end to end without a live device.
type accessorySetup struct {
	t    *testing.T
	pin  string
	salt []byte
	n, g *big.Int
	b    *big.Int
	B    *big.Int
	v    *big.Int
	srpK []byte

	accessoryID   []byte
	accessoryLTPK ed25519.PublicKey
	accessoryLTSK ed25519.PrivateKey
}

func newAccessorySetup(t *testing.T, pin string) *accessorySetup {
	t.Helper()
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	n, g := testGroup(t)
	verifier := srp.GenerateVerifier(pin, salt)
	v := new(big.Int).SetBytes(verifier)

	limit := new(big.Int).Sub(n, big.NewInt(1))
	b, err := rand.Int(rand.Reader, limit)
	require.NoError(t, err)
	b.Add(b, big.NewInt(1))

	k := testHashPadded(n, n, g)
	kv := new(big.Int).Mul(k, v)
	gb := new(big.Int).Exp(g, b, n)
	B := new(big.Int).Add(kv, gb)
	B.Mod(B, n)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	return &accessorySetup{
		t: t, pin: pin, salt: salt, n: n, g: g, b: b, B: B, v: v,
		accessoryID:   []byte("AA:BB:CC:DD:EE:FF"),
		accessoryLTPK: pub,
		accessoryLTSK: priv,
	}
}

func (a *accessorySetup) m2() []byte {
	return tlv8.NewEncoder().
		AddByte(TagState, byte(StateM2)).
		Add(TagPublicKey, a.B.Bytes()).
		Add(TagSalt, a.salt).
		Bytes()
}

// m4 verifies the controller's M3 proof and computes the session key,
// returning the M4 response.
func (a *accessorySetup) m4(m3 []byte) []byte {
	v, err := tlv8.Decode(m3)
	require.NoError(a.t, err)
	A := new(big.Int).SetBytes(mustGet(a.t, v, TagPublicKey))
	clientProof := mustGet(a.t, v, TagProof)

	u := testHashPadded(a.n, A, a.B)
	vu := new(big.Int).Exp(a.v, u, a.n)
	Avu := new(big.Int).Mul(A, vu)
	Avu.Mod(Avu, a.n)
	S := new(big.Int).Exp(Avu, a.b, a.n)
	K := sha512.Sum512(S.Bytes())
	a.srpK = K[:]

	h := sha512.New()
	h.Write(A.Bytes())
	h.Write(clientProof)
	h.Write(K[:])
	serverProof := h.Sum(nil)

	return tlv8.NewEncoder().
		AddByte(TagState, byte(StateM4)).
		Add(TagProof, serverProof).
		Bytes()
}

// m6 decrypts and verifies the controller's M5, then builds the
// accessory's own signed, encrypted M6.
func (a *accessorySetup) m6(m5 []byte, expectIdentity ControllerIdentity) []byte {
	v, err := tlv8.Decode(m5)
	require.NoError(a.t, err)
	encrypted := mustGet(a.t, v, TagEncryptedData)

	setupKey, err := hkdfSHA512(a.srpK, []byte("Pair-Setup-Encrypt-Salt"), []byte("Pair-Setup-Encrypt-Info"), 32)
	require.NoError(a.t, err)
	decrypted, err := chachaOpen(setupKey, nonceSetupM5, nil, encrypted)
	require.NoError(a.t, err)

	inner, err := tlv8.Decode(decrypted)
	require.NoError(a.t, err)
	id := mustGet(a.t, inner, TagIdentifier)
	ltpk := mustGet(a.t, inner, TagPublicKey)
	sig := mustGet(a.t, inner, TagSignature)

	iosDeviceX, err := hkdfSHA512(a.srpK, []byte("Pair-Setup-Controller-Sign-Salt"), []byte("Pair-Setup-Controller-Sign-Info"), 32)
	require.NoError(a.t, err)
	info := append(append([]byte{}, iosDeviceX...), id...)
	info = append(info, ltpk...)
	require.True(a.t, ed25519.Verify(ed25519.PublicKey(ltpk), info, sig))
	assert.Equal(a.t, expectIdentity.PairingID, string(id))

	accessoryX, err := hkdfSHA512(a.srpK, []byte("Pair-Setup-Accessory-Sign-Salt"), []byte("Pair-Setup-Accessory-Sign-Info"), 32)
	require.NoError(a.t, err)
	accInfo := append(append([]byte{}, accessoryX...), a.accessoryID...)
	accInfo = append(accInfo, a.accessoryLTPK...)
	accSig := ed25519.Sign(a.accessoryLTSK, accInfo)

	accInner := tlv8.NewEncoder().
		Add(TagIdentifier, a.accessoryID).
		Add(TagPublicKey, a.accessoryLTPK).
		Add(TagSignature, accSig).
		Bytes()
	accEncrypted, err := chachaSeal(setupKey, nonceSetupM6, nil, accInner)
	require.NoError(a.t, err)

	return tlv8.NewEncoder().
		AddByte(TagState, byte(StateM6)).
		Add(TagEncryptedData, accEncrypted).
		Bytes()
}

func mustGet(t *testing.T, v tlv8.Values, tag Tag) []byte {
	t.Helper()
	b, ok := v.Get(tag)
	require.True(t, ok)
	return b
}

func TestBuildSetupM1(t *testing.T) {
	m1 := BuildSetupM1(MethodPairSetup, 0)
	v, err := tlv8.Decode(m1)
	require.NoError(t, err)
	state, _ := v.GetByte(TagState)
	assert.Equal(t, byte(StateM1), state)
	method, _ := v.GetByte(TagMethod)
	assert.Equal(t, byte(MethodPairSetup), method)
	_, hasFlags := v.Get(TagFlags)
	assert.False(t, hasFlags)
}

func TestBuildSetupM1WithTransientFlag(t *testing.T) {
	m1 := BuildSetupM1(MethodPairSetupWithAuth, FlagTransient)
	v, err := tlv8.Decode(m1)
	require.NoError(t, err)
	flags, ok := v.Get(TagFlags)
	require.True(t, ok)
	assert.Len(t, flags, 4)
}

func TestPairSetupFullRoundTrip(t *testing.T) {
	pin := "031-45-154"
	accessory := newAccessorySetup(t, pin)

	m1 := BuildSetupM1(MethodPairSetup, 0)
	v1, err := tlv8.Decode(m1)
	require.NoError(t, err)
	state, _ := v1.GetByte(TagState)
	require.Equal(t, byte(StateM1), state)

	m2 := accessory.m2()
	serverPublic, salt, err := ParseSetupM2(m2)
	require.NoError(t, err)

	session := NewSession()
	m3, err := BuildSetupM3(session, pin, salt, serverPublic)
	require.NoError(t, err)

	m4 := accessory.m4(m3)
	require.NoError(t, ParseSetupM4(session, m4))

	identity, err := GenerateControllerIdentity()
	require.NoError(t, err)

	m5, err := BuildSetupM5(session, identity)
	require.NoError(t, err)

	m6 := accessory.m6(m5, identity)
	data, err := ParseSetupM6(session, m6, identity)
	require.NoError(t, err)

	assert.Equal(t, accessory.accessoryID, []byte(data.AccessoryPairingID))
	assert.Equal(t, accessory.accessoryLTPK, data.AccessoryLTPK)
	assert.Equal(t, identity.PairingID, data.ControllerPairingID)
	assert.True(t, data.IsComplete())
}

func TestParseSetupM4RejectsWithoutStartPairing(t *testing.T) {
	session := NewSession()
	err := ParseSetupM4(session, tlv8.NewEncoder().AddByte(TagState, byte(StateM4)).Add(TagProof, []byte("x")).Bytes())
	assert.Error(t, err)
}

func TestParseSetupM4RejectsBadProof(t *testing.T) {
	pin := "031-45-154"
	accessory := newAccessorySetup(t, pin)
	m2 := accessory.m2()
	serverPublic, salt, err := ParseSetupM2(m2)
	require.NoError(t, err)

	session := NewSession()
	_, err = BuildSetupM3(session, pin, salt, serverPublic)
	require.NoError(t, err)

	bad := tlv8.NewEncoder().AddByte(TagState, byte(StateM4)).Add(TagProof, []byte("not-a-proof")).Bytes()
	assert.Error(t, ParseSetupM4(session, bad))
}

func TestParseSetupM2SurfacesAccessoryErrorTag(t *testing.T) {
	errResp := tlv8.NewEncoder().
		AddByte(TagState, byte(StateM2)).
		AddByte(TagError, byte(ErrorMaxTries)).
		Bytes()
	_, _, err := ParseSetupM2(errResp)
	assert.Error(t, err)
}
