package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"

	"github.com/hapctl/hapctl/internal/tlv8"
)

// establishedSession runs a full Pair-Verify between a fresh Session and
// accessoryVerify double, returning the Session left resumable.
func establishedSession(t *testing.T) (*Session, *accessoryVerify, ControllerIdentity) {
	t.Helper()
	controllerIdentity, err := GenerateControllerIdentity()
	require.NoError(t, err)
	accessory := newAccessoryVerify(t)

	session := NewSession()
	m1, err := BuildVerifyM1(session)
	require.NoError(t, err)
	m2 := accessory.m2(m1)
	require.NoError(t, ParseVerifyM2(session, m2, accessory.pairingID, accessory.ltpk))

	v2, err := tlv8.Decode(m2)
	require.NoError(t, err)
	pubA := mustGet(t, v2, TagPublicKey)

	m3, err := BuildVerifyM3(session, controllerIdentity.PairingID, controllerIdentity.LTSK, pubA)
	require.NoError(t, err)
	m4 := accessory.m4(m3, controllerIdentity.LTPK)
	require.NoError(t, ParseVerifyM4(session, m4))

	return session, accessory, controllerIdentity
}

// resumeM2 simulates the accessory side of Pair-Resume: a fresh ephemeral
// keypair, ECDH against the controller's new public key, and an
// encrypted ack under the resulting resume key.
func resumeM2(t *testing.T, m1 []byte) []byte {
	t.Helper()
	v, err := tlv8.Decode(m1)
	require.NoError(t, err)
	pubC := mustGet(t, v, TagPublicKey)

	accPub, accPriv, err := generateCurve25519Keypair()
	require.NoError(t, err)
	shared, err := curve25519.X25519(accPriv[:], pubC)
	require.NoError(t, err)

	resumeKey, err := hkdfSHA512(shared, []byte("Pair-Resume-Encrypt-Salt"), []byte("Pair-Resume-Encrypt-Info"), 32)
	require.NoError(t, err)

	ack := tlv8.NewEncoder().AddByte(TagState, byte(StateM1)).Bytes()
	encrypted, err := chachaSeal(resumeKey, nonceResumeM2, nil, ack)
	require.NoError(t, err)

	return tlv8.NewEncoder().
		AddByte(TagState, byte(StateM2)).
		Add(TagPublicKey, accPub[:]).
		Add(TagEncryptedData, encrypted).
		Bytes()
}

func TestBuildResumeM1RequiresResumableSession(t *testing.T) {
	session := NewSession()
	_, err := BuildResumeM1(session)
	assert.Error(t, err)
}

func TestPairResumeFullRoundTrip(t *testing.T) {
	session, _, _ := establishedSession(t)
	require.True(t, session.CanResume())
	priorResumeID := session.ResumeSessionID()
	priorA2C := session.AccessoryToControllerKey

	m1, err := BuildResumeM1(session)
	require.NoError(t, err)
	v1, err := tlv8.Decode(m1)
	require.NoError(t, err)
	sid, ok := v1.Get(TagSessionID)
	require.True(t, ok)
	assert.Equal(t, priorResumeID, sid)

	m2 := resumeM2(t, m1)
	v2, err := tlv8.Decode(m2)
	require.NoError(t, err)
	accPub := mustGet(t, v2, TagPublicKey)

	require.NoError(t, ParseResumeM2(session, m2, accPub))

	assert.True(t, session.HaveSessionKeys())
	assert.NotEqual(t, priorA2C, session.AccessoryToControllerKey)
}

func TestParseResumeM2RejectsTamperedCiphertext(t *testing.T) {
	session, _, _ := establishedSession(t)
	m1, err := BuildResumeM1(session)
	require.NoError(t, err)
	m2 := resumeM2(t, m1)
	v2, err := tlv8.Decode(m2)
	require.NoError(t, err)
	accPub := mustGet(t, v2, TagPublicKey)

	tampered := append([]byte(nil), m2...)
	tampered[len(tampered)-1] ^= 0xFF
	err = ParseResumeM2(session, tampered, accPub)
	assert.Error(t, err)
}
