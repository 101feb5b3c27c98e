package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	ck := NewContentKey()
	wrapped, err := WrapKey(&priv.PublicKey, ck)
	require.NoError(t, err)
	assert.NotEqual(t, ck, wrapped)

	got, err := UnwrapKey(priv, wrapped)
	require.NoError(t, err)
	assert.Equal(t, ck, got)
}

func TestUnwrap_WrongKeyFails(t *testing.T) {
	alice, err := GenerateKeyPair(2048)
	require.NoError(t, err)
	bob, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	wrapped, err := WrapKey(&alice.PublicKey, NewContentKey())
	require.NoError(t, err)

	_, err = UnwrapKey(bob, wrapped)
	require.Error(t, err)
}

func TestPublicKeyPEM_RoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	pemBytes, err := MarshalPublicKeyPEM(&priv.PublicKey)
	require.NoError(t, err)
	assert.Contains(t, string(pemBytes), "BEGIN PUBLIC KEY")

	pub, err := ParsePublicKeyPEM(pemBytes)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))
}

func TestParsePublicKeyPEM_Rejects(t *testing.T) {
	_, err := ParsePublicKeyPEM([]byte("not pem"))
	require.Error(t, err)

	_, err = ParsePublicKeyPEM([]byte("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"))
	require.Error(t, err)
}

func TestPrivateKey_RoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	der, err := MarshalPrivateKey(priv)
	require.NoError(t, err)

	got, err := ParsePrivateKey(der)
	require.NoError(t, err)
	assert.True(t, got.Equal(priv))

	_, err = ParsePrivateKey([]byte{0x30, 0x00})
	require.Error(t, err)
}
