package wallectconnect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateRandomBytes(KeySize)
	require.NoError(t, err)

	for _, plaintext := range []string{"", "a", strings.Repeat("x", 16), `{"id":1,"jsonrpc":"2.0","method":"wc_sessionRequest"}`} {
		sealed, err := Encrypt([]byte(plaintext), key)
		require.NoError(t, err)
		opened, err := Decrypt(sealed, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, string(opened))
	}
}

func TestDecryptRejectsTamperedPayload(t *testing.T) {
	key, _ := GenerateRandomBytes(KeySize)
	sealed, err := Encrypt([]byte("hello"), key)
	require.NoError(t, err)

	otherKey, _ := GenerateRandomBytes(KeySize)
	_, err = Decrypt(sealed, otherKey)
	assert.Equal(t, ErrHmacMismatch, err)

	sealed.IV = strings.Repeat("00", 16)
	_, err = Decrypt(sealed, key)
	assert.Equal(t, ErrHmacMismatch, err)
}

func TestAes256DecryptRejectsPartialBlock(t *testing.T) {
	key, _ := GenerateRandomBytes(KeySize)
	iv, _ := GenerateRandomBytes(16)
	_, err := Aes256Decrypt([]byte("short"), key, iv)
	assert.Error(t, err)
}

func TestSealOpen(t *testing.T) {
	key, _ := GenerateRandomBytes(KeySize)
	msg, err := Seal("topic", []byte(`{"id":7}`), key, true)
	require.NoError(t, err)
	assert.Equal(t, MessagePub, msg.Type)

	parsed, err := ParseMessage(msg.Marshal())
	require.NoError(t, err)
	payload, err := parsed.Open(key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7}`, string(payload))
}

func TestURIRoundTrip(t *testing.T) {
	key, _ := GenerateRandomBytes(KeySize)
	uri := URI{HandshakeTopic: "4b9e0f", Version: Version, BridgeURL: "https://a.bridge.walletconnect.org", Key: key}

	s := uri.String()
	assert.True(t, strings.HasPrefix(s, "wc:4b9e0f@1?bridge=https%3A%2F%2Fa.bridge.walletconnect.org&key="))

	parsed, err := ParseURI(s)
	require.NoError(t, err)
	assert.Equal(t, uri, *parsed)

	_, err = ParseURI("http://example.com")
	assert.Error(t, err)
	_, err = ParseURI("wc:topic@1?bridge=x&key=abcd")
	assert.Error(t, err)
}

func TestGetWebSocketUrl(t *testing.T) {
	assert.Equal(t, "wss://a.bridge.walletconnect.org?protocol=wc&version=1&env=go",
		GetWebSocketUrl("https://a.bridge.walletconnect.org", Protocol, Version))
	assert.Equal(t, "ws://127.0.0.1:1234?protocol=wc&version=1&env=go",
		GetWebSocketUrl("http://127.0.0.1:1234", Protocol, Version))
}

func TestRandomBridgeURLAndRootDomain(t *testing.T) {
	u := RandomBridgeURL()
	assert.True(t, strings.HasSuffix(u, ".bridge.walletconnect.org"))
	assert.Equal(t, "walletconnect.org", ExtractRootDomain(u))
	assert.Equal(t, "example.com", ExtractRootDomain("example.com:8080/path"))
}
