package authcrypt

import (
	"bytes"
	"encoding/hex"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x11}, 32)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()
	plaintext := []byte("workbook bytes go here")

	ciphertext, err := GCM{}.Encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decoded, err := GCM{}.Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decoded)
}

func TestEncryptNonceVariesPerCall(t *testing.T) {
	key := testKey()
	a, err := GCM{}.Encrypt([]byte("same input"), key)
	require.NoError(t, err)
	b, err := GCM{}.Encrypt([]byte("same input"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per call means ciphertext must differ")
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	key := testKey()
	wrongKey := bytes.Repeat([]byte{0x22}, 32)

	ciphertext, err := GCM{}.Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	_, err = GCM{}.Decrypt(ciphertext, wrongKey)
	assert.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := testKey()
	ciphertext, err := GCM{}.Encrypt([]byte("secret"), key)
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, err = GCM{}.Decrypt(ciphertext, key)
	assert.Error(t, err)
}

func TestKeyFromEnv(t *testing.T) {
	key := testKey()
	t.Setenv("TEST_CORPUS_KEY", hex.EncodeToString(key))

	got, err := KeyFromEnv("TEST_CORPUS_KEY")
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestKeyFromEnvMissing(t *testing.T) {
	require.NoError(t, os.Unsetenv("TEST_CORPUS_KEY_MISSING"))
	_, err := KeyFromEnv("TEST_CORPUS_KEY_MISSING")
	assert.Error(t, err)
}

func TestKeyFromEnvWrongLength(t *testing.T) {
	t.Setenv("TEST_CORPUS_KEY_SHORT", hex.EncodeToString([]byte("shortkey")))
	_, err := KeyFromEnv("TEST_CORPUS_KEY_SHORT")
	assert.Error(t, err)
}

func TestKeyFromEnvNotHex(t *testing.T) {
	t.Setenv("TEST_CORPUS_KEY_BAD", "not-hex-!!")
	_, err := KeyFromEnv("TEST_CORPUS_KEY_BAD")
	assert.Error(t, err)
}
