// Package authcrypt implements collab.AuthenticatedEncryptor with AES-256-GCM,
// the concrete primitive behind the *.enc fixture support internal/corpusio
// needs. Key material is read by the caller from an environment variable
// whose name is configurable and is never logged by this package.
package authcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// GCM implements collab.AuthenticatedEncryptor over AES-256-GCM. The nonce is
// generated fresh per Encrypt call and prepended to the ciphertext; Decrypt
// expects that layout.
type GCM struct{}

func (GCM) Encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("authcrypt: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("authcrypt: new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("authcrypt: nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (GCM) Decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("authcrypt: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("authcrypt: new gcm: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("authcrypt: ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("authcrypt: open: %w", err)
	}
	return plaintext, nil
}

// KeyFromEnv reads a hex-encoded 32-byte AES-256 key from the named
// environment variable. It is the caller's job to choose the variable name
// (configurable, never hardcoded, so key rotation never needs a code change).
func KeyFromEnv(varName string) ([]byte, error) {
	raw := os.Getenv(varName)
	if raw == "" {
		return nil, fmt.Errorf("authcrypt: %s is not set", varName)
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("authcrypt: %s is not valid hex: %w", varName, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("authcrypt: %s must decode to 32 bytes, got %d", varName, len(key))
	}
	return key, nil
}
