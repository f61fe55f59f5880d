package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
)

// keyFileName is the 32-byte secretbox key, generated once per data
// directory and used only to protect the encrypted-database fallback path
// (the OS keyring is always tried first).
const keyFileName = ".credential-key"

// encryptor seals/opens secrets with a locally-held key. It exists purely
// as the fallback when the OS keyring isn't available (headless Linux
// without a secret service, CI, containers).
type encryptor struct {
	key [32]byte
}

func newEncryptor(dataDir string) (*encryptor, error) {
	keyPath := filepath.Join(dataDir, keyFileName)

	raw, err := os.ReadFile(keyPath)
	if err == nil && len(raw) == 32 {
		var e encryptor
		copy(e.key[:], raw)
		return &e, nil
	}

	var e encryptor
	if _, err := rand.Read(e.key[:]); err != nil {
		return nil, fmt.Errorf("generate credential key: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, e.key[:], 0600); err != nil {
		return nil, fmt.Errorf("write credential key: %w", err)
	}
	return &e, nil
}

// encrypt seals plaintext with a fresh random nonce, returning base64(nonce||ciphertext).
func (e *encryptor) encrypt(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &e.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt reverses encrypt.
func (e *encryptor) decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(sealed) < 24 {
		return "", fmt.Errorf("ciphertext too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])

	opened, ok := secretbox.Open(nil, sealed[24:], &nonce, &e.key)
	if !ok {
		return "", fmt.Errorf("decrypt: authentication failed")
	}
	return string(opened), nil
}
