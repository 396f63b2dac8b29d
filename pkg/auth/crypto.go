package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// envelopePrefix tags encrypted credential files so a load can tell the two
// formats apart without guessing.
const envelopePrefix = "nbq1:"

// ErrEncrypted is returned when the credential file is encrypted but no key
// is configured.
var ErrEncrypted = errors.New("auth: credentials are encrypted, set NBQ_ENCRYPTION_KEY")

func deriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}

// seal produces the on-disk payload: AES-GCM under the envelope tag when a
// key is configured, plaintext otherwise.
func (s *Store) seal(plaintext []byte) ([]byte, error) {
	if s.key == nil {
		return plaintext, nil
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	encoded := envelopePrefix + base64.StdEncoding.EncodeToString(sealed)
	return []byte(encoded), nil
}

// open reverses seal. A plaintext file loads even when a key is configured,
// so enabling encryption later does not strand existing credentials.
func (s *Store) open(payload []byte) ([]byte, error) {
	text := string(payload)
	if !strings.HasPrefix(text, envelopePrefix) {
		return payload, nil
	}
	if s.key == nil {
		return nil, ErrEncrypted
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(text, envelopePrefix))
	if err != nil {
		return nil, fmt.Errorf("decode credential envelope: %w", err)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init GCM: %w", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("auth: credential envelope too short")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials (wrong key?): %w", err)
	}
	return plaintext, nil
}
