// Package security seals and opens remote API credentials so the key
// never has to sit in plaintext on disk. A sealed key file is produced
// by bridgectl seal-key and decrypted at startup with a passphrase.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/scrypt"
)

// SCRYPT parameters follow the OWASP ASVS minimums.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32

	gcmNonceSize = 12

	payloadVersion = 1
)

// SealedKey is the on-disk format of an encrypted API key.
type SealedKey struct {
	Version    uint8  `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

var (
	// ErrPassphraseMissing is returned when a sealed key file is
	// configured but no passphrase was supplied to open it.
	ErrPassphraseMissing = errors.New("sealed key file configured but no passphrase provided")

	// ErrSealedKeyInvalid covers tampered or corrupt sealed key files.
	ErrSealedKeyInvalid = errors.New("sealed key file is invalid or was tampered with")
)

// SealAPIKey encrypts an API key under a passphrase using scrypt key
// derivation and AES-256-GCM.
func SealAPIKey(apiKey, passphrase string) (*SealedKey, error) {
	if apiKey == "" {
		return nil, errors.New("api key cannot be empty")
	}
	if passphrase == "" {
		return nil, errors.New("passphrase cannot be empty")
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	defer zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &SealedKey{
		Version:    payloadVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, []byte(apiKey), nil),
	}, nil
}

// OpenAPIKey decrypts a sealed key with the given passphrase. The GCM
// authentication tag detects both a wrong passphrase and tampering.
func OpenAPIKey(sealed *SealedKey, passphrase string) (string, error) {
	if sealed == nil {
		return "", ErrSealedKeyInvalid
	}
	if sealed.Version != payloadVersion {
		return "", fmt.Errorf("unsupported sealed key version: %d", sealed.Version)
	}
	if len(sealed.Salt) < 16 || len(sealed.Nonce) != gcmNonceSize {
		return "", ErrSealedKeyInvalid
	}
	if passphrase == "" {
		return "", ErrPassphraseMissing
	}

	key, err := scrypt.Key([]byte(passphrase), sealed.Salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("key derivation failed: %w", err)
	}
	defer zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		return "", ErrSealedKeyInvalid
	}
	defer zero(plaintext)

	return string(plaintext), nil
}

// WriteSealedKey seals an API key and writes it as JSON, mode 0600.
func WriteSealedKey(path, apiKey, passphrase string) error {
	sealed, err := SealAPIKey(apiKey, passphrase)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(sealed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sealed key: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write sealed key file: %w", err)
	}
	return nil
}

// ReadSealedKey loads and decrypts a sealed key file.
func ReadSealedKey(path, passphrase string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read sealed key file: %w", err)
	}
	var sealed SealedKey
	if err := json.Unmarshal(data, &sealed); err != nil {
		return "", ErrSealedKeyInvalid
	}
	return OpenAPIKey(&sealed, passphrase)
}

// ResolveAPIKey picks the effective API key: a plaintext key from the
// environment wins, otherwise the sealed key file is opened with the
// passphrase.
func ResolveAPIKey(apiKey, keyFile, passphrase string) (string, error) {
	if apiKey != "" {
		return apiKey, nil
	}
	if keyFile == "" {
		return "", nil
	}
	return ReadSealedKey(keyFile, passphrase)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
