// Package cryptoutil seals credential material before it leaves the process.
package cryptoutil

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

// Sealer encrypts and decrypts opaque values such as refresh tokens.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

const (
	// Versioned prefix so a key or algorithm rotation can tell old values apart.
	sealedPrefixV1 = "v1:"
	plainPrefix    = "plain:"
)

// AESGCM implements Sealer using AES-256-GCM.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds a sealer from a 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCM{aead: aead}, nil
}

// NewAESGCMFromSecret derives the key from an arbitrary-length secret with SHA-256.
func NewAESGCMFromSecret(secret string) (*AESGCM, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("encryption secret is empty")
	}
	sum := sha256.Sum256([]byte(secret))
	return NewAESGCM(sum[:])
}

// Seal encrypts plaintext with a random nonce and returns a versioned base64 string.
func (s *AESGCM) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	// nonce||ciphertext
	buf := s.aead.Seal(nonce, nonce, plaintext, nil)
	return sealedPrefixV1 + base64.StdEncoding.EncodeToString(buf), nil
}

// Open decrypts a value produced by Seal.
func (s *AESGCM) Open(sealed string) ([]byte, error) {
	if !strings.HasPrefix(sealed, sealedPrefixV1) {
		prefix := sealed
		if len(prefix) > 10 {
			prefix = prefix[:10]
		}
		return nil, fmt.Errorf("unknown sealed value version (prefix: %s)", prefix)
	}
	data, err := base64.StdEncoding.DecodeString(sealed[len(sealedPrefixV1):])
	if err != nil {
		return nil, err
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("sealed value too short")
	}
	return s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
}

// Plain stores values base64-encoded behind a marker. Used in development and tests.
type Plain struct{}

func (Plain) Seal(plaintext []byte) (string, error) {
	return plainPrefix + base64.StdEncoding.EncodeToString(plaintext), nil
}

func (Plain) Open(sealed string) ([]byte, error) {
	if !strings.HasPrefix(sealed, plainPrefix) {
		return nil, errors.New("invalid plain sealed value")
	}
	return base64.StdEncoding.DecodeString(sealed[len(plainPrefix):])
}
