package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// TokenSealer encrypts GW2 API keys at rest and derives a stable digest used
// to look them up without decrypting.
type TokenSealer struct {
	key        [32]byte
	hmacSecret []byte
}

// NewTokenSealer creates a sealer from a 32 byte encryption key and an HMAC secret
func NewTokenSealer(key [32]byte, hmacSecret string) *TokenSealer {
	return &TokenSealer{key: key, hmacSecret: []byte(hmacSecret)}
}

// Seal encrypts token and returns hex(nonce || box)
func (s *TokenSealer) Seal(token string) (string, error) {
	if len(token) == 0 {
		return "", fmt.Errorf("token is empty")
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(token), &nonce, &s.key)
	return hex.EncodeToString(sealed), nil
}

// Open reverses Seal
func (s *TokenSealer) Open(sealed string) (string, error) {
	data, err := hex.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}
	if len(data) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("sealed token too short: %d bytes", len(data))
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])

	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", fmt.Errorf("failed to open sealed token")
	}
	return string(plain), nil
}

// Digest returns the hex HMAC-SHA256 of token
func (s *TokenSealer) Digest(token string) string {
	h := hmac.New(sha256.New, s.hmacSecret)
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}
