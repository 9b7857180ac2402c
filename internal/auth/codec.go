package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var errMalformedCookie = errors.New("malformed sealed cookie")

// CookieCodec seals cookie values so tokens are opaque to anything but this
// server. The cookie name is bound as associated data, so a sealed access
// token cannot be replayed as a refresh token.
type CookieCodec struct {
	aead cipher.AEAD
}

// NewCookieCodec derives a XChaCha20-Poly1305 key from secret.
func NewCookieCodec(secret string) (*CookieCodec, error) {
	if secret == "" {
		return nil, errors.New("auth: cookie secret must not be empty")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("uploader cookie v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("auth: derive cookie key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("auth: init cookie cipher: %w", err)
	}
	return &CookieCodec{aead: aead}, nil
}

// Seal encrypts value for the named cookie.
func (c *CookieCodec) Seal(name, value string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(value)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("auth: cookie nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(value), []byte(name))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (c *CookieCodec) Open(name, sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errMalformedCookie, err)
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", errMalformedCookie
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errMalformedCookie, err)
	}
	return string(plain), nil
}
