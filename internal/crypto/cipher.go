// Package crypto provides the AES-256-GCM authenticated encryption used to seal the
// session cookie. GCM both hides the session payload and rejects any cookie that was
// altered in transit, so a tampered cookie reads as "no session" rather than as a
// forged identity.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// DefaultIterations is the PBKDF2 work factor used when none is configured.
const DefaultIterations = 100000

var (
	// ErrKeyLengthInvalid is returned when a key is not exactly 32 bytes.
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when the ciphertext fails base64 decoding or is too short to hold a nonce.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted or tampered")
	// ErrDecryptionFailed is returned when GCM authentication fails (tampering or wrong key).
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
	// ErrSaltTooShort is returned when a salt shorter than 16 bytes is supplied for key derivation.
	ErrSaltTooShort = errors.New("crypto: salt must be at least 16 bytes")
	// ErrEmptySecret is returned when no secret is supplied at all.
	ErrEmptySecret = errors.New("crypto: secret must not be empty")
)

// Cipher seals and opens byte payloads with a fixed AES-256-GCM key.
// It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a cipher from a raw 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeyLengthInvalid
	}
	keyCopy := make([]byte, KeySize)
	copy(keyCopy, key)

	block, err := aes.NewCipher(keyCopy)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// DeriveCipher creates a cipher by stretching a passphrase with PBKDF2-SHA256.
func DeriveCipher(passphrase string, salt []byte, iterations int) (*Cipher, error) {
	if passphrase == "" {
		return nil, ErrEmptySecret
	}
	if len(salt) < 16 {
		return nil, ErrSaltTooShort
	}
	if iterations < 10000 {
		iterations = DefaultIterations
	}
	return NewCipher(pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New))
}

// CipherFromSecret accepts either a 32-byte key encoded as hex or base64 (as printed by
// the keygen command) or an arbitrary passphrase, which is run through DeriveCipher.
func CipherFromSecret(secret string, salt []byte, iterations int) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if key, ok := decodeKey(secret); ok {
		return NewCipher(key)
	}
	return DeriveCipher(secret, salt, iterations)
}

func decodeKey(secret string) ([]byte, bool) {
	if b, err := hex.DecodeString(secret); err == nil && len(b) == KeySize {
		return b, true
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(secret); err == nil && len(b) == KeySize {
			return b, true
		}
	}
	return nil, false
}

// Seal encrypts plaintext and returns the nonce-prefixed ciphertext, base64url encoded
// without padding so it can be placed in a cookie value as-is.
func (c *Cipher) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (c *Cipher) Open(encoded string) ([]byte, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrCiphertextCorrupted
	}
	nonceLen := c.aead.NonceSize()
	if len(ciphertext) < nonceLen+c.aead.Overhead() {
		return nil, ErrCiphertextCorrupted
	}
	plaintext, err := c.aead.Open(nil, ciphertext[:nonceLen], ciphertext[nonceLen:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// GenerateKey creates a cryptographically secure random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateSalt creates a random salt of at least 16 bytes.
func GenerateSalt(length int) ([]byte, error) {
	if length < 16 {
		length = 16
	}
	salt := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
