package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha512"
	"fmt"

	"github.com/rendis/aivault/pkg/schema"
)

// Payload layout: salt ‖ nonce ‖ tag ‖ ciphertext.
const (
	SaltSize   = 32
	NonceSize  = 12
	TagSize    = 16
	KeySize    = 32
	Iterations = 100_000

	headerSize     = SaltSize + NonceSize + TagSize
	minPayloadSize = headerSize + 1
)

// DeriveKey stretches password into a 32-byte AES key with PBKDF2-SHA512.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	key, err := pbkdf2.Key(sha512.New, password, salt, Iterations, KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return aead, nil
}

// Encrypt seals plaintext under a key derived from password with a fresh
// random salt and nonce. Encrypting the same input twice never yields the
// same bytes.
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	key, err := DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// Seal returns ciphertext ‖ tag; the file format stores the tag first.
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	out := make([]byte, 0, headerSize+len(ct))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

// Decrypt opens a payload produced by Encrypt. A payload too short to hold
// the header and one byte of ciphertext fails with ErrCodeInvalidPayload; a
// tag mismatch (wrong password or tampering) fails with ErrCodeAuthentication.
func Decrypt(payload []byte, password string) ([]byte, error) {
	if len(payload) < minPayloadSize {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidPayload,
			"invalid encrypted payload: too short (%d bytes, need at least %d)", len(payload), minPayloadSize)
	}

	salt := payload[:SaltSize]
	nonce := payload[SaltSize : SaltSize+NonceSize]
	tag := payload[SaltSize+NonceSize : headerSize]
	ct := payload[headerSize:]

	key, err := DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeAuthentication,
			"decryption failed: wrong master password or corrupted vault").WithCause(err)
	}
	return plaintext, nil
}
