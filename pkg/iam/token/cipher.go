package token

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var fieldKeyInfo = []byte("sentinel/token/field-encryption/v1")

// FieldCipher is authenticated encryption for individual claim values.
// Output is base64url(nonce || ciphertext || tag).
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher derives a XChaCha20-Poly1305 key from secret
func NewFieldCipher(secret []byte) (*FieldCipher, error) {
	if len(secret) == 0 {
		return nil, ErrEncryptionFailed(errors.New("empty secret"))
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, fieldKeyInfo), key); err != nil {
		return nil, ErrEncryptionFailed(err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrEncryptionFailed(err)
	}
	return &FieldCipher{aead: aead}, nil
}

func (f *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, f.aead.NonceSize(), f.aead.NonceSize()+len(plaintext)+f.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", ErrEncryptionFailed(err)
	}
	sealed := f.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt fails closed: malformed or tampered input returns "" and an error.
func (f *FieldCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < f.aead.NonceSize()+f.aead.Overhead() {
		return "", ErrDecryptionFailed()
	}
	nonce, body := raw[:f.aead.NonceSize()], raw[f.aead.NonceSize():]
	plain, err := f.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", ErrDecryptionFailed()
	}
	return string(plain), nil
}

// EncryptField encrypts plaintext under a key derived from secret
func EncryptField(plaintext string, secret []byte) (string, error) {
	fc, err := NewFieldCipher(secret)
	if err != nil {
		return "", err
	}
	return fc.Encrypt(plaintext)
}

// DecryptField is the inverse of EncryptField
func DecryptField(ciphertext string, secret []byte) (string, error) {
	fc, err := NewFieldCipher(secret)
	if err != nil {
		return "", ErrDecryptionFailed()
	}
	return fc.Decrypt(ciphertext)
}
