// Package cryptox holds the low-level primitives behind secrets at rest:
// scrypt key derivation and AES-GCM sealing with a detached tag.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/dmitrijs2005/numeria/internal/common"
	"golang.org/x/crypto/scrypt"
)

const (
	KeySize   = 32
	NonceSize = 16
	TagSize   = 16

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var ErrShortInput = errors.New("cryptox: malformed sealed input")

// DeriveKey stretches secret into a KeySize key with scrypt. It takes tens of
// milliseconds and should run once per process.
func DeriveKey(secret, salt []byte) ([]byte, error) {
	return scrypt.Key(secret, salt, scryptN, scryptR, scryptP, KeySize)
}

// NewAEAD returns AES-GCM over key using NonceSize nonces.
func NewAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, NonceSize)
}

// Seal encrypts plaintext under a fresh random nonce and returns the nonce,
// the authentication tag and the ciphertext separately.
func Seal(aead cipher.AEAD, plaintext []byte) (nonce, tag, ciphertext []byte) {
	nonce = common.GenerateRandByteArray(NonceSize)
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	cut := len(sealed) - TagSize
	return nonce, sealed[cut:], sealed[:cut]
}

// Open reverses Seal. Any tampering with nonce, tag or ciphertext fails.
func Open(aead cipher.AEAD, nonce, tag, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize || len(tag) != TagSize {
		return nil, ErrShortInput
	}
	buf := make([]byte, 0, len(ciphertext)+TagSize)
	buf = append(buf, ciphertext...)
	buf = append(buf, tag...)
	return aead.Open(nil, nonce, buf, nil)
}
