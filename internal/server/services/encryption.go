package services

import (
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/cryptox"
)

const encryptionSalt = "numeria.encryption.v1"

// EncryptionService encrypts secrets at rest with AES-256-GCM under a key
// derived once from the configured secret.
//
// Tokens have the form base64(nonce):base64(tag):base64(ciphertext).
type EncryptionService struct {
	aead cipher.AEAD
}

// NewEncryptionService derives the key from secret with scrypt. This is
// deliberately slow and is meant to run once at start-up.
func NewEncryptionService(secret string) (*EncryptionService, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is empty")
	}
	key, err := cryptox.DeriveKey([]byte(secret), []byte(encryptionSalt))
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	aead, err := cryptox.NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return &EncryptionService{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (s *EncryptionService) Encrypt(plaintext string) (string, error) {
	nonce, tag, data := cryptox.Seal(s.aead, []byte(plaintext))

	enc := base64.StdEncoding
	return enc.EncodeToString(nonce) + ":" + enc.EncodeToString(tag) + ":" + enc.EncodeToString(data), nil
}

// Decrypt opens a token produced by Encrypt. Every failure, whatever its
// cause, is reported as common.ErrDecryptionFailed.
func (s *EncryptionService) Decrypt(token string) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", common.ErrDecryptionFailed
	}

	dec := base64.StdEncoding.Strict()
	var raw [3][]byte
	for i, p := range parts {
		b, err := dec.DecodeString(p)
		if err != nil {
			return "", common.ErrDecryptionFailed
		}
		raw[i] = b
	}

	plain, err := cryptox.Open(s.aead, raw[0], raw[1], raw[2])
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	return string(plain), nil
}
