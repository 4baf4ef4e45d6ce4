package common

import (
	"crypto/rand"
	"encoding/base64"
)

// MakeRandURLToken returns size random bytes encoded with unpadded URL-safe
// base64. Used for session ids and single-use tokens.
func MakeRandURLToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateRandByteArray returns size random bytes. It panics if the system
// random source fails, which crypto/rand documents as unrecoverable.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites b with zeros. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
