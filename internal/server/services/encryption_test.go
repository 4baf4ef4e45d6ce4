package services

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncryptionService_EmptySecret(t *testing.T) {
	_, err := NewEncryptionService("")
	assert.Error(t, err)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc := newTestEncryption(t)
	for _, p := range []string{"", "a", "JBSWY3DPEHPK3PXP", strings.Repeat("long secret ", 100), "ünïcødé ✓"} {
		token, err := enc.Encrypt(p)
		require.NoError(t, err)
		assert.Len(t, strings.Split(token, ":"), 3)

		got, err := enc.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestEncrypt_FreshNonceEachTime(t *testing.T) {
	enc := newTestEncryption(t)
	a, err := enc.Encrypt("same")
	require.NoError(t, err)
	b, err := enc.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncrypt_PartSizes(t *testing.T) {
	enc := newTestEncryption(t)
	token, err := enc.Encrypt("hello")
	require.NoError(t, err)
	parts := strings.Split(token, ":")

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	data, err := base64.StdEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	assert.Len(t, nonce, 16)
	assert.Len(t, tag, 16)
	assert.Len(t, data, len("hello"))
}

func TestDecrypt_RejectsEverySingleBitFlip(t *testing.T) {
	enc := newTestEncryption(t)
	token, err := enc.Encrypt("top secret")
	require.NoError(t, err)

	raw := []byte(token)
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), raw...)
			mutated[i] ^= 1 << bit
			got, err := enc.Decrypt(string(mutated))
			if !assert.ErrorIs(t, err, common.ErrDecryptionFailed, "byte %d bit %d", i, bit) {
				t.Fatalf("mutated token decrypted to %q", got)
			}
		}
	}
}

func TestDecrypt_RejectsEveryDecodedBitFlip(t *testing.T) {
	enc := newTestEncryption(t)
	token, err := enc.Encrypt("top secret")
	require.NoError(t, err)
	parts := strings.Split(token, ":")

	for p := range parts {
		decoded, err := base64.StdEncoding.DecodeString(parts[p])
		require.NoError(t, err)
		for i := range decoded {
			for bit := 0; bit < 8; bit++ {
				mutated := append([]byte(nil), decoded...)
				mutated[i] ^= 1 << bit
				cp := append([]string(nil), parts...)
				cp[p] = base64.StdEncoding.EncodeToString(mutated)

				_, err := enc.Decrypt(strings.Join(cp, ":"))
				assert.ErrorIs(t, err, common.ErrDecryptionFailed)
			}
		}
	}
}

func TestDecrypt_MalformedInputIsOpaque(t *testing.T) {
	enc := newTestEncryption(t)
	valid, err := enc.Encrypt("x")
	require.NoError(t, err)
	parts := strings.Split(valid, ":")
	other, err := NewEncryptionService("another-secret")
	require.NoError(t, err)
	foreign, err := other.Encrypt("x")
	require.NoError(t, err)

	cases := map[string]string{
		"empty":         "",
		"two parts":     parts[0] + ":" + parts[1],
		"four parts":    valid + ":AA==",
		"bad base64":    "!!!:" + parts[1] + ":" + parts[2],
		"short nonce":   "AAAA:" + parts[1] + ":" + parts[2],
		"short tag":     parts[0] + ":AAAA:" + parts[2],
		"wrong key":     foreign,
		"swapped parts": parts[1] + ":" + parts[0] + ":" + parts[2],
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := enc.Decrypt(token)
			require.Error(t, err)
			assert.Equal(t, common.ErrDecryptionFailed, err)
			assert.Equal(t, "decryption failed", err.Error())
		})
	}
}
