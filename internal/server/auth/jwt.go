// Package auth signs and verifies the OAuth state values that round-trip
// through a provider's authorization redirect.
package auth

import (
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// StateClaims binds a state value to the provider it was issued for and,
// when linking an extra provider to a signed-in account, to that user.
type StateClaims struct {
	jwt.RegisteredClaims
	Provider string `json:"prv"`
	UserID   string `json:"uid,omitempty"`
}

// GenerateStateToken returns an HS256 JWT usable as an OAuth state value.
// Each call yields a distinct value.
func GenerateStateToken(provider, userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	nonce, err := common.MakeRandURLToken(16)
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, StateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Provider: provider,
		UserID:   userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseStateToken verifies signature, algorithm and expiry. Every failure is
// reported as common.ErrInvalidOAuthState.
func ParseStateToken(tokenString string, secretKey []byte) (*StateClaims, error) {
	claims := &StateClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid || claims.Provider == "" {
		return nil, common.ErrInvalidOAuthState
	}

	return claims, nil
}

// pendingLoginAudience keeps pending-login tokens and OAuth state values from
// being accepted in place of each other.
const pendingLoginAudience = "numeria:2fa-login"

// PendingLoginClaims prove that the first login factor passed for Subject.
// Method is "password" or the OAuth provider name.
type PendingLoginClaims struct {
	jwt.RegisteredClaims
	Method string `json:"mth"`
}

// GeneratePendingLoginToken returns an HS256 JWT handed to the client after
// the first factor passed for an account with 2FA enabled. The second factor
// is only accepted together with it.
func GeneratePendingLoginToken(userID, method string, secretKey []byte, validityDuration time.Duration) (string, error) {
	nonce, err := common.MakeRandURLToken(16)
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, PendingLoginClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{pendingLoginAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Method: method,
	})
	return token.SignedString(secretKey)
}

// ParsePendingLoginToken verifies a token from GeneratePendingLoginToken.
// Every failure is reported as common.ErrTwoFactorLoginExpired.
func ParsePendingLoginToken(tokenString string, secretKey []byte) (*PendingLoginClaims, error) {
	claims := &PendingLoginClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(pendingLoginAudience),
	)
	if err != nil || !token.Valid || claims.Subject == "" || claims.Method == "" {
		return nil, common.ErrTwoFactorLoginExpired
	}

	return claims, nil
}
