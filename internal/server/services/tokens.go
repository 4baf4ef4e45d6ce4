package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/authtokens"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/repomanager"
)

// DefaultTokenSize is the number of random bytes in a single-use token.
const DefaultTokenSize = 32

type tokenFamily struct {
	name string
	repo func(m repomanager.RepositoryManager, db dbx.DBTX) authtokens.Repository
	ttl  time.Duration
}

// TokenService issues and checks hashed single-use tokens for password reset
// and email verification. Only SHA-256 hashes are persisted.
type TokenService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	reset       tokenFamily
	verify      tokenFamily
	now         func() time.Time
}

// NewTokenService builds a TokenService with the given family lifetimes.
func NewTokenService(db dbx.DBTX, m repomanager.RepositoryManager, resetTTL, verifyTTL time.Duration) *TokenService {
	return &TokenService{
		db:          db,
		repomanager: m,
		reset: tokenFamily{
			name: "password reset",
			repo: repomanager.RepositoryManager.PasswordResetTokens,
			ttl:  resetTTL,
		},
		verify: tokenFamily{
			name: "email verification",
			repo: repomanager.RepositoryManager.EmailVerificationTokens,
			ttl:  verifyTTL,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// GenerateToken returns size random bytes as unpadded URL-safe base64.
// size <= 0 selects DefaultTokenSize.
func (s *TokenService) GenerateToken(size int) (string, error) {
	if size <= 0 {
		size = DefaultTokenSize
	}
	return common.MakeRandURLToken(size)
}

// HashToken returns the hex SHA-256 of token.
func (s *TokenService) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyToken reports in constant time whether token hashes to hash.
func (s *TokenService) VerifyToken(token, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(s.HashToken(token)), []byte(hash)) == 1
}

func (s *TokenService) create(ctx context.Context, f tokenFamily, userID string) (string, error) {
	token, err := s.GenerateToken(DefaultTokenSize)
	if err != nil {
		return "", fmt.Errorf("generate %s token: %w", f.name, err)
	}
	repo := f.repo(s.repomanager, s.db)

	if err := repo.DeleteByUser(ctx, userID); err != nil {
		return "", fmt.Errorf("revoke previous %s tokens: %w", f.name, err)
	}
	now := s.now()
	if err := repo.Create(ctx, &models.AuthToken{
		UserID:    userID,
		TokenHash: s.HashToken(token),
		ExpiresAt: now.Add(f.ttl),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("store %s token: %w", f.name, err)
	}
	return token, nil
}

func (s *TokenService) validate(ctx context.Context, f tokenFamily, token string) (models.TokenValidation, error) {
	if token == "" {
		return models.TokenValidation{}, nil
	}
	hash := s.HashToken(token)
	row, err := f.repo(s.repomanager, s.db).FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.TokenValidation{}, nil
		}
		return models.TokenValidation{}, fmt.Errorf("find %s token: %w", f.name, err)
	}
	if !s.VerifyToken(token, row.TokenHash) {
		return models.TokenValidation{}, nil
	}
	if !s.now().Before(row.ExpiresAt) {
		return models.TokenValidation{Expired: true}, nil
	}
	return models.TokenValidation{Valid: true, UserID: row.UserID}, nil
}

func (s *TokenService) invalidate(ctx context.Context, f tokenFamily, token string) error {
	if err := f.repo(s.repomanager, s.db).DeleteByHash(ctx, s.HashToken(token)); err != nil {
		return fmt.Errorf("invalidate %s token: %w", f.name, err)
	}
	return nil
}

// CreatePasswordResetToken mints a reset token for userID, revoking any
// earlier one, and returns the plaintext.
func (s *TokenService) CreatePasswordResetToken(ctx context.Context, userID string) (string, error) {
	return s.create(ctx, s.reset, userID)
}

// ValidatePasswordResetToken checks token without consuming it.
func (s *TokenService) ValidatePasswordResetToken(ctx context.Context, token string) (models.TokenValidation, error) {
	return s.validate(ctx, s.reset, token)
}

// InvalidatePasswordResetToken deletes token. Call it only after the
// password write committed.
func (s *TokenService) InvalidatePasswordResetToken(ctx context.Context, token string) error {
	return s.invalidate(ctx, s.reset, token)
}

// CreateEmailVerificationToken mints a verification token for userID,
// revoking any earlier one, and returns the plaintext.
func (s *TokenService) CreateEmailVerificationToken(ctx context.Context, userID string) (string, error) {
	return s.create(ctx, s.verify, userID)
}

// ValidateEmailVerificationToken checks token without consuming it.
func (s *TokenService) ValidateEmailVerificationToken(ctx context.Context, token string) (models.TokenValidation, error) {
	return s.validate(ctx, s.verify, token)
}

// InvalidateEmailVerificationToken deletes token.
func (s *TokenService) InvalidateEmailVerificationToken(ctx context.Context, token string) error {
	return s.invalidate(ctx, s.verify, token)
}

// SweepExpired deletes expired tokens of both families and expired sessions,
// returning the number of rows removed.
func (s *TokenService) SweepExpired(ctx context.Context) (int64, error) {
	now := s.now()
	var total int64
	for _, f := range []tokenFamily{s.reset, s.verify} {
		n, err := f.repo(s.repomanager, s.db).DeleteExpired(ctx, now)
		if err != nil {
			return total, fmt.Errorf("sweep %s tokens: %w", f.name, err)
		}
		total += n
	}
	n, err := s.repomanager.Sessions(s.db).DeleteExpired(ctx, now)
	if err != nil {
		return total, fmt.Errorf("sweep sessions: %w", err)
	}
	return total + n, nil
}
