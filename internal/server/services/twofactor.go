package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/repomanager"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod         = 30
	totpSecretSize     = 20
	qrCodeSize         = 200
	backupCodeCount    = 10
	backupCodeLength   = 8
	backupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// TwoFactorService manages TOTP secrets and backup codes. Secrets are
// encrypted with EncryptionService and backup codes are stored as bcrypt
// hashes of their normalized form (uppercase, no dash).
type TwoFactorService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	encryption  *EncryptionService
	hasher      *PasswordHasher
	issuer      string
	now         func() time.Time
}

// NewTwoFactorService builds a TwoFactorService. issuer is shown by
// authenticator apps next to the account name.
func NewTwoFactorService(db dbx.DBTX, m repomanager.RepositoryManager, enc *EncryptionService, hasher *PasswordHasher, issuer string) *TwoFactorService {
	return &TwoFactorService{
		db:          db,
		repomanager: m,
		encryption:  enc,
		hasher:      hasher,
		issuer:      issuer,
		now:         time.Now,
	}
}

// WithDB returns a copy of the service whose repositories run on db,
// typically an open transaction.
func (s *TwoFactorService) WithDB(db dbx.DBTX) *TwoFactorService {
	c := *s
	c.db = db
	return &c
}

// GenerateSecret creates a new TOTP key for accountName.
func (s *TwoFactorService) GenerateSecret(accountName string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

// GenerateQRCode renders key's otpauth:// URI as a PNG data URL.
func (s *TwoFactorService) GenerateQRCode(key *otp.Key) (string, error) {
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// GenerateBackupCodes returns count random uppercase alphanumeric codes of
// length characters, with a dash after the fourth one (ABCD-EFGH).
func (s *TwoFactorService) GenerateBackupCodes(count, length int) ([]string, error) {
	if count <= 0 {
		count = backupCodeCount
	}
	if length <= 0 {
		length = backupCodeLength
	}
	alphabetLen := big.NewInt(int64(len(backupCodeAlphabet)))
	codes := make([]string, 0, count)
	for range count {
		var b strings.Builder
		for i := range length {
			if i == 4 {
				b.WriteByte('-')
			}
			n, err := rand.Int(rand.Reader, alphabetLen)
			if err != nil {
				return nil, err
			}
			b.WriteByte(backupCodeAlphabet[n.Int64()])
		}
		codes = append(codes, b.String())
	}
	return codes, nil
}

// normalizeBackupCode uppercases code and strips dashes and spaces.
func normalizeBackupCode(code string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(code)))
}

// VerifyTOTP accepts a code for the current 30-second window or the one
// immediately before it.
func (s *TwoFactorService) VerifyTOTP(secret, code string) bool {
	code = strings.TrimSpace(code)
	now := s.now()
	for _, t := range []time.Time{now, now.Add(-totpPeriod * time.Second)} {
		ok, err := totp.ValidateCustom(code, secret, t, totp.ValidateOpts{
			Period:    totpPeriod,
			Skew:      0,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err == nil && ok {
			return true
		}
	}
	return false
}

func (s *TwoFactorService) hashBackupCodes(ctx context.Context, codes []string) ([]string, error) {
	hashes := make([]string, 0, len(codes))
	for _, c := range codes {
		h, err := s.hasher.Hash(ctx, normalizeBackupCode(c))
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// EnableTwoFactor persists the encrypted secret and hashed backup codes,
// replacing any previous setup. It does not touch the user's flag.
func (s *TwoFactorService) EnableTwoFactor(ctx context.Context, userID, secret string, backupCodes []string) error {
	enc, err := s.encryption.Encrypt(secret)
	if err != nil {
		return fmt.Errorf("encrypt totp secret: %w", err)
	}
	hashes, err := s.hashBackupCodes(ctx, backupCodes)
	if err != nil {
		return err
	}
	return s.repomanager.TwoFactor(s.db).Upsert(ctx, &models.TwoFactorAuth{
		UserID:          userID,
		SecretEncrypted: enc,
		BackupCodes:     hashes,
	})
}

func (s *TwoFactorService) load(ctx context.Context, userID string) (*models.TwoFactorAuth, error) {
	tf, err := s.repomanager.TwoFactor(s.db).Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTwoFactorNotEnabled
		}
		return nil, err
	}
	return tf, nil
}

// Verify2FACode checks code as a TOTP first and then as a backup code. A
// matching backup code is removed with a compare-and-swap on the stored
// list; losing that race counts as a failed verification.
func (s *TwoFactorService) Verify2FACode(ctx context.Context, userID, code string) (models.TwoFactorVerification, error) {
	tf, err := s.load(ctx, userID)
	if err != nil {
		return models.TwoFactorVerification{}, err
	}
	secret, err := s.encryption.Decrypt(tf.SecretEncrypted)
	if err != nil {
		return models.TwoFactorVerification{}, err
	}
	if s.VerifyTOTP(secret, code) {
		return models.TwoFactorVerification{Valid: true}, nil
	}

	normalized := normalizeBackupCode(code)
	if len(normalized) != backupCodeLength {
		return models.TwoFactorVerification{}, nil
	}
	for i, h := range tf.BackupCodes {
		ok, err := s.hasher.Compare(ctx, h, normalized)
		if err != nil {
			return models.TwoFactorVerification{}, err
		}
		if !ok {
			continue
		}
		next := slices.Delete(slices.Clone(tf.BackupCodes), i, i+1)
		swapped, err := s.repomanager.TwoFactor(s.db).ReplaceBackupCodes(ctx, userID, tf.BackupCodes, next)
		if err != nil {
			return models.TwoFactorVerification{}, err
		}
		return models.TwoFactorVerification{Valid: swapped, IsBackupCode: swapped}, nil
	}
	return models.TwoFactorVerification{}, nil
}

// RegenerateBackupCodes replaces the stored backup codes with a fresh set
// and returns them in plaintext.
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	tf, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	codes, err := s.GenerateBackupCodes(backupCodeCount, backupCodeLength)
	if err != nil {
		return nil, err
	}
	hashes, err := s.hashBackupCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	tf.BackupCodes = hashes
	if err := s.repomanager.TwoFactor(s.db).Upsert(ctx, tf); err != nil {
		return nil, err
	}
	return codes, nil
}

// Disable deletes the user's two-factor setup.
func (s *TwoFactorService) Disable(ctx context.Context, userID string) error {
	return s.repomanager.TwoFactor(s.db).Delete(ctx, userID)
}

// RemainingBackupCodes reports how many unused backup codes the user has.
func (s *TwoFactorService) RemainingBackupCodes(ctx context.Context, userID string) (int, error) {
	tf, err := s.load(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(tf.BackupCodes), nil
}
