package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/mail"
	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// Setup2FA issues a TOTP secret and backup codes for the user to confirm.
// Nothing is stored until Confirm2FA.
func (s *AuthService) Setup2FA(ctx context.Context, userID string) (*models.TwoFactorSetup, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, common.ErrTwoFactorAlreadyEnabled
	}

	key, err := s.twoFactor.GenerateSecret(user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	qr, err := s.twoFactor.GenerateQRCode(key)
	if err != nil {
		return nil, err
	}
	codes, err := s.twoFactor.GenerateBackupCodes(backupCodeCount, backupCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}
	return &models.TwoFactorSetup{
		Secret:      key.Secret(),
		OTPAuthURL:  key.URL(),
		QRCode:      qr,
		BackupCodes: codes,
	}, nil
}

// Confirm2FA enables 2FA once code proves the secret reached the user's
// authenticator. All sessions of the user are deleted.
func (s *AuthService) Confirm2FA(ctx context.Context, userID, secret string, backupCodes []string, code string) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", common.ErrValidation)
	}
	if len(backupCodes) == 0 {
		return fmt.Errorf("%w: backup codes are required", common.ErrValidation)
	}
	for _, c := range backupCodes {
		if len(normalizeBackupCode(c)) != backupCodeLength {
			return fmt.Errorf("%w: malformed backup code", common.ErrValidation)
		}
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return common.ErrTwoFactorAlreadyEnabled
	}
	if !s.twoFactor.VerifyTOTP(secret, code) {
		s.metrics.TwoFactor("totp", false)
		return common.ErrInvalidTwoFactorCode
	}
	s.metrics.TwoFactor("totp", true)

	var revoked int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)
		locked, err := users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if locked.TwoFactorEnabled {
			return common.ErrTwoFactorAlreadyEnabled
		}
		if err := s.twoFactor.WithDB(tx).EnableTwoFactor(ctx, userID, secret, backupCodes); err != nil {
			return err
		}
		if err := users.SetTwoFactorEnabled(ctx, userID, true); err != nil {
			return err
		}
		n, err := s.repomanager.Sessions(tx).DeleteByUser(ctx, userID, "")
		revoked = n
		return err
	})
	if err != nil {
		return err
	}

	to, lang := user.Email, s.language(user)
	s.sendEmail(ctx, mail.KindTwoFactorEnabled, userID, func(ctx context.Context) error {
		return s.mailer.Send2FAEnabledEmail(ctx, to, lang)
	})
	s.audit.Record(ctx, userID, common.EventTwoFactorEnabled, "sessions_revoked", strconv.FormatInt(revoked, 10))
	return nil
}

// Disable2FA turns 2FA off after re-checking the password. Accounts without
// a password must set one first. All sessions of the user are deleted.
func (s *AuthService) Disable2FA(ctx context.Context, userID, password string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return common.ErrTwoFactorNotEnabled
	}
	if !user.HasPassword() || password == "" {
		return common.ErrPasswordRequired
	}
	ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return err
	}
	if !ok {
		s.audit.Record(ctx, userID, common.EventLoginFailed, "reason", "disable_2fa")
		return common.ErrInvalidCredentials
	}

	var revoked int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.twoFactor.WithDB(tx).Disable(ctx, userID); err != nil {
			return err
		}
		if err := s.repomanager.Users(tx).SetTwoFactorEnabled(ctx, userID, false); err != nil {
			return err
		}
		n, err := s.repomanager.Sessions(tx).DeleteByUser(ctx, userID, "")
		revoked = n
		return err
	})
	if err != nil {
		return err
	}

	to, lang := user.Email, s.language(user)
	s.sendEmail(ctx, mail.KindTwoFactorDisabled, userID, func(ctx context.Context) error {
		return s.mailer.Send2FADisabledEmail(ctx, to, lang)
	})
	s.audit.Record(ctx, userID, common.EventTwoFactorDisabled, "sessions_revoked", strconv.FormatInt(revoked, 10))
	return nil
}

// RegenerateBackupCodes replaces every backup code after checking a TOTP or
// backup code.
func (s *AuthService) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	res, err := s.twoFactor.Verify2FACode(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		s.metrics.TwoFactor("unknown", false)
		return nil, common.ErrInvalidTwoFactorCode
	}
	if res.IsBackupCode {
		s.audit.Record(ctx, userID, common.EventBackupCodeUsed)
	}

	codes, err := s.twoFactor.RegenerateBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, userID, common.EventBackupCodesRegenerated)
	return codes, nil
}

// RemainingBackupCodes reports how many backup codes userID has left.
func (s *AuthService) RemainingBackupCodes(ctx context.Context, userID string) (int, error) {
	return s.twoFactor.RemainingBackupCodes(ctx, userID)
}
