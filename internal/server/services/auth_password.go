package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/mail"
	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// RequestPasswordReset mails a reset link if email belongs to an account.
// The returned message is the same either way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) string {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "password reset lookup failed", "error", err)
		}
		return PasswordResetMessage
	}

	token, err := s.tokens.CreatePasswordResetToken(ctx, user.ID)
	if err != nil {
		s.logger.Error(ctx, "create password reset token failed", "user_id", user.ID, "error", err)
		return PasswordResetMessage
	}
	to, lang := user.Email, s.language(user)
	s.sendEmail(ctx, mail.KindPasswordReset, user.ID, func(ctx context.Context) error {
		return s.mailer.SendPasswordResetEmail(ctx, to, token, lang)
	})
	s.audit.Record(ctx, user.ID, common.EventPasswordResetRequested)
	return PasswordResetMessage
}

func tokenOutcome(v models.TokenValidation) error {
	switch {
	case v.Valid:
		return nil
	case v.Expired:
		return common.ErrTokenExpired
	default:
		return common.ErrTokenInvalid
	}
}

// ConfirmPasswordReset sets a new password using a reset token and signs
// out every other session. currentSessionID, when not empty, survives.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword, currentSessionID string) error {
	if err := s.validator.checkPassword(newPassword); err != nil {
		return err
	}
	v, err := s.tokens.ValidatePasswordResetToken(ctx, token)
	if err != nil {
		return err
	}
	if err := tokenOutcome(v); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	var revoked int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePasswordHash(ctx, v.UserID, hash); err != nil {
			return err
		}
		n, err := s.repomanager.Sessions(tx).DeleteByUser(ctx, v.UserID, currentSessionID)
		revoked = n
		return err
	})
	if err != nil {
		return err
	}

	if err := s.tokens.InvalidatePasswordResetToken(ctx, token); err != nil {
		s.logger.Error(ctx, "invalidate password reset token failed", "user_id", v.UserID, "error", err)
	}
	s.logger.Info(ctx, "password reset completed", "user_id", v.UserID, "sessions_revoked", revoked)
	s.audit.Record(ctx, v.UserID, common.EventPasswordResetCompleted)
	return nil
}

// ChangePassword replaces the password of a signed-in user. Accounts without
// a password (OAuth only) may set one without currentPassword. Other
// sessions are signed out.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, currentSessionID string) error {
	if err := s.validator.checkPassword(newPassword); err != nil {
		return err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPassword() {
		ok, err := s.hasher.Compare(ctx, user.PasswordHash, currentPassword)
		if err != nil {
			return err
		}
		if !ok {
			s.audit.Record(ctx, userID, common.EventLoginFailed, "reason", "change_password")
			return common.ErrInvalidCredentials
		}
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		_, err := s.repomanager.Sessions(tx).DeleteByUser(ctx, userID, currentSessionID)
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, userID, common.EventPasswordChanged, "had_password", strconv.FormatBool(user.HasPassword()))
	return nil
}

// SendVerificationEmail re-sends the verification link, at most three times
// an hour.
func (s *AuthService) SendVerificationEmail(ctx context.Context, userID string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return common.ErrEmailAlreadyVerified
	}
	sent, err := s.countRecent(ctx, userID, common.EventVerificationEmailSent, verificationEmailWindow)
	if err != nil {
		return err
	}
	if sent >= verificationEmailLimit {
		return common.ErrRateLimited
	}
	s.startEmailVerification(ctx, user)
	return nil
}

// VerifyEmail marks the token owner's email as verified and consumes the
// token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	v, err := s.tokens.ValidateEmailVerificationToken(ctx, token)
	if err != nil {
		return err
	}
	if err := tokenOutcome(v); err != nil {
		return err
	}
	if err := s.repomanager.Users(s.db).SetEmailVerified(ctx, v.UserID, true); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrTokenInvalid
		}
		return err
	}
	if err := s.tokens.InvalidateEmailVerificationToken(ctx, token); err != nil {
		s.logger.Error(ctx, "invalidate verification token failed", "user_id", v.UserID, "error", err)
	}
	s.audit.Record(ctx, v.UserID, common.EventEmailVerified)
	return nil
}
