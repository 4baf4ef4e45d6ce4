package models

import "time"

// TwoFactorAuth holds the confirmed TOTP setup of a user. BackupCodes are
// bcrypt hashes; a consumed code is removed from the list.
type TwoFactorAuth struct {
	UserID          string
	SecretEncrypted string
	BackupCodes     []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TwoFactorVerification reports whether a code was accepted and whether it
// was a backup code.
type TwoFactorVerification struct {
	Valid        bool
	IsBackupCode bool
}

// TwoFactorSetup is handed to the user while enabling 2FA. Nothing in it is
// persisted until the setup is confirmed with a live code.
type TwoFactorSetup struct {
	Secret      string
	OTPAuthURL  string
	QRCode      string
	BackupCodes []string
}
